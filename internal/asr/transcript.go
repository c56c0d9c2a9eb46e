package asr

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// transcript 拼接已结束的句子与当前句子，得到任务级的最佳转写
type transcript struct {
	mu        sync.Mutex
	committed []string
	current   string
}

func (t *transcript) Add(text string, sentenceEnd bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	text = strings.TrimSpace(text)
	if sentenceEnd {
		if text != "" {
			t.committed = append(t.committed, text)
		}
		t.current = ""
		return
	}
	t.current = text
}

func (t *transcript) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	parts := t.committed
	if t.current != "" {
		parts = append(parts[:len(parts):len(parts)], t.current)
	}

	var b strings.Builder
	for i, part := range parts {
		if i > 0 && needsSpace(parts[i-1], part) {
			b.WriteByte(' ')
		}
		b.WriteString(part)
	}
	return b.String()
}

// 中日韩文字之间不加空格
func needsSpace(prev, next string) bool {
	last, _ := utf8.DecodeLastRuneInString(prev)
	first, _ := utf8.DecodeRuneInString(next)
	return !isCJK(last) && !isCJK(first)
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r) ||
		(r >= 0x3000 && r <= 0x303f) ||
		(r >= 0xff00 && r <= 0xffef)
}
