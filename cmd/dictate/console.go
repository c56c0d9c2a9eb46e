package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/liuscraft/orion-dictate/internal/viewstate"
)

// console 终端界面：渲染视图状态变更，并在授权提问期间把输入行交给提问方
type console struct {
	outMu sync.Mutex
	out   io.Writer

	mu      sync.Mutex
	pending chan string
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

// Confirm 阻塞到下一行输入，只有 y/yes 视为同意
func (c *console) Confirm(question string) (bool, error) {
	answer := make(chan string, 1)
	c.mu.Lock()
	c.pending = answer
	c.mu.Unlock()

	c.printf("%s [y/N] ", question)
	line, ok := <-answer
	if !ok {
		return false, io.EOF
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// route 有待回答的提问时消费该行并返回 true
func (c *console) route(line string) bool {
	c.mu.Lock()
	answer := c.pending
	c.pending = nil
	c.mu.Unlock()

	if answer == nil {
		return false
	}
	answer <- line
	return true
}

// closeInput 输入结束时让挂起的提问返回 EOF
func (c *console) closeInput() {
	c.mu.Lock()
	answer := c.pending
	c.pending = nil
	c.mu.Unlock()
	if answer != nil {
		close(answer)
	}
}

func (c *console) render(change viewstate.Change) {
	switch change.Field {
	case viewstate.FieldRecordButtonEnabled:
		if enabled, _ := change.New.(bool); enabled {
			c.printf("[button] enabled (press Enter)\n")
		} else {
			c.printf("[button] disabled\n")
		}
	case viewstate.FieldRecordButtonText:
		c.printf("[button] %v\n", change.New)
	case viewstate.FieldSpeechText:
		c.printf("[speech] %v\n", change.New)
	}
}

func (c *console) notice(msg string) {
	c.printf("[notice] %s\n", msg)
}

func (c *console) printf(format string, args ...interface{}) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// readLines 把输入按行送入通道，读到 EOF 后关闭
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
