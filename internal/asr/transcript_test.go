package asr

import "testing"

func TestTranscript(t *testing.T) {
	type add struct {
		text string
		end  bool
	}
	tests := []struct {
		name string
		adds []add
		want string
	}{
		{"empty", nil, ""},
		{"partial only", []add{{"hel", false}, {"hello", false}}, "hello"},
		{"committed then partial", []add{{"hello world", true}, {"how", false}}, "hello world how"},
		{"end clears current", []add{{"draft", false}, {"", true}}, ""},
		{"cjk joined without space", []add{{"你好", true}, {"世界", false}}, "你好世界"},
		{"mixed scripts", []add{{"hello", true}, {"世界", true}}, "hello世界"},
		{"trims whitespace", []add{{"  one  ", true}, {" two ", true}}, "one two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr transcript
			for _, a := range tt.adds {
				tr.Add(a.text, a.end)
			}
			if got := tr.Text(); got != tt.want {
				t.Fatalf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}
