package telegram

import (
	"strings"
	"testing"
	"time"

	kit "classbell/internal/transport"
	logx "classbell/pkg/logx"
)

func TestSplitText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{"short", "hello", 10, []string{"hello"}},
		{"hard cut", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"newline", "aaaa\nbbbbbb", 8, []string{"aaaa", "bbbbbb"}},
		{"tag kept whole", "abc<b>x</b>", 5, []string{"abc", "<b>x", "</b>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitText(tt.in, tt.limit)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("splitText(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
		})
	}
}

func TestFormatEscapesHTML(t *testing.T) {
	t.Parallel()
	m := kit.Message{
		Kind:     "activity_start",
		Level:    kit.LevelInfo,
		Title:    "Class begins",
		Body:     "Maths <room 3>",
		FireTime: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
	got := format(m)
	want := "🔔 <b>Class begins</b>\nMaths &lt;room 3&gt;\n<i>08:00</i>"
	if got != want {
		t.Fatalf("format = %q, want %q", got, want)
	}
}

func TestNewRequiresTokenAndChat(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{ChatID: 1}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
	if _, err := New(Config{Token: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty chat id")
	}
}
