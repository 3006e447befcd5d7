// Package telegram delivers bell notifications to a Telegram chat.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "classbell/internal/transport"
	logx "classbell/pkg/logx"
)

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
	// Timeout bounds each Bot API call.
	Timeout time.Duration
}

// Sink sends messages through the Bot API. It never polls for updates.
type Sink struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Sink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sink{cfg: cfg, log: log.With(logx.String("comp", "telegram")), bot: b}, nil
}

func (s *Sink) Name() string { return "telegram" }

func (s *Sink) Send(ctx context.Context, m kit.Message) error {
	chunks := splitText(format(m), textLimit)
	chat := &tele.Chat{ID: s.cfg.ChatID}
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		opt := &tele.SendOptions{
			ParseMode:             tele.ModeHTML,
			DisableWebPagePreview: true,
			ThreadID:              s.cfg.ThreadID,
		}
		if _, err := s.bot.Send(chat, chunk, opt); err != nil {
			return err
		}
	}
	return nil
}

func format(m kit.Message) string {
	var b strings.Builder
	b.WriteString(levelIcon(m.Level))
	b.WriteString("<b>")
	b.WriteString(escape(m.Title))
	b.WriteString("</b>")
	if m.Body != "" {
		b.WriteString("\n")
		b.WriteString(escape(m.Body))
	}
	if !m.FireTime.IsZero() {
		b.WriteString("\n<i>")
		b.WriteString(m.FireTime.Format("15:04"))
		b.WriteString("</i>")
	}
	return b.String()
}

func levelIcon(l kit.Level) string {
	switch l {
	case kit.LevelWarning:
		return "⚠️ "
	case kit.LevelAnnouncement:
		return "📣 "
	case kit.LevelSystem:
		return "⚙️ "
	default:
		return "🔔 "
	}
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string { return htmlEscaper.Replace(s) }

const textLimit = 4000

// splitText cuts long messages into chunks Telegram accepts. It prefers
// newline boundaries and never cuts inside an HTML tag.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = textLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))

		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		if end < len(rs) {
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
