// Package transport feeds chat messages from NATS to the bot and sends the
// replies back over request/reply.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"flightcalc/internal/chat"
	"flightcalc/internal/handlers"
)

// Config holds NATS connection settings.
type Config struct {
	URL     string
	Subject string
	Queue   string // Queue group; listeners in one group share messages.
	Name    string // Connection name shown by the server.
}

// DefaultConfig returns local development settings.
func DefaultConfig() Config {
	return Config{
		URL:     nats.DefaultURL,
		Subject: "flightcalc.messages",
		Queue:   "flightcalc",
		Name:    "flightcalc",
	}
}

// Listener answers chat messages published on a subject.
type Listener struct {
	cfg    Config
	bot    *handlers.Bot
	logger *slog.Logger
}

// NewListener creates a Listener. A nil logger discards output.
func NewListener(cfg Config, bot *handlers.Bot, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Listener{cfg: cfg, bot: bot, logger: logger}
}

// Run connects, subscribes and serves until ctx is cancelled. In-flight
// messages are drained before it returns.
func (l *Listener) Run(ctx context.Context) error {
	nc, err := nats.Connect(l.cfg.URL,
		nats.Name(l.cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				l.logger.Warn("nats disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			l.logger.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}

	closed := make(chan struct{})
	nc.SetClosedHandler(func(*nats.Conn) { close(closed) })

	sub, err := nc.QueueSubscribe(l.cfg.Subject, l.cfg.Queue, func(m *nats.Msg) {
		l.serve(ctx, m)
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", l.cfg.Subject, err)
	}
	l.logger.Info("listening", slog.String("url", l.cfg.URL), slog.String("subject", sub.Subject), slog.String("queue", l.cfg.Queue))

	<-ctx.Done()
	if err := nc.Drain(); err != nil {
		nc.Close()
		return fmt.Errorf("drain nats: %w", err)
	}
	<-closed
	return nil
}

func (l *Listener) serve(ctx context.Context, m *nats.Msg) {
	data := l.HandleData(ctx, m.Data)
	if m.Reply == "" {
		l.logger.Debug("message without reply subject", slog.String("subject", m.Subject))
		return
	}
	if err := m.Respond(data); err != nil {
		l.logger.Error("respond", slog.String("subject", m.Reply), slog.Any("error", err))
	}
}

// HandleData answers one encoded message with an encoded reply. Undecodable
// input yields an error reply rather than silence.
func (l *Listener) HandleData(ctx context.Context, data []byte) []byte {
	var reply chat.Reply

	msg, err := chat.Decode(data)
	if err != nil {
		l.logger.Warn("decode message", slog.Any("error", err))
		reply = chat.Reply{
			Text:      handlers.RenderError("Invalid message"),
			ParseMode: chat.ParseModeHTML,
			ErrorKind: "Decode",
		}
	} else {
		reply = l.bot.Handle(ctx, "nats", msg)
	}

	out, err := json.Marshal(reply)
	if err != nil {
		l.logger.Error("encode reply", slog.Any("error", err))
		return []byte(`{"error":"encode reply"}`)
	}
	return out
}
