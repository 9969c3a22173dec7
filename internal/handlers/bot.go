package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"flightcalc/internal/chat"
	"flightcalc/internal/flight"
	"flightcalc/internal/registry"
	"flightcalc/internal/storage"
)

// History records handled requests.
type History interface {
	Insert(ctx context.Context, p storage.InsertParams) (int64, error)
}

// Bot dispatches messages, renders handler errors and records history.
// Every error is answered to the user; none stops the bot.
type Bot struct {
	registry *registry.Registry
	history  History
	logger   *slog.Logger
}

// NewBot creates a Bot. history and logger may be nil.
func NewBot(reg *registry.Registry, history History, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bot{registry: reg, history: history, logger: logger}
}

// Handle answers one message. source names the front end ("http", "nats",
// "cli") for history.
func (b *Bot) Handle(ctx context.Context, source string, msg *chat.Message) chat.Reply {
	start := time.Now()
	reply, err := b.registry.Dispatch(ctx, msg)
	reply.ChatID = int64(msg.ChatID)
	reply.ParseMode = chat.ParseModeHTML

	switch {
	case err == nil:
	case errors.Is(err, registry.ErrNoHandler):
		reply.Text = UnknownCommandText
	default:
		reply.ErrorKind = flight.ErrorKind(err)
		reply.Text = RenderError(flight.UserMessage(err))

		level := slog.LevelWarn
		if reply.ErrorKind == flight.KindConnection || reply.ErrorKind == flight.KindInternal {
			level = slog.LevelError
		}
		b.logger.Log(ctx, level, "request failed",
			slog.String("request_id", reply.RequestID),
			slog.String("source", source),
			slog.Int64("chat_id", reply.ChatID),
			slog.String("kind", reply.ErrorKind),
			slog.Any("error", err))
	}

	b.logger.Debug("request handled",
		slog.String("request_id", reply.RequestID),
		slog.String("source", source),
		slog.Int("legs", reply.LegCount),
		slog.Duration("elapsed", time.Since(start)))

	b.record(ctx, source, msg, reply)
	return reply
}

func (b *Bot) record(ctx context.Context, source string, msg *chat.Message, reply chat.Reply) {
	if b.history == nil {
		return
	}
	_, err := b.history.Insert(ctx, storage.InsertParams{
		Source:    source,
		ChatID:    int64(msg.ChatID),
		User:      msg.User.FullName(),
		RawText:   msg.Text,
		Legs:      reply.Legs,
		LegCount:  reply.LegCount,
		Reply:     reply.Text,
		ErrorKind: reply.ErrorKind,
	})
	if err != nil {
		b.logger.Error("record history", slog.String("request_id", reply.RequestID), slog.Any("error", err))
	}
}
