// Package handlers implements the bot's chat handlers.
package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"

	"flightcalc/internal/chat"
	"flightcalc/internal/flight"
	"flightcalc/internal/registry"
)

// Handler priorities. Commands are checked before free text.
const (
	priorityCommand = 10
	priorityUnknown = 50
	priorityText    = 100
)

const greeting = "<b>Hi, %s!</b>\n" +
	"With my help you can calculate flight time, route, fuel estimation, etc.\n"

// HelpText describes the query format.
const HelpText = "<i>Enter query in the format</i>:\n" +
	"[<b>DEPARTURE AIRPORT</b>] <b>-</b> [<b>ARRIVAL AIRPORT</b>] [<b>PASSENGER COUNT PAX*</b>] [<b>AIRCRAFT</b>] [<b>no COUNTRIES, FIRs</b>]<b>*</b>\n\n" +
	"🟢 AIRPORT could be passed as ICAO/IATA/NAME\n" +
	"🟢 <b>*</b> - optional\n" +
	"🟢 Use multilines to add leg(s)\n\n" +
	"<i>Examples</i>:\n" +
	" 🔘 UUWW - EVRA 2Pax Challenger 300\n" +
	" 🔘 KIV RIX 3 E35L\n" +
	" 🔘 Heathrow - Geneva 3 pax Global 5000\n" +
	" 🔘 KIV - VKO 2 pax Global 5000 no UHMM, Belarus\n" +
	" 🔘 KIV-RIX 3 E35L\n" +
	"       RIX-VKO 3 Challenger 300\n" +
	" 🔘 1. KIV-RIX 3 E35L\n" +
	"       2. RIX-VKO 3 Challenger 300\n" +
	" 🔘 1 KIV-RIX 3 E35L\n" +
	"       2 RIX-VKO 3 Challenger 300\n" +
	" 🔘 1) KIV-RIX 3 E35L\n" +
	"       2) RIX-VKO 3 Challenger 300"

// UnknownCommandText answers commands no handler knows.
const UnknownCommandText = "⚠️ <i>Unknown command</i> ⚠️"

// RenderError renders a user-facing error message.
func RenderError(msg string) string {
	return "<i>⚠️ " + html.EscapeString(msg) + " ⚠️</i>"
}

func reply(msg *chat.Message, text string) chat.Reply {
	return chat.Reply{ChatID: int64(msg.ChatID), Text: text, ParseMode: chat.ParseModeHTML}
}

// Start greets the user and shows the help text.
type Start struct{}

func (Start) Name() string { return "start" }
func (Start) Priority() int { return priorityCommand }
func (Start) Match(msg *chat.Message) bool { return msg.Command() == "start" }

func (Start) Handle(_ context.Context, msg *chat.Message) (chat.Reply, error) {
	name := msg.User.FullName()
	if name == "" {
		name = "there"
	}
	return reply(msg, fmt.Sprintf(greeting, html.EscapeString(name))+"\n"+HelpText), nil
}

// Help shows the query format.
type Help struct{}

func (Help) Name() string { return "help" }
func (Help) Priority() int { return priorityCommand }
func (Help) Match(msg *chat.Message) bool { return msg.Command() == "help" }

func (Help) Handle(_ context.Context, msg *chat.Message) (chat.Reply, error) {
	return reply(msg, HelpText), nil
}

// Unknown answers any other command.
type Unknown struct{}

func (Unknown) Name() string { return "unknown" }
func (Unknown) Priority() int { return priorityUnknown }
func (Unknown) Match(msg *chat.Message) bool { return msg.IsCommand() }

func (Unknown) Handle(_ context.Context, msg *chat.Message) (chat.Reply, error) {
	return reply(msg, UnknownCommandText), nil
}

// FlightRequest calculates the legs in a free-text message.
type FlightRequest struct {
	Service *flight.Service
}

func (FlightRequest) Name() string { return "flight" }
func (FlightRequest) Priority() int { return priorityText }
func (FlightRequest) Match(msg *chat.Message) bool { return !msg.IsCommand() }

func (h FlightRequest) Handle(ctx context.Context, msg *chat.Message) (chat.Reply, error) {
	out, err := h.Service.Handle(ctx, strings.TrimSpace(msg.Text))

	r := reply(msg, out.Reply)
	r.RequestID = out.RequestID
	if len(out.Batch) > 0 {
		r.Legs = out.Batch
		r.LegCount = len(out.Batch)
	}
	return r, err
}

// NewRegistry returns a registry holding every bot handler.
func NewRegistry(svc *flight.Service) *registry.Registry {
	r := registry.New(Start{}, Help{}, Unknown{}, FlightRequest{Service: svc})
	r.Sort()
	return r
}
