package transport

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"flightcalc/internal/aviapages"
	"flightcalc/internal/chat"
	"flightcalc/internal/flight"
	"flightcalc/internal/handlers"
)

type stubResolver struct{}

func (stubResolver) ResolveAirport(_ context.Context, token, _ string) (aviapages.Airport, error) {
	return aviapages.Airport{ICAO: token, Name: token}, nil
}

func (stubResolver) ResolveAircraft(_ context.Context, token string) (aviapages.AircraftProfile, error) {
	return aviapages.AircraftProfile{Name: token}, nil
}

type stubCalculator struct{}

func (stubCalculator) Calculate(context.Context, aviapages.CalcRequest) (aviapages.CalcResult, error) {
	return aviapages.CalcResult{AirwayMinutes: 61, AirwayDistance: 500}, nil
}

func newTestListener(cfg Config) *Listener {
	svc := flight.NewService(stubResolver{}, stubCalculator{}, flight.Options{})
	return NewListener(cfg, handlers.NewBot(handlers.NewRegistry(svc), nil, nil), nil)
}

func TestHandleData(t *testing.T) {
	l := newTestListener(DefaultConfig())

	tests := []struct {
		name     string
		input    string
		wantKind string
		wantText string
	}{
		{"flight", `{"chat_id":1,"text":"UUWW - EVRA 2Pax Challenger 300"}`, "", "├ <b>Flight time</b>: 01:01"},
		{"invalid query", `{"chat_id":1,"text":"KIV"}`, flight.KindInvalidQuery, "Invalid query"},
		{"undecodable", `{{`, "Decode", "Invalid message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reply chat.Reply
			if err := json.Unmarshal(l.HandleData(context.Background(), []byte(tt.input)), &reply); err != nil {
				t.Fatalf("reply is not JSON: %v", err)
			}
			if reply.ErrorKind != tt.wantKind {
				t.Errorf("ErrorKind = %q, want %q", reply.ErrorKind, tt.wantKind)
			}
			if !strings.Contains(reply.Text, tt.wantText) {
				t.Errorf("Text = %q, want it to contain %q", reply.Text, tt.wantText)
			}
		})
	}
}

func TestListener_RequestReply(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Timeout(time.Second))
	if err != nil {
		t.Skip("No NATS server available")
	}
	defer nc.Close()

	cfg := DefaultConfig()
	cfg.URL = url
	cfg.Subject = "flightcalc.test." + strings.TrimPrefix(nats.NewInbox(), nats.InboxPrefix)
	l := newTestListener(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var msg *nats.Msg
	for i := 0; i < 20; i++ {
		msg, err = nc.Request(cfg.Subject, []byte(`{"chat_id":8,"text":"/help"}`), 200*time.Millisecond)
		if err == nil {
			break
		}
	}
	if err != nil {
		cancel()
		t.Fatalf("Request: %v", err)
	}

	var reply chat.Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		t.Fatal(err)
	}
	if reply.ChatID != 8 || reply.Text != handlers.HelpText {
		t.Errorf("reply = %+v", reply)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}
