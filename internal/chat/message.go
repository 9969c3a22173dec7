// Package chat provides the chat message envelope handled by the bot and
// the reply sent back.
package chat

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexInt64 handles JSON fields that can be either string or number.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		*f = FlexInt64(i)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*f = 0
			return nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			*f = 0
			return nil // Chat ids that are not numbers are dropped.
		}
		*f = FlexInt64(i)
		return nil
	}

	*f = 0
	return nil
}

// User is the sender of a message.
type User struct {
	ID        FlexInt64 `json:"id"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Username  string    `json:"username,omitempty"`
}

// FullName joins first and last name, falling back to the username.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Message is one inbound chat message in flat form.
type Message struct {
	ID        FlexInt64 `json:"id"`
	ChatID    FlexInt64 `json:"chat_id"`
	Source    string    `json:"source,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
	User      *User     `json:"user,omitempty"`
	Text      string    `json:"text"`
	Edited    bool      `json:"edited,omitempty"` // Text comes from an edited message.
}

// IsCommand reports whether the message is a slash command.
func (m *Message) IsCommand() bool {
	return strings.HasPrefix(strings.TrimSpace(m.Text), "/")
}

// Command returns the command name without the slash or a "@bot" suffix,
// lower-cased. It returns "" for plain text.
func (m *Message) Command() string {
	if !m.IsCommand() {
		return ""
	}
	word, _, _ := strings.Cut(strings.TrimSpace(m.Text)[1:], " ")
	word, _, _ = strings.Cut(word, "\n")
	word, _, _ = strings.Cut(word, "@")
	return strings.ToLower(word)
}

// Update is the nested envelope used by chat platforms: exactly one of
// Message and EditedMessage is normally set.
type Update struct {
	UpdateID      FlexInt64     `json:"update_id"`
	Message       *InnerMessage `json:"message,omitempty"`
	EditedMessage *InnerMessage `json:"edited_message,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID FlexInt64 `json:"id"`
}

// InnerMessage is the message structure nested inside an Update.
type InnerMessage struct {
	MessageID FlexInt64 `json:"message_id"`
	Date      int64     `json:"date,omitempty"`
	Chat      Chat      `json:"chat"`
	From      *User     `json:"from,omitempty"`
	Text      string    `json:"text"`
}

// ToMessage converts an Update to a flat Message. The new message is
// preferred; the edited one is used only when it is absent.
func (u *Update) ToMessage() *Message {
	inner, edited := u.Message, false
	if inner == nil {
		inner, edited = u.EditedMessage, true
	}
	if inner == nil {
		return nil
	}

	msg := &Message{
		ID:     inner.MessageID,
		ChatID: inner.Chat.ID,
		User:   inner.From,
		Text:   inner.Text,
		Edited: edited,
	}
	if inner.Date != 0 {
		msg.Timestamp = strconv.FormatInt(inner.Date, 10)
	}
	return msg
}

// Decode accepts either a flat Message or a nested Update.
func Decode(data []byte) (*Message, error) {
	var probe struct {
		Message       json.RawMessage `json:"message"`
		EditedMessage json.RawMessage `json:"edited_message"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	if probe.Message != nil || probe.EditedMessage != nil {
		var u Update
		if err := json.Unmarshal(data, &u); err != nil {
			return nil, err
		}
		if msg := u.ToMessage(); msg != nil {
			return msg, nil
		}
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ParseModeHTML marks reply text as HTML.
const ParseModeHTML = "HTML"

// Reply is the bot's answer to a message.
type Reply struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
	RequestID string `json:"request_id,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	LegCount  int    `json:"leg_count,omitempty"`
	Legs      any    `json:"legs,omitempty"` // Parsed legs when a flight request got that far.
}
