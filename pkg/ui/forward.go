package ui

import (
	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/rupeshbug/sec-policy-lens/pkg/events"
	"github.com/rupeshbug/sec-policy-lens/pkg/session"
)

// SessionChangedMsg tells the model the session changed and the snapshot
// must be re-read.
type SessionChangedMsg struct {
	Event session.Event
}

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// ForwardFunc returns a bus handler pushing every session event into the
// bubbletea program.
func ForwardFunc(s Sender) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		ev, err := events.Decode(msg)
		if err != nil {
			log.Error().Err(err).Str("payload", string(msg.Payload)).Msg("Failed to parse session event")
			return err
		}
		log.Trace().Str("event", string(ev.Type)).Int("transcript_len", ev.TranscriptLen).Msg("Dispatching session event to UI")
		s.Send(SessionChangedMsg{Event: ev})
		return nil
	}
}
