package session

import (
	"time"

	"github.com/rupeshbug/sec-policy-lens/pkg/versions"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Citation is a grounding reference attached to exactly one assistant Turn.
type Citation struct {
	Document string `json:"doc" yaml:"doc"`
	Version  string `json:"version" yaml:"version"`
	Section  string `json:"section" yaml:"section"`
}

// Turn is one transcript entry. Turns are never modified once appended.
type Turn struct {
	ID        string     `json:"id" yaml:"id"`
	Role      Role       `json:"role" yaml:"role"`
	Content   string     `json:"content" yaml:"content"`
	Citations []Citation `json:"citations,omitempty" yaml:"citations,omitempty"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	// Failed marks the fallback assistant turn produced when a query could
	// not be answered.
	Failed bool `json:"failed,omitempty" yaml:"failed,omitempty"`
}

func (t Turn) HasCitations() bool {
	return t.Role == RoleAssistant && len(t.Citations) > 0
}

func (t Turn) clone() Turn {
	ret := t
	if t.Citations != nil {
		ret.Citations = make([]Citation, len(t.Citations))
		copy(ret.Citations, t.Citations)
	}
	return ret
}

// State is a point-in-time copy of a session.
type State struct {
	Transcript    []Turn
	Pending       bool
	VersionFilter versions.Version
	Draft         string
}

// Thinking reports whether the "assistant is thinking" indicator is shown.
func (s State) Thinking() bool {
	return s.Pending
}

// ShowExamples reports whether the example questions are offered.
func (s State) ShowExamples() bool {
	return len(s.Transcript) == 0
}

// LastAssistant returns the most recent assistant turn, if any.
func (s State) LastAssistant() (Turn, bool) {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == RoleAssistant {
			return s.Transcript[i], true
		}
	}
	return Turn{}, false
}

func (s State) clone() State {
	ret := s
	ret.Transcript = make([]Turn, len(s.Transcript))
	for i, t := range s.Transcript {
		ret.Transcript[i] = t.clone()
	}
	return ret
}
