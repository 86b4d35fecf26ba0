// Package session implements the conversation controller: it owns the
// transcript, allows at most one outbound query at a time and turns every
// answering-service outcome into exactly one assistant turn.
package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rupeshbug/sec-policy-lens/pkg/answer"
	"github.com/rupeshbug/sec-policy-lens/pkg/versions"
)

// FallbackMessage is shown in place of an answer whenever a query fails.
const FallbackMessage = "An error occurred while retrieving the answer. Please try again."

var (
	ErrQueryPending        = errors.New("a query is already pending")
	ErrExamplesUnavailable = errors.New("example questions are only offered before the first question")
	ErrUnknownExample      = errors.New("unknown example question")
)

// Answerer is the remote answering service.
type Answerer interface {
	Ask(ctx context.Context, req answer.Request) (*answer.Response, error)
}

type Controller struct {
	answerer Answerer
	logger   zerolog.Logger
	examples []string
	now      func() time.Time
	newID    func() string

	mu    sync.Mutex
	state State
	// queue holds events not yet handed to listeners, in mutation order.
	// It is guarded by mu.
	queue []Event

	// notifyMu serializes delivery and guards the listener set. It may be
	// taken before mu, never after it.
	notifyMu  sync.Mutex
	listeners map[int]Listener
	nextLID   int
}

type Option func(*Controller)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

func WithListener(l Listener) Option {
	return func(c *Controller) {
		if l != nil {
			c.listeners[c.nextLID] = l
			c.nextLID++
		}
	}
}

func WithExamples(examples []string) Option {
	return func(c *Controller) {
		c.examples = append([]string(nil), examples...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) {
		if gen != nil {
			c.newID = gen
		}
	}
}

func New(answerer Answerer, opts ...Option) *Controller {
	c := &Controller{
		answerer:  answerer,
		logger:    log.Logger.With().Str("component", "session").Logger(),
		examples:  append([]string(nil), DefaultExamples...),
		now:       time.Now,
		newID:     uuid.NewString,
		listeners: map[int]Listener{},
		state: State{
			Transcript: []Turn{},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers a listener and returns a function removing it.
// Listeners may call Snapshot and Examples but must not call mutating
// methods synchronously.
func (c *Controller) Subscribe(l Listener) func() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	id := c.nextLID
	c.nextLID++
	c.listeners[id] = l
	return func() {
		c.notifyMu.Lock()
		defer c.notifyMu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Controller) Examples() []string {
	return append([]string(nil), c.examples...)
}

// Submit sends text as the next question. Empty or whitespace-only text is
// ignored. ErrQueryPending is returned, without touching the session, when
// another query is still in flight. Failures of the answering service are
// never returned: they end up as a fallback assistant turn instead.
//
// Submit blocks until the assistant turn is appended. Cancelling ctx does not
// abort the query.
func (c *Controller) Submit(ctx context.Context, text string) error {
	return c.submit(ctx, text, false)
}

// submit implements Submit. With onlyIfEmpty the transcript is checked in
// the same critical section that appends the user turn.
func (c *Controller) submit(ctx context.Context, text string, onlyIfEmpty bool) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	c.mu.Lock()
	if c.state.Pending {
		c.mu.Unlock()
		return ErrQueryPending
	}
	if onlyIfEmpty && len(c.state.Transcript) > 0 {
		c.mu.Unlock()
		return ErrExamplesUnavailable
	}
	userTurn := Turn{
		ID:        c.newID(),
		Role:      RoleUser,
		Content:   text,
		CreatedAt: c.now(),
	}
	c.state.Transcript = append(c.state.Transcript, userTurn)
	c.state.Pending = true
	draftWasSet := c.state.Draft != ""
	c.state.Draft = ""
	filter := c.state.VersionFilter

	c.enqueueLocked(EventTurnAppended, &userTurn)
	c.enqueueLocked(EventPendingChanged, nil)
	if draftWasSet {
		c.enqueueLocked(EventDraftChanged, nil)
	}
	c.mu.Unlock()
	defer c.release()
	c.flush()

	req := answer.Request{
		Query:   text,
		Version: filter.Pointer(),
		Mode:    answer.ModeFast,
	}
	logger := c.logger.With().Str("turn_id", userTurn.ID).Str("version", filter.String()).Logger()
	logger.Debug().Msg("dispatching query")

	resp, err := c.ask(context.WithoutCancel(ctx), req)
	reply := c.replyTurn(resp, err)
	if reply.Failed {
		logger.Error().Err(reply.cause).Msg("disclosure analysis failed")
	} else {
		logger.Debug().Int("citations", len(reply.Citations)).Msg("answer received")
	}
	c.append(reply.Turn)
	return nil
}

// SelectExample submits the example question at index. It is only available
// while the transcript is empty.
func (c *Controller) SelectExample(ctx context.Context, index int) error {
	if index < 0 || index >= len(c.examples) {
		return errors.Wrapf(ErrUnknownExample, "index %d", index)
	}
	return c.submit(ctx, c.examples[index], true)
}

// SetVersionFilter changes the edition future queries are biased toward.
// It may be called while a query is pending; the in-flight query keeps the
// filter it was sent with.
func (c *Controller) SetVersionFilter(v versions.Version) error {
	if !v.Valid() {
		return errors.Wrapf(versions.ErrUnknownVersion, "%q", string(v))
	}
	c.mu.Lock()
	if c.state.VersionFilter == v {
		c.mu.Unlock()
		return nil
	}
	c.state.VersionFilter = v
	c.enqueueLocked(EventVersionFilterChanged, nil)
	c.mu.Unlock()
	c.flush()
	return nil
}

// SetDraft records the uncommitted text of the next question.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	if c.state.Draft == text {
		c.mu.Unlock()
		return
	}
	c.state.Draft = text
	c.enqueueLocked(EventDraftChanged, nil)
	c.mu.Unlock()
	c.flush()
}

type reply struct {
	Turn
	cause error
}

func (c *Controller) replyTurn(resp *answer.Response, err error) reply {
	if err == nil {
		err = validate(resp)
	}
	if err != nil {
		return reply{
			Turn: Turn{
				ID:        c.newID(),
				Role:      RoleAssistant,
				Content:   FallbackMessage,
				Citations: []Citation{},
				CreatedAt: c.now(),
				Failed:    true,
			},
			cause: err,
		}
	}

	citations := make([]Citation, 0, len(resp.Sources))
	for _, s := range resp.Sources {
		citations = append(citations, Citation{Document: s.Doc, Version: s.Version, Section: s.Section})
	}
	return reply{Turn: Turn{
		ID:        c.newID(),
		Role:      RoleAssistant,
		Content:   *resp.Answer,
		Citations: citations,
		CreatedAt: c.now(),
	}}
}

func validate(resp *answer.Response) error {
	switch {
	case resp == nil:
		return errors.Wrap(answer.ErrMalformedResponse, "no response")
	case resp.Answer == nil:
		return errors.Wrap(answer.ErrMalformedResponse, "missing answer field")
	case strings.TrimSpace(*resp.Answer) == "":
		return errors.Wrap(answer.ErrMalformedResponse, "empty answer")
	}
	return nil
}

// ask shields the session from a panicking Answerer.
func (c *Controller) ask(ctx context.Context, req answer.Request) (resp *answer.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = errors.Errorf("answerer panicked: %v", r)
		}
	}()
	if c.answerer == nil {
		return nil, errors.New("no answering service configured")
	}
	return c.answerer.Ask(ctx, req)
}

func (c *Controller) append(t Turn) {
	c.mu.Lock()
	c.state.Transcript = append(c.state.Transcript, t)
	c.enqueueLocked(EventTurnAppended, &t)
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) release() {
	c.mu.Lock()
	c.state.Pending = false
	c.enqueueLocked(EventPendingChanged, nil)
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) enqueueLocked(typ EventType, t *Turn) {
	c.queue = append(c.queue, c.eventLocked(typ, t))
}

func (c *Controller) eventLocked(typ EventType, t *Turn) Event {
	ev := Event{
		Type:          typ,
		Pending:       c.state.Pending,
		VersionFilter: c.state.VersionFilter,
		Draft:         c.state.Draft,
		TranscriptLen: len(c.state.Transcript),
	}
	if t != nil {
		cp := t.clone()
		ev.Turn = &cp
	}
	return ev
}

// flush delivers queued events until the queue is empty. Whoever holds
// notifyMu drains events queued by other goroutines too, so delivery order
// is mutation order. mu is only held while taking the queue.
func (c *Controller) flush() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	for {
		c.mu.Lock()
		evs := c.queue
		c.queue = nil
		c.mu.Unlock()
		if len(evs) == 0 {
			return
		}
		c.dispatch(evs)
	}
}

// dispatch must be called with notifyMu held.
func (c *Controller) dispatch(evs []Event) {
	if len(c.listeners) == 0 {
		return
	}
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, ev := range evs {
		for _, id := range ids {
			c.notify(c.listeners[id], ev)
		}
	}
}

func (c *Controller) notify(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Str("event", string(ev.Type)).Msg("session listener panicked")
		}
	}()
	l(ev)
}
