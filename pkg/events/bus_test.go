package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rupeshbug/sec-policy-lens/pkg/redisstream"
	"github.com/rupeshbug/sec-policy-lens/pkg/session"
	"github.com/rupeshbug/sec-policy-lens/pkg/versions"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	b, err := NewBus(context.Background(), redisstream.Settings{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBusRoundTrip(t *testing.T) {
	b := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)

	turn := session.Turn{
		ID:      "t-1",
		Role:    session.RoleAssistant,
		Content: "Scope 3 disclosure is not required.",
		Citations: []session.Citation{
			{Document: "Final Rule", Version: "2024_final", Section: "II.H.3"},
		},
	}
	b.Listener()(session.Event{
		Type:          session.EventTurnAppended,
		Turn:          &turn,
		VersionFilter: versions.Final2024,
		TranscriptLen: 2,
	})

	select {
	case msg := <-ch:
		require.Equal(t, string(session.EventTurnAppended), msg.Metadata.Get("type"))
		ev, err := Decode(msg)
		require.NoError(t, err)
		msg.Ack()
		require.Equal(t, session.EventTurnAppended, ev.Type)
		require.Equal(t, versions.Final2024, ev.VersionFilter)
		require.Equal(t, 2, ev.TranscriptLen)
		require.NotNil(t, ev.Turn)
		require.Equal(t, turn.Content, ev.Turn.Content)
		require.Equal(t, turn.Citations, ev.Turn.Citations)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestBusRunDeliversControllerEvents(t *testing.T) {
	b := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan session.Event, 16)
	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx, func(msg *message.Message) error {
			ev, err := Decode(msg)
			if err != nil {
				return err
			}
			received <- ev
			return nil
		})
	}()

	// give the subscription a moment to register before publishing
	require.Eventually(t, func() bool {
		b.Listener()(session.Event{Type: session.EventDraftChanged, Draft: "draft text"})
		select {
		case <-received:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	c := session.New(nil, session.WithLogger(zerolog.Nop()))
	unsubscribe := c.Subscribe(b.Listener())
	defer unsubscribe()
	require.NoError(t, c.SetVersionFilter(versions.Proposed2022))

	require.Eventually(t, func() bool {
		for {
			select {
			case ev := <-received:
				if ev.Type == session.EventVersionFilterChanged {
					return ev.VersionFilter == versions.Proposed2022
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(message.NewMessage("x", []byte("not json")))
	require.Error(t, err)
}

func TestNewBusRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewBus(ctx, redisstream.Settings{
		Enabled:  true,
		Addr:     "127.0.0.1:1",
		Group:    "g",
		Consumer: "c",
	}, zerolog.Nop())
	require.Error(t, err)
}
