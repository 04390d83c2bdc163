package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touchtyped/typeduel/go/internal/models"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *capturePublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) snapshot() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

var testRoom = models.MatchRoom{
	MatchID: "m-1",
	PlayerA: "alice",
	PlayerB: "bob",
	ScoreA:  3,
	ScoreB:  1,
	Letters: "abc",
}

func TestRelay_PublishesInOrder(t *testing.T) {
	pub := &capturePublisher{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	relay := NewRelay(pub, clock, 8)

	relay.MatchCreated(testRoom)
	relay.ScoreUpdated(testRoom)
	relay.MatchClosed(testRoom, "expired")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	events := pub.snapshot()
	assert.Equal(t, TypeMatchCreated, events[0].Type)
	assert.Equal(t, TypeScoreUpdated, events[1].Type)
	assert.Equal(t, TypeMatchClosed, events[2].Type)
	for _, e := range events {
		assert.Equal(t, "m-1", e.MatchID)
	}

	var closed MatchClosedPayload
	require.NoError(t, json.Unmarshal(events[2].Payload, &closed))
	assert.Equal(t, "expired", closed.Reason)
	assert.Equal(t, 3, closed.ScoreA)
	assert.True(t, closed.ClosedAt.Equal(clock.Now()))
}

func TestRelay_DropsWhenQueueFull(t *testing.T) {
	pub := &capturePublisher{}
	relay := NewRelay(pub, nil, 1)

	relay.ScoreUpdated(testRoom)
	relay.ScoreUpdated(testRoom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	relay.Run(ctx)

	assert.Len(t, pub.snapshot(), 1)
}

func TestRelay_PublishErrorDoesNotStop(t *testing.T) {
	pub := &capturePublisher{err: errors.New("bus down")}
	relay := NewRelay(pub, nil, 4)
	relay.MatchCreated(testRoom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { relay.Run(ctx) })
}

func TestEnvelope(t *testing.T) {
	relay := NewRelay(LogPublisher{}, nil, 1)
	relay.MatchCreated(testRoom)
	event := <-relay.queue

	data, err := json.Marshal(envelope(event))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TypeMatchCreated, decoded["eventType"])
	assert.Equal(t, "m-1", decoded["matchId"])
	payload := decoded["payload"].(map[string]any)
	assert.Equal(t, "alice", payload["player_a"])
	assert.NoError(t, LogPublisher{}.Publish(context.Background(), event))
}
