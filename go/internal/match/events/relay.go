package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/touchtyped/typeduel/go/internal/models"
)

const (
	DefaultQueueSize      = 1024
	DefaultPublishTimeout = 5 * time.Second
)

// Relay turns coordinator notifications into events and publishes them from
// a single worker goroutine, so bus latency never reaches the caller. Events
// are dropped with a warning when the queue is full.
type Relay struct {
	publisher Publisher
	clock     clockwork.Clock
	timeout   time.Duration
	queue     chan Event
}

func NewRelay(publisher Publisher, clock clockwork.Clock, queueSize int) *Relay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Relay{
		publisher: publisher,
		clock:     clock,
		timeout:   DefaultPublishTimeout,
		queue:     make(chan Event, queueSize),
	}
}

func (r *Relay) MatchCreated(room models.MatchRoom) {
	r.enqueue(TypeMatchCreated, room.MatchID, matchCreated(room))
}

func (r *Relay) ScoreUpdated(room models.MatchRoom) {
	r.enqueue(TypeScoreUpdated, room.MatchID, scoreUpdated(room))
}

func (r *Relay) MatchClosed(room models.MatchRoom, reason string) {
	r.enqueue(TypeMatchClosed, room.MatchID, matchClosed(room, reason, r.clock.Now().UTC()))
}

func (r *Relay) enqueue(eventType, matchID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		return
	}

	event := Event{
		ID:        uuid.New(),
		Type:      eventType,
		MatchID:   matchID,
		Payload:   data,
		CreatedAt: r.clock.Now(),
	}

	select {
	case r.queue <- event:
	default:
		log.Warn().
			Str("event_type", eventType).
			Str("match_id", matchID).
			Msg("event queue full, dropping event")
	}
}

// Run publishes queued events until ctx is cancelled, then flushes what is
// left with a fresh timeout.
func (r *Relay) Run(ctx context.Context) {
	log.Info().Msg("match event relay started")
	for {
		select {
		case event := <-r.queue:
			r.publish(ctx, event)
		case <-ctx.Done():
			r.drain()
			log.Info().Msg("match event relay stopped")
			return
		}
	}
}

func (r *Relay) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	for {
		select {
		case event := <-r.queue:
			r.publish(ctx, event)
		default:
			return
		}
	}
}

func (r *Relay) publish(ctx context.Context, event Event) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.publisher.Publish(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("match_id", event.MatchID).
			Msg("failed to publish match event")
	}
}
