// Package broker carries emissions between the realtime core and every
// process's session registry.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/facenoel/chatter/internal/model"
)

var ErrClosed = errors.New("broker: closed")

// Bus publishes envelopes and delivers every published envelope to every subscriber.
type Bus interface {
	Publish(ctx context.Context, env model.Envelope) error
	Subscribe(ctx context.Context) (<-chan model.Envelope, error)
}

// JetStream fans envelopes out across processes through a NATS JetStream stream.
type JetStream struct {
	js     jetstream.JetStream
	stream jetstream.Stream
	logger zerolog.Logger
}

// NewJetStream creates or updates the events stream.
func NewJetStream(ctx context.Context, js jetstream.JetStream, logger zerolog.Logger) (*JetStream, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream interface is nil")
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectEvents},
		Storage:  jetstream.MemoryStorage,
		MaxAge:   time.Minute,
		MaxBytes: 1 << 28,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}

	return &JetStream{
		js:     js,
		stream: stream,
		logger: logger.With().Str("component", "broker").Logger(),
	}, nil
}

func (b *JetStream) Publish(ctx context.Context, env model.Envelope) error {
	p, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("could not encode envelope to JSON: %w", err)
	}

	subject := subjectFor(env.Event)
	if _, err := b.js.Publish(ctx, subject, p, jetstream.WithMsgID(uuid.NewString())); err != nil {
		return fmt.Errorf("failed to publish to stream [%s]: %w", subject, err)
	}
	return nil
}

// Subscribe starts an ordered consumer that only sees envelopes published
// from now on. The channel closes when ctx is done.
func (b *JetStream) Subscribe(ctx context.Context) (<-chan model.Envelope, error) {
	consumer, err := b.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{SubjectEvents},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ordered consumer: %w", err)
	}

	out := make(chan model.Envelope, 1024)

	consumeHandler := func(msg jetstream.Msg) {
		var env model.Envelope
		if err := json.Unmarshal(msg.Data(), &env); err != nil {
			b.logger.Error().Err(err).Str("subject", msg.Subject()).Msg("could not decode envelope")
			return
		}
		select {
		case out <- env:
		case <-ctx.Done():
		}
	}

	optErrHandler := jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
		b.logger.Warn().Err(err).Msg("consumer error")
	})

	consumeCtx, err := consumer.Consume(consumeHandler, optErrHandler)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming messages: %w", err)
	}

	go func() {
		<-ctx.Done()
		consumeCtx.Drain()
		<-consumeCtx.Closed()
		close(out)
	}()

	return out, nil
}

// Local is an in-process Bus for single-process deployments.
type Local struct {
	mu     sync.RWMutex
	subs   map[chan model.Envelope]struct{}
	buffer int
}

func NewLocal() *Local {
	return &Local{subs: make(map[chan model.Envelope]struct{}), buffer: 1024}
}

// Publish blocks until every subscriber has accepted env or ctx is done.
func (b *Local) Publish(ctx context.Context, env model.Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *Local) Subscribe(ctx context.Context) (<-chan model.Envelope, error) {
	ch := make(chan model.Envelope, b.buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}
