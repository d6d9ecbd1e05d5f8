package broker

import (
	"context"
	"sync"

	"github.com/facenoel/chatter/internal/model"
)

// Recorder is a Bus that keeps every published envelope in memory.
// Subscribers still receive envelopes, so it can stand in for Local.
type Recorder struct {
	*Local

	mu   sync.Mutex
	envs []model.Envelope
}

func NewRecorder() *Recorder {
	return &Recorder{Local: NewLocal()}
}

func (r *Recorder) Publish(ctx context.Context, env model.Envelope) error {
	r.mu.Lock()
	r.envs = append(r.envs, env)
	r.mu.Unlock()
	return r.Local.Publish(ctx, env)
}

// Envelopes returns a copy of everything published so far.
func (r *Recorder) Envelopes() []model.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Envelope(nil), r.envs...)
}

// Events returns the published envelopes named event.
func (r *Recorder) Events(event string) []model.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Envelope
	for _, env := range r.envs {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.envs = nil
	r.mu.Unlock()
}
