package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/facenoel/chatter/internal/model"
)

type ProfileSource interface {
	GetProfile(ctx context.Context, id uuid.UUID) (model.Profile, error)
}

// ProfileResolver looks up the display profile of an authenticated identity.
// Concurrent lookups of the same identity share one store read, which matters
// when a client reconnects several tabs at once.
type ProfileResolver struct {
	source ProfileSource
	group  singleflight.Group
}

func NewProfileResolver(source ProfileSource) *ProfileResolver {
	return &ProfileResolver{source: source}
}

func (r *ProfileResolver) Resolve(ctx context.Context, id uuid.UUID) (model.Profile, error) {
	v, err, _ := r.group.Do(id.String(), func() (any, error) {
		return r.source.GetProfile(context.WithoutCancel(ctx), id)
	})
	if err != nil {
		return model.Profile{}, fmt.Errorf("internal/auth: resolve profile %s: %w", id, err)
	}
	return v.(model.Profile), nil
}

func WithProfile(ctx context.Context, p model.Profile) context.Context {
	return context.WithValue(ctx, ProfileKey, p)
}

func ProfileFromContext(ctx context.Context) (model.Profile, bool) {
	p, ok := ctx.Value(ProfileKey).(model.Profile)
	return p, ok
}
