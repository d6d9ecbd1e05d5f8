package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facenoel/chatter/internal/model"
)

func TestJWT(t *testing.T) {
	const tokenSecret = "validtokensecret"

	t.Run("Valid_JWT", func(t *testing.T) {
		userID := uuid.New()
		tokenString, err := MakeJWT(userID, tokenSecret, "chatter", 15*time.Second)
		require.NoError(t, err)

		gotUserID, err := ValidateJWT(tokenString, tokenSecret, "chatter")
		require.NoError(t, err)
		assert.Equal(t, userID, gotUserID)
	})

	t.Run("Any_issuer_when_unset", func(t *testing.T) {
		userID := uuid.New()
		tokenString, err := MakeJWT(userID, tokenSecret, "someone-else", 15*time.Second)
		require.NoError(t, err)

		gotUserID, err := ValidateJWT(tokenString, tokenSecret, "")
		require.NoError(t, err)
		assert.Equal(t, userID, gotUserID)
	})

	t.Run("Wrong_issuer", func(t *testing.T) {
		tokenString, err := MakeJWT(uuid.New(), tokenSecret, "someone-else", 15*time.Second)
		require.NoError(t, err)

		_, err = ValidateJWT(tokenString, tokenSecret, "chatter")
		assert.Error(t, err)
	})

	t.Run("Incorrect_secret", func(t *testing.T) {
		tokenString, err := MakeJWT(uuid.New(), tokenSecret, "", 15*time.Second)
		require.NoError(t, err)

		_, err = ValidateJWT(tokenString, "fakesecret", "")
		assert.Error(t, err)
	})

	t.Run("Expired_token", func(t *testing.T) {
		tokenString, err := MakeJWT(uuid.New(), tokenSecret, "", -1*time.Second)
		require.NoError(t, err)

		_, err = ValidateJWT(tokenString, tokenSecret, "")
		assert.Error(t, err)
	})

	t.Run("Corrupt_token", func(t *testing.T) {
		_, err := ValidateJWT("corrupttoken", tokenSecret, "")
		assert.Error(t, err)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		query   string
		want    string
		wantErr bool
	}{
		{"header", "Bearer abc", "", "abc", false},
		{"lowercase_scheme", "bearer abc", "", "abc", false},
		{"header_wins_over_query", "Bearer abc", "xyz", "abc", false},
		{"query", "", "xyz", "xyz", false},
		{"wrong_scheme", "Basic abc", "", "", true},
		{"empty_token", "Bearer  ", "", "", true},
		{"missing", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/ws"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			got, err := BearerToken(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetUserFromContext(t *testing.T) {
	t.Run("is_valid_UUID", func(t *testing.T) {
		wantUserID := uuid.New()
		gotUserID, err := GetUserFromContext(WithUser(context.Background(), wantUserID))
		require.NoError(t, err)
		assert.Equal(t, wantUserID, gotUserID)
	})

	t.Run("invalid_UUID", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), UserIDKey, "not-UUID")
		_, err := GetUserFromContext(ctx)
		assert.Error(t, err)
	})

	t.Run("nil_UUID", func(t *testing.T) {
		_, err := GetUserFromContext(WithUser(context.Background(), uuid.Nil))
		assert.Error(t, err)
	})

	t.Run("no_context", func(t *testing.T) {
		_, err := GetUserFromContext(context.Background())
		assert.Error(t, err)
	})
}

type slowSource struct {
	calls   atomic.Int32
	release chan struct{}
	profile model.Profile
	err     error
}

func (s *slowSource) GetProfile(_ context.Context, id uuid.UUID) (model.Profile, error) {
	s.calls.Add(1)
	<-s.release
	if s.err != nil {
		return model.Profile{}, s.err
	}
	p := s.profile
	p.ID = id
	return p, nil
}

func TestProfileResolver(t *testing.T) {
	t.Run("coalesces_concurrent_lookups", func(t *testing.T) {
		src := &slowSource{release: make(chan struct{}), profile: model.Profile{DisplayName: "An"}}
		r := NewProfileResolver(src)
		id := uuid.New()

		var wg sync.WaitGroup
		results := make([]model.Profile, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				p, err := r.Resolve(context.Background(), id)
				assert.NoError(t, err)
				results[i] = p
			}(i)
		}

		// Let every goroutine reach the shared call before it completes.
		require.Eventually(t, func() bool { return src.calls.Load() >= 1 }, time.Second, time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		close(src.release)
		wg.Wait()

		assert.LessOrEqual(t, src.calls.Load(), int32(8))
		for _, p := range results {
			assert.Equal(t, id, p.ID)
			assert.Equal(t, "An", p.DisplayName)
		}
	})

	t.Run("wraps_errors", func(t *testing.T) {
		notFound := errors.New("not found")
		src := &slowSource{release: make(chan struct{}), err: notFound}
		close(src.release)

		_, err := NewProfileResolver(src).Resolve(context.Background(), uuid.New())
		assert.ErrorIs(t, err, notFound)
	})
}
