package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMessageCursorAdmits(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	low := uuid.MustParse("10000000-0000-0000-0000-000000000000")
	mid := uuid.MustParse("80000000-0000-0000-0000-000000000000")
	high := uuid.MustParse("f0000000-0000-0000-0000-000000000000")

	tests := []struct {
		name      string
		cursor    MessageCursor
		createdAt time.Time
		id        uuid.UUID
		want      bool
	}{
		{"zero cursor admits everything", MessageCursor{}, at, high, true},
		{"older timestamp", MessageCursor{Before: at, BeforeID: low}, at.Add(-time.Microsecond), high, true},
		{"newer timestamp", MessageCursor{Before: at, BeforeID: high}, at.Add(time.Microsecond), low, false},
		{"same timestamp lower id", MessageCursor{Before: at, BeforeID: mid}, at, low, true},
		{"same timestamp same id", MessageCursor{Before: at, BeforeID: mid}, at, mid, false},
		{"same timestamp higher id", MessageCursor{Before: at, BeforeID: mid}, at, high, false},
		{"timestamp only excludes ties", MessageCursor{Before: at}, at, low, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cursor.Admits(tt.createdAt, tt.id))
		})
	}
}

func TestMessageCursorPagesThroughTies(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := []uuid.UUID{
		uuid.MustParse("30000000-0000-0000-0000-000000000000"),
		uuid.MustParse("60000000-0000-0000-0000-000000000000"),
		uuid.MustParse("90000000-0000-0000-0000-000000000000"),
	}

	// Walk newest first one message per page, as a client would.
	var (
		cursor MessageCursor
		seen   []uuid.UUID
	)
	for range ids {
		var next uuid.UUID
		for i := len(ids) - 1; i >= 0; i-- {
			if cursor.Admits(at, ids[i]) {
				next = ids[i]
				break
			}
		}
		seen = append(seen, next)
		cursor = MessageCursor{Before: at, BeforeID: next}
	}

	assert.Equal(t, []uuid.UUID{ids[2], ids[1], ids[0]}, seen)
}
