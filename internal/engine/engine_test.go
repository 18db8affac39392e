package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	testCases := []struct {
		name      string
		page      int
		limit     int
		total     int
		wantStart int
		wantEnd   int
	}{
		{name: "first-page", page: 1, limit: 10, total: 25, wantStart: 0, wantEnd: 10},
		{name: "second-page", page: 2, limit: 10, total: 25, wantStart: 10, wantEnd: 20},
		{name: "partial-last-page", page: 3, limit: 10, total: 25, wantStart: 20, wantEnd: 25},
		{name: "past-the-end", page: 9, limit: 10, total: 25, wantStart: 25, wantEnd: 25},
		{name: "zero-page-defaults-to-first", page: 0, limit: 10, total: 25, wantStart: 0, wantEnd: 10},
		{name: "zero-limit-uses-default", page: 1, limit: 0, total: 25, wantStart: 0, wantEnd: 5},
		{name: "empty", page: 1, limit: 10, total: 0, wantStart: 0, wantEnd: 0},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			start, end := Paginate(testCase.page, testCase.limit, 5, testCase.total)
			assert.Equal(t, testCase.wantStart, start)
			assert.Equal(t, testCase.wantEnd, end)
		})
	}
}

func TestManualClockAdvances(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start.Add(time.Hour), clock.Advance(time.Hour))
	clock.Set(start)
	assert.Equal(t, start, clock.Now())
}

func TestUUIDProviderIssuesDistinctIDs(t *testing.T) {
	provider := NewUUIDProvider()
	first, err := provider.NewID()
	require.NoError(t, err)
	second, err := provider.NewID()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

type stubDirectory struct {
	users map[string]PublicUser
}

func (d stubDirectory) PublicUserByID(_ context.Context, id string) (PublicUser, error) {
	user, ok := d.users[id]
	if !ok {
		return PublicUser{}, errors.New("unknown user")
	}
	return user, nil
}

func TestResolveUserFallsBackToPlaceholder(t *testing.T) {
	directory := stubDirectory{users: map[string]PublicUser{
		"u-1": {ID: "u-1", Username: "ada", Name: "Ada"},
	}}

	assert.Equal(t, "Ada", ResolveUser(context.Background(), directory, "u-1").DisplayName())

	missing := ResolveUser(context.Background(), directory, "u-2")
	assert.Equal(t, PlaceholderUser("u-2"), missing)
	assert.Equal(t, "unknown", missing.DisplayName())

	assert.Equal(t, PlaceholderUser("u-3"), ResolveUser(context.Background(), nil, "u-3"))
}
