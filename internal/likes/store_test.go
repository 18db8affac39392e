package likes

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (p *sequenceIDs) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("like-%d", p.next), nil
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) {
	return "", errors.New("entropy exhausted")
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	clock := engine.NewManualClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store, err := NewStore(StoreConfig{Clock: clock.Now, IDProvider: &sequenceIDs{}})
	require.NoError(t, err)
	return store
}

func TestToggleTwiceRestoresInitialState(t *testing.T) {
	store := newTestStore(t)

	status, err := store.Toggle("article-1", "ada")
	require.NoError(t, err)
	assert.Equal(t, Status{IsLiked: true, TotalLikes: 1}, status)
	assert.True(t, store.IsLikedBy("article-1", "ada"))

	status, err = store.Toggle("article-1", "ada")
	require.NoError(t, err)
	assert.Equal(t, Status{IsLiked: false, TotalLikes: 0}, status)
	assert.False(t, store.IsLikedBy("article-1", "ada"))
	assert.Zero(t, store.CountFor("article-1"))
}

func TestToggleCountsDistinctUsers(t *testing.T) {
	store := newTestStore(t)
	for _, user := range []string{"ada", "grace", "linus"} {
		_, err := store.Toggle("article-1", user)
		require.NoError(t, err)
	}
	_, err := store.Toggle("article-2", "ada")
	require.NoError(t, err)

	assert.Equal(t, 3, store.CountFor("article-1"))
	assert.Equal(t, 1, store.CountFor("article-2"))
	assert.Zero(t, store.CountFor("article-404"))
	assert.False(t, store.IsLikedBy("article-1", ""))

	status, err := store.Toggle("article-1", "grace")
	require.NoError(t, err)
	assert.Equal(t, Status{IsLiked: false, TotalLikes: 2}, status)
	assert.Len(t, store.LikesFor("article-1"), 2)
}

func TestToggleRejectsBlankIdentifiers(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Toggle("", "ada")
	require.ErrorIs(t, err, engine.ErrInvalidInput)
	_, err = store.Toggle("article-1", " ")
	require.ErrorIs(t, err, engine.ErrInvalidInput)
	assert.Equal(t, "likes.toggle.invalid_input", engine.CodeOf(err))
}

func TestToggleSurfacesIDFailure(t *testing.T) {
	store, err := NewStore(StoreConfig{IDProvider: failingIDs{}})
	require.NoError(t, err)
	_, err = store.Toggle("article-1", "ada")
	require.Error(t, err)
	assert.Equal(t, "likes.toggle.id_generation_failed", engine.CodeOf(err))
	assert.Zero(t, store.CountFor("article-1"))
}

func TestConcurrentTogglesNeverDuplicateALike(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newTestStore(t)
	const toggles = 101
	var likedResults atomic.Int32
	var group errgroup.Group
	for index := 0; index < toggles; index++ {
		group.Go(func() error {
			status, err := store.Toggle("article-1", "ada")
			if err != nil {
				return err
			}
			if status.TotalLikes > 1 {
				return fmt.Errorf("observed %d likes for a single user", status.TotalLikes)
			}
			if status.IsLiked {
				likedResults.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, group.Wait())

	// an odd number of serialized toggles leaves the like in place.
	assert.EqualValues(t, toggles/2+1, likedResults.Load())
	assert.Equal(t, 1, store.CountFor("article-1"))
	assert.True(t, store.IsLikedBy("article-1", "ada"))
}
