package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceErrorExposesCodeAndKind(t *testing.T) {
	err := NewServiceError("articles.update", "forbidden", ErrForbidden)

	require.Error(t, err)
	assert.Equal(t, "articles.update.forbidden", CodeOf(err))
	assert.Equal(t, "articles.update.forbidden: forbidden", err.Error())
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, ErrForbidden, Kind(err))
}

func TestKindSeesThroughWrapping(t *testing.T) {
	inner := NewServiceError("comments.create", "rate_limited", ErrRateLimited)
	wrapped := fmt.Errorf("handler: %w", inner)

	assert.Equal(t, ErrRateLimited, Kind(wrapped))
	assert.Equal(t, "comments.create.rate_limited", CodeOf(wrapped))
}

func TestKindIgnoresForeignErrors(t *testing.T) {
	assert.Nil(t, Kind(errors.New("boom")))
	assert.Empty(t, CodeOf(errors.New("boom")))
}
