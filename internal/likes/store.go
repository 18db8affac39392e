package likes

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/engine"
	"go.uber.org/zap"
)

var (
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opStoreNew = "likes.store.new"
	opToggle   = "likes.toggle"

	reasonMissingIDProvider  = "missing_id_provider"
	reasonInvalidInput       = "invalid_input"
	reasonIDGenerationFailed = "id_generation_failed"
)

// Like records that a user likes an article. At most one exists per pair.
type Like struct {
	ID        string
	ArticleID string
	UserID    string
	CreatedAt time.Time
}

// Status is the outcome of a toggle.
type Status struct {
	IsLiked    bool
	TotalLikes int
}

// StoreConfig describes the collaborators of a Store.
type StoreConfig struct {
	Clock      engine.Clock
	IDProvider engine.IDProvider
	Logger     *zap.Logger
}

// Store owns likes indexed by article then user.
type Store struct {
	mu        sync.RWMutex
	byArticle map[string]map[string]Like

	locks      *engine.KeyedMutex
	clock      engine.Clock
	idProvider engine.IDProvider
	logger     *zap.Logger
}

// NewStore constructs an empty like store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.IDProvider == nil {
		return nil, engine.NewServiceError(opStoreNew, reasonMissingIDProvider, errMissingIDProvider)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{
		byArticle:  make(map[string]map[string]Like),
		locks:      engine.NewKeyedMutex(),
		clock:      engine.ClockOrDefault(cfg.Clock),
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Toggle likes the article for userID, or removes the existing like.
func (s *Store) Toggle(articleID, userID string) (Status, error) {
	switch {
	case strings.TrimSpace(articleID) == "":
		return Status{}, engine.NewServiceError(opToggle, reasonInvalidInput, fmt.Errorf("%w: article id required", engine.ErrInvalidInput))
	case strings.TrimSpace(userID) == "":
		return Status{}, engine.NewServiceError(opToggle, reasonInvalidInput, fmt.Errorf("%w: user id required", engine.ErrInvalidInput))
	}

	unlock := s.locks.Lock(engine.PairKey(articleID, userID))
	defer unlock()

	s.mu.RLock()
	_, liked := s.byArticle[articleID][userID]
	s.mu.RUnlock()

	if liked {
		s.mu.Lock()
		likers := s.byArticle[articleID]
		delete(likers, userID)
		if len(likers) == 0 {
			delete(s.byArticle, articleID)
		}
		total := len(likers)
		s.mu.Unlock()
		return Status{IsLiked: false, TotalLikes: total}, nil
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logger.Error("likes store error",
			zap.String("operation", opToggle),
			zap.String("reason", reasonIDGenerationFailed),
			zap.Error(err),
			zap.String("article_id", articleID))
		return Status{}, engine.NewServiceError(opToggle, reasonIDGenerationFailed, err)
	}

	s.mu.Lock()
	likers, ok := s.byArticle[articleID]
	if !ok {
		likers = make(map[string]Like)
		s.byArticle[articleID] = likers
	}
	likers[userID] = Like{ID: id, ArticleID: articleID, UserID: userID, CreatedAt: s.clock()}
	total := len(likers)
	s.mu.Unlock()
	return Status{IsLiked: true, TotalLikes: total}, nil
}

// CountFor reports how many users like the article.
func (s *Store) CountFor(articleID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byArticle[articleID])
}

// IsLikedBy reports whether userID currently likes the article.
func (s *Store) IsLikedBy(articleID, userID string) bool {
	if userID == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, liked := s.byArticle[articleID][userID]
	return liked
}

// LikesFor returns the article's likes in no particular order.
func (s *Store) LikesFor(articleID string) []Like {
	s.mu.RLock()
	defer s.mu.RUnlock()
	likers := s.byArticle[articleID]
	out := make([]Like, 0, len(likers))
	for _, like := range likers {
		out = append(out, like)
	}
	return out
}
