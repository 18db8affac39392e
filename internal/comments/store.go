package comments

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/MarcoPoloResearchLab/inkwell/internal/engine"
	"go.uber.org/zap"
)

var (
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opStoreNew = "comments.store.new"
	opCreate   = "comments.create"
	opFindByID = "comments.find_by_id"
	opRemove   = "comments.remove"

	reasonMissingIDProvider  = "missing_id_provider"
	reasonInvalidInput       = "invalid_input"
	reasonRateLimited        = "rate_limited"
	reasonNotFound           = "not_found"
	reasonForbidden          = "forbidden"
	reasonIDGenerationFailed = "id_generation_failed"

	fieldArticleID = "article_id"
	fieldCommentID = "comment_id"
	fieldUserID    = "user_id"
)

// StoreConfig describes the collaborators of a Store.
type StoreConfig struct {
	Clock      engine.Clock
	IDProvider engine.IDProvider
	Users      engine.UserDirectory
	RateLimit  RateLimitConfig
	Logger     *zap.Logger
}

// Store owns comments and the per (user, article) rate windows.
type Store struct {
	mu        sync.RWMutex
	comments  map[string]Comment
	byArticle map[string][]string

	limiter    *rateLimiter
	locks      *engine.KeyedMutex
	clock      engine.Clock
	idProvider engine.IDProvider
	users      engine.UserDirectory
	logger     *zap.Logger
}

// NewStore constructs an empty comment store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.IDProvider == nil {
		return nil, engine.NewServiceError(opStoreNew, reasonMissingIDProvider, errMissingIDProvider)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{
		comments:   make(map[string]Comment),
		byArticle:  make(map[string][]string),
		limiter:    newRateLimiter(cfg.RateLimit),
		locks:      engine.NewKeyedMutex(),
		clock:      engine.ClockOrDefault(cfg.Clock),
		idProvider: cfg.IDProvider,
		users:      cfg.Users,
		logger:     logger,
	}, nil
}

// Create posts a comment unless the author exhausted the article's rate window.
func (s *Store) Create(articleID, content, authorID string) (Comment, error) {
	if err := validateCreate(articleID, content, authorID); err != nil {
		return Comment{}, engine.NewServiceError(opCreate, reasonInvalidInput, err)
	}

	unlock := s.locks.Lock(engine.PairKey(authorID, articleID))
	defer unlock()

	now := s.clock()
	if !s.limiter.admit(authorID, articleID, now) {
		s.logger.Info("comment rate limited",
			zap.String("operation", opCreate),
			zap.String(fieldArticleID, articleID),
			zap.String(fieldUserID, authorID))
		return Comment{}, engine.NewServiceError(opCreate, reasonRateLimited, engine.ErrRateLimited)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, reasonIDGenerationFailed, err, zap.String(fieldArticleID, articleID))
		return Comment{}, engine.NewServiceError(opCreate, reasonIDGenerationFailed, err)
	}

	comment := Comment{
		ID:        id,
		ArticleID: articleID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.comments[id] = comment
	s.byArticle[articleID] = append(s.byArticle[articleID], id)
	s.mu.Unlock()

	s.limiter.record(authorID, articleID, now)
	return comment, nil
}

// FindByArticle returns a page of the article's thread, oldest first.
func (s *Store) FindByArticle(ctx context.Context, articleID string, page, limit int) ListResult {
	thread := s.threadOf(articleID)
	slices.SortStableFunc(thread, func(left, right Comment) int {
		return left.CreatedAt.Compare(right.CreatedAt)
	})

	total := len(thread)
	start, end := engine.Paginate(page, limit, defaultPageLimit, total)
	return ListResult{
		Comments: s.decorate(ctx, thread[start:end]),
		Total:    total,
	}
}

// FindByID returns one comment with its author.
func (s *Store) FindByID(ctx context.Context, id string) (CommentWithAuthor, error) {
	s.mu.RLock()
	comment, ok := s.comments[id]
	s.mu.RUnlock()
	if !ok {
		return CommentWithAuthor{}, engine.NewServiceError(opFindByID, reasonNotFound, engine.ErrNotFound)
	}
	return CommentWithAuthor{
		Comment: comment,
		Author:  engine.ResolveUser(ctx, s.users, comment.AuthorID),
	}, nil
}

// Remove deletes a comment. The requester must be the comment's author or the
// article's author; the caller resolves articleAuthorID.
func (s *Store) Remove(id, requesterID, articleAuthorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.comments[id]
	if !ok {
		return engine.NewServiceError(opRemove, reasonNotFound, engine.ErrNotFound)
	}
	allowed := requesterID != "" && (requesterID == comment.AuthorID || requesterID == articleAuthorID)
	if !allowed {
		s.logger.Info("comments mutation rejected",
			zap.String("operation", opRemove),
			zap.String("reason", reasonForbidden),
			zap.String(fieldCommentID, id),
			zap.String(fieldUserID, requesterID))
		return engine.NewServiceError(opRemove, reasonForbidden, engine.ErrForbidden)
	}

	delete(s.comments, id)
	remaining := slices.DeleteFunc(s.byArticle[comment.ArticleID], func(candidate string) bool {
		return candidate == id
	})
	if len(remaining) == 0 {
		delete(s.byArticle, comment.ArticleID)
	} else {
		s.byArticle[comment.ArticleID] = remaining
	}
	return nil
}

// RecentFor returns up to limit comments on the article, newest first.
func (s *Store) RecentFor(ctx context.Context, articleID string, limit int) []CommentWithAuthor {
	if limit < 1 {
		limit = defaultRecentLimit
	}
	thread := s.threadOf(articleID)
	slices.Reverse(thread)
	slices.SortStableFunc(thread, func(left, right Comment) int {
		return right.CreatedAt.Compare(left.CreatedAt)
	})
	if len(thread) > limit {
		thread = thread[:limit]
	}
	return s.decorate(ctx, thread)
}

// CountFor reports how many comments exist for the article.
func (s *Store) CountFor(articleID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byArticle[articleID])
}

// Remaining reports how many more comments userID may post on articleID right now.
func (s *Store) Remaining(userID, articleID string) int {
	return s.limiter.remaining(userID, articleID, s.clock())
}

// Window returns a copy of the pair's rate window as last pruned.
func (s *Store) Window(userID, articleID string) RateWindow {
	return s.limiter.snapshot(userID, articleID)
}

func (s *Store) threadOf(articleID string) []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byArticle[articleID]
	thread := make([]Comment, 0, len(ids))
	for _, id := range ids {
		thread = append(thread, s.comments[id])
	}
	return thread
}

func (s *Store) decorate(ctx context.Context, thread []Comment) []CommentWithAuthor {
	decorated := make([]CommentWithAuthor, 0, len(thread))
	for _, comment := range thread {
		decorated = append(decorated, CommentWithAuthor{
			Comment: comment,
			Author:  engine.ResolveUser(ctx, s.users, comment.AuthorID),
		})
	}
	return decorated
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("comments store error", attrs...)
}
