package articles

import (
	"errors"
	"slices"
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
	opStoreNew     = "articles.store.new"
	opCreate       = "articles.create"
	opGet          = "articles.get"
	opGetForAuthor = "articles.get_for_author"
	opUpdate       = "articles.update"
	opRemove       = "articles.remove"
	opHistory      = "articles.history"
	opAuthorOf     = "articles.author_of"

	reasonMissingIDProvider  = "missing_id_provider"
	reasonInvalidInput       = "invalid_input"
	reasonNotFound           = "not_found"
	reasonNotPublished       = "not_published"
	reasonForbidden          = "forbidden"
	reasonIDGenerationFailed = "id_generation_failed"

	fieldArticleID = "article_id"
	fieldUserID    = "user_id"
)

// StoreConfig describes the collaborators of a Store.
type StoreConfig struct {
	Clock      engine.Clock
	IDProvider engine.IDProvider
	Logger     *zap.Logger
}

// Store owns articles and their edit history.
type Store struct {
	mu       sync.RWMutex
	records  map[string]articleRecord
	sequence uint64
	history  *ledger

	locks      *engine.KeyedMutex
	clock      engine.Clock
	idProvider engine.IDProvider
	logger     *zap.Logger
}

type articleRecord struct {
	article  Article
	sequence uint64
}

// NewStore constructs an empty article store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.IDProvider == nil {
		return nil, engine.NewServiceError(opStoreNew, reasonMissingIDProvider, errMissingIDProvider)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{
		records:    make(map[string]articleRecord),
		history:    newLedger(),
		locks:      engine.NewKeyedMutex(),
		clock:      engine.ClockOrDefault(cfg.Clock),
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Create stores a new article authored by input.AuthorID.
func (s *Store) Create(input CreateInput) (Article, error) {
	if err := input.validate(); err != nil {
		return Article{}, engine.NewServiceError(opCreate, reasonInvalidInput, err)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, reasonIDGenerationFailed, err, zap.String(fieldUserID, input.AuthorID))
		return Article{}, engine.NewServiceError(opCreate, reasonIDGenerationFailed, err)
	}

	now := s.clock()
	publishTime := now
	if input.PublishTime != nil {
		publishTime = *input.PublishTime
	}
	article := Article{
		ID:          id,
		Title:       input.Title,
		Content:     input.Content,
		AuthorID:    input.AuthorID,
		Tags:        cloneTags(input.Tags),
		PublishTime: publishTime,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.sequence++
	s.records[id] = articleRecord{article: article, sequence: s.sequence}
	s.mu.Unlock()

	return present(article, now), nil
}

// Get returns a published article. Scheduled articles are reported as not found.
func (s *Store) Get(id string) (Article, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return Article{}, engine.NewServiceError(opGet, reasonNotFound, engine.ErrNotFound)
	}

	now := s.clock()
	if record.article.PublishTime.After(now) {
		return Article{}, engine.NewServiceError(opGet, reasonNotPublished, engine.ErrNotFound)
	}
	return present(record.article, now), nil
}

// GetForAuthor returns an article regardless of its schedule, to its author only.
func (s *Store) GetForAuthor(id, userID string) (Article, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return Article{}, engine.NewServiceError(opGetForAuthor, reasonNotFound, engine.ErrNotFound)
	}
	if record.article.AuthorID != userID {
		s.logRejection(opGetForAuthor, reasonForbidden, zap.String(fieldArticleID, id), zap.String(fieldUserID, userID))
		return Article{}, engine.NewServiceError(opGetForAuthor, reasonForbidden, engine.ErrForbidden)
	}
	return present(record.article, s.clock()), nil
}

// AuthorOf reports the author of an article whether or not it is published yet.
func (s *Store) AuthorOf(id string) (string, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return "", engine.NewServiceError(opAuthorOf, reasonNotFound, engine.ErrNotFound)
	}
	return record.article.AuthorID, nil
}

// List filters published articles and returns the requested page, newest first.
func (s *Store) List(filter Filter) (ListResult, error) {
	now := s.clock()

	s.mu.RLock()
	candidates := make([]articleRecord, 0, len(s.records))
	for _, record := range s.records {
		if record.article.PublishTime.After(now) {
			continue
		}
		if !record.article.matches(filter) {
			continue
		}
		candidates = append(candidates, record)
	}
	s.mu.RUnlock()

	slices.SortFunc(candidates, func(left, right articleRecord) int {
		if cmp := right.article.CreatedAt.Compare(left.article.CreatedAt); cmp != 0 {
			return cmp
		}
		switch {
		case left.sequence < right.sequence:
			return -1
		case left.sequence > right.sequence:
			return 1
		default:
			return 0
		}
	})

	total := len(candidates)
	start, end := engine.Paginate(filter.Page, filter.Limit, DefaultPageLimit, total)
	page := make([]Article, 0, end-start)
	for _, record := range candidates[start:end] {
		page = append(page, present(record.article, now))
	}
	return ListResult{Articles: page, Total: total}, nil
}

// Update applies patch on behalf of userID, recording the prior state in the edit history.
func (s *Store) Update(id string, patch Patch, userID string) (Article, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return Article{}, engine.NewServiceError(opUpdate, reasonNotFound, engine.ErrNotFound)
	}
	if record.article.AuthorID != userID {
		s.logRejection(opUpdate, reasonForbidden, zap.String(fieldArticleID, id), zap.String(fieldUserID, userID))
		return Article{}, engine.NewServiceError(opUpdate, reasonForbidden, engine.ErrForbidden)
	}
	if err := patch.validate(); err != nil {
		return Article{}, engine.NewServiceError(opUpdate, reasonInvalidInput, err)
	}

	entryID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opUpdate, reasonIDGenerationFailed, err, zap.String(fieldArticleID, id))
		return Article{}, engine.NewServiceError(opUpdate, reasonIDGenerationFailed, err)
	}

	now := s.clock()
	previous := record.article
	entry := EditHistoryEntry{
		ID:              entryID,
		ArticleID:       id,
		PreviousTitle:   previous.Title,
		PreviousContent: previous.Content,
		PreviousTags:    cloneTags(previous.Tags),
		EditedAt:        now,
		EditedBy:        userID,
	}

	updated := previous
	updated.Tags = cloneTags(previous.Tags)
	if patch.Title != nil {
		updated.Title = *patch.Title
	}
	if patch.Content != nil {
		updated.Content = *patch.Content
	}
	if patch.Tags != nil {
		updated.Tags = cloneTags(*patch.Tags)
	}
	if patch.PublishTime != nil {
		updated.PublishTime = *patch.PublishTime
	}
	updated.UpdatedAt = latest(now, previous.UpdatedAt)

	s.mu.Lock()
	s.history.append(entry)
	s.records[id] = articleRecord{article: updated, sequence: record.sequence}
	s.mu.Unlock()

	return present(updated, now), nil
}

// Remove deletes an article together with its edit history.
func (s *Store) Remove(id, userID string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return engine.NewServiceError(opRemove, reasonNotFound, engine.ErrNotFound)
	}
	if record.article.AuthorID != userID {
		s.logRejection(opRemove, reasonForbidden, zap.String(fieldArticleID, id), zap.String(fieldUserID, userID))
		return engine.NewServiceError(opRemove, reasonForbidden, engine.ErrForbidden)
	}
	delete(s.records, id)
	removed := s.history.dropArticle(id)
	s.logger.Debug("article removed",
		zap.String(fieldArticleID, id),
		zap.Int("history_entries_removed", removed))
	return nil
}

// History returns the article's edit history, newest first, to its author only.
func (s *Store) History(id, userID string) ([]EditHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, engine.NewServiceError(opHistory, reasonNotFound, engine.ErrNotFound)
	}
	if record.article.AuthorID != userID {
		s.logRejection(opHistory, reasonForbidden, zap.String(fieldArticleID, id), zap.String(fieldUserID, userID))
		return nil, engine.NewServiceError(opHistory, reasonForbidden, engine.ErrForbidden)
	}
	return s.history.entriesFor(id), nil
}

// HistoryCount reports how many ledger entries exist for an article id.
func (s *Store) HistoryCount(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.count(id)
}

func present(article Article, now time.Time) Article {
	presented := article
	presented.Tags = cloneTags(article.Tags)
	presented.IsPublished = !article.PublishTime.After(now)
	return presented
}

func latest(candidate, floor time.Time) time.Time {
	if candidate.Before(floor) {
		return floor
	}
	return candidate
}

func (s *Store) logRejection(operation, reason string, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	attrs = append(attrs, fields...)
	s.logger.Info("articles mutation rejected", attrs...)
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
	s.logger.Error("articles store error", attrs...)
}
