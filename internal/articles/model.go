package articles

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/engine"
)

// DefaultPageLimit is the page size used when a filter leaves Limit unset.
const DefaultPageLimit = 10

// Article is an authored, time-scheduled piece of content.
// IsPublished is computed from PublishTime each time the store hands out a copy.
type Article struct {
	ID          string
	Title       string
	Content     string
	AuthorID    string
	Tags        []string
	PublishTime time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IsPublished bool
}

// EditHistoryEntry snapshots an article immediately before one update.
type EditHistoryEntry struct {
	ID              string
	ArticleID       string
	PreviousTitle   string
	PreviousContent string
	PreviousTags    []string
	EditedAt        time.Time
	EditedBy        string
}

// CreateInput describes a new article. A nil PublishTime publishes immediately.
type CreateInput struct {
	Title       string
	Content     string
	Tags        []string
	PublishTime *time.Time
	AuthorID    string
}

// Patch lists the fields an update replaces; nil fields are left untouched.
type Patch struct {
	Title       *string
	Content     *string
	Tags        *[]string
	PublishTime *time.Time
}

// Filter narrows a listing of published articles.
type Filter struct {
	Page    int
	Limit   int
	Keyword string
	Tag     string
	Author  string
}

// ListResult is one page of articles plus the post-filter total.
type ListResult struct {
	Articles []Article
	Total    int
}

func (input CreateInput) validate() error {
	if strings.TrimSpace(input.AuthorID) == "" {
		return fmt.Errorf("%w: author id required", engine.ErrInvalidInput)
	}
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: title required", engine.ErrInvalidInput)
	}
	if strings.TrimSpace(input.Content) == "" {
		return fmt.Errorf("%w: content required", engine.ErrInvalidInput)
	}
	return validateTags(input.Tags)
}

func (patch Patch) validate() error {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return fmt.Errorf("%w: title must not be blank", engine.ErrInvalidInput)
	}
	if patch.Content != nil && strings.TrimSpace(*patch.Content) == "" {
		return fmt.Errorf("%w: content must not be blank", engine.ErrInvalidInput)
	}
	if patch.Tags != nil {
		return validateTags(*patch.Tags)
	}
	return nil
}

func validateTags(tags []string) error {
	for index, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("%w: tag %d is blank", engine.ErrInvalidInput, index)
		}
	}
	return nil
}

func (a Article) matches(filter Filter) bool {
	if keyword := strings.ToLower(filter.Keyword); keyword != "" {
		searchText := strings.ToLower(a.Title + " " + a.Content)
		if !strings.Contains(searchText, keyword) {
			return false
		}
	}
	if filter.Tag != "" && !containsTag(a.Tags, filter.Tag) {
		return false
	}
	if filter.Author != "" && a.AuthorID != filter.Author {
		return false
	}
	return true
}

func containsTag(tags []string, tag string) bool {
	for _, candidate := range tags {
		if candidate == tag {
			return true
		}
	}
	return false
}

func cloneTags(tags []string) []string {
	cloned := make([]string, len(tags))
	copy(cloned, tags)
	return cloned
}

func cloneEntry(entry EditHistoryEntry) EditHistoryEntry {
	cloned := entry
	cloned.PreviousTags = cloneTags(entry.PreviousTags)
	return cloned
}
