package comments

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/engine"
)

const (
	defaultPageLimit   = 20
	defaultRecentLimit = 5
)

// Comment is a reader's message on an article.
type Comment struct {
	ID        string
	ArticleID string
	AuthorID  string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CommentWithAuthor decorates a comment with its author's public profile.
type CommentWithAuthor struct {
	Comment
	Author engine.PublicUser
}

// ListResult is one page of an article's comment thread.
type ListResult struct {
	Comments []CommentWithAuthor
	Total    int
}

func validateCreate(articleID, content, authorID string) error {
	if strings.TrimSpace(articleID) == "" {
		return fmt.Errorf("%w: article id required", engine.ErrInvalidInput)
	}
	if strings.TrimSpace(authorID) == "" {
		return fmt.Errorf("%w: author id required", engine.ErrInvalidInput)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content required", engine.ErrInvalidInput)
	}
	return nil
}
