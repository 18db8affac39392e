package metadata

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/articles"
	"github.com/MarcoPoloResearchLab/inkwell/internal/comments"
	"github.com/MarcoPoloResearchLab/inkwell/internal/engine"
	"go.uber.org/zap"
)

const (
	opNew         = "metadata.new"
	opListArticle = "metadata.list_articles"
	opGetArticle  = "metadata.get_article"

	reasonMissingCollaborator = "missing_collaborator"
	reasonArticleReadFailed   = "article_read_failed"

	defaultRecentComments = 5
)

var (
	errMissingArticles = errors.New("article reader is required")
	errMissingComments = errors.New("comment reader is required")
	errMissingLikes    = errors.New("like reader is required")
)

// ArticleReader is the subset of the article store the aggregator reads.
type ArticleReader interface {
	Get(id string) (articles.Article, error)
	List(filter articles.Filter) (articles.ListResult, error)
}

// CommentReader is the subset of the comment store the aggregator reads.
type CommentReader interface {
	CountFor(articleID string) int
	RecentFor(ctx context.Context, articleID string, limit int) []comments.CommentWithAuthor
}

// LikeReader is the subset of the like store the aggregator reads.
type LikeReader interface {
	CountFor(articleID string) int
	IsLikedBy(articleID, userID string) bool
}

// ArticleSummary is an article with its interaction counts.
type ArticleSummary struct {
	articles.Article
	LikesCount    int
	CommentsCount int
}

// RecentComment is the condensed comment shown on an article detail view.
type RecentComment struct {
	ID         string
	Content    string
	AuthorName string
	CreatedAt  time.Time
}

// ArticleDetail is the full read view of one article.
type ArticleDetail struct {
	ArticleSummary
	Author         engine.PublicUser
	RecentComments []RecentComment
	LikedByViewer  bool
}

// ArticlePage is one page of summaries.
type ArticlePage struct {
	Articles []ArticleSummary
	Total    int
	Page     int
	Limit    int
}

// Config wires the aggregator to the stores it composes.
type Config struct {
	Articles    ArticleReader
	Comments    CommentReader
	Likes       LikeReader
	Users       engine.UserDirectory
	RecentLimit int
	Logger      *zap.Logger
}

// Aggregator composes article, comment, like and user data into read views.
type Aggregator struct {
	articles    ArticleReader
	comments    CommentReader
	likes       LikeReader
	users       engine.UserDirectory
	recentLimit int
	logger      *zap.Logger
}

// NewAggregator validates cfg and returns an Aggregator.
func NewAggregator(cfg Config) (*Aggregator, error) {
	switch {
	case cfg.Articles == nil:
		return nil, engine.NewServiceError(opNew, reasonMissingCollaborator, errMissingArticles)
	case cfg.Comments == nil:
		return nil, engine.NewServiceError(opNew, reasonMissingCollaborator, errMissingComments)
	case cfg.Likes == nil:
		return nil, engine.NewServiceError(opNew, reasonMissingCollaborator, errMissingLikes)
	}
	recentLimit := cfg.RecentLimit
	if recentLimit < 1 {
		recentLimit = defaultRecentComments
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		articles:    cfg.Articles,
		comments:    cfg.Comments,
		likes:       cfg.Likes,
		users:       cfg.Users,
		recentLimit: recentLimit,
		logger:      logger,
	}, nil
}

// Summarize attaches like and comment counts to each article, preserving order.
func (a *Aggregator) Summarize(ctx context.Context, list []articles.Article) []ArticleSummary {
	summaries := make([]ArticleSummary, 0, len(list))
	for _, article := range list {
		summaries = append(summaries, a.summarize(article))
	}
	return summaries
}

// Detail builds the full view of article for viewerID, who may be blank.
func (a *Aggregator) Detail(ctx context.Context, article articles.Article, viewerID string) ArticleDetail {
	recent := a.comments.RecentFor(ctx, article.ID, a.recentLimit)
	condensed := make([]RecentComment, 0, len(recent))
	for _, comment := range recent {
		condensed = append(condensed, RecentComment{
			ID:         comment.ID,
			Content:    comment.Content,
			AuthorName: comment.Author.DisplayName(),
			CreatedAt:  comment.CreatedAt,
		})
	}

	detail := ArticleDetail{
		ArticleSummary: a.summarize(article),
		Author:         engine.ResolveUser(ctx, a.users, article.AuthorID),
		RecentComments: condensed,
	}
	if viewerID != "" {
		detail.LikedByViewer = a.likes.IsLikedBy(article.ID, viewerID)
	}
	return detail
}

// ListArticles lists published articles matching filter and summarizes them.
func (a *Aggregator) ListArticles(ctx context.Context, filter articles.Filter) (ArticlePage, error) {
	result, err := a.articles.List(filter)
	if err != nil {
		a.logger.Error("metadata read failed",
			zap.String("operation", opListArticle),
			zap.String("reason", reasonArticleReadFailed),
			zap.Error(err))
		return ArticlePage{}, err
	}
	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = articles.DefaultPageLimit
	}
	return ArticlePage{
		Articles: a.Summarize(ctx, result.Articles),
		Total:    result.Total,
		Page:     page,
		Limit:    limit,
	}, nil
}

// GetArticle reads a published article and returns its detail view.
func (a *Aggregator) GetArticle(ctx context.Context, id, viewerID string) (ArticleDetail, error) {
	article, err := a.articles.Get(id)
	if err != nil {
		if !errors.Is(err, engine.ErrNotFound) {
			a.logger.Error("metadata read failed",
				zap.String("operation", opGetArticle),
				zap.String("reason", reasonArticleReadFailed),
				zap.String("article_id", id),
				zap.Error(err))
		}
		return ArticleDetail{}, err
	}
	return a.Detail(ctx, article, viewerID), nil
}

func (a *Aggregator) summarize(article articles.Article) ArticleSummary {
	return ArticleSummary{
		Article:       article,
		LikesCount:    a.likes.CountFor(article.ID),
		CommentsCount: a.comments.CountFor(article.ID),
	}
}
