package server

import (
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/articles"
	"github.com/MarcoPoloResearchLab/inkwell/internal/comments"
	"github.com/MarcoPoloResearchLab/inkwell/internal/engine"
	"github.com/MarcoPoloResearchLab/inkwell/internal/likes"
	"github.com/MarcoPoloResearchLab/inkwell/internal/metadata"
	"github.com/MarcoPoloResearchLab/inkwell/internal/users"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	maxTitleLength   = 200
	maxContentLength = 100000
	maxCommentLength = 2000
	maxTagLength     = 64
	maxTags          = 20
)

var notBlank = validation.By(func(value interface{}) error {
	value, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	text, _ := value.(string)
	if strings.TrimSpace(text) == "" {
		return validation.NewError("validation_blank", "cannot be blank")
	}
	return nil
})

var tagRules = []validation.Rule{
	validation.Length(0, maxTags),
	validation.Each(validation.Required, notBlank, validation.Length(1, maxTagLength)),
}

type registerRequestPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Bio      string `json:"bio"`
}

func (r registerRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 64), is.PrintableASCII),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(&r.Email, validation.When(r.Email != "", is.EmailFormat)),
		validation.Field(&r.Name, validation.Length(0, 320)),
		validation.Field(&r.Bio, validation.Length(0, 2048)),
	)
}

type loginRequestPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r loginRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type profileRequestPayload struct {
	Email *string `json:"email"`
	Name  *string `json:"name"`
	Bio   *string `json:"bio"`
}

func (r profileRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.When(r.Email != nil && *r.Email != "", is.EmailFormat)),
		validation.Field(&r.Name, validation.Length(0, 320)),
		validation.Field(&r.Bio, validation.Length(0, 2048)),
	)
}

type authResponsePayload struct {
	AccessToken string                 `json:"accessToken"`
	ExpiresIn   int64                  `json:"expiresIn"`
	TokenType   string                 `json:"tokenType"`
	User        accountResponsePayload `json:"user"`
}

type accountResponsePayload struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newAccountResponse(account users.Account) accountResponsePayload {
	return accountResponsePayload{
		ID:        account.UserID,
		Username:  account.Username,
		Email:     account.Email,
		Name:      account.Name,
		Bio:       account.Bio,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
}

type publicUserPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

func newPublicUserPayload(user engine.PublicUser) publicUserPayload {
	return publicUserPayload{ID: user.ID, Username: user.Username, Name: user.DisplayName()}
}

type createArticleRequestPayload struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags"`
	PublishTime *string  `json:"publishTime"`
}

func (r createArticleRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, notBlank, validation.Length(1, maxTitleLength)),
		validation.Field(&r.Content, validation.Required, notBlank, validation.Length(1, maxContentLength)),
		validation.Field(&r.Tags, tagRules...),
		validation.Field(&r.PublishTime, validation.NilOrNotEmpty, validation.Date(time.RFC3339)),
	)
}

func (r createArticleRequestPayload) toInput(authorID string) articles.CreateInput {
	return articles.CreateInput{
		Title:       r.Title,
		Content:     r.Content,
		Tags:        r.Tags,
		PublishTime: parseOptionalTime(r.PublishTime),
		AuthorID:    authorID,
	}
}

type updateArticleRequestPayload struct {
	Title       *string   `json:"title"`
	Content     *string   `json:"content"`
	Tags        *[]string `json:"tags"`
	PublishTime *string   `json:"publishTime"`
}

func (r updateArticleRequestPayload) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, notBlank, validation.Length(1, maxTitleLength)),
		validation.Field(&r.Content, validation.NilOrNotEmpty, notBlank, validation.Length(1, maxContentLength)),
		validation.Field(&r.PublishTime, validation.NilOrNotEmpty, validation.Date(time.RFC3339)),
	); err != nil {
		return err
	}
	if r.Tags == nil {
		return nil
	}
	return validation.Errors{"tags": validation.Validate(*r.Tags, tagRules...)}.Filter()
}

func (r updateArticleRequestPayload) toPatch() articles.Patch {
	return articles.Patch{
		Title:       r.Title,
		Content:     r.Content,
		Tags:        r.Tags,
		PublishTime: parseOptionalTime(r.PublishTime),
	}
}

func parseOptionalTime(value *string) *time.Time {
	if value == nil {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil
	}
	return &parsed
}

type articleResponsePayload struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	AuthorID    string    `json:"authorId"`
	Tags        []string  `json:"tags"`
	PublishTime time.Time `json:"publishTime"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	IsPublished bool      `json:"isPublished"`
}

func newArticleResponse(article articles.Article) articleResponsePayload {
	tags := article.Tags
	if tags == nil {
		tags = []string{}
	}
	return articleResponsePayload{
		ID:          article.ID,
		Title:       article.Title,
		Content:     article.Content,
		AuthorID:    article.AuthorID,
		Tags:        tags,
		PublishTime: article.PublishTime,
		CreatedAt:   article.CreatedAt,
		UpdatedAt:   article.UpdatedAt,
		IsPublished: article.IsPublished,
	}
}

type articleSummaryPayload struct {
	articleResponsePayload
	LikesCount    int `json:"likesCount"`
	CommentsCount int `json:"commentsCount"`
}

func newArticleSummaryPayload(summary metadata.ArticleSummary) articleSummaryPayload {
	return articleSummaryPayload{
		articleResponsePayload: newArticleResponse(summary.Article),
		LikesCount:             summary.LikesCount,
		CommentsCount:          summary.CommentsCount,
	}
}

type recentCommentPayload struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	AuthorName string    `json:"authorName"`
	CreatedAt  time.Time `json:"createdAt"`
}

type articleDetailPayload struct {
	articleSummaryPayload
	Author         publicUserPayload      `json:"author"`
	RecentComments []recentCommentPayload `json:"recentComments"`
	LikedByViewer  bool                   `json:"likedByViewer"`
}

func newArticleDetailPayload(detail metadata.ArticleDetail) articleDetailPayload {
	recent := make([]recentCommentPayload, 0, len(detail.RecentComments))
	for _, comment := range detail.RecentComments {
		recent = append(recent, recentCommentPayload{
			ID:         comment.ID,
			Content:    comment.Content,
			AuthorName: comment.AuthorName,
			CreatedAt:  comment.CreatedAt,
		})
	}
	return articleDetailPayload{
		articleSummaryPayload: newArticleSummaryPayload(detail.ArticleSummary),
		Author:                newPublicUserPayload(detail.Author),
		RecentComments:        recent,
		LikedByViewer:         detail.LikedByViewer,
	}
}

type articleListPayload struct {
	Articles   []articleSummaryPayload `json:"articles"`
	Total      int                     `json:"total"`
	Page       int                     `json:"page"`
	Limit      int                     `json:"limit"`
	TotalPages int                     `json:"totalPages"`
}

func newArticleListPayload(page metadata.ArticlePage) articleListPayload {
	summaries := make([]articleSummaryPayload, 0, len(page.Articles))
	for _, summary := range page.Articles {
		summaries = append(summaries, newArticleSummaryPayload(summary))
	}
	return articleListPayload{
		Articles:   summaries,
		Total:      page.Total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: totalPages(page.Total, page.Limit),
	}
}

type editHistoryPayload struct {
	ID              string    `json:"id"`
	ArticleID       string    `json:"articleId"`
	PreviousTitle   string    `json:"previousTitle"`
	PreviousContent string    `json:"previousContent"`
	PreviousTags    []string  `json:"previousTags"`
	EditedAt        time.Time `json:"editedAt"`
	EditedBy        string    `json:"editedBy"`
}

func newEditHistoryPayloads(entries []articles.EditHistoryEntry) []editHistoryPayload {
	payloads := make([]editHistoryPayload, 0, len(entries))
	for _, entry := range entries {
		tags := entry.PreviousTags
		if tags == nil {
			tags = []string{}
		}
		payloads = append(payloads, editHistoryPayload{
			ID:              entry.ID,
			ArticleID:       entry.ArticleID,
			PreviousTitle:   entry.PreviousTitle,
			PreviousContent: entry.PreviousContent,
			PreviousTags:    tags,
			EditedAt:        entry.EditedAt,
			EditedBy:        entry.EditedBy,
		})
	}
	return payloads
}

type createCommentRequestPayload struct {
	ArticleID string `json:"articleId"`
	Content   string `json:"content"`
}

func (r createCommentRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ArticleID, validation.Required, notBlank),
		validation.Field(&r.Content, validation.Required, notBlank, validation.Length(1, maxCommentLength)),
	)
}

type commentResponsePayload struct {
	ID        string            `json:"id"`
	ArticleID string            `json:"articleId"`
	Content   string            `json:"content"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Author    publicUserPayload `json:"author"`
}

func newCommentResponse(comment comments.CommentWithAuthor) commentResponsePayload {
	return commentResponsePayload{
		ID:        comment.ID,
		ArticleID: comment.ArticleID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
		Author:    newPublicUserPayload(comment.Author),
	}
}

type commentListPayload struct {
	Comments   []commentResponsePayload `json:"comments"`
	Total      int                      `json:"total"`
	Page       int                      `json:"page"`
	Limit      int                      `json:"limit"`
	TotalPages int                      `json:"totalPages"`
}

type toggleLikeRequestPayload struct {
	ArticleID string `json:"articleId"`
}

func (r toggleLikeRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ArticleID, validation.Required, notBlank),
	)
}

type likeStatusPayload struct {
	IsLiked    bool `json:"isLiked"`
	TotalLikes int  `json:"totalLikes"`
}

func newLikeStatusPayload(status likes.Status) likeStatusPayload {
	return likeStatusPayload{IsLiked: status.IsLiked, TotalLikes: status.TotalLikes}
}

type pageQuery struct {
	Page  *int
	Limit *int
}

func (q pageQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Page, validation.Min(1)),
		validation.Field(&q.Limit, validation.Min(1), validation.Max(100)),
	)
}

func (q pageQuery) values() (int, int) {
	page, limit := 0, 0
	if q.Page != nil {
		page = *q.Page
	}
	if q.Limit != nil {
		limit = *q.Limit
	}
	return page, limit
}

func totalPages(total, limit int) int {
	if limit < 1 || total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
