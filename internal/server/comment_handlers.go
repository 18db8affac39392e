package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/inkwell/internal/engine"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	rateLimitRemainingHeader = "X-RateLimit-Remaining"
	defaultCommentPageLimit  = 20
)

func (h *httpHandler) handleCreateComment(c *gin.Context) {
	var request createCommentRequestPayload
	if !bindJSON(c, &request) {
		return
	}
	userID := c.GetString(userIDContextKey)

	article, err := h.articles.Get(request.ArticleID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	comment, err := h.comments.Create(article.ID, request.Content, userID)
	if err != nil {
		if errors.Is(err, engine.ErrRateLimited) {
			h.metrics.CommentsRateLimited.Inc()
			c.Header(rateLimitRemainingHeader, "0")
		}
		h.respondError(c, err)
		return
	}
	h.metrics.CommentsCreated.Inc()
	c.Header(rateLimitRemainingHeader, strconv.Itoa(h.comments.Remaining(userID, article.ID)))

	if article.AuthorID != userID {
		h.realtime.Publish(RealtimeMessage{
			UserID:    article.AuthorID,
			EventType: RealtimeEventCommentCreated,
			ArticleID: article.ID,
			CommentID: comment.ID,
			ActorID:   userID,
			Timestamp: comment.CreatedAt,
		})
	}

	decorated, err := h.comments.FindByID(c.Request.Context(), comment.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCommentResponse(decorated))
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	articleID := c.Query("articleId")
	if articleID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": gin.H{"articleId": "cannot be blank"}})
		return
	}
	query, ok := bindPageQuery(c)
	if !ok {
		return
	}
	page, limit := query.values()

	result := h.comments.FindByArticle(c.Request.Context(), articleID, page, limit)
	payload := commentListPayload{
		Comments: make([]commentResponsePayload, 0, len(result.Comments)),
		Total:    result.Total,
		Page:     max(page, 1),
		Limit:    limit,
	}
	if payload.Limit < 1 {
		payload.Limit = defaultCommentPageLimit
	}
	payload.TotalPages = totalPages(result.Total, payload.Limit)
	for _, comment := range result.Comments {
		payload.Comments = append(payload.Comments, newCommentResponse(comment))
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleGetComment(c *gin.Context) {
	comment, err := h.comments.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCommentResponse(comment))
}

func (h *httpHandler) handleDeleteComment(c *gin.Context) {
	commentID := c.Param("id")
	comment, err := h.comments.FindByID(c.Request.Context(), commentID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// a removed article leaves no owner who could moderate its comments.
	articleAuthorID, err := h.articles.AuthorOf(comment.ArticleID)
	if err != nil && !errors.Is(err, engine.ErrNotFound) {
		h.respondError(c, err)
		return
	}

	if err := h.comments.Remove(commentID, c.GetString(userIDContextKey), articleAuthorID); err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.Debug("comment removed", zap.String("comment_id", commentID), zap.String("article_id", comment.ArticleID))
	c.Status(http.StatusNoContent)
}
