package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleToggleLike(c *gin.Context) {
	var request toggleLikeRequestPayload
	if !bindJSON(c, &request) {
		return
	}
	userID := c.GetString(userIDContextKey)

	article, err := h.articles.Get(request.ArticleID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status, err := h.likes.Toggle(article.ID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.metrics.RecordLikeToggle(status.IsLiked)

	if status.IsLiked && article.AuthorID != userID {
		h.realtime.Publish(RealtimeMessage{
			UserID:    article.AuthorID,
			EventType: RealtimeEventArticleLiked,
			ArticleID: article.ID,
			ActorID:   userID,
			Timestamp: h.clock().UTC(),
		})
	}
	c.JSON(http.StatusOK, newLikeStatusPayload(status))
}
