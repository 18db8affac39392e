package server

import (
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/inkwell/internal/articles"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListArticles(c *gin.Context) {
	query, ok := bindPageQuery(c)
	if !ok {
		return
	}
	page, limit := query.values()

	result, err := h.views.ListArticles(c.Request.Context(), articles.Filter{
		Page:    page,
		Limit:   limit,
		Keyword: c.Query("keyword"),
		Tag:     c.Query("tag"),
		Author:  c.Query("author"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newArticleListPayload(result))
}

func (h *httpHandler) handleGetArticle(c *gin.Context) {
	detail, err := h.views.GetArticle(c.Request.Context(), c.Param("id"), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newArticleDetailPayload(detail))
}

func (h *httpHandler) handleArticleDraft(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	article, err := h.articles.GetForAuthor(c.Param("id"), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newArticleDetailPayload(h.views.Detail(c.Request.Context(), article, userID)))
}

func (h *httpHandler) handleCreateArticle(c *gin.Context) {
	var request createArticleRequestPayload
	if !bindJSON(c, &request) {
		return
	}

	article, err := h.articles.Create(request.toInput(c.GetString(userIDContextKey)))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.metrics.ArticlesCreated.Inc()
	c.JSON(http.StatusCreated, newArticleResponse(article))
}

func (h *httpHandler) handleUpdateArticle(c *gin.Context) {
	var request updateArticleRequestPayload
	if !bindJSON(c, &request) {
		return
	}

	article, err := h.articles.Update(c.Param("id"), request.toPatch(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.metrics.ArticleEdits.Inc()
	c.JSON(http.StatusOK, newArticleResponse(article))
}

func (h *httpHandler) handleDeleteArticle(c *gin.Context) {
	if err := h.articles.Remove(c.Param("id"), c.GetString(userIDContextKey)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleArticleHistory(c *gin.Context) {
	entries, err := h.articles.History(c.Param("id"), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"editHistories": newEditHistoryPayloads(entries)})
}

// bindPageQuery parses page and limit query parameters, writing a 400 when malformed.
func bindPageQuery(c *gin.Context) (pageQuery, bool) {
	var query pageQuery
	for name, target := range map[string]**int{"page": &query.Page, "limit": &query.Limit} {
		raw, present := c.GetQuery(name)
		if !present || raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": gin.H{name: "must be an integer"}})
			return pageQuery{}, false
		}
		*target = &value
	}
	if err := query.Validate(); err != nil {
		respondValidationError(c, err)
		return pageQuery{}, false
	}
	return query, true
}
