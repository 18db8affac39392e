package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/inkwell/internal/auth"
	"github.com/MarcoPoloResearchLab/inkwell/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const tokenTypeBearer = "Bearer"

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if !bindJSON(c, &request) {
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), users.RegisterInput{
		Username: request.Username,
		Password: request.Password,
		Email:    request.Email,
		Name:     request.Name,
		Bio:      request.Bio,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondWithToken(c, http.StatusCreated, account)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if !bindJSON(c, &request) {
		return
	}

	account, err := h.accounts.Authenticate(c.Request.Context(), request.Username, request.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			h.logger.Info("login rejected", zap.String("username", users.NormalizeUsername(request.Username)))
		}
		h.respondError(c, err)
		return
	}
	h.respondWithToken(c, http.StatusOK, account)
}

func (h *httpHandler) respondWithToken(c *gin.Context, status int, account users.Account) {
	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), auth.Subject{
		UserID:   account.UserID,
		Username: account.Username,
	})
	if err != nil {
		h.logger.Error("failed to issue token", zap.String("user_id", account.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, int(expiresIn), "/", "", h.secureCookies, true)
	c.JSON(status, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   tokenTypeBearer,
		User:        newAccountResponse(account),
	})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	if claims, ok := c.Get(claimsContextKey); ok {
		if typed, ok := claims.(auth.Claims); ok {
			h.tokens.Revoke(typed)
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.secureCookies, true)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	account, err := h.accounts.FindByID(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(account))
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	var request profileRequestPayload
	if !bindJSON(c, &request) {
		return
	}

	account, err := h.accounts.UpdateProfile(c.Request.Context(), c.GetString(userIDContextKey), users.ProfilePatch{
		Email: request.Email,
		Name:  request.Name,
		Bio:   request.Bio,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(account))
}
