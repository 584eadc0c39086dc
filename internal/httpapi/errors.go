package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safar/medtrade/internal/apperr"
)

func mapErrorToStatus(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindState:
		return http.StatusConflict
	case apperr.KindCapacity:
		return http.StatusUnprocessableEntity
	case apperr.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case apperr.KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}

	body := gin.H{"error": err.Error(), "kind": apperr.KindOf(err).String()}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if appErr.Entity != "" {
			body["entity"] = appErr.Entity
		}
		if appErr.ID != "" {
			body["id"] = appErr.ID
		}
		if appErr.Field != "" {
			body["field"] = appErr.Field
		}
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// int64Param reads a numeric path parameter, answering 400 when malformed.
func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := parseID(c.Param(name))
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}
	return v
}
