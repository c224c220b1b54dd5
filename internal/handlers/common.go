package handlers

import (
	"net/http"

	"github.com/akshitk26/gamepulse/internal/services"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func statusFor(err error) int {
	switch services.KindOf(err) {
	case services.KindAuth:
		if services.CodeOf(err) == services.CodeNotOwner {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindCapacity, services.KindState, services.KindConflict:
		return http.StatusConflict
	case services.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusServiceUnavailable
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), ErrorResponse{Error: services.Message(err), Code: string(services.CodeOf(err))})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: string(services.CodeInvalidInput)})
}

func userID(c *gin.Context) string {
	return c.GetString("user_id")
}
