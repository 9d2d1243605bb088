// Package api is the HTTP surface: one gin.Engine wiring every endpoint
// to the component container in Server.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/onlytrade/room-server/internal/apperr"
)

// Envelope is the JSON envelope every endpoint uses except raw-audio and
// SSE responses.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func okStatus(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

// fail maps err to its documented {code, status} pair, falling back to a
// generic "<fallbackCode>" 500.
func fail(c *gin.Context, err error, fallbackCode string) {
	ae := apperr.As(err, fallbackCode)
	c.JSON(ae.Status, Envelope{Success: false, Error: &ErrorBody{Code: ae.Code, Message: ae.Message}})
}
