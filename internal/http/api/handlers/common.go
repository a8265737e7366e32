// Package handlers implements the gin handlers of the console API. Responses
// use the envelope the front end already speaks: {success, data, message,
// timestamp} on success, {success:false, error:{code,message}} on failure.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orgdesk/modelgate/internal/gateway"
	"github.com/orgdesk/modelgate/internal/provider"
)

// Machine-readable error codes surfaced to callers.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeAPIKeyRequired      = "API_KEY_REQUIRED"
	CodeUnsupportedProvider = "UNSUPPORTED_PROVIDER"
	CodeUpstreamError       = "UPSTREAM_ERROR"
	CodeUpstreamTimeout     = "UPSTREAM_TIMEOUT"
	CodeInvalidResponse     = "INVALID_RESPONSE"
	CodeChatError           = "CHAT_ERROR"
	CodeReportError         = "REPORT_ERROR"
)

func respondOK(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"data":      data,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// respondGatewayError maps a gateway failure to an HTTP status and error
// code. No partial content ever accompanies an error response.
func respondGatewayError(c *gin.Context, err error) {
	var upstream *gateway.UpstreamError
	switch {
	case errors.Is(err, gateway.ErrMissingParameters):
		respondError(c, http.StatusBadRequest, CodeBadRequest, err.Error())
	case errors.Is(err, gateway.ErrAPIKeyRequired):
		respondError(c, http.StatusBadRequest, CodeAPIKeyRequired, err.Error())
	case errors.Is(err, provider.ErrUnsupportedProvider):
		respondError(c, http.StatusBadRequest, CodeUnsupportedProvider, err.Error())
	case errors.Is(err, gateway.ErrUpstreamTimeout):
		respondError(c, http.StatusGatewayTimeout, CodeUpstreamTimeout, err.Error())
	case errors.As(err, &upstream):
		respondError(c, http.StatusBadGateway, CodeUpstreamError, upstream.Error())
	case errors.Is(err, provider.ErrInvalidResponseFormat):
		respondError(c, http.StatusBadGateway, CodeInvalidResponse, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, CodeChatError, err.Error())
	}
}
