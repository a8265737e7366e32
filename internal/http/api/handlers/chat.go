package handlers

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/orgdesk/modelgate/internal/gateway"
	"github.com/orgdesk/modelgate/internal/provider"
)

// ChatHandler exposes the model gateway to the console front end.
type ChatHandler struct {
	gw *gateway.Gateway
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(gw *gateway.Gateway) *ChatHandler {
	return &ChatHandler{gw: gw}
}

// chatRequest is the inbound chat payload. Source stays raw JSON: it may be
// an object, a bare string, or absent, and is stored verbatim either way.
type chatRequest struct {
	Provider string             `json:"provider"`
	Model    string             `json:"model"`
	Messages []provider.Message `json:"messages"`
	APIKey   string             `json:"apiKey"`
	Source   json.RawMessage    `json:"source"`
}

// Providers handles GET /api/ai/providers. The console uses the list to
// populate its provider picker.
func (h *ChatHandler) Providers(c *gin.Context) {
	names := h.gw.ProviderNames()
	sort.Strings(names)
	respondOK(c, names, "providers ready")
}

// Chat handles POST /api/ai/chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		respondError(c, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}

	result, errInvoke := h.gw.Invoke(c.Request.Context(), gateway.InvokeRequest{
		Provider: req.Provider,
		Model:    req.Model,
		Messages: req.Messages,
		APIKey:   req.APIKey,
		Source:   req.Source,
	})
	if errInvoke != nil {
		respondGatewayError(c, errInvoke)
		return
	}

	respondOK(c, result, "model call succeeded")
}
