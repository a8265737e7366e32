package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/orgdesk/modelgate/internal/gateway"
	"github.com/orgdesk/modelgate/internal/provider"
)

// assistantIntentPrompt instructs the model to act as an intent router for
// the console assistant: pick a tool, emit strict JSON, nothing else.
const assistantIntentPrompt = `You are the intent router for the company console assistant. Based on the
user's instruction, select the tool to invoke and give a short reply.

You must output strict JSON with no extra text, comments, or markdown:
{
  "tool": "open_finance_report | open_org_node_panel | default_reply",
  "args": { ... },
  "reply": "short reply shown to the user"
}

Available tools:
1) open_finance_report
  - Opens the finance AI-spend report page (model calls and costs).
  - args may be {} or contain "range": "all" | "last_7_days" | "last_30_days" | "last_90_days".
2) open_org_node_panel
  - Opens the floating panel of an org-chart node.
  - args must contain "nodeName" (department or employee name) and
    "panelType": "feature" | "work" | "model" | "prompt".
3) default_reply
  - No tool call; answer in natural language. args is {}.

Prefer open_finance_report for anything about finance, model spend, or cost
reports; open_org_node_panel for org-chart panels; otherwise default_reply.
If the instruction is ambiguous, use default_reply and ask for clarification.`

// AssistantHandler routes console assistant messages through the gateway.
type AssistantHandler struct {
	gw *gateway.Gateway
}

// NewAssistantHandler constructs an AssistantHandler.
func NewAssistantHandler(gw *gateway.Gateway) *AssistantHandler {
	return &AssistantHandler{gw: gw}
}

type assistantRequest struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	APIKey    string `json:"apiKey"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// assistantIntent is the tool selection returned to the front end. Fields
// are always present: unparsable model output degrades to default_reply.
type assistantIntent struct {
	Tool  string          `json:"tool"`
	Args  json.RawMessage `json:"args"`
	Reply string          `json:"reply"`
}

// Intent handles POST /api/assistant.
func (h *AssistantHandler) Intent(c *gin.Context) {
	var req assistantRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		respondError(c, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(c, http.StatusBadRequest, CodeBadRequest, "missing provider / model / message")
		return
	}

	source, _ := json.Marshal(map[string]string{
		"type":  "assistant",
		"label": "assistant-intent",
	})

	result, errInvoke := h.gw.Invoke(c.Request.Context(), gateway.InvokeRequest{
		Provider: req.Provider,
		Model:    req.Model,
		Messages: []provider.Message{
			{Role: "system", Content: assistantIntentPrompt},
			{Role: "user", Content: req.Message},
		},
		APIKey: req.APIKey,
		Source: source,
	})
	if errInvoke != nil {
		respondGatewayError(c, errInvoke)
		return
	}

	intent := parseIntent(result.Content)
	log.WithFields(log.Fields{
		"provider": req.Provider,
		"model":    req.Model,
		"tool":     intent.Tool,
	}).Info("assistant intent resolved")

	respondOK(c, intent, "assistant intent resolved")
}

// parseIntent decodes the model's JSON tool selection, degrading to a
// default reply when the model ignored the output contract.
func parseIntent(content string) assistantIntent {
	var parsed struct {
		Tool  string          `json:"tool"`
		Args  json.RawMessage `json:"args"`
		Reply string          `json:"reply"`
	}
	if errParse := json.Unmarshal([]byte(content), &parsed); errParse != nil || strings.TrimSpace(parsed.Tool) == "" {
		return assistantIntent{
			Tool:  "default_reply",
			Args:  json.RawMessage(`{}`),
			Reply: strings.TrimSpace(content),
		}
	}

	intent := assistantIntent{
		Tool:  parsed.Tool,
		Args:  parsed.Args,
		Reply: strings.TrimSpace(parsed.Reply),
	}
	if len(intent.Args) == 0 {
		intent.Args = json.RawMessage(`{}`)
	}
	if intent.Reply == "" {
		intent.Reply = "Okay."
	}
	return intent
}
