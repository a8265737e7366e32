package provider

import (
	"encoding/json"
	"fmt"
)

// Provider names in the registry.
const (
	NameQwen     = "qwen"
	NameDeepSeek = "deepseek"
	NameMoonshot = "moonshot"
	NameZhipu    = "zhipu"
	NameOpenAI   = "openai"
	NameGrok     = "grok"
	NameGemini   = "gemini"
)

// chatCompletionRequest is the OpenAI-compatible request body shared by every
// provider except qwen.
type chatCompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatCompletionChoice struct {
	Message Message `json:"message"`
}

type chatCompletionResponse struct {
	Choices []chatCompletionChoice `json:"choices"`
	Usage   RawUsage               `json:"usage"`
}

// qwenRequest nests the conversation under input and requests the message
// result format, per the DashScope text-generation API.
type qwenRequest struct {
	Model      string         `json:"model"`
	Input      qwenInput      `json:"input"`
	Parameters qwenParameters `json:"parameters"`
}

type qwenInput struct {
	Messages []Message `json:"messages"`
}

type qwenParameters struct {
	ResultFormat string `json:"result_format"`
}

type qwenResponse struct {
	Output struct {
		Choices []chatCompletionChoice `json:"choices"`
	} `json:"output"`
	Usage RawUsage `json:"usage"`
}

// NewRegistry builds the immutable provider table.
func NewRegistry() *Registry {
	adapters := map[string]*Adapter{
		NameQwen: {
			Name:           NameQwen,
			Endpoint:       "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation",
			RequiresAPIKey: true,
			BuildRequest: func(model string, messages []Message) any {
				return qwenRequest{
					Model:      model,
					Input:      qwenInput{Messages: messages},
					Parameters: qwenParameters{ResultFormat: "message"},
				}
			},
			ParseResponse: parseQwenResponse,
		},
		NameDeepSeek: ChatCompletionAdapter(NameDeepSeek, "https://api.deepseek.com/v1/chat/completions"),
		NameMoonshot: ChatCompletionAdapter(NameMoonshot, "https://api.moonshot.cn/v1/chat/completions"),
		NameZhipu:    ChatCompletionAdapter(NameZhipu, "https://open.bigmodel.cn/api/paas/v4/chat/completions"),
		NameOpenAI:   ChatCompletionAdapter(NameOpenAI, "https://api.openai.com/v1/chat/completions"),
		NameGrok:     ChatCompletionAdapter(NameGrok, "https://api.x.ai/v1/chat/completions"),
		NameGemini:   ChatCompletionAdapter(NameGemini, "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions"),
	}
	return &Registry{adapters: adapters}
}

// ChatCompletionAdapter builds an adapter for a chat-completions style
// endpoint. Exported so tests can point one at a local server.
func ChatCompletionAdapter(name, endpoint string) *Adapter {
	return &Adapter{
		Name:           name,
		Endpoint:       endpoint,
		RequiresAPIKey: true,
		BuildRequest: func(model string, messages []Message) any {
			return chatCompletionRequest{Model: model, Messages: messages, Stream: false}
		},
		ParseResponse: func(raw []byte) (*Result, error) {
			var decoded chatCompletionResponse
			if errDecode := json.Unmarshal(raw, &decoded); errDecode != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidResponseFormat, name, errDecode)
			}
			if len(decoded.Choices) == 0 {
				return nil, fmt.Errorf("%w: %s: missing choices", ErrInvalidResponseFormat, name)
			}
			return &Result{
				Content: decoded.Choices[0].Message.Content,
				Usage:   decoded.Usage,
			}, nil
		},
	}
}

func parseQwenResponse(raw []byte) (*Result, error) {
	var decoded qwenResponse
	if errDecode := json.Unmarshal(raw, &decoded); errDecode != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidResponseFormat, NameQwen, errDecode)
	}
	if len(decoded.Output.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s: missing output choices", ErrInvalidResponseFormat, NameQwen)
	}
	return &Result{
		Content: decoded.Output.Choices[0].Message.Content,
		Usage:   decoded.Usage,
	}, nil
}
