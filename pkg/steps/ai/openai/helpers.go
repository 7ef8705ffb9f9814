package openai

import (
	"net/http"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
)

// MakeClient builds a go-openai client from the step settings. Missing API
// keys are reported as settings.ErrMissingAPIKey.
func MakeClient(ss *settings.StepSettings) (*go_openai.Client, error) {
	if ss == nil {
		return nil, errors.New("no step settings")
	}
	apiKey, err := ss.API.OpenAIAPIKey()
	if err != nil {
		return nil, err
	}

	config := go_openai.DefaultConfig(apiKey)
	config.BaseURL = ss.API.OpenAIBaseURL()

	httpClient := &http.Client{}
	t := &transport{base: http.DefaultTransport}
	if ss.Client != nil {
		if ss.Client.Organization != nil {
			config.OrgID = *ss.Client.Organization
		}
		if ss.Client.UserAgent != nil {
			t.userAgent = *ss.Client.UserAgent
		}
		switch {
		case ss.Client.HTTPClient != nil:
			// copy, the caller's client is left untouched
			c := *ss.Client.HTTPClient
			httpClient = &c
			if httpClient.Transport != nil {
				t.base = httpClient.Transport
			}
		case ss.Client.Timeout != nil:
			httpClient.Timeout = *ss.Client.Timeout
		}
	}
	httpClient.Transport = t
	config.HTTPClient = httpClient

	return go_openai.NewClientWithConfig(config), nil
}

func roleToOpenAI(role conversation.Role) string {
	switch role {
	case conversation.RoleSystem:
		return go_openai.ChatMessageRoleSystem
	case conversation.RoleAssistant:
		return go_openai.ChatMessageRoleAssistant
	case conversation.RoleUser:
		return go_openai.ChatMessageRoleUser
	default:
		return string(role)
	}
}

func MakeCompletionRequest(ss *settings.StepSettings, req engine.Request, stream bool) (*go_openai.ChatCompletionRequest, error) {
	model := req.Model
	if model == "" {
		model = ss.Chat.Model()
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("no messages in request")
	}

	msgs := make([]go_openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    roleToOpenAI(m.Role),
			Content: m.Content,
		})
	}

	ret := &go_openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		Stream:   stream,
	}

	if ss.Chat != nil {
		if ss.Chat.MaxResponseTokens != nil {
			ret.MaxTokens = *ss.Chat.MaxResponseTokens
		}
		if ss.Chat.Temperature != nil {
			ret.Temperature = float32(*ss.Chat.Temperature)
		}
		if ss.Chat.TopP != nil {
			ret.TopP = float32(*ss.Chat.TopP)
		}
		if len(ss.Chat.Stop) > 0 {
			ret.Stop = ss.Chat.Stop
		}
	}

	return ret, nil
}
