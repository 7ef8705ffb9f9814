package settings

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type StepSettings struct {
	API     *APISettings     `yaml:"api,omitempty"`
	Client  *ClientSettings  `yaml:"client,omitempty"`
	Chat    *ChatSettings    `yaml:"chat,omitempty"`
	Summary *SummarySettings `yaml:"summary,omitempty"`
}

func NewStepSettings() *StepSettings {
	return &StepSettings{
		API:     NewAPISettings(),
		Client:  NewClientSettings(),
		Chat:    NewChatSettings(),
		Summary: NewSummarySettings(),
	}
}

// NewStepSettingsFromYAML decodes settings on top of the defaults.
func NewStepSettingsFromYAML(r io.Reader) (*StepSettings, error) {
	ret := NewStepSettings()
	if err := yaml.NewDecoder(r).Decode(ret); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "could not decode step settings")
	}
	return ret, nil
}

// NewStepSettingsFromViper reads the settings from v. The provider flags
// (openai-api-key, openai-base-url) take precedence over the api section of the
// config file.
func NewStepSettingsFromViper(v *viper.Viper) (*StepSettings, error) {
	ret := NewStepSettings()

	for k, val := range v.GetStringMapString("api.api_keys") {
		ret.API.APIKeys[k] = val
	}
	for k, val := range v.GetStringMapString("api.base_urls") {
		ret.API.BaseUrls[k] = val
	}
	if key := v.GetString(OpenAIAPIKeyName); key != "" {
		ret.API.APIKeys[OpenAIAPIKeyName] = key
	}
	if u := v.GetString(OpenAIBaseURLName); u != "" {
		ret.API.BaseUrls[OpenAIBaseURLName] = u
	}

	if v.IsSet("client.timeout") {
		timeout := v.GetInt("client.timeout")
		if timeout <= 0 {
			return nil, errors.Errorf("client.timeout must be positive, got %d", timeout)
		}
		ret.Client.SetTimeoutSeconds(timeout)
	}
	if org := v.GetString("client.organization"); org != "" {
		ret.Client.Organization = &org
	}
	if ua := v.GetString("client.user_agent"); ua != "" {
		ret.Client.UserAgent = &ua
	}

	if m := v.GetString("chat.default_model"); m != "" {
		ret.Chat.DefaultModel = &m
	}
	if v.IsSet("chat.max_response_tokens") {
		n := v.GetInt("chat.max_response_tokens")
		ret.Chat.MaxResponseTokens = &n
	}
	if v.IsSet("chat.temperature") {
		t := v.GetFloat64("chat.temperature")
		ret.Chat.Temperature = &t
	}
	if v.IsSet("chat.top_p") {
		p := v.GetFloat64("chat.top_p")
		ret.Chat.TopP = &p
	}
	if stop := v.GetStringSlice("chat.stop"); len(stop) > 0 {
		ret.Chat.Stop = stop
	}

	if v.IsSet("summary.window") {
		ret.Summary.Window = v.GetInt("summary.window")
	}
	if v.IsSet("summary.slack") {
		ret.Summary.Slack = v.GetInt("summary.slack")
	}
	if m := v.GetString("summary.model"); m != "" {
		ret.Summary.Model = &m
	}
	if ret.Summary.Window <= 0 || ret.Summary.Slack < 0 {
		return nil, errors.Errorf("invalid summary settings: window=%d slack=%d", ret.Summary.Window, ret.Summary.Slack)
	}

	return ret, nil
}

// SummaryModel is the model used for summarization calls.
func (s *StepSettings) SummaryModel() string {
	if s.Summary != nil && s.Summary.Model != nil && *s.Summary.Model != "" {
		return *s.Summary.Model
	}
	return s.Chat.Model()
}

func (ss *StepSettings) GetMetadata() map[string]interface{} {
	metadata := make(map[string]interface{})

	if ss.Chat != nil {
		metadata["chat-default-model"] = ss.Chat.Model()
		if ss.Chat.MaxResponseTokens != nil {
			metadata["chat-max-response-tokens"] = *ss.Chat.MaxResponseTokens
		}
		if ss.Chat.TopP != nil && *ss.Chat.TopP != 1 {
			metadata["chat-top-p"] = *ss.Chat.TopP
		}
		if ss.Chat.Temperature != nil {
			metadata["chat-temperature"] = *ss.Chat.Temperature
		}
		if len(ss.Chat.Stop) > 0 {
			metadata["chat-stop"] = ss.Chat.Stop
		}
	}

	if ss.API != nil {
		metadata[OpenAIBaseURLName] = ss.API.OpenAIBaseURL()
	}

	if ss.Client != nil {
		if ss.Client.Timeout != nil {
			metadata["timeout"] = ss.Client.Timeout.String()
		}
		if ss.Client.Organization != nil && *ss.Client.Organization != "" {
			metadata["organization"] = *ss.Client.Organization
		}
		if ss.Client.UserAgent != nil {
			metadata["user-agent"] = *ss.Client.UserAgent
		}
	}

	if ss.Summary != nil {
		metadata["summary-window"] = ss.Summary.Window
		metadata["summary-slack"] = ss.Summary.Slack
		metadata["summary-model"] = ss.SummaryModel()
	}

	return metadata
}

func (s *StepSettings) Clone() *StepSettings {
	return &StepSettings{
		API:     s.API.Clone(),
		Client:  s.Client.Clone(),
		Chat:    s.Chat.Clone(),
		Summary: s.Summary.Clone(),
	}
}
