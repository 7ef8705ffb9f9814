package settings

import (
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
)

const (
	OpenAIAPIKeyName  = "openai-api-key"
	OpenAIBaseURLName = "openai-base-url"

	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

var ErrMissingAPIKey = errors.New("missing api key")

type APISettings struct {
	APIKeys  map[string]string `yaml:"api_keys,omitempty"`
	BaseUrls map[string]string `yaml:"base_urls,omitempty"`
}

func NewAPISettings() *APISettings {
	return &APISettings{
		APIKeys: map[string]string{},
		BaseUrls: map[string]string{
			OpenAIBaseURLName: DefaultOpenAIBaseURL,
		},
	}
}

func (s *APISettings) Clone() *APISettings {
	return clone.Clone(s).(*APISettings)
}

func (s *APISettings) OpenAIAPIKey() (string, error) {
	if s == nil {
		return "", ErrMissingAPIKey
	}
	key, ok := s.APIKeys[OpenAIAPIKeyName]
	if !ok || key == "" {
		return "", errors.Wrap(ErrMissingAPIKey, OpenAIAPIKeyName)
	}
	return key, nil
}

func (s *APISettings) OpenAIBaseURL() string {
	if s == nil {
		return DefaultOpenAIBaseURL
	}
	if u := s.BaseUrls[OpenAIBaseURLName]; u != "" {
		return u
	}
	return DefaultOpenAIBaseURL
}
