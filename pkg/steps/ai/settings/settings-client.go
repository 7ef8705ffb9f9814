package settings

import (
	"net/http"
	"time"

	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

type ClientSettings struct {
	Timeout        *time.Duration `yaml:"timeout,omitempty"`
	TimeoutSeconds *int           `yaml:"timeout_second,omitempty"`
	Organization   *string        `yaml:"organization,omitempty"`
	UserAgent      *string        `yaml:"user_agent,omitempty"`
	HTTPClient     *http.Client   `yaml:"-" json:"-"`
}

// UnmarshalYAML reads timeout as a number of seconds.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	aux := struct {
		Timeout      *int    `yaml:"timeout,omitempty"`
		Organization *string `yaml:"organization,omitempty"`
		UserAgent    *string `yaml:"user_agent,omitempty"`
	}{}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	if aux.Timeout != nil {
		cs.SetTimeoutSeconds(*aux.Timeout)
	}
	if aux.Organization != nil {
		cs.Organization = aux.Organization
	}
	if aux.UserAgent != nil {
		cs.UserAgent = aux.UserAgent
	}
	return nil
}

func (cs *ClientSettings) SetTimeoutSeconds(seconds int) {
	t := time.Duration(seconds) * time.Second
	cs.Timeout = &t
	cs.TimeoutSeconds = &seconds
}

// Clone deep-copies the settings. The HTTP client is shared, not copied.
func (cs *ClientSettings) Clone() *ClientSettings {
	if cs == nil {
		return nil
	}
	c := *cs
	c.HTTPClient = nil
	ret := clone.Clone(&c).(*ClientSettings)
	ret.HTTPClient = cs.HTTPClient
	return ret
}

func NewClientSettings() *ClientSettings {
	ret := &ClientSettings{}
	ret.SetTimeoutSeconds(60)
	return ret
}
