package settings

import (
	"io"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var ErrMissingAPIKey = errors.New("missing openai api key")

// Viper keys read by UpdateFromViper. They double as CLI flag names.
const (
	APIKeyKey             = "openai-api-key"
	BaseURLKey            = "openai-base-url"
	APIVersionKey         = "openai-api-version"
	OrganizationKey       = "openai-organization"
	DefaultModelKey       = "default-model"
	TimeoutKey            = "timeout"
	UserAgentKey          = "user-agent"
	AllowHTTPKey          = "allow-http"
	AllowLocalNetworksKey = "allow-local-networks"
)

const DefaultModel = openai.GPT4TurboPreview

type ClientSettings struct {
	APIKey       *string `yaml:"api_key,omitempty"`
	BaseURL      *string `yaml:"base_url,omitempty"`
	APIVersion   *string `yaml:"api_version,omitempty"`
	Organization *string `yaml:"organization,omitempty"`
	// DefaultModel is used when a call does not name a model.
	DefaultModel       *string        `yaml:"default_model,omitempty"`
	Timeout            *time.Duration `yaml:"-"`
	TimeoutSeconds     *int           `yaml:"timeout,omitempty"`
	UserAgent          *string        `yaml:"user_agent,omitempty"`
	AllowHTTP          bool           `yaml:"allow_http,omitempty"`
	AllowLocalNetworks bool           `yaml:"allow_local_networks,omitempty"`
}

func NewClientSettings() *ClientSettings {
	defaultTimeout := 60 * time.Second
	defaultModel := DefaultModel
	return &ClientSettings{
		DefaultModel: &defaultModel,
		Timeout:      &defaultTimeout,
		TimeoutSeconds: func() *int {
			i := int(defaultTimeout.Seconds())
			return &i
		}(),
	}
}

type clientSettingsYAML struct {
	APIKey             *string `yaml:"api_key"`
	BaseURL            *string `yaml:"base_url"`
	APIVersion         *string `yaml:"api_version"`
	Organization       *string `yaml:"organization"`
	DefaultModel       *string `yaml:"default_model"`
	Timeout            *int    `yaml:"timeout"`
	UserAgent          *string `yaml:"user_agent"`
	AllowHTTP          *bool   `yaml:"allow_http"`
	AllowLocalNetworks *bool   `yaml:"allow_local_networks"`
}

// UnmarshalYAML overlays the keys present in the document; timeout is a number of seconds.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	aux := &clientSettingsYAML{}
	if err := value.Decode(aux); err != nil {
		return err
	}

	for _, f := range []struct {
		from *string
		to   **string
	}{
		{aux.APIKey, &cs.APIKey},
		{aux.BaseURL, &cs.BaseURL},
		{aux.APIVersion, &cs.APIVersion},
		{aux.Organization, &cs.Organization},
		{aux.DefaultModel, &cs.DefaultModel},
		{aux.UserAgent, &cs.UserAgent},
	} {
		if f.from != nil {
			*f.to = f.from
		}
	}
	if aux.Timeout != nil {
		cs.setTimeoutSeconds(*aux.Timeout)
	}
	if aux.AllowHTTP != nil {
		cs.AllowHTTP = *aux.AllowHTTP
	}
	if aux.AllowLocalNetworks != nil {
		cs.AllowLocalNetworks = *aux.AllowLocalNetworks
	}
	return nil
}

func (cs *ClientSettings) setTimeoutSeconds(seconds int) {
	t := time.Duration(seconds) * time.Second
	cs.Timeout = &t
	cs.TimeoutSeconds = &seconds
}

func (cs *ClientSettings) Clone() *ClientSettings {
	return clone.Clone(cs).(*ClientSettings)
}

// LoadFromYAML overlays the settings found in r onto a copy of cs.
func (cs *ClientSettings) LoadFromYAML(r io.Reader) (*ClientSettings, error) {
	ret := cs.Clone()
	if err := yaml.NewDecoder(r).Decode(ret); err != nil {
		if errors.Is(err, io.EOF) {
			return ret, nil
		}
		return nil, errors.Wrap(err, "could not parse client settings")
	}
	return ret, nil
}

// UpdateFromViper overlays every key that is set in v (flag, env var or config file).
func (cs *ClientSettings) UpdateFromViper(v *viper.Viper) {
	setString := func(key string, target **string) {
		if v.IsSet(key) && v.GetString(key) != "" {
			s := v.GetString(key)
			*target = &s
		}
	}

	setString(APIKeyKey, &cs.APIKey)
	setString(BaseURLKey, &cs.BaseURL)
	setString(APIVersionKey, &cs.APIVersion)
	setString(OrganizationKey, &cs.Organization)
	setString(DefaultModelKey, &cs.DefaultModel)
	setString(UserAgentKey, &cs.UserAgent)

	if v.IsSet(TimeoutKey) && v.GetInt(TimeoutKey) > 0 {
		cs.setTimeoutSeconds(v.GetInt(TimeoutKey))
	}
	if v.IsSet(AllowHTTPKey) {
		cs.AllowHTTP = v.GetBool(AllowHTTPKey)
	}
	if v.IsSet(AllowLocalNetworksKey) {
		cs.AllowLocalNetworks = v.GetBool(AllowLocalNetworksKey)
	}
}

// Validate checks the settings needed to talk to the hosted API.
func (cs *ClientSettings) Validate() error {
	if cs.APIKey == nil || *cs.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
