package cmds

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/go-go-golems/assistant-runs/pkg/assistants/api"
	"github.com/go-go-golems/assistant-runs/pkg/assistants/requestschema"
	"github.com/go-go-golems/assistant-runs/pkg/assistants/settings"
	"github.com/go-go-golems/assistant-runs/pkg/helpers"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Viper keys of the persistent flags that are not client settings.
const (
	ClientSettingsKey = "client-settings"
	RequestIDKey      = "request-id"
)

// NewClient builds an API client from the settings file, the config file, the environment
// and the command line, in increasing order of precedence.
func NewClient() (*api.Client, error) {
	s := settings.NewClientSettings()

	if path := viper.GetString(ClientSettingsKey); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "could not open client settings")
		}
		defer func() {
			_ = f.Close()
		}()

		s, err = s.LoadFromYAML(f)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load client settings from %s", path)
		}
	}

	s.UpdateFromViper(viper.GetViper())
	if err := s.Validate(); err != nil {
		return nil, err
	}

	return api.NewClientFromSettings(s)
}

func commandContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if requestID := viper.GetString(RequestIDKey); requestID != "" {
		ctx = helpers.ContextWithRequestID(ctx, requestID)
	}
	return ctx
}

var stdin io.Reader = os.Stdin

// readDocument reads a request file. "-" reads standard input.
func readDocument(path string) ([]byte, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		return b, errors.Wrap(err, "could not read standard input")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", path)
	}
	return b, nil
}

// loadRequest builds a request from the file at path with overrides set on top, then
// decodes it into out. The merged document is validated against the named schema when a
// file was given. An empty path starts from an empty request.
func loadRequest(name string, path string, overrides map[string]interface{}, out interface{}) error {
	var document []byte
	if path != "" {
		var err error
		document, err = readDocument(path)
		if err != nil {
			return err
		}
	}

	merged, err := requestschema.Merge(document, overrides)
	if err != nil {
		return errors.Wrapf(err, "invalid request file %s", path)
	}

	if path == "" {
		return errors.Wrap(json.Unmarshal(merged, out), "could not decode request")
	}
	if err := requestschema.Decode(name, merged, out); err != nil {
		return errors.Wrapf(err, "invalid request file %s", path)
	}
	return nil
}
