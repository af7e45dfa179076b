package api

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidArgument is returned before any request is sent when a required
	// identifier is empty or whitespace.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMissingModelID is returned when an operation requires a model id and neither
	// the call, the request nor the client default provides one.
	ErrMissingModelID = errors.New("missing model id")
)

func requireID(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.Wrapf(ErrInvalidArgument, "%s must not be empty", name)
	}
	return nil
}
