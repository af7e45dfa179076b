package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	ErrLocalTarget       = errors.New("local network target is not allowed")
)

// OutboundURLOptions configures validation of the API base URL.
type OutboundURLOptions struct {
	// AllowHTTP permits plain HTTP base URLs, e.g. for a local proxy. HTTPS is always allowed.
	AllowHTTP bool
	// AllowLocalNetworks permits loopback/private/link-local targets and localhost hostnames.
	AllowLocalNetworks bool
}

// ValidateOutboundURL checks that rawURL is usable as an API base URL.
// Scheme and local-network restrictions are evaluated without DNS lookups.
func ValidateOutboundURL(rawURL string, opts OutboundURLOptions) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, "invalid URL")
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !opts.AllowHTTP {
			return errors.Wrap(ErrUnsupportedScheme, "http is not allowed")
		}
	default:
		return errors.Wrapf(ErrUnsupportedScheme, "%q", parsed.Scheme)
	}

	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return errors.Errorf("base URL %q must not carry a query or fragment", rawURL)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return errors.New("URL host is required")
	}

	if opts.AllowLocalNetworks {
		return nil
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return errors.Wrapf(ErrLocalTarget, "hostname %q", host)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// not an IP literal
		return nil
	}
	if addr.Zone() != "" {
		return errors.Wrapf(ErrLocalTarget, "zoned IP address %q", host)
	}
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() ||
		addr.IsLoopback() || addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() {
		return errors.Wrapf(ErrLocalTarget, "IP %q", host)
	}

	return nil
}

// NormalizeBaseURL validates rawURL and strips trailing slashes so that endpoint paths
// starting with "/" can be appended directly.
func NormalizeBaseURL(rawURL string, opts OutboundURLOptions) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(rawURL), "/")
	if err := ValidateOutboundURL(trimmed, opts); err != nil {
		return "", err
	}
	return trimmed, nil
}
