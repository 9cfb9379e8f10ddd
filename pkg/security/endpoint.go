package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// EndpointPolicy configures which engine endpoints are acceptable.
type EndpointPolicy struct {
	// AllowHTTP permits plain HTTP URLs. HTTPS is always allowed.
	AllowHTTP bool
	// AllowLocalNetworks permits loopback/private/link-local IP targets and localhost hostnames.
	AllowLocalNetworks bool
}

// LocalEngines is the policy for model servers running on the user's machine
// or network.
var LocalEngines = EndpointPolicy{AllowHTTP: true, AllowLocalNetworks: true}

// NormalizeEndpoint adds the http scheme to a bare "host:port" endpoint, the
// way Ollama accepts OLLAMA_HOST.
func NormalizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return "http://" + raw
}

// ValidateEndpoint checks that rawURL can be used as an engine base URL.
// It rejects unsafe schemes and local-network targets unless the policy
// allows them. No DNS lookups are made.
func ValidateEndpoint(rawURL string, policy EndpointPolicy) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, "invalid URL")
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !policy.AllowHTTP {
			return errors.New("http scheme is not allowed")
		}
	default:
		return errors.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return errors.New("URL host is required")
	}

	if !policy.AllowLocalNetworks {
		if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
			return errors.Errorf("local hostname %q is not allowed", host)
		}
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.Zone() != "" && !policy.AllowLocalNetworks {
			return errors.Errorf("zoned IP address %q is not allowed", host)
		}
		addr = addr.Unmap()

		if addr.IsUnspecified() || addr.IsMulticast() {
			return errors.Errorf("disallowed IP address %q", host)
		}

		if !policy.AllowLocalNetworks {
			if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() {
				return errors.Errorf("local network IP %q is not allowed", host)
			}
		}
	}

	return nil
}
