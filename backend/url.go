package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"
)

// URL construction errors.
var (
	// ErrInvalidURL is returned when a target URL cannot be parsed or is
	// structurally wrong for its scheme.
	ErrInvalidURL = errors.New("backend: invalid URL")

	// ErrUnsupportedScheme is returned when no transport is registered
	// for the URL's scheme.
	ErrUnsupportedScheme = errors.New("backend: unsupported scheme")
)

// ParsedURL is a backend target URL with every component resolved up
// front, so malformed URLs fail at construction instead of first use.
type ParsedURL struct {
	Scheme   string
	Host     string
	Port     int // 0 when absent
	Username string
	Password string

	// Path is the remote location. For netloc schemes it is the URL path
	// under the host; for path-only schemes (file) it is everything after
	// the scheme.
	Path string

	// Query holds transport-specific parameters, for example
	// s3://bucket/prefix?storage-class=STANDARD_IA.
	Query url.Values

	raw string
}

// String returns the original URL string.
func (u *ParsedURL) String() string { return u.raw }

// HostPort returns "host" or "host:port" for dialing.
func (u *ParsedURL) HostPort() string {
	if u.Port == 0 {
		return u.Host
	}
	return u.Host + ":" + strconv.Itoa(u.Port)
}

// Factory constructs a connected Backend from a parsed URL.
type Factory func(ctx context.Context, u *ParsedURL) (Backend, error)

type registration struct {
	factory    Factory
	usesNetloc bool
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registration)
)

// Register makes a transport available under a URI scheme. usesNetloc
// declares whether URLs of this scheme carry a host/port authority.
// Register is intended to be called from a transport package's init
// function and panics on a duplicate scheme, like database/sql.Register.
func Register(scheme string, usesNetloc bool, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if f == nil {
		panic("backend: Register with nil factory")
	}
	if _, dup := registry[scheme]; dup {
		panic("backend: Register called twice for scheme " + scheme)
	}
	registry[scheme] = registration{factory: f, usesNetloc: usesNetloc}
}

// Schemes returns the registered scheme names, sorted.
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for s := range registry {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Open parses the URL, selects the transport registered for its scheme,
// and constructs a connected backend instance. Construction failures are
// configuration errors, never retried.
func Open(ctx context.Context, rawURL string) (Backend, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	registryMu.RLock()
	reg, ok := registry[u.Scheme]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	b, err := reg.factory(ctx, u)
	if err != nil {
		return nil, Wrap(KindConfig, "open", rawURL, err)
	}
	return b, nil
}

// ParseURL parses a backend target URL and validates it against the
// scheme's registration: netloc schemes must carry an explicit hostname,
// path-only schemes fold any accidental authority back into the path.
func ParseURL(rawURL string) (*ParsedURL, error) {
	pu, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if pu.Scheme == "" {
		return nil, fmt.Errorf("%w: missing scheme in %q", ErrInvalidURL, rawURL)
	}

	out := &ParsedURL{
		Scheme: pu.Scheme,
		Host:   pu.Hostname(),
		Path:   pu.Path,
		Query:  pu.Query(),
		raw:    rawURL,
	}
	if p := pu.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: port in %q", ErrInvalidURL, rawURL)
		}
		out.Port = n
	}
	if pu.User != nil {
		out.Username = pu.User.Username()
		out.Password, _ = pu.User.Password()
	}

	registryMu.RLock()
	reg, registered := registry[out.Scheme]
	registryMu.RUnlock()
	if !registered {
		return out, nil
	}

	if reg.usesNetloc {
		if out.Host == "" {
			return nil, fmt.Errorf("%w: scheme %q requires an explicit hostname: %q",
				ErrInvalidURL, out.Scheme, rawURL)
		}
		return out, nil
	}

	// Path-only scheme. "scheme://segment/..." parses the first segment
	// as a host; fold it back to get a relative path. "scheme:///..."
	// stays an absolute path.
	if out.Host != "" {
		out.Path = out.Host + out.Path
		out.Host = ""
		out.Port = 0
	}
	return out, nil
}
