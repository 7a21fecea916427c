package services

import (
	"net"
	"net/url"
	"slices"
	"strings"
	"sync"
)

// APIPort is the port the remote API listens on next to a local console.
const APIPort = "10000"

// DefaultBaseURL is used when there is neither configuration nor a page context.
const DefaultBaseURL = "http://localhost:" + APIPort

// devPorts are ports local console front ends are served from.
var devPorts = []string{"3000", "3001", "5173", "8080"}

var loopbackHosts = []string{"localhost", "127.0.0.1", "::1"}

// EndpointResolver decides which origin API requests go to.
//
// The first call to [EndpointResolver.Resolve] fixes the result for the
// lifetime of the resolver.
type EndpointResolver struct {
	// Explicit is the configured base address. When set it is returned verbatim.
	Explicit string

	once   sync.Once
	origin string
}

// NewEndpointResolver creates a resolver with an optional explicit address.
func NewEndpointResolver(explicit string) *EndpointResolver {
	return &EndpointResolver{Explicit: explicit}
}

// Resolve returns the API origin for a console served at page.
// A nil page means there is no console origin to derive from.
func (r *EndpointResolver) Resolve(page *url.URL) string {
	r.once.Do(func() {
		r.origin = resolve(r.Explicit, page)
	})
	return r.origin
}

func resolve(explicit string, page *url.URL) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if page == nil || page.Host == "" {
		return DefaultBaseURL
	}

	scheme := page.Scheme
	if scheme == "" {
		scheme = "http"
	}

	host := page.Hostname()
	if isLocalHost(host) || slices.Contains(devPorts, page.Port()) {
		return scheme + "://" + net.JoinHostPort(host, APIPort)
	}
	return scheme + "://" + page.Host
}

func isLocalHost(host string) bool {
	host = strings.ToLower(host)
	return slices.Contains(loopbackHosts, host) ||
		strings.HasSuffix(host, ".local") ||
		strings.HasSuffix(host, ".localhost")
}
