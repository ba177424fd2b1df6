// Package locator implements the service locator from §4.12: a map of
// service name to endpoint, with a transport-defined fallback, plus an
// optional minimum-protocol-version gate.
package locator

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-version"
	rpcerr "github.com/jabolina/yail-go/pkg/yail/errors"
)

// DefaultEndpoint is implemented by a transport that knows how to derive a
// fallback endpoint from a bare service name (§4.12's
// "service_name_to_ep(name) → (has_default, ep)" trait; the UNIX-domain
// transport's default is "/var/run/<name>").
type DefaultEndpoint interface {
	DefaultEndpoint(serviceName string) (endpoint string, ok bool)
}

// Locator is a map<service_name, endpoint> with an optional
// transport-provided default and an optional minimum protocol version
// gate, rejecting clients built against an incompatible locator before
// they ever dial.
type Locator struct {
	mu        sync.RWMutex
	endpoints map[string]string
	fallback  DefaultEndpoint

	minVersion *version.Version
}

// New builds a Locator. fallback may be nil for transports with no
// default (UDP, shared-memory).
func New(fallback DefaultEndpoint) *Locator {
	return &Locator{
		endpoints: make(map[string]string),
		fallback:  fallback,
	}
}

// WithMinimumVersion sets the minimum compatible protocol version that
// CheckCompatible enforces (Resolve does not consult it), parsed with
// hashicorp/go-version so operators can
// express constraints like "1.2.0" or "1.2.0-beta" instead of a bare
// integer. Passing an unparseable string is a programmer error.
func (l *Locator) WithMinimumVersion(v string) *Locator {
	parsed, err := version.NewVersion(v)
	if err != nil {
		rpcerr.Raise("locator: invalid minimum version %q: %v", v, err)
	}
	l.minVersion = parsed
	return l
}

// CheckCompatible rejects a client's advertised version string against the
// locator's configured minimum, called before the client ever dials.
// Returns nil if no minimum is configured.
func (l *Locator) CheckCompatible(clientVersion string) error {
	if l.minVersion == nil {
		return nil
	}
	parsed, err := version.NewVersion(clientVersion)
	if err != nil {
		return rpcerr.NewRPC(rpcerr.RPCSystemError, fmt.Sprintf("unparseable client version %q", clientVersion))
	}
	if parsed.LessThan(l.minVersion) {
		return rpcerr.NewRPC(rpcerr.RPCSystemError,
			fmt.Sprintf("client version %s below required minimum %s", parsed, l.minVersion))
	}
	return nil
}

// Insert registers serviceName -> endpoint. Inserting a duplicate fails
// with DuplicateService (§3).
func (l *Locator) Insert(serviceName, endpoint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.endpoints[serviceName]; exists {
		return rpcerr.NewRPC(rpcerr.RPCSystemError, fmt.Sprintf("DuplicateService: %s", serviceName))
	}
	l.endpoints[serviceName] = endpoint
	return nil
}

// Resolve looks up serviceName, falling back to the transport's default
// endpoint derivation if configured. Resolving an unknown name with no
// fallback fails with UnknownService (§3).
func (l *Locator) Resolve(serviceName string) (string, error) {
	l.mu.RLock()
	ep, ok := l.endpoints[serviceName]
	l.mu.RUnlock()
	if ok {
		return ep, nil
	}
	if l.fallback != nil {
		if ep, ok := l.fallback.DefaultEndpoint(serviceName); ok {
			return ep, nil
		}
	}
	return "", rpcerr.NewRPC(rpcerr.RPCSystemError, fmt.Sprintf("UnknownService: %s", serviceName))
}

// Remove drops a previously inserted mapping, used by providers tearing
// down a service.
func (l *Locator) Remove(serviceName string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.endpoints, serviceName)
}
