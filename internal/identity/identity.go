// Package identity resolves the player behind an incoming connection request.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated means the request carries no usable identity.
var ErrUnauthenticated = errors.New("unauthenticated")

type Identity struct {
	Player string
}

// Resolver is called once per connection before the upgrade.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (Identity, error)
}

// HeaderResolver trusts a header set by an authenticating proxy.
type HeaderResolver struct {
	Header string
	// Query enables the ?user= fallback for local development.
	Query bool
}

func NewHeaderResolver(header string, query bool) HeaderResolver {
	if strings.TrimSpace(header) == "" {
		header = "X-User-Id"
	}
	return HeaderResolver{Header: header, Query: query}
}

func (h HeaderResolver) Resolve(_ context.Context, r *http.Request) (Identity, error) {
	id := strings.TrimSpace(r.Header.Get(h.Header))
	if id == "" && h.Query {
		id = strings.TrimSpace(r.URL.Query().Get("user"))
	}
	if id == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{Player: id}, nil
}
