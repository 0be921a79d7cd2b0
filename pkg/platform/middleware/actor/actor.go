// Package actor carries the acting reviewer or submitter through the request context.
//
// Authentication is handled upstream; this service trusts the identity headers
// set by the gateway in front of it.
package actor

import (
	"context"
	"net/http"
	"strings"

	"casereview/internal/cases/models"
	"casereview/pkg/platform/validation"
)

const (
	HeaderID   = "X-Actor-ID"
	HeaderName = "X-Actor-Name"
	HeaderRole = "X-Actor-Role"
)

type contextKeyActor struct{}

// WithActor returns ctx carrying a.
func WithActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, contextKeyActor{}, a)
}

// FromContext returns the actor in ctx; the zero Actor when none was sent.
func FromContext(ctx context.Context) models.Actor {
	if a, ok := ctx.Value(contextKeyActor{}).(models.Actor); ok {
		return a
	}
	return models.Actor{}
}

// Middleware reads the X-Actor-* headers into the context. Values are trimmed
// and truncated; missing headers leave the actor empty so the workflow can
// refuse actor-less transitions itself.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := models.Actor{
			ID:   header(r, HeaderID),
			Name: header(r, HeaderName),
			Role: header(r, HeaderRole),
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
	})
}

func header(r *http.Request, key string) string {
	v := strings.TrimSpace(r.Header.Get(key))
	if len(v) > validation.MaxActorLength {
		v = v[:validation.MaxActorLength]
	}
	return v
}
