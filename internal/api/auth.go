package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"ferrybook/internal/config"
	"ferrybook/internal/models"
)

const (
	apiKeyHeaderDefault = "x-api-key"
	userIDHeaderDefault = "x-user-id"
	clientKeyUnknown    = "unknown"
)

var (
	errMissingAPIKey = errors.New("missing api key header")
	errInvalidAPIKey = errors.New("invalid api key")
	errMissingUserID = errors.New("user keys require a numeric user id header")
)

type actorKey struct{}

func withActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor an authenticated request acts as.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(models.Actor)
	return actor, ok
}

// HTTPAuth resolves API keys to actors and applies per-client rate limiting.
type HTTPAuth struct {
	cfg     config.APIConfig
	clients []config.APIClientKey
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		cfg:     cfg,
		clients: cfg.Auth.APIKeys,
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

// Wrap authenticates the request, then rate limits it. Authenticated requests
// share a bucket per configured client; public routes and failed logins are
// limited per remote address, so made-up keys never get buckets of their own.
func (a *HTTPAuth) Wrap(next http.Handler, public func(*http.Request) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if public != nil && public(r) {
			if !a.limiter.allow(ipBucket(r)) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		actor, bucket, err := a.authenticate(r)
		if err != nil {
			if !a.limiter.allow(ipBucket(r)) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if !a.limiter.allow(bucket) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
	})
}

// authenticate resolves the actor and the rate limit bucket it draws from.
func (a *HTTPAuth) authenticate(r *http.Request) (models.Actor, string, error) {
	if !a.cfg.Auth.Enabled {
		// local development: everything runs as an anonymous admin
		return models.AdminActor(0), ipBucket(r), nil
	}

	apiKey := strings.TrimSpace(r.Header.Get(a.header(a.cfg.Auth.HeaderAPIKey, apiKeyHeaderDefault)))
	if apiKey == "" {
		return models.Actor{}, "", errMissingAPIKey
	}

	client, ok := a.lookup(apiKey)
	if !ok {
		return models.Actor{}, "", errInvalidAPIKey
	}
	bucket := "key:" + client.Key

	actorType, err := models.ParseActorType(client.ActorType)
	if err != nil {
		return models.Actor{}, "", errInvalidAPIKey
	}
	if actorType != models.ActorUser {
		return models.Actor{Type: actorType, ID: client.ActorID}, bucket, nil
	}

	raw := strings.TrimSpace(r.Header.Get(a.header(a.cfg.Auth.HeaderUserID, userIDHeaderDefault)))
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return models.Actor{}, "", errMissingUserID
	}
	return models.UserActor(userID), bucket, nil
}

func (a *HTTPAuth) lookup(apiKey string) (config.APIClientKey, bool) {
	for _, c := range a.clients {
		if subtle.ConstantTimeCompare([]byte(c.Key), []byte(apiKey)) == 1 {
			return c, true
		}
	}
	return config.APIClientKey{}, false
}

func (a *HTTPAuth) header(configured, fallback string) string {
	h := strings.TrimSpace(strings.ToLower(configured))
	if h == "" {
		return fallback
	}
	return h
}

func ipBucket(r *http.Request) string {
	if host := clientIP(r); host != "" {
		return "ip:" + host
	}
	return "ip:" + clientKeyUnknown
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
