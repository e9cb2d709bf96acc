package app

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger *slog.Logger
	Config *Config
}

// Header names asserted by the upstream auth collaborator. The gateway
// strips them from external traffic, so their presence is trusted here.
const (
	headerUserID     = "X-Auth-User-ID"
	headerCompanyID  = "X-Auth-Company-ID"
	headerSystemUser = "X-Auth-System-User"
)

// identityMiddleware lifts the caller identity from trusted headers into
// the request context.
func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id shared.Identity
		if v, err := strconv.ParseInt(r.Header.Get(headerUserID), 10, 64); err == nil {
			id.UserID = v
		}
		if v, err := strconv.ParseInt(r.Header.Get(headerCompanyID), 10, 64); err == nil {
			id.CompanyID = v
		}
		id.IsSystemUser = r.Header.Get(headerSystemUser) == "1"
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), id)))
	})
}

// headerIdempotencyKey lets clients retry mutating requests safely. Keys are
// claimed before the handler runs; a replay gets 409 instead of a second
// execution.
const headerIdempotencyKey = "Idempotency-Key"

// IdempotencyMiddleware guards mutating requests carrying an
// Idempotency-Key header. A key claimed by a request that later failed
// server-side is released again so the client can retry.
func IdempotencyMiddleware(store *shared.IdempotencyStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(headerIdempotencyKey)
			if store == nil || key == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			scope := r.Method + " " + r.URL.Path
			if err := store.CheckAndInsert(r.Context(), key, scope); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					httpx.Problem(w, http.StatusConflict, "Duplicate request",
						"this idempotency key has already been processed")
					return
				}
				// The store being unreachable must not take writes down
				// with it.
				logger.Warn("idempotency check failed", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if ww.Status() >= http.StatusInternalServerError {
				if err := store.Delete(r.Context(), key); err != nil {
					logger.Warn("idempotency key release failed", slog.Any("error", err))
				}
			}
		})
	}
}

// MiddlewareStack installs the Meridian middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	return []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		identityMiddleware,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(120, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
}
