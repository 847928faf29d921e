// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ironforge-id/authcore/apierror"
	"github.com/ironforge-id/authcore/ratelimit"
)

// rateLimit applies the named ratelimit.Rule to every request, keyed by
// ip|client_id|user_id, before the handler runs. client_id is read from
// the form body when present (token/introspect/revoke); user_id from any
// already-resolved AuthContext.
func (s *Server) rateLimit(rule string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := r.FormValue("client_id")
		userID := ""
		if authCtx, ok := authContextFrom(r.Context()); ok {
			userID = authCtx.UserID
		}

		decision := s.RateLimiter.Check(r.Context(), rule, ratelimit.Key(clientIPFromRequest(r), clientID, userID))
		if !decision.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())+1))
			oerr := apierror.NewOAuthError(apierror.OAuthTemporarilyUnavailable, "rate limit exceeded")
			oerr.Status = http.StatusTooManyRequests
			apierror.WriteOAuthError(w, oerr)
			return
		}
		next(w, r)
	}
}

// recoverPanics converts a panicking handler into a server_error/internal
// response instead of crashing the process.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.ErrorContext(r.Context(), "panic recovered", "error", fmt.Sprint(rec), "path", r.URL.Path)
				if isOAuthPath(r.URL.Path) {
					apierror.WriteOAuthError(w, apierror.NewOAuthError(apierror.OAuthServerError, ""))
					return
				}
				apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminInternal, "an internal error occurred"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func isOAuthPath(path string) bool {
	return len(path) >= len("/api/v2/oauth") && path[:len("/api/v2/oauth")] == "/api/v2/oauth"
}
