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
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ironforge-id/authcore/apierror"
)

// handleRevokeOwnSession revokes one of the caller's own sessions. A
// session is the refresh-token grant a client holds for the user, so
// deleting it revokes that refresh token and cascades to its access
// tokens. A session id belonging to another user is reported as
// not_found, never forbidden, so callers can't probe which ids exist.
func (s *Server) handleRevokeOwnSession(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authContextFrom(r.Context())
	if !ok {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminForbidden, "authentication required"))
		return
	}

	sessionID := chi.URLParam(r, "id")
	if err := s.Revocation.RevokeSession(r.Context(), authCtx.UserID, sessionID); err != nil {
		apierror.WriteAdminError(w, apierror.NewAdminError(apierror.AdminNotFound, "session not found"))
		return
	}

	apierror.WriteAdminSuccess(w, http.StatusOK, nil, "session revoked", nil)
}
