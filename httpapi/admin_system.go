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

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := s.Backups.List(r.Context())
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, backups, "", nil)
}

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	authCtx, _ := authContextFrom(r.Context())
	b, err := s.Backups.Create(r.Context(), authCtx.UserID)
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusCreated, b, "backup created", nil)
}

func (s *Server) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	authCtx, _ := authContextFrom(r.Context())
	if err := s.Backups.Restore(r.Context(), authCtx.UserID, chi.URLParam(r, "id")); err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, nil, "backup restored", nil)
}
