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
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ironforge-id/authcore/apierror"
	"github.com/ironforge-id/authcore/audit"
)

func auditFilterFromQuery(r *http.Request) audit.Filter {
	limit, offset := paginationFromQuery(r)
	f := audit.Filter{Limit: limit, Offset: offset}
	q := r.URL.Query()
	if v := q.Get("actor_id"); v != "" {
		f.ActorID = &v
	}
	if v := q.Get("user_id"); v != "" {
		f.UserID = &v
	}
	if v := q.Get("client_id"); v != "" {
		f.ClientID = &v
	}
	if v := q.Get("action"); v != "" {
		f.Action = &v
	}
	if v := q.Get("success"); v != "" {
		success := v == "true"
		f.Success = &success
	}
	if v := q.Get("start_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.StartDate = &t
		}
	}
	if v := q.Get("end_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.EndDate = &t
		}
	}
	return f
}

func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	f := auditFilterFromQuery(r)
	events, total, err := s.AuditRepo.List(r.Context(), f)
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, events, "", map[string]int{
		"limit": f.Limit, "offset": f.Offset, "total": total,
	})
}

func (s *Server) handleGetAuditLog(w http.ResponseWriter, r *http.Request) {
	event, err := s.AuditRepo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, event, "", nil)
}

// auditStatistics is a derived read-model over the audit trail: counts by
// action and success/failure, computed from a bounded recent window since
// there is no separate aggregation table.
type auditStatistics struct {
	TotalEvents   int            `json:"total_events"`
	SuccessCount  int            `json:"success_count"`
	FailureCount  int            `json:"failure_count"`
	ByAction      map[string]int `json:"by_action"`
}

func (s *Server) handleAuditStatistics(w http.ResponseWriter, r *http.Request) {
	f := auditFilterFromQuery(r)
	if f.Limit == 0 {
		f.Limit = 1000
	}
	events, _, err := s.AuditRepo.List(r.Context(), f)
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}

	stats := auditStatistics{ByAction: map[string]int{}}
	for _, e := range events {
		stats.TotalEvents++
		if e.Success {
			stats.SuccessCount++
		} else {
			stats.FailureCount++
		}
		stats.ByAction[e.Action]++
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, stats, "", nil)
}

// handleSecurityEvents filters the audit trail down to failed authentication
// and authorization-relevant actions, the subset SIEM forwarders care about.
func (s *Server) handleSecurityEvents(w http.ResponseWriter, r *http.Request) {
	f := auditFilterFromQuery(r)
	if f.Limit == 0 {
		f.Limit = 200
	}
	events, _, err := s.AuditRepo.List(r.Context(), f)
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}

	securityActions := map[string]bool{
		audit.ActionLoginFailed:      true,
		audit.ActionUserLocked:       true,
		audit.ActionTokenReuseDetect: true,
		audit.ActionAuthorizeDenied:  true,
		audit.ActionTokenRevoked:     true,
	}

	filtered := make([]audit.Event, 0, len(events))
	for _, e := range events {
		if securityActions[e.Action] || !e.Success {
			filtered = append(filtered, e)
		}
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, filtered, "", nil)
}

// complianceReport summarizes the audit trail by actor for a given window,
// the shape external auditors typically request.
type complianceReport struct {
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`
	EventCount  int            `json:"event_count"`
	ByActorType map[string]int `json:"by_actor_type"`
	ByResource  map[string]int `json:"by_resource_type"`
}

func (s *Server) handleComplianceReport(w http.ResponseWriter, r *http.Request) {
	f := auditFilterFromQuery(r)
	if f.Limit == 0 {
		f.Limit = 5000
	}
	now := time.Now()
	if f.StartDate == nil {
		start := now.AddDate(0, -1, 0)
		f.StartDate = &start
	}
	if f.EndDate == nil {
		f.EndDate = &now
	}

	events, _, err := s.AuditRepo.List(r.Context(), f)
	if err != nil {
		apierror.WriteAdminError(w, apierror.FromDomainAdmin(err))
		return
	}

	report := complianceReport{
		PeriodStart: *f.StartDate,
		PeriodEnd:   *f.EndDate,
		ByActorType: map[string]int{},
		ByResource:  map[string]int{},
	}
	for _, e := range events {
		report.EventCount++
		report.ByActorType[string(e.ActorType)]++
		if e.ResourceType != "" {
			report.ByResource[e.ResourceType]++
		}
	}
	apierror.WriteAdminSuccess(w, http.StatusOK, report, "", nil)
}
