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
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ironforge-id/authcore/apierror"
	"github.com/ironforge-id/authcore/authorize"
	"github.com/ironforge-id/authcore/clientauth"
	"github.com/ironforge-id/authcore/tokenendpoint"
)

const sessionCookieName = "authcore_session"

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	set := s.Keys.PublicJWKS()
	body, err := json.Marshal(set)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func authorizeParamsFromValues(get func(string) string) authorize.Params {
	return authorize.Params{
		ResponseType:        get("response_type"),
		ClientID:            get("client_id"),
		RedirectURI:         get("redirect_uri"),
		Scope:               get("scope"),
		State:               get("state"),
		Nonce:               get("nonce"),
		CodeChallenge:       get("code_challenge"),
		CodeChallengeMethod: get("code_challenge_method"),
		Prompt:              get("prompt"),
	}
}

// handleAuthorize implements the /authorize flow start. A login page is
// explicitly out of scope; the caller is expected to already hold a
// session cookie established by an external login surface. Without one,
// the response is a direct login_required error rather than a redirect:
// redirecting requires the client/redirect_uri pair to already be
// confirmed, and a missing session is indistinguishable from that point.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	params := authorizeParamsFromValues(r.URL.Query().Get)

	decision, err := s.Authorizer.Start(r.Context(), params)
	if err != nil {
		apierror.WriteOAuthError(w, apierror.NewOAuthError(apierror.OAuthServerError, ""))
		return
	}
	if decision.Outcome != authorize.OutcomeNeedLogin {
		s.renderAuthorizeDecision(w, r, decision)
		return
	}

	userID, ok := s.sessionUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "login_required", "error_description": "no active session"})
		return
	}

	next, err := s.Authorizer.Continue(r.Context(), decision.Client, params, userID)
	if err != nil {
		apierror.WriteOAuthError(w, apierror.NewOAuthError(apierror.OAuthServerError, ""))
		return
	}
	s.renderAuthorizeDecision(w, r, next)
}

// handleAuthorizeConsent completes the CONSENT state once an external
// consent surface (out of scope here) has recorded the user's decision.
func (s *Server) handleAuthorizeConsent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierror.WriteOAuthError(w, apierror.NewOAuthError(apierror.OAuthInvalidRequest, "malformed form body"))
		return
	}
	params := authorizeParamsFromValues(r.PostFormValue)

	userID, ok := s.sessionUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "login_required", "error_description": "no active session"})
		return
	}
	c, err := s.Clients.GetClientByClientID(r.Context(), params.ClientID)
	if err != nil {
		apierror.WriteOAuthError(w, apierror.NewOAuthError(apierror.OAuthInvalidRequest, "unknown client_id"))
		return
	}

	if r.PostFormValue("decision") == "deny" {
		s.renderAuthorizeDecision(w, r, s.Authorizer.DenyConsent(r.Context(), c, params, userID))
		return
	}

	approved := splitFormScope(r.PostFormValue("approved_scope"))
	if len(approved) == 0 {
		approved = splitFormScope(params.Scope)
	}
	decision, err := s.Authorizer.CompleteConsent(r.Context(), c, params, userID, approved)
	if err != nil {
		apierror.WriteOAuthError(w, apierror.NewOAuthError(apierror.OAuthServerError, ""))
		return
	}
	s.renderAuthorizeDecision(w, r, decision)
}

func (s *Server) renderAuthorizeDecision(w http.ResponseWriter, r *http.Request, decision *authorize.Decision) {
	switch decision.Outcome {
	case authorize.OutcomeCode, authorize.OutcomeRedirectError:
		http.Redirect(w, r, decision.RedirectURL, http.StatusFound)
	case authorize.OutcomeNeedConsent:
		writeJSON(w, http.StatusOK, map[string]any{
			"consent_required": true,
			"client_id":        decision.Client.ClientID,
			"scopes":           decision.Scopes,
		})
	default: // OutcomeDirectError
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": decision.ErrorCode, "error_description": decision.ErrorDesc})
	}
}

func (s *Server) sessionUserID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}
	sess, err := s.Sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		return "", false
	}
	return sess.UserID, true
}

func splitFormScope(scope string) []string {
	if scope == "" {
		return nil
	}
	return strings.Fields(scope)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierror.WriteOAuthError(w, apierror.NewOAuthError(apierror.OAuthInvalidRequest, "malformed form body"))
		return
	}
	creds := clientauth.ExtractCredentials(r)
	req := tokenendpoint.Request{
		GrantType:    r.PostFormValue("grant_type"),
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		CodeVerifier: r.PostFormValue("code_verifier"),
		RefreshToken: r.PostFormValue("refresh_token"),
		Scope:        r.PostFormValue("scope"),
	}

	resp, err := s.TokenEP.Handle(r.Context(), creds, req)
	if err != nil {
		apierror.WriteOAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierror.WriteOAuthError(w, apierror.NewOAuthError(apierror.OAuthInvalidRequest, "malformed form body"))
		return
	}
	creds := clientauth.ExtractCredentials(r)
	if _, err := s.ClientAuth.Authenticate(r.Context(), creds, false); err != nil {
		apierror.WriteOAuthError(w, apierror.NewOAuthError(apierror.OAuthInvalidClient, "client authentication failed"))
		return
	}

	result := s.Revocation.Introspect(r.Context(), r.PostFormValue("token"), r.PostFormValue("token_type_hint"))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierror.WriteOAuthError(w, apierror.NewOAuthError(apierror.OAuthInvalidRequest, "malformed form body"))
		return
	}
	creds := clientauth.ExtractCredentials(r)
	c, err := s.ClientAuth.Authenticate(r.Context(), creds, false)
	if err != nil {
		apierror.WriteOAuthError(w, apierror.NewOAuthError(apierror.OAuthInvalidClient, "client authentication failed"))
		return
	}

	// RFC 7009 §2.2: the revocation endpoint always answers 200, even for
	// an unrecognized token, so callers never learn which tokens exist.
	_ = s.Revocation.Revoke(r.Context(), c.ClientID, r.PostFormValue("token"), r.PostFormValue("token_type_hint"))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUserinfo(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authContextFrom(r.Context())
	if !ok || !authCtx.HasScope("openid") {
		apierror.WriteOAuthError(w, apierror.NewOAuthError(apierror.OAuthInsufficientScope, "openid scope is required"))
		return
	}

	u, err := s.Users.GetUser(r.Context(), authCtx.UserID)
	if err != nil {
		apierror.WriteOAuthError(w, apierror.FromDomainOAuth(err))
		return
	}

	claims := map[string]any{"sub": u.ID}
	if authCtx.HasScope("profile") {
		claims["preferred_username"] = u.Username
		claims["name"] = u.Profile.FullName
		claims["given_name"] = u.Profile.GivenName
		claims["family_name"] = u.Profile.FamilyName
		claims["nickname"] = u.Profile.Nickname
		claims["picture"] = u.Profile.Picture
		claims["locale"] = u.Profile.Locale
	}
	if authCtx.HasScope("email") {
		claims["email"] = u.Email
		claims["email_verified"] = u.EmailVerified
	}
	writeJSON(w, http.StatusOK, claims)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	enc, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(enc)
}
