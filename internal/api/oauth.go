package api

import (
	"encoding/json"
	"net/http"
)

// Grant type values accepted by the token endpoint.
const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

// handleAuth is the account-linking authorization endpoint.
//
// The assistant platform redirects the user here after they sign in with
// the external identity provider; the signed identity token arrives as a
// bearer header and is swapped for a single-use authorization code. The
// code is returned in the response body for the linking frontend to relay.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	identityToken := bearerToken(r)
	if identityToken == "" {
		writeJSON(w, http.StatusUnauthorized, oauthError{Error: "invalid_request", Description: "bearer identity token required"})
		return
	}

	clientID := formOrQuery(r, "client_id")
	redirectURI := formOrQuery(r, "redirect_uri")

	code, err := s.tokens.Authorize(r.Context(), clientID, redirectURI, identityToken)
	if err != nil {
		s.logger.Warn("authorization rejected", "client_id", clientID, "error", err)
		writeOAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"code":  code,
		"state": formOrQuery(r, "state"),
	})
}

// handleToken is the OAuth token endpoint.
//
// It accepts form-encoded authorization_code and refresh_token grants and
// returns token JSON or an OAuth protocol error.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, oauthError{Error: "invalid_request", Description: "malformed form body"})
		return
	}

	clientID, clientSecret := clientCredentials(r)

	switch r.PostFormValue("grant_type") {
	case grantAuthorizationCode:
		pair, err := s.tokens.Exchange(r.Context(), clientID, clientSecret,
			r.PostFormValue("code"), r.PostFormValue("redirect_uri"))
		if err != nil {
			s.logger.Warn("code exchange rejected", "client_id", clientID, "error", err)
			writeOAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pair)

	case grantRefreshToken:
		pair, err := s.tokens.Refresh(r.Context(), clientID, clientSecret, r.PostFormValue("refresh_token"))
		if err != nil {
			s.logger.Warn("token refresh rejected", "client_id", clientID, "error", err)
			writeOAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pair)

	default:
		writeJSON(w, http.StatusBadRequest, oauthError{Error: "unsupported_grant_type"})
	}
}

// handleRequestSync asks the assistant platform to re-SYNC the caller's
// devices, picking up provisioning changes.
func (s *Server) handleRequestSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	if s.graph == nil {
		writeBadRequest(w, "homegraph relay not configured")
		return
	}

	if err := s.graph.RequestSync(r.Context(), userID); err != nil {
		s.logger.Error("request-sync failed", "user_id", userID, "error", err)
		writeInternalError(w, "request-sync failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// reportStateRequest is the request body for POST /reportstate.
type reportStateRequest struct {
	Devices map[string]map[string]any `json:"devices"`
}

// handleReportState pushes the supplied device state snapshots to the
// assistant platform.
func (s *Server) handleReportState(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	if s.graph == nil {
		writeBadRequest(w, "homegraph relay not configured")
		return
	}

	var req reportStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Devices) == 0 {
		writeBadRequest(w, "devices required")
		return
	}

	if err := s.graph.ReportState(r.Context(), userID, req.Devices); err != nil {
		s.logger.Error("report-state failed", "user_id", userID, "error", err)
		writeInternalError(w, "report-state failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// clientCredentials extracts the OAuth client id and secret from HTTP basic
// auth or, failing that, from the form body.
func clientCredentials(r *http.Request) (string, string) {
	if id, secret, ok := r.BasicAuth(); ok {
		return id, secret
	}
	return r.PostFormValue("client_id"), r.PostFormValue("client_secret")
}

// formOrQuery reads a parameter from the form body or the query string,
// whichever carries it.
func formOrQuery(r *http.Request, key string) string {
	if v := r.PostFormValue(key); v != "" {
		return v
	}
	return r.URL.Query().Get(key)
}
