// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"winemap/internal/app"
	"winemap/internal/domain"
)

type Handlers struct {
	Q    *app.QueryService
	Orch *app.Orchestrator
	Auth domain.AuthClient
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Post("/v1/auth/signup", h.signUp)
	s.mux.Post("/v1/auth/signin", h.signIn)
	s.mux.Post("/v1/auth/signout", h.signOut)
	s.mux.Patch("/v1/auth/password", h.updatePassword)
	s.mux.Get("/v1/auth/me", h.me)

	s.mux.Post("/v1/reports", h.saveReport)
	s.mux.Get("/v1/reports", h.listReports)
	s.mux.Patch("/v1/reports/{id}", h.updateReport)
	s.mux.Delete("/v1/reports/{id}", h.deleteReport)
	s.mux.Get("/v1/operations/{id}", h.operationState)
}

// ---- payloads ----

type locationPayload struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"`
}

type draftPayload struct {
	UserID     string           `json:"userId"`
	UserName   string           `json:"userName"`
	WineryName string           `json:"wineryName"`
	Content    string           `json:"content"`
	ImageURL   string           `json:"imageUrl"`
	Rating     int              `json:"rating"`
	Location   *locationPayload `json:"location,omitempty"`
}

type patchPayload struct {
	UserName   *string          `json:"userName"`
	WineryName *string          `json:"wineryName"`
	Content    *string          `json:"content"`
	ImageURL   *string          `json:"imageUrl"`
	Rating     *int             `json:"rating"`
	Location   *locationPayload `json:"location"`
}

type credsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type stateResponse struct {
	OperationID string          `json:"operationId"`
	Phase       string          `json:"phase"`
	Reports     []domain.Report `json:"reports,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func toLocation(p *locationPayload) *domain.Location {
	if p == nil {
		return nil
	}
	return &domain.Location{Lat: p.Lat, Lng: p.Lng, Name: p.Name}
}

func toState(st app.OperationState) stateResponse {
	out := stateResponse{OperationID: st.ID, Phase: string(st.Phase), Reports: st.Reports}
	if st.Err != nil {
		out.Error = st.Err.Error()
	}
	return out
}

// ---- helpers ----

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// errStatus maps repository/auth errors onto HTTP statuses.
func errStatus(err error) int {
	var ae *domain.AuthError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotSupported):
		return http.StatusNotImplemented
	case errors.As(err, &ae):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// ---- auth handlers ----

func (h *Handlers) signUp(w http.ResponseWriter, r *http.Request) {
	var c credsPayload
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Email == "" || c.Password == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "email and password are required")
		return
	}
	if err := h.Auth.SignUp(r.Context(), c.Email, c.Password); err != nil {
		writeProblem(w, errStatus(err), "Signup failed", err.Error())
		return
	}
	if uid, ok := h.Auth.CurrentUserUID(); ok {
		if err := h.Auth.SaveUserProfile(r.Context(), uid, c.Email); err != nil {
			log.Warn().Err(err).Str("uid", uid).Msg("save user profile failed")
		}
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handlers) signIn(w http.ResponseWriter, r *http.Request) {
	var c credsPayload
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Email == "" || c.Password == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "email and password are required")
		return
	}
	if err := h.Auth.SignIn(r.Context(), c.Email, c.Password); err != nil {
		writeProblem(w, errStatus(err), "Signin failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.SignOut(r.Context()); err != nil {
		writeProblem(w, errStatus(err), "Signout failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) updatePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "password is required")
		return
	}
	if err := h.Auth.UpdatePassword(r.Context(), body.Password); err != nil {
		writeProblem(w, errStatus(err), "Password update failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.Auth.CurrentUserUID()
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Not authenticated", "")
		return
	}
	email, _ := h.Auth.CurrentUserEmail()
	writeJSON(w, http.StatusOK, map[string]string{"uid": uid, "email": email})
}

// ---- report handlers ----

func (h *Handlers) saveReport(w http.ResponseWriter, r *http.Request) {
	var p draftPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if p.UserID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "userId is required")
		return
	}

	opID := h.Orch.SaveReport(domain.ReportDraft{
		UserID:     p.UserID,
		UserName:   p.UserName,
		WineryName: p.WineryName,
		Content:    p.Content,
		ImageURL:   p.ImageURL,
		Rating:     p.Rating,
		Location:   toLocation(p.Location),
	})
	st, err := h.Orch.Wait(r.Context(), opID)
	if err != nil {
		writeProblem(w, http.StatusGatewayTimeout, "Operation timed out", err.Error())
		return
	}
	if st.Err != nil {
		writeProblem(w, errStatus(st.Err), "Save failed", st.Err.Error())
		return
	}
	h.Q.InvalidateUser(r.Context(), p.UserID)
	writeJSON(w, http.StatusCreated, toState(st))
}

func (h *Handlers) listReports(w http.ResponseWriter, r *http.Request) {
	var (
		out []domain.Report
		err error
	)
	if userID := r.URL.Query().Get("userId"); userID != "" {
		out, err = h.Q.GetReportsForUser(r.Context(), userID)
	} else {
		out, err = h.Q.GetAllReports(r.Context())
	}
	if err != nil {
		writeProblem(w, errStatus(err), "List failed", err.Error())
		return
	}

	etag, body := calcETagAndBody(out)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write listReports body")
	}
}

func (h *Handlers) updateReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var p patchPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}

	opID := h.Orch.UpdateReport(id, domain.ReportPatch{
		UserName:   p.UserName,
		WineryName: p.WineryName,
		Content:    p.Content,
		ImageURL:   p.ImageURL,
		Rating:     p.Rating,
		Location:   toLocation(p.Location),
	})
	st, err := h.Orch.Wait(r.Context(), opID)
	if err != nil {
		writeProblem(w, http.StatusGatewayTimeout, "Operation timed out", err.Error())
		return
	}
	if st.Err != nil {
		writeProblem(w, errStatus(st.Err), "Update failed", st.Err.Error())
		return
	}
	h.Q.InvalidateAll(r.Context())
	writeJSON(w, http.StatusOK, toState(st))
}

func (h *Handlers) deleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	opID := h.Orch.DeleteReport(id)
	st, err := h.Orch.Wait(r.Context(), opID)
	if err != nil {
		writeProblem(w, http.StatusGatewayTimeout, "Operation timed out", err.Error())
		return
	}
	if st.Err != nil {
		writeProblem(w, errStatus(st.Err), "Delete failed", st.Err.Error())
		return
	}
	h.Q.InvalidateAll(r.Context())
	writeJSON(w, http.StatusOK, toState(st))
}

func (h *Handlers) operationState(w http.ResponseWriter, r *http.Request) {
	st, ok := h.Orch.State(chi.URLParam(r, "id"))
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "unknown operation id")
		return
	}
	writeJSON(w, http.StatusOK, toState(st))
}
