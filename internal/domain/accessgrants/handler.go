package accessgrants

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"media-access/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	// Viewer: estado de acceso y solicitud contra un owner
	r.Route("/access", func(ar chi.Router) {
		ar.Post("/grants", grantAccessHandler(svc))
		ar.Get("/{ownerID}", resolveHandler(svc))
		ar.Post("/{ownerID}/requests", createRequestHandler(svc))
	})

	// Acciones sobre un request (owner: approve/deny, viewer: cancel)
	r.Route("/access-requests/{requestID}", func(rr chi.Router) {
		rr.Post("/approve", approveRequestHandler(svc))
		rr.Post("/deny", denyRequestHandler(svc))
		rr.Post("/cancel", cancelRequestHandler(svc))
	})

	r.Post("/grants/{grantID}/revoke", revokeGrantHandler(svc))

	// Sin r.Route("/me"): otros módulos también cuelgan rutas de /me.
	r.Get("/me/grants/active", listActiveGrantsHandler(svc))
	r.Get("/me/grants/received", listReceivedGrantsHandler(svc))
	r.Get("/me/access-requests", listRequestsHandler(svc))
	r.Get("/me/access-requests/outgoing", listOutgoingRequestsHandler(svc))
}

type createRequestRequest struct {
	Duration Duration `json:"duration"`
	Scope    Scope    `json:"scope"`
	Message  string   `json:"message"`
}

type grantAccessRequest struct {
	ViewerID string   `json:"viewer_id"`
	Scope    Scope    `json:"scope"`
	Duration Duration `json:"duration"`
}

type requestResponse struct {
	ID          string        `json:"id"`
	RequesterID string        `json:"requester_id"`
	OwnerID     string        `json:"owner_id"`
	Duration    Duration      `json:"duration"`
	Scope       Scope         `json:"scope"`
	Message     string        `json:"message,omitempty"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	DecidedAt   *time.Time    `json:"decided_at,omitempty"`
}

type grantResponse struct {
	ID        string      `json:"id"`
	ViewerID  string      `json:"viewer_id"`
	OwnerID   string      `json:"owner_id"`
	Scope     Scope       `json:"scope"`
	Status    GrantStatus `json:"status"`
	ExpiresAt *time.Time  `json:"expires_at"`
	RequestID string      `json:"request_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	RevokedAt *time.Time  `json:"revoked_at,omitempty"`
}

type stateResponse struct {
	State   StateKind        `json:"state"`
	Request *requestResponse `json:"request,omitempty"`
	Grant   *grantResponse   `json:"grant,omitempty"`
}

type approvalResponse struct {
	Request requestResponse `json:"request"`
	Grant   grantResponse   `json:"grant"`
}

func resolveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		state, err := svc.Resolve(r.Context(), userID, chi.URLParam(r, "ownerID"))
		if err != nil {
			writeError(w, err, true)
			return
		}
		writeJSON(w, http.StatusOK, toStateResponse(state, svc.now()))
	}
}

func createRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req createRequestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		created, err := svc.CreateRequest(r.Context(), CreateRequestInput{
			RequesterID: userID,
			OwnerID:     chi.URLParam(r, "ownerID"),
			Duration:    req.Duration,
			Scope:       req.Scope,
			Message:     req.Message,
		})
		if err != nil {
			writeError(w, err, false)
			return
		}
		writeJSON(w, http.StatusCreated, toRequestResponse(created))
	}
}

func approveRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		req, g, err := svc.ApproveRequest(r.Context(), chi.URLParam(r, "requestID"), userID)
		if err != nil {
			writeError(w, err, false)
			return
		}
		writeJSON(w, http.StatusOK, approvalResponse{
			Request: toRequestResponse(req),
			Grant:   toGrantResponse(g, svc.now()),
		})
	}
}

func denyRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		req, err := svc.DenyRequest(r.Context(), chi.URLParam(r, "requestID"), userID)
		if err != nil {
			writeError(w, err, false)
			return
		}
		writeJSON(w, http.StatusOK, toRequestResponse(req))
	}
}

func cancelRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		req, err := svc.CancelRequest(r.Context(), chi.URLParam(r, "requestID"), userID)
		if err != nil {
			writeError(w, err, false)
			return
		}
		writeJSON(w, http.StatusOK, toRequestResponse(req))
	}
}

func grantAccessHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req grantAccessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.ViewerID) == "" {
			http.Error(w, "viewer_id required", http.StatusBadRequest)
			return
		}

		g, err := svc.GrantAccess(r.Context(), GrantInput{
			OwnerID:  userID,
			ViewerID: req.ViewerID,
			Scope:    req.Scope,
			Duration: req.Duration,
		})
		if err != nil {
			writeError(w, err, false)
			return
		}
		writeJSON(w, http.StatusCreated, toGrantResponse(g, svc.now()))
	}
}

func revokeGrantHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		g, err := svc.RevokeGrant(r.Context(), chi.URLParam(r, "grantID"), userID)
		if err != nil {
			writeError(w, err, false)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponse(g, svc.now()))
	}
}

func listActiveGrantsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		items, err := svc.ListActiveGrants(r.Context(), userID)
		if err != nil {
			writeError(w, err, true)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponses(items, svc.now()))
	}
}

func listReceivedGrantsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		items, err := svc.ListReceivedGrants(r.Context(), userID)
		if err != nil {
			writeError(w, err, true)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponses(items, svc.now()))
	}
}

func listRequestsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		status := RequestStatus(strings.TrimSpace(r.URL.Query().Get("status")))
		items, err := svc.ListRequests(r.Context(), userID, status)
		if err != nil {
			writeError(w, err, true)
			return
		}
		writeJSON(w, http.StatusOK, toRequestResponses(items))
	}
}

func listOutgoingRequestsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		items, err := svc.ListOutgoingRequests(r.Context(), userID)
		if err != nil {
			writeError(w, err, true)
			return
		}
		writeJSON(w, http.StatusOK, toRequestResponses(items))
	}
}

func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return claims.UserID, true
}

// writeError traduce los errores del dominio. Las fallas de storage en lecturas
// se devuelven como 503 (el cliente puede reintentar), en escrituras como 500.
func writeError(w http.ResponseWriter, err error, read bool) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrRateLimited):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case read:
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toStateResponse(s AccessState, now time.Time) stateResponse {
	out := stateResponse{State: s.Kind}
	if s.Request != nil {
		r := toRequestResponse(*s.Request)
		out.Request = &r
	}
	if s.Grant != nil {
		g := toGrantResponse(*s.Grant, now)
		out.Grant = &g
	}
	return out
}

func toRequestResponse(r Request) requestResponse {
	return requestResponse{
		ID:          r.ID,
		RequesterID: r.RequesterID,
		OwnerID:     r.OwnerID,
		Duration:    r.Duration,
		Scope:       r.Scope,
		Message:     r.Message,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		DecidedAt:   r.DecidedAt,
	}
}

func toRequestResponses(items []Request) []requestResponse {
	out := make([]requestResponse, 0, len(items))
	for _, r := range items {
		out = append(out, toRequestResponse(r))
	}
	return out
}

func toGrantResponse(g Grant, now time.Time) grantResponse {
	return grantResponse{
		ID:        g.ID,
		ViewerID:  g.ViewerID,
		OwnerID:   g.OwnerID,
		Scope:     g.Scope,
		Status:    g.Status(now),
		ExpiresAt: g.ExpiresAt,
		RequestID: g.RequestID,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
		RevokedAt: g.RevokedAt,
	}
}

func toGrantResponses(items []Grant, now time.Time) []grantResponse {
	out := make([]grantResponse, 0, len(items))
	for _, g := range items {
		out = append(out, toGrantResponse(g, now))
	}
	return out
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
