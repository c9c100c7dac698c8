package shares

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"media-access/internal/domain/accessgrants"
	"media-access/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/shares", func(sr chi.Router) {
		sr.Post("/", createShareHandler(svc))
		sr.Get("/{shareID}", getShareHandler(svc))
		sr.Post("/{shareID}/revoke", revokeShareHandler(svc))
	})

	r.Get("/me/shares/received", listReceivedHandler(svc))
	r.Get("/me/shares/sent", listSentHandler(svc))
}

type createShareRequest struct {
	TargetID string                `json:"target_id"`
	Kind     Kind                  `json:"kind"`
	Scope    accessgrants.Scope    `json:"scope"`
	Duration accessgrants.Duration `json:"duration"`
	MediaIDs []string              `json:"media_ids"`
	Message  string                `json:"message"`
}

type shareItemResponse struct {
	MediaID  string `json:"media_id"`
	Kind     string `json:"kind"`
	Position int    `json:"position"`
}

type shareResponse struct {
	ID        string                   `json:"id"`
	Kind      Kind                     `json:"kind"`
	SenderID  string                   `json:"sender_id"`
	TargetID  string                   `json:"target_id"`
	Scope     accessgrants.Scope       `json:"scope"`
	Duration  accessgrants.Duration    `json:"duration"`
	Status    accessgrants.GrantStatus `json:"status"`
	ExpiresAt *time.Time               `json:"expires_at"`
	Message   string                   `json:"message,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	RevokedAt *time.Time               `json:"revoked_at,omitempty"`
	Items     []shareItemResponse      `json:"items"`
}

func createShareHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req createShareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		sh, err := svc.Create(r.Context(), CreateInput{
			SenderID: userID,
			TargetID: req.TargetID,
			Kind:     req.Kind,
			Scope:    req.Scope,
			Duration: req.Duration,
			MediaIDs: req.MediaIDs,
			Message:  req.Message,
		})
		if err != nil {
			writeError(w, err, false)
			return
		}
		writeJSON(w, http.StatusCreated, toShareResponse(sh, svc.now()))
	}
}

func getShareHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		sh, err := svc.Get(r.Context(), chi.URLParam(r, "shareID"), userID)
		if err != nil {
			writeError(w, err, true)
			return
		}
		writeJSON(w, http.StatusOK, toShareResponse(sh, svc.now()))
	}
}

func revokeShareHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		sh, err := svc.Revoke(r.Context(), chi.URLParam(r, "shareID"), userID)
		if err != nil {
			writeError(w, err, false)
			return
		}
		writeJSON(w, http.StatusOK, toShareResponse(sh, svc.now()))
	}
}

func listReceivedHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		items, err := svc.ListReceived(r.Context(), userID)
		if err != nil {
			writeError(w, err, true)
			return
		}
		writeJSON(w, http.StatusOK, toShareResponses(items, svc.now()))
	}
}

func listSentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		items, err := svc.ListSent(r.Context(), userID)
		if err != nil {
			writeError(w, err, true)
			return
		}
		writeJSON(w, http.StatusOK, toShareResponses(items, svc.now()))
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

func writeError(w http.ResponseWriter, err error, read bool) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "share not found", http.StatusNotFound)
	case errors.Is(err, ErrRateLimited):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case read:
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toShareResponse(sh Share, now time.Time) shareResponse {
	items := make([]shareItemResponse, 0, len(sh.Items))
	for _, it := range sh.Items {
		items = append(items, shareItemResponse{MediaID: it.MediaID, Kind: it.Kind, Position: it.Position})
	}
	return shareResponse{
		ID:        sh.ID,
		Kind:      sh.Kind,
		SenderID:  sh.SenderID,
		TargetID:  sh.TargetID,
		Scope:     sh.Scope,
		Duration:  sh.Duration,
		Status:    sh.Status(now),
		ExpiresAt: sh.ExpiresAt,
		Message:   sh.Message,
		CreatedAt: sh.CreatedAt,
		RevokedAt: sh.RevokedAt,
		Items:     items,
	}
}

func toShareResponses(items []Share, now time.Time) []shareResponse {
	out := make([]shareResponse, 0, len(items))
	for _, sh := range items {
		out = append(out, toShareResponse(sh, now))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
