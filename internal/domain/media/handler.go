package media

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"media-access/internal/gallery"
	"media-access/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/media", func(mr chi.Router) {
		mr.Post("/", registerMediaHandler(svc))
		// Item suelto (owner, público, o viewer con grant que cubra el kind)
		mr.Get("/{mediaID}", getMediaHandler(svc))
	})

	r.Get("/me/media", listMyMediaHandler(svc))

	// Galería de un owner vista por el usuario autenticado
	r.Get("/users/{ownerID}/media", galleryHandler(svc))
}

type registerMediaRequest struct {
	Kind    string `json:"kind"`
	URL     string `json:"url"`
	Caption string `json:"caption"`
	Private bool   `json:"private"`
}

type mediaResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Kind      Kind      `json:"kind"`
	URL       string    `json:"url"`
	Caption   string    `json:"caption,omitempty"`
	Private   bool      `json:"private"`
	CreatedAt time.Time `json:"created_at"`
}

type viewResponse struct {
	Mode            gallery.Mode `json:"mode"`
	Owner           bool         `json:"owner,omitempty"`
	Scope           string       `json:"scope,omitempty"`
	ExpiresAt       *time.Time   `json:"expires_at,omitempty"`
	GrantID         string       `json:"grant_id,omitempty"`
	CancelRequestID string       `json:"cancel_request_id,omitempty"`
	Requested       string       `json:"requested,omitempty"`
	Options         []string     `json:"options,omitempty"`
}

type galleryResponse struct {
	View  viewResponse    `json:"view"`
	Items []mediaResponse `json:"items"`
}

func registerMediaHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req registerMediaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.Register(r.Context(), claims.UserID, RegisterInput{
			Kind:    req.Kind,
			URL:     req.URL,
			Caption: req.Caption,
			Private: req.Private,
		})
		if err != nil {
			writeError(w, err, false)
			return
		}
		writeJSON(w, http.StatusCreated, toMediaResponse(m))
	}
}

func listMyMediaHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByOwner(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, err, true)
			return
		}
		writeJSON(w, http.StatusOK, toMediaResponses(items))
	}
}

func getMediaHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		m, err := svc.Get(r.Context(), claims.UserID, chi.URLParam(r, "mediaID"))
		if err != nil {
			writeError(w, err, true)
			return
		}
		writeJSON(w, http.StatusOK, toMediaResponse(m))
	}
}

func galleryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		res, err := svc.Gallery(r.Context(), claims.UserID, chi.URLParam(r, "ownerID"))
		if err != nil {
			writeError(w, err, true)
			return
		}
		writeJSON(w, http.StatusOK, galleryResponse{
			View:  toViewResponse(res.View),
			Items: toMediaResponses(res.Items),
		})
	}
}

func writeError(w http.ResponseWriter, err error, read bool) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "media not found", http.StatusNotFound)
	case read:
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toMediaResponse(m Item) mediaResponse {
	return mediaResponse{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Kind:      m.Kind,
		URL:       m.URL,
		Caption:   m.Caption,
		Private:   m.Private,
		CreatedAt: m.CreatedAt,
	}
}

func toMediaResponses(items []Item) []mediaResponse {
	out := make([]mediaResponse, 0, len(items))
	for _, m := range items {
		out = append(out, toMediaResponse(m))
	}
	return out
}

func toViewResponse(v gallery.View) viewResponse {
	out := viewResponse{
		Mode:            v.Mode,
		Owner:           v.Owner,
		Scope:           string(v.Scope),
		ExpiresAt:       v.ExpiresAt,
		GrantID:         v.GrantID,
		CancelRequestID: v.CancelRequestID,
		Requested:       string(v.Requested),
	}
	for _, d := range v.Options {
		out.Options = append(out.Options, string(d))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
