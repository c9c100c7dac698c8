package client

import (
	"time"

	"media-access/internal/domain/accessgrants"
	"media-access/internal/domain/media"
	"media-access/internal/domain/shares"
	"media-access/internal/gallery"
)

// Formas JSON del servidor. Se decodifican acá y se devuelven como tipos de dominio.

type requestDTO struct {
	ID          string     `json:"id"`
	RequesterID string     `json:"requester_id"`
	OwnerID     string     `json:"owner_id"`
	Duration    string     `json:"duration"`
	Scope       string     `json:"scope"`
	Message     string     `json:"message"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DecidedAt   *time.Time `json:"decided_at"`
}

func (d requestDTO) domain() accessgrants.Request {
	return accessgrants.Request{
		ID:          d.ID,
		RequesterID: d.RequesterID,
		OwnerID:     d.OwnerID,
		Duration:    accessgrants.Duration(d.Duration),
		Scope:       accessgrants.Scope(d.Scope),
		Message:     d.Message,
		Status:      accessgrants.RequestStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		DecidedAt:   d.DecidedAt,
	}
}

type grantDTO struct {
	ID        string     `json:"id"`
	ViewerID  string     `json:"viewer_id"`
	OwnerID   string     `json:"owner_id"`
	Scope     string     `json:"scope"`
	ExpiresAt *time.Time `json:"expires_at"`
	RequestID string     `json:"request_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	RevokedAt *time.Time `json:"revoked_at"`
}

func (d grantDTO) domain() accessgrants.Grant {
	return accessgrants.Grant{
		ID:        d.ID,
		ViewerID:  d.ViewerID,
		OwnerID:   d.OwnerID,
		Scope:     accessgrants.Scope(d.Scope),
		ExpiresAt: d.ExpiresAt,
		RequestID: d.RequestID,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		RevokedAt: d.RevokedAt,
	}
}

type stateDTO struct {
	State   string      `json:"state"`
	Request *requestDTO `json:"request"`
	Grant   *grantDTO   `json:"grant"`
}

// domain valida la forma: un "active" sin grant o "pending" sin request se
// toma como respuesta rota (ok=false) y el resolver cae a none.
func (d stateDTO) domain() (accessgrants.AccessState, bool) {
	switch accessgrants.StateKind(d.State) {
	case accessgrants.StateNone:
		return accessgrants.NoAccess(), true
	case accessgrants.StatePending:
		if d.Request == nil || d.Request.ID == "" {
			return accessgrants.NoAccess(), false
		}
		return accessgrants.Pending(d.Request.domain()), true
	case accessgrants.StateActive:
		if d.Grant == nil || d.Grant.ID == "" {
			return accessgrants.NoAccess(), false
		}
		return accessgrants.Active(d.Grant.domain()), true
	default:
		return accessgrants.NoAccess(), false
	}
}

type approvalDTO struct {
	Request requestDTO `json:"request"`
	Grant   grantDTO   `json:"grant"`
}

type shareItemDTO struct {
	MediaID  string `json:"media_id"`
	Kind     string `json:"kind"`
	Position int    `json:"position"`
}

type shareDTO struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	SenderID  string         `json:"sender_id"`
	TargetID  string         `json:"target_id"`
	Scope     string         `json:"scope"`
	Duration  string         `json:"duration"`
	ExpiresAt *time.Time     `json:"expires_at"`
	Message   string         `json:"message"`
	CreatedAt time.Time      `json:"created_at"`
	RevokedAt *time.Time     `json:"revoked_at"`
	Items     []shareItemDTO `json:"items"`
}

func (d shareDTO) domain() shares.Share {
	s := shares.Share{
		ID:        d.ID,
		Kind:      shares.Kind(d.Kind),
		SenderID:  d.SenderID,
		TargetID:  d.TargetID,
		Scope:     accessgrants.Scope(d.Scope),
		Duration:  accessgrants.Duration(d.Duration),
		ExpiresAt: d.ExpiresAt,
		Message:   d.Message,
		CreatedAt: d.CreatedAt,
		RevokedAt: d.RevokedAt,
		Items:     make([]shares.Item, 0, len(d.Items)),
	}
	for _, it := range d.Items {
		s.Items = append(s.Items, shares.Item{ShareID: d.ID, MediaID: it.MediaID, Kind: it.Kind, Position: it.Position})
	}
	return s
}

type mediaDTO struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Kind      string    `json:"kind"`
	URL       string    `json:"url"`
	Caption   string    `json:"caption"`
	Private   bool      `json:"private"`
	CreatedAt time.Time `json:"created_at"`
}

func (d mediaDTO) domain() media.Item {
	return media.Item{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Kind:      media.Kind(d.Kind),
		URL:       d.URL,
		Caption:   d.Caption,
		Private:   d.Private,
		CreatedAt: d.CreatedAt,
	}
}

type viewDTO struct {
	Mode            string     `json:"mode"`
	Owner           bool       `json:"owner"`
	Scope           string     `json:"scope"`
	ExpiresAt       *time.Time `json:"expires_at"`
	GrantID         string     `json:"grant_id"`
	CancelRequestID string     `json:"cancel_request_id"`
	Requested       string     `json:"requested"`
	Options         []string   `json:"options"`
}

func (d viewDTO) domain() gallery.View {
	v := gallery.View{
		Mode:            gallery.Mode(d.Mode),
		Owner:           d.Owner,
		Scope:           accessgrants.Scope(d.Scope),
		ExpiresAt:       d.ExpiresAt,
		GrantID:         d.GrantID,
		CancelRequestID: d.CancelRequestID,
		Requested:       accessgrants.Duration(d.Requested),
	}
	for _, o := range d.Options {
		v.Options = append(v.Options, accessgrants.Duration(o))
	}
	return v
}

type galleryDTO struct {
	View  viewDTO    `json:"view"`
	Items []mediaDTO `json:"items"`
}

func requestsFrom(in []requestDTO) []accessgrants.Request {
	out := make([]accessgrants.Request, 0, len(in))
	for _, d := range in {
		out = append(out, d.domain())
	}
	return out
}

func grantsFrom(in []grantDTO) []accessgrants.Grant {
	out := make([]accessgrants.Grant, 0, len(in))
	for _, d := range in {
		out = append(out, d.domain())
	}
	return out
}

func sharesFrom(in []shareDTO) []shares.Share {
	out := make([]shares.Share, 0, len(in))
	for _, d := range in {
		out = append(out, d.domain())
	}
	return out
}

func mediaFrom(in []mediaDTO) []media.Item {
	out := make([]media.Item, 0, len(in))
	for _, d := range in {
		out = append(out, d.domain())
	}
	return out
}
