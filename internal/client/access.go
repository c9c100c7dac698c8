package client

import (
	"context"
	"net/http"
	"net/url"

	"media-access/internal/domain/accessgrants"
)

// CreateRequest pide acceso a la media privada de ownerID. Scope vacío = all.
func (c *Client) CreateRequest(ctx context.Context, ownerID string, d accessgrants.Duration, scope accessgrants.Scope, message string) (accessgrants.Request, error) {
	const op = "create request"
	if _, err := accessgrants.ParseDuration(string(d)); err != nil {
		return accessgrants.Request{}, validation(op, err)
	}
	if _, err := accessgrants.ParseScope(string(scope)); err != nil {
		return accessgrants.Request{}, validation(op, err)
	}
	if ownerID == "" {
		return accessgrants.Request{}, validation(op, accessgrants.ErrInvalidInput)
	}

	body := map[string]string{"duration": string(d), "scope": string(scope), "message": message}
	var out requestDTO
	if err := c.write(ctx, op, http.MethodPost, "/access/"+escape(ownerID)+"/requests", body, &out); err != nil {
		return accessgrants.Request{}, err
	}
	return out.domain(), nil
}

// ApproveRequest devuelve el request aprobado y el grant creado o extendido.
func (c *Client) ApproveRequest(ctx context.Context, requestID string) (accessgrants.Request, accessgrants.Grant, error) {
	var out approvalDTO
	if err := c.write(ctx, "approve request", http.MethodPost, "/access-requests/"+escape(requestID)+"/approve", nil, &out); err != nil {
		return accessgrants.Request{}, accessgrants.Grant{}, err
	}
	return out.Request.domain(), out.Grant.domain(), nil
}

func (c *Client) DenyRequest(ctx context.Context, requestID string) (accessgrants.Request, error) {
	return c.decide(ctx, "deny request", requestID, "deny")
}

func (c *Client) CancelRequest(ctx context.Context, requestID string) (accessgrants.Request, error) {
	return c.decide(ctx, "cancel request", requestID, "cancel")
}

func (c *Client) decide(ctx context.Context, op, requestID, action string) (accessgrants.Request, error) {
	var out requestDTO
	if err := c.write(ctx, op, http.MethodPost, "/access-requests/"+escape(requestID)+"/"+action, nil, &out); err != nil {
		return accessgrants.Request{}, err
	}
	return out.domain(), nil
}

func (c *Client) RevokeGrant(ctx context.Context, grantID string) (accessgrants.Grant, error) {
	var out grantDTO
	if err := c.write(ctx, "revoke grant", http.MethodPost, "/grants/"+escape(grantID)+"/revoke", nil, &out); err != nil {
		return accessgrants.Grant{}, err
	}
	return out.domain(), nil
}

// GrantAccess: el owner otorga sin request previo.
func (c *Client) GrantAccess(ctx context.Context, viewerID string, scope accessgrants.Scope, d accessgrants.Duration) (accessgrants.Grant, error) {
	const op = "grant access"
	if _, err := accessgrants.ParseDuration(string(d)); err != nil {
		return accessgrants.Grant{}, validation(op, err)
	}
	if _, err := accessgrants.ParseScope(string(scope)); err != nil {
		return accessgrants.Grant{}, validation(op, err)
	}
	body := map[string]string{"viewer_id": viewerID, "scope": string(scope), "duration": string(d)}
	var out grantDTO
	if err := c.write(ctx, op, http.MethodPost, "/access/grants", body, &out); err != nil {
		return accessgrants.Grant{}, err
	}
	return out.domain(), nil
}

func (c *Client) ListActiveGrants(ctx context.Context) ([]accessgrants.Grant, error) {
	var out []grantDTO
	if err := c.read(ctx, "list active grants", "/me/grants/active", &out); err != nil {
		return nil, err
	}
	return grantsFrom(out), nil
}

func (c *Client) ListReceivedGrants(ctx context.Context) ([]accessgrants.Grant, error) {
	var out []grantDTO
	if err := c.read(ctx, "list received grants", "/me/grants/received", &out); err != nil {
		return nil, err
	}
	return grantsFrom(out), nil
}

// ListPendingRequests: inbox del owner, más nuevo primero.
func (c *Client) ListPendingRequests(ctx context.Context) ([]accessgrants.Request, error) {
	return c.ListRequests(ctx, accessgrants.RequestPending)
}

// ListRequests filtra por status; vacío = todos.
func (c *Client) ListRequests(ctx context.Context, status accessgrants.RequestStatus) ([]accessgrants.Request, error) {
	path := "/me/access-requests"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var out []requestDTO
	if err := c.read(ctx, "list requests", path, &out); err != nil {
		return nil, err
	}
	return requestsFrom(out), nil
}

func (c *Client) ListOutgoingRequests(ctx context.Context) ([]accessgrants.Request, error) {
	var out []requestDTO
	if err := c.read(ctx, "list outgoing requests", "/me/access-requests/outgoing", &out); err != nil {
		return nil, err
	}
	return requestsFrom(out), nil
}
