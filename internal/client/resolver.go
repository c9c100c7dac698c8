package client

import (
	"context"
	"fmt"

	"media-access/internal/domain/accessgrants"
	"media-access/internal/gallery"
)

// ResolveAccess devuelve el estado del usuario autenticado contra ownerID, o el
// error. Para la UI usar Resolve.
func (c *Client) ResolveAccess(ctx context.Context, ownerID string) (accessgrants.AccessState, error) {
	const op = "resolve access"
	var out stateDTO
	if err := c.read(ctx, op, "/access/"+escape(ownerID), &out); err != nil {
		return accessgrants.NoAccess(), err
	}
	state, ok := out.domain()
	if !ok {
		return accessgrants.NoAccess(), &APIError{Op: op, Status: 200, kind: ErrTransient, cause: fmt.Errorf("malformed state %q", out.State)}
	}
	return state, nil
}

// Resolve falla cerrado: cualquier error se loguea y se resuelve como none.
// Nunca devuelve active si no pudo confirmarlo.
func (c *Client) Resolve(ctx context.Context, ownerID string) accessgrants.AccessState {
	state, err := c.ResolveAccess(ctx, ownerID)
	if err != nil {
		c.log.Warn("client: resolve failed, treating as none", map[string]any{
			"owner_id": ownerID,
			"err":      err.Error(),
		})
		return accessgrants.NoAccess()
	}
	return state
}

// Gate resuelve (salvo que viewer sea el owner) y arma la vista de galería.
func (c *Client) Gate(ctx context.Context, viewerID, ownerID string) gallery.View {
	if viewerID != "" && viewerID == ownerID {
		return gallery.Gate(viewerID, ownerID, accessgrants.NoAccess())
	}
	return gallery.Gate(viewerID, ownerID, c.Resolve(ctx, ownerID))
}
