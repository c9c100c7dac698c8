package client

import (
	"context"
	"fmt"
	"net/http"

	"media-access/internal/domain/accessgrants"
	"media-access/internal/domain/shares"
)

// ShareItem es un item seleccionado con su kind ("photo" | "video"), que el
// cliente necesita para chequear los topes antes de llamar.
type ShareItem struct {
	MediaID string
	Kind    string
}

type DirectShareInput struct {
	TargetID string
	Kind     shares.Kind
	Scope    accessgrants.Scope
	Duration accessgrants.Duration
	Items    []ShareItem
	Message  string
}

// CreateDirectShare valida topes (12 fotos, 3 videos, sin repetidos) antes de
// cualquier llamada; si no pasan no sale nada a la red.
func (c *Client) CreateDirectShare(ctx context.Context, in DirectShareInput) (shares.Share, error) {
	const op = "create share"

	ids := make([]string, 0, len(in.Items))
	kinds := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.MediaID)
		kinds = append(kinds, it.Kind)
	}
	if err := shares.CheckCaps(ids, kinds); err != nil {
		return shares.Share{}, validation(op, err)
	}
	if _, err := accessgrants.ParseDuration(string(in.Duration)); err != nil {
		return shares.Share{}, validation(op, err)
	}
	if _, err := shares.ParseKind(string(in.Kind)); err != nil {
		return shares.Share{}, validation(op, err)
	}
	scope, err := accessgrants.ParseScope(string(in.Scope))
	if err != nil {
		return shares.Share{}, validation(op, err)
	}
	for _, k := range kinds {
		if !scope.Covers(k) {
			return shares.Share{}, validation(op, fmt.Errorf("%w: %s not covered by scope %s", accessgrants.ErrInvalidInput, k, scope))
		}
	}

	body := map[string]any{
		"target_id": in.TargetID,
		"kind":      in.Kind,
		"scope":     in.Scope,
		"duration":  in.Duration,
		"media_ids": ids,
		"message":   in.Message,
	}
	var out shareDTO
	if err := c.write(ctx, op, http.MethodPost, "/shares", body, &out); err != nil {
		return shares.Share{}, err
	}
	return out.domain(), nil
}

func (c *Client) GetShare(ctx context.Context, shareID string) (shares.Share, error) {
	var out shareDTO
	if err := c.read(ctx, "get share", "/shares/"+escape(shareID), &out); err != nil {
		return shares.Share{}, err
	}
	return out.domain(), nil
}

func (c *Client) RevokeShare(ctx context.Context, shareID string) (shares.Share, error) {
	var out shareDTO
	if err := c.write(ctx, "revoke share", http.MethodPost, "/shares/"+escape(shareID)+"/revoke", nil, &out); err != nil {
		return shares.Share{}, err
	}
	return out.domain(), nil
}

func (c *Client) ListReceivedShares(ctx context.Context) ([]shares.Share, error) {
	var out []shareDTO
	if err := c.read(ctx, "list received shares", "/me/shares/received", &out); err != nil {
		return nil, err
	}
	return sharesFrom(out), nil
}

func (c *Client) ListSentShares(ctx context.Context) ([]shares.Share, error) {
	var out []shareDTO
	if err := c.read(ctx, "list sent shares", "/me/shares/sent", &out); err != nil {
		return nil, err
	}
	return sharesFrom(out), nil
}
