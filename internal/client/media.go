package client

import (
	"context"
	"net/http"

	"media-access/internal/domain/media"
	"media-access/internal/gallery"
)

func (c *Client) RegisterMedia(ctx context.Context, kind media.Kind, url, caption string, private bool) (media.Item, error) {
	const op = "register media"
	if _, err := media.ParseKind(string(kind)); err != nil {
		return media.Item{}, validation(op, err)
	}
	body := map[string]any{"kind": kind, "url": url, "caption": caption, "private": private}
	var out mediaDTO
	if err := c.write(ctx, op, http.MethodPost, "/media", body, &out); err != nil {
		return media.Item{}, err
	}
	return out.domain(), nil
}

func (c *Client) ListMyMedia(ctx context.Context) ([]media.Item, error) {
	var out []mediaDTO
	if err := c.read(ctx, "list my media", "/me/media", &out); err != nil {
		return nil, err
	}
	return mediaFrom(out), nil
}

// GetMedia abre un item suelto; el servidor aplica el gate (grant o share activo).
func (c *Client) GetMedia(ctx context.Context, mediaID string) (media.Item, error) {
	var out mediaDTO
	if err := c.read(ctx, "get media", "/media/"+escape(mediaID), &out); err != nil {
		return media.Item{}, err
	}
	return out.domain(), nil
}

type GalleryPage struct {
	View  gallery.View
	Items []media.Item
}

// Gallery trae la galería de ownerID ya filtrada por el servidor.
func (c *Client) Gallery(ctx context.Context, ownerID string) (GalleryPage, error) {
	var out galleryDTO
	if err := c.read(ctx, "gallery", "/users/"+escape(ownerID)+"/media", &out); err != nil {
		return GalleryPage{}, err
	}
	return GalleryPage{View: out.View.domain(), Items: mediaFrom(out.Items)}, nil
}
