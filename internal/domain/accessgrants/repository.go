package accessgrants

import (
	"context"
	"time"
)

// Repository es el Grant Store. Las implementaciones (memory, postgres, sqlite)
// devuelven ErrNotFound / ErrConflict de este paquete para que el service pueda distinguirlos
// de fallas de storage.
type Repository interface {
	// CreateRequest debe rechazar con ErrConflict un segundo pending para el mismo par.
	CreateRequest(ctx context.Context, r Request) error
	GetRequest(ctx context.Context, id string) (Request, error)
	LatestPendingRequest(ctx context.Context, requesterID, ownerID string) (Request, error)
	ListRequestsByOwner(ctx context.Context, ownerID string, status RequestStatus) ([]Request, error)
	ListRequestsByRequester(ctx context.Context, requesterID string) ([]Request, error)

	// ApproveRequest aplica PlanApproval dentro de una única transacción:
	// request -> approved y grant creado/extendido, o nada.
	ApproveRequest(ctx context.Context, requestID, newGrantID string, now time.Time) (ApprovalResult, error)
	// DecideRequest aplica PlanDecision con el request bloqueado: un deny/cancel nunca
	// pisa un approve concurrente.
	DecideRequest(ctx context.Context, requestID string, to RequestStatus, now time.Time) (Request, bool, error)

	CreateGrant(ctx context.Context, g Grant) error
	// GrantOrExtend busca el grant activo del par y aplica MergeGrant en la misma
	// transacción que ApproveRequest serializa, así nunca quedan dos activos por par.
	GrantOrExtend(ctx context.Context, proposed Grant, now time.Time) (Grant, bool, error)
	// RevokeGrant aplica PlanRevoke sobre la fila actual, no sobre una copia leída antes.
	RevokeGrant(ctx context.Context, grantID string, now time.Time) (Grant, bool, error)
	GetGrant(ctx context.Context, id string) (Grant, error)
	GetActiveGrant(ctx context.Context, viewerID, ownerID string, now time.Time) (Grant, error)
	ListGrantsByOwner(ctx context.Context, ownerID string) ([]Grant, error)
	ListGrantsByViewer(ctx context.Context, viewerID string) ([]Grant, error)
	// ListGrantsExpiredBetween: grants no revocados con from < expires_at <= to.
	ListGrantsExpiredBetween(ctx context.Context, from, to time.Time) ([]Grant, error)
}
