// Package gallery decide qué ve un viewer en la galería privada de un owner.
// Es una rama pura sobre el AccessState: no guarda estado ni llama a nadie.
package gallery

import (
	"time"

	"media-access/internal/domain/accessgrants"
)

type Mode string

const (
	// ModeContent: se muestra la galería (owner o grant activo).
	ModeContent Mode = "content"
	// ModeWaiting: hay un request pending; se ofrece cancelarlo.
	ModeWaiting Mode = "waiting"
	// ModeLocked: sin acceso; se ofrecen las tres duraciones para pedir.
	ModeLocked Mode = "locked"
)

// View es lo que el caller tiene que renderizar.
type View struct {
	Mode Mode

	// ModeContent
	Owner     bool
	Scope     accessgrants.Scope
	ExpiresAt *time.Time
	GrantID   string

	// ModeWaiting
	CancelRequestID string
	Requested       accessgrants.Duration

	// ModeLocked
	Options []accessgrants.Duration
}

// RequestOptions son las duraciones que se ofrecen en el estado locked, en orden de UI.
func RequestOptions() []accessgrants.Duration {
	return []accessgrants.Duration{
		accessgrants.Duration5m,
		accessgrants.Duration1h,
		accessgrants.DurationAlways,
	}
}

// Gate mapea el estado resuelto a una vista. El owner siempre ve su contenido
// sin consultar al resolver.
func Gate(viewerID, ownerID string, state accessgrants.AccessState) View {
	if viewerID != "" && viewerID == ownerID {
		return View{Mode: ModeContent, Owner: true, Scope: accessgrants.ScopeAll}
	}

	switch state.Kind {
	case accessgrants.StateActive:
		if state.Grant == nil {
			break
		}
		return View{
			Mode:      ModeContent,
			Scope:     state.Grant.Scope,
			ExpiresAt: state.Grant.ExpiresAt,
			GrantID:   state.Grant.ID,
		}
	case accessgrants.StatePending:
		if state.Request == nil {
			break
		}
		return View{
			Mode:            ModeWaiting,
			CancelRequestID: state.Request.ID,
			Requested:       state.Request.Duration,
		}
	}

	return View{Mode: ModeLocked, Options: RequestOptions()}
}

// Shows indica si un item privado del kind dado entra en la vista.
// Los items públicos no pasan por acá.
func (v View) Shows(kind string) bool {
	if v.Mode != ModeContent {
		return false
	}
	if v.Owner {
		return true
	}
	return v.Scope.Covers(kind)
}
