package accessgrants

import "time"

type StateKind string

const (
	StateNone    StateKind = "none"
	StatePending StateKind = "pending"
	StateActive  StateKind = "active"
)

// AccessState es el resultado del resolver para un par (viewer, owner).
// Exactamente uno de Request/Grant viene seteado según Kind.
type AccessState struct {
	Kind    StateKind
	Request *Request
	Grant   *Grant
}

func NoAccess() AccessState { return AccessState{Kind: StateNone} }

func Pending(r Request) AccessState { return AccessState{Kind: StatePending, Request: &r} }

func Active(g Grant) AccessState { return AccessState{Kind: StateActive, Grant: &g} }

// Allows indica si el estado habilita ver items del kind dado.
func (s AccessState) Allows(kind string, now time.Time) bool {
	if s.Kind != StateActive || s.Grant == nil {
		return false
	}
	return s.Grant.IsActive(now) && s.Grant.Scope.Covers(kind)
}
