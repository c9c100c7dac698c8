package media

import "time"

// Kind del item. Coincide con lo que Scope.Covers espera.
type Kind string

const (
	KindPhoto Kind = "photo"
	KindVideo Kind = "video"
)

func ParseKind(raw string) (Kind, error) {
	switch k := Kind(raw); k {
	case KindPhoto, KindVideo:
		return k, nil
	default:
		return "", ErrInvalidInput
	}
}

// Item es una foto o video registrado por URL (el upload vive en otro lado).
type Item struct {
	ID      string
	OwnerID string

	Kind    Kind
	URL     string
	Caption string

	// Private: solo visible para el owner o con un grant activo que cubra el kind.
	Private bool

	CreatedAt time.Time
}
