package media

import "context"

// OwnerOf expone el owner de un item.
// Se usa para evitar ciclos de imports entre módulos (media <-> shares).
func (s *Service) OwnerOf(ctx context.Context, mediaID string) (string, error) {
	m, err := s.repo.GetMedia(ctx, mediaID)
	if err != nil {
		return "", err
	}
	return m.OwnerID, nil
}

// Lookup devuelve los items pedidos en el mismo orden. Falla con ErrNotFound
// si alguno no existe.
func (s *Service) Lookup(ctx context.Context, ids []string) ([]Item, error) {
	found, err := s.repo.GetMediaMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Item, len(found))
	for _, m := range found {
		byID[m.ID] = m
	}

	out := make([]Item, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, ErrNotFound
		}
		out = append(out, m)
	}
	return out, nil
}
