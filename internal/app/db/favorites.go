package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"hotelchat/internal/model"
)

func (s *Store) AddFavorite(ctx context.Context, guestID, placeID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO favorites (guest_id, place_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, guestID, placeID)
	return internal(err)
}

func (s *Store) RemoveFavorite(ctx context.Context, guestID, placeID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM favorites WHERE guest_id = $1 AND place_id = $2`, guestID, placeID)
	return internal(err)
}

func (s *Store) ToggleFavorite(ctx context.Context, guestID, placeID string) (bool, error) {
	var added bool
	err := s.pool.QueryRow(ctx, `
		WITH removed AS (
		    DELETE FROM favorites WHERE guest_id = $1 AND place_id = $2 RETURNING 1
		), inserted AS (
		    INSERT INTO favorites (guest_id, place_id)
		    SELECT $1, $2 WHERE NOT EXISTS (SELECT 1 FROM removed)
		    ON CONFLICT DO NOTHING
		    RETURNING 1
		)
		SELECT EXISTS (SELECT 1 FROM inserted)`,
		guestID, placeID,
	).Scan(&added)
	if err != nil {
		return false, internal(err)
	}
	return added, nil
}

func (s *Store) IsFavorite(ctx context.Context, guestID, placeID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM favorites WHERE guest_id = $1 AND place_id = $2)`, guestID, placeID,
	).Scan(&ok)
	return ok, internal(err)
}

func (s *Store) ListFavorites(ctx context.Context, guestID string) ([]model.Hotel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT h.place_id, h.name, h.address, h.status, h.created_at
		FROM favorites f
		JOIN hotels h ON h.place_id = f.place_id
		WHERE f.guest_id = $1
		ORDER BY f.created_at, f.place_id`,
		guestID,
	)
	if err != nil {
		return nil, internal(err)
	}

	hotels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Hotel, error) {
		var (
			h      model.Hotel
			status string
		)
		err := row.Scan(&h.PlaceID, &h.Name, &h.Address, &status, &h.CreatedAt)
		h.Status = model.HotelStatus(status)
		return h, err
	})
	if err != nil {
		return nil, internal(err)
	}
	return hotels, nil
}
