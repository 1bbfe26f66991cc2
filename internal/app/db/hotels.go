package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
)

func (s *Store) HotelByPlaceID(ctx context.Context, placeID string) (model.Hotel, error) {
	var (
		h      model.Hotel
		status string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT h.place_id, h.name, h.address, h.status, h.created_at,
		       COALESCE(array_agg(st.user_id ORDER BY st.position) FILTER (WHERE st.user_id IS NOT NULL), '{}')
		FROM hotels h
		LEFT JOIN hotel_staff st ON st.place_id = h.place_id
		WHERE h.place_id = $1
		GROUP BY h.place_id`,
		placeID,
	).Scan(&h.PlaceID, &h.Name, &h.Address, &status, &h.CreatedAt, &h.StaffIDs)
	if IsNoRows(err) {
		return model.Hotel{}, errs.NewError(errs.ErrHotelNotFound)
	}
	if err != nil {
		return model.Hotel{}, internal(err)
	}
	h.Status = model.HotelStatus(status)
	return h, nil
}

func (s *Store) CreateHotel(ctx context.Context, h model.Hotel) (model.Hotel, error) {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO hotels (place_id, name, address, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
			h.PlaceID, h.Name, h.Address, string(h.Status), h.CreatedAt,
		)
		if _, dup := IsUniqueViolation(err); dup {
			return errs.NewError(errs.ErrHotelExists)
		}
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, id := range h.StaffIDs {
			batch.Queue(
				`INSERT INTO hotel_staff (place_id, user_id, position) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				h.PlaceID, id, i,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return model.Hotel{}, internal(err)
	}
	return h, nil
}

func (s *Store) DeleteHotel(ctx context.Context, placeID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM hotels WHERE place_id = $1`, placeID)
	if err != nil {
		return internal(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NewError(errs.ErrHotelNotFound)
	}
	return nil
}

func (s *Store) ListHotels(ctx context.Context) ([]model.Hotel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT h.place_id, h.name, h.address, h.status, h.created_at,
		       COALESCE(array_agg(st.user_id ORDER BY st.position) FILTER (WHERE st.user_id IS NOT NULL), '{}')
		FROM hotels h
		LEFT JOIN hotel_staff st ON st.place_id = h.place_id
		GROUP BY h.place_id
		ORDER BY h.place_id`)
	if err != nil {
		return nil, internal(err)
	}

	hotels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Hotel, error) {
		var (
			h      model.Hotel
			status string
		)
		err := row.Scan(&h.PlaceID, &h.Name, &h.Address, &status, &h.CreatedAt, &h.StaffIDs)
		h.Status = model.HotelStatus(status)
		return h, err
	})
	if err != nil {
		return nil, internal(err)
	}
	return hotels, nil
}

func (s *Store) OperatorIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM users WHERE role = 'operator' ORDER BY created_at, id`)
	if err != nil {
		return nil, internal(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, internal(err)
	}
	return ids, nil
}
