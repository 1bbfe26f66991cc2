package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"hotelchat/internal/app/chat"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
)

// roomColumns selects a room and, through a left join, its hotel. A missing hotel yields NULLs.
const roomColumns = `r.id, r.status, r.created_at, r.updated_at, h.place_id, h.name, h.address`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanRoom(row pgx.Row) (model.ChatRoom, error) {
	var (
		room                   model.ChatRoom
		status                 string
		placeID, name, address *string
	)
	if err := row.Scan(&room.ID, &status, &room.CreatedAt, &room.UpdatedAt, &placeID, &name, &address); err != nil {
		return model.ChatRoom{}, err
	}
	room.Status = model.RoomStatus(status)
	if placeID != nil {
		room.Hotel = &model.HotelRef{PlaceID: *placeID, Name: deref(name), Address: deref(address)}
	}
	room.Participants = []model.ParticipantRef{}
	room.Messages = []model.Message{}
	return room, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func scanMessage(row pgx.CollectableRow) (model.Message, error) {
	var (
		m     model.Message
		state string
	)
	err := row.Scan(&m.ID, &m.ChatRoomID, &m.SenderID, &m.Seq, &m.Content, &state, &m.Timestamp)
	m.DeliveryState = model.DeliveryState(state)
	m.Timestamp = m.Timestamp.UTC()
	return m, err
}

// participantsOf loads the participants of the given rooms in join order.
func participantsOf(ctx context.Context, q querier, roomIDs []string) (map[string][]model.ParticipantRef, error) {
	rows, err := q.Query(ctx, `
		SELECT p.room_id, u.id, u.username, u.role, u.avatar_ref
		FROM chat_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.room_id = ANY($1)
		ORDER BY p.room_id, p.position`,
		roomIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]model.ParticipantRef, len(roomIDs))
	for rows.Next() {
		var (
			roomID string
			ref    model.ParticipantRef
			role   string
		)
		if err := rows.Scan(&roomID, &ref.ID, &ref.Username, &role, &ref.AvatarRef); err != nil {
			return nil, err
		}
		ref.Role = model.Role(role)
		out[roomID] = append(out[roomID], ref)
	}
	return out, rows.Err()
}

func (s *Store) CreateRoomIfAbsent(ctx context.Context, nr chat.NewRoom) (model.ChatRoom, bool, error) {
	var (
		roomID  string
		created bool
	)

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO chat_rooms (id, place_id, guest_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, 'open', $4, $4)
			ON CONFLICT (place_id, guest_id) WHERE status = 'open' DO NOTHING
			RETURNING id`,
			nr.ID, nr.PlaceID, nr.GuestID, nr.CreatedAt,
		).Scan(&roomID)

		if IsNoRows(err) {
			// Another request holds the open room for this pair.
			return tx.QueryRow(ctx,
				`SELECT id FROM chat_rooms WHERE place_id = $1 AND guest_id = $2 AND status = 'open'`,
				nr.PlaceID, nr.GuestID,
			).Scan(&roomID)
		}
		if err != nil {
			return err
		}
		created = true

		batch := &pgx.Batch{}
		batch.Queue(`INSERT INTO chat_participants (room_id, user_id, position) VALUES ($1, $2, 0)`, roomID, nr.GuestID)
		for i, id := range nr.StaffIDs {
			batch.Queue(
				`INSERT INTO chat_participants (room_id, user_id, position) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				roomID, id, i+1,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return model.ChatRoom{}, false, internal(err)
	}

	room, err := s.RoomByID(ctx, roomID)
	return room, created, err
}

func (s *Store) RoomByID(ctx context.Context, roomID string) (model.ChatRoom, error) {
	room, err := scanRoom(s.pool.QueryRow(ctx, `
		SELECT `+roomColumns+`
		FROM chat_rooms r
		LEFT JOIN hotels h ON h.place_id = r.place_id
		WHERE r.id = $1 AND r.status = 'open'`,
		roomID,
	))
	if IsNoRows(err) {
		return model.ChatRoom{}, errs.NewError(errs.ErrRoomNotFound)
	}
	if err != nil {
		return model.ChatRoom{}, internal(err)
	}

	participants, err := participantsOf(ctx, s.pool, []string{room.ID})
	if err != nil {
		return model.ChatRoom{}, internal(err)
	}
	room.Participants = append(room.Participants, participants[room.ID]...)

	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, sender_id, seq, content, delivery_state, created_at
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY created_at, seq`,
		room.ID,
	)
	if err != nil {
		return model.ChatRoom{}, internal(err)
	}
	messages, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return model.ChatRoom{}, internal(err)
	}
	room.Messages = append(room.Messages, messages...)

	return room, nil
}

func (s *Store) InsertMessage(ctx context.Context, nm chat.NewMessage) (model.Message, error) {
	msg := model.Message{
		ID:            nm.ID,
		ChatRoomID:    nm.RoomID,
		SenderID:      nm.SenderID,
		Content:       nm.Content,
		DeliveryState: model.DeliverySent,
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var (
			lastSeq int64
			last    time.Time
		)
		err := tx.QueryRow(ctx,
			`SELECT last_seq, updated_at FROM chat_rooms WHERE id = $1 AND status = 'open' FOR UPDATE`,
			nm.RoomID,
		).Scan(&lastSeq, &last)
		if IsNoRows(err) {
			return errs.NewError(errs.ErrRoomNotFound)
		}
		if err != nil {
			return err
		}

		msg.Seq = lastSeq + 1
		msg.Timestamp = nm.Timestamp
		if msg.Timestamp.Before(last) {
			msg.Timestamp = last
		}
		msg.Timestamp = msg.Timestamp.UTC()

		batch := &pgx.Batch{}
		if nm.JoinSender {
			batch.Queue(`
				INSERT INTO chat_participants (room_id, user_id, position)
				SELECT $1, $2, COALESCE(MAX(position), 0) + 1 FROM chat_participants WHERE room_id = $1
				ON CONFLICT DO NOTHING`,
				nm.RoomID, nm.SenderID,
			)
		}
		batch.Queue(`
			INSERT INTO chat_messages (id, room_id, sender_id, seq, content, delivery_state, created_at)
			VALUES ($1, $2, $3, $4, $5, 'sent', $6)`,
			msg.ID, msg.ChatRoomID, msg.SenderID, msg.Seq, msg.Content, msg.Timestamp,
		)
		batch.Queue(`UPDATE chat_rooms SET last_seq = $2, updated_at = $3 WHERE id = $1`,
			nm.RoomID, msg.Seq, msg.Timestamp)
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return model.Message{}, internal(err)
	}
	return msg, nil
}

func (s *Store) CloseRoom(ctx context.Context, roomID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chat_rooms SET status = 'closed', updated_at = now() WHERE id = $1 AND status = 'open'`, roomID)
	if err != nil {
		return internal(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NewError(errs.ErrRoomNotFound)
	}
	return nil
}

func (s *Store) ListRooms(ctx context.Context, filter chat.RoomFilter) ([]model.ChatRoom, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM chat_rooms r
		LEFT JOIN hotels h ON h.place_id = r.place_id
		WHERE r.status = 'open'`
	args := []any{}
	if filter.ParticipantID != "" {
		query += ` AND EXISTS (SELECT 1 FROM chat_participants p WHERE p.room_id = r.id AND p.user_id = $1)`
		args = append(args, filter.ParticipantID)
	}
	query += ` ORDER BY r.updated_at DESC, r.id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, internal(err)
	}
	rooms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ChatRoom, error) {
		return scanRoom(row)
	})
	if err != nil {
		return nil, internal(err)
	}
	if len(rooms) == 0 {
		return rooms, nil
	}

	ids := make([]string, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}

	participants, err := participantsOf(ctx, s.pool, ids)
	if err != nil {
		return nil, internal(err)
	}

	lastRows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (room_id) id, room_id, sender_id, seq, content, delivery_state, created_at
		FROM chat_messages
		WHERE room_id = ANY($1)
		ORDER BY room_id, created_at DESC, seq DESC`,
		ids,
	)
	if err != nil {
		return nil, internal(err)
	}
	lastMessages, err := pgx.CollectRows(lastRows, scanMessage)
	if err != nil {
		return nil, internal(err)
	}
	byRoom := make(map[string]model.Message, len(lastMessages))
	for _, m := range lastMessages {
		byRoom[m.ChatRoomID] = m
	}

	for i := range rooms {
		rooms[i].Participants = append(rooms[i].Participants, participants[rooms[i].ID]...)
		if m, ok := byRoom[rooms[i].ID]; ok {
			rooms[i].Messages = append(rooms[i].Messages, m)
		}
	}
	return rooms, nil
}

func (s *Store) MarkRead(ctx context.Context, roomID, readerID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE chat_messages
		SET delivery_state = 'read'
		WHERE room_id = $1 AND sender_id <> $2 AND delivery_state <> 'read'`,
		roomID, readerID,
	)
	if err != nil {
		return 0, internal(err)
	}
	return tag.RowsAffected(), nil
}
