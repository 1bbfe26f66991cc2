/*
Package memstore is an in-process implementation of the account, hotel, chat and favorite
repositories. It backs the development server (STORE_DRIVER=memory) and the service tests.

A single mutex guards all state, so every repository method is atomic with respect to the others.
*/
package memstore

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"hotelchat/internal/app/chat"
	"hotelchat/internal/app/user"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
)

type roomRecord struct {
	id           string
	placeID      string
	guestID      string
	participants []string
	messages     []model.Message
	status       model.RoomStatus
	createdAt    time.Time
	updatedAt    time.Time
}

// Store holds every record in memory.
type Store struct {
	mu sync.RWMutex

	accounts  map[string]user.Account // by id
	hotels    map[string]model.Hotel  // by place id
	rooms     map[string]*roomRecord  // by id
	openRooms map[[2]string]string    // (place id, guest id) → open room id
	favorites map[string]map[string]time.Time

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts:  make(map[string]user.Account),
		hotels:    make(map[string]model.Hotel),
		rooms:     make(map[string]*roomRecord),
		openRooms: make(map[[2]string]string),
		favorites: make(map[string]map[string]time.Time),
		now:       time.Now,
	}
}

// --- accounts ---

func (s *Store) CreateAccount(_ context.Context, acct user.Account) (model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Email, acct.Email) {
			e := errs.NewError(errs.ErrUserAlreadyExists)
			e.Fields = map[string]string{"email": "This email is already registered"}
			return model.Identity{}, e
		}
		if strings.EqualFold(existing.Username, acct.Username) {
			e := errs.NewError(errs.ErrUserAlreadyExists)
			e.Fields = map[string]string{"username": "This username is already taken"}
			return model.Identity{}, e
		}
	}

	s.accounts[acct.ID] = acct
	return acct.Identity, nil
}

func (s *Store) AccountByEmail(_ context.Context, email string) (user.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acct := range s.accounts {
		if strings.EqualFold(acct.Email, email) {
			return acct, nil
		}
	}
	return user.Account{}, errs.NewError(errs.ErrUserNotFound)
}

func (s *Store) IdentityByID(_ context.Context, id string) (model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return model.Identity{}, errs.NewError(errs.ErrUserNotFound)
	}
	return acct.Identity, nil
}

func (s *Store) updateAccount(id string, fn func(*model.Identity)) (model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return model.Identity{}, errs.NewError(errs.ErrUserNotFound)
	}
	fn(&acct.Identity)
	acct.Version++
	acct.UpdatedAt = s.now().UTC()
	s.accounts[id] = acct
	return acct.Identity, nil
}

func (s *Store) UpdateProfile(_ context.Context, id string, profile model.Profile) (model.Identity, error) {
	return s.updateAccount(id, func(i *model.Identity) { i.Profile = profile })
}

func (s *Store) UpdateAvatar(_ context.Context, id, avatarRef string) (model.Identity, error) {
	return s.updateAccount(id, func(i *model.Identity) { i.AvatarRef = avatarRef })
}

// --- hotels ---

func cloneHotel(h model.Hotel) model.Hotel {
	h.StaffIDs = slices.Clone(h.StaffIDs)
	return h
}

func (s *Store) HotelByPlaceID(_ context.Context, placeID string) (model.Hotel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.hotels[placeID]
	if !ok {
		return model.Hotel{}, errs.NewError(errs.ErrHotelNotFound)
	}
	return cloneHotel(h), nil
}

func (s *Store) CreateHotel(_ context.Context, h model.Hotel) (model.Hotel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.hotels[h.PlaceID]; exists {
		return model.Hotel{}, errs.NewError(errs.ErrHotelExists)
	}
	h = cloneHotel(h)
	s.hotels[h.PlaceID] = h
	return cloneHotel(h), nil
}

func (s *Store) DeleteHotel(_ context.Context, placeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.hotels[placeID]; !exists {
		return errs.NewError(errs.ErrHotelNotFound)
	}
	delete(s.hotels, placeID)
	return nil
}

func (s *Store) ListHotels(_ context.Context) ([]model.Hotel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Hotel, 0, len(s.hotels))
	for _, placeID := range slices.Sorted(maps.Keys(s.hotels)) {
		out = append(out, cloneHotel(s.hotels[placeID]))
	}
	return out, nil
}

func (s *Store) OperatorIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ops []model.Identity
	for _, acct := range s.accounts {
		if acct.Role == model.RoleOperator {
			ops = append(ops, acct.Identity)
		}
	}
	slices.SortFunc(ops, func(a, b model.Identity) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.ID
	}
	return ids, nil
}

// --- chat rooms ---

// view builds the public form of a room. Callers hold s.mu.
func (s *Store) view(rec *roomRecord, allMessages bool) model.ChatRoom {
	room := model.ChatRoom{
		ID:           rec.id,
		Status:       rec.status,
		CreatedAt:    rec.createdAt,
		UpdatedAt:    rec.updatedAt,
		Participants: make([]model.ParticipantRef, 0, len(rec.participants)),
		Messages:     []model.Message{},
	}

	if h, ok := s.hotels[rec.placeID]; ok {
		ref := h.Ref()
		room.Hotel = &ref
	}

	for _, id := range rec.participants {
		if acct, ok := s.accounts[id]; ok {
			room.Participants = append(room.Participants, acct.Ref())
		} else {
			room.Participants = append(room.Participants, model.ParticipantRef{ID: id})
		}
	}

	switch {
	case allMessages:
		room.Messages = slices.Clone(rec.messages)
	case len(rec.messages) > 0:
		room.Messages = []model.Message{rec.messages[len(rec.messages)-1]}
	}
	return room
}

func (s *Store) CreateRoomIfAbsent(_ context.Context, nr chat.NewRoom) (model.ChatRoom, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{nr.PlaceID, nr.GuestID}
	if id, ok := s.openRooms[key]; ok {
		return s.view(s.rooms[id], true), false, nil
	}

	participants := append([]string{nr.GuestID}, nr.StaffIDs...)
	rec := &roomRecord{
		id:           nr.ID,
		placeID:      nr.PlaceID,
		guestID:      nr.GuestID,
		participants: uniqueIDs(participants),
		status:       model.RoomOpen,
		createdAt:    nr.CreatedAt,
		updatedAt:    nr.CreatedAt,
	}
	s.rooms[rec.id] = rec
	s.openRooms[key] = rec.id

	return s.view(rec, true), true, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func (s *Store) openRoom(roomID string) (*roomRecord, error) {
	rec, ok := s.rooms[roomID]
	if !ok || rec.status != model.RoomOpen {
		return nil, errs.NewError(errs.ErrRoomNotFound)
	}
	return rec, nil
}

func (s *Store) RoomByID(_ context.Context, roomID string) (model.ChatRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.openRoom(roomID)
	if err != nil {
		return model.ChatRoom{}, err
	}
	return s.view(rec, true), nil
}

func (s *Store) InsertMessage(_ context.Context, nm chat.NewMessage) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.openRoom(nm.RoomID)
	if err != nil {
		return model.Message{}, err
	}

	ts := nm.Timestamp
	if ts.Before(rec.updatedAt) {
		ts = rec.updatedAt
	}

	msg := model.Message{
		ID:            nm.ID,
		ChatRoomID:    rec.id,
		SenderID:      nm.SenderID,
		Seq:           int64(len(rec.messages)) + 1,
		Content:       nm.Content,
		Timestamp:     ts,
		DeliveryState: model.DeliverySent,
	}
	rec.messages = append(rec.messages, msg)
	rec.updatedAt = ts

	if nm.JoinSender && !slices.Contains(rec.participants, nm.SenderID) {
		rec.participants = append(rec.participants, nm.SenderID)
	}
	return msg, nil
}

func (s *Store) CloseRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.openRoom(roomID)
	if err != nil {
		return err
	}
	rec.status = model.RoomClosed
	rec.updatedAt = s.now().UTC()
	delete(s.openRooms, [2]string{rec.placeID, rec.guestID})
	return nil
}

func (s *Store) ListRooms(_ context.Context, filter chat.RoomFilter) ([]model.ChatRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := []model.ChatRoom{}
	for _, rec := range s.rooms {
		if rec.status != model.RoomOpen {
			continue
		}
		if filter.ParticipantID != "" && !slices.Contains(rec.participants, filter.ParticipantID) {
			continue
		}
		rooms = append(rooms, s.view(rec, false))
	}
	model.SortRoomsByRecency(rooms)
	return rooms, nil
}

func (s *Store) MarkRead(_ context.Context, roomID, readerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.openRoom(roomID)
	if err != nil {
		return 0, err
	}

	var n int64
	for i := range rec.messages {
		m := &rec.messages[i]
		if m.SenderID != readerID && m.DeliveryState != model.DeliveryRead {
			m.DeliveryState = model.DeliveryRead
			n++
		}
	}
	return n, nil
}

// --- favorites ---

func (s *Store) AddFavorite(_ context.Context, guestID, placeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.favorites[guestID]
	if !ok {
		set = make(map[string]time.Time)
		s.favorites[guestID] = set
	}
	if _, exists := set[placeID]; !exists {
		set[placeID] = s.now().UTC()
	}
	return nil
}

func (s *Store) RemoveFavorite(_ context.Context, guestID, placeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.favorites[guestID], placeID)
	return nil
}

func (s *Store) ToggleFavorite(_ context.Context, guestID, placeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.favorites[guestID]
	if !ok {
		set = make(map[string]time.Time)
		s.favorites[guestID] = set
	}
	if _, exists := set[placeID]; exists {
		delete(set, placeID)
		return false, nil
	}
	set[placeID] = s.now().UTC()
	return true, nil
}

func (s *Store) IsFavorite(_ context.Context, guestID, placeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.favorites[guestID][placeID]
	return ok, nil
}

func (s *Store) ListFavorites(_ context.Context, guestID string) ([]model.Hotel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.favorites[guestID]
	placeIDs := slices.SortedFunc(maps.Keys(set), func(a, b string) int {
		if c := set[a].Compare(set[b]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	out := []model.Hotel{}
	for _, placeID := range placeIDs {
		if h, ok := s.hotels[placeID]; ok {
			out = append(out, cloneHotel(h))
		}
	}
	return out, nil
}
