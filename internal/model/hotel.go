package model

import "time"

// HotelStatus is the booking availability of a hotel.
type HotelStatus string

const (
	HotelAvailable   HotelStatus = "available"
	HotelUnavailable HotelStatus = "unavailable"
)

// HotelRef is the hotel snapshot embedded in chat rooms.
type HotelRef struct {
	PlaceID string `json:"placeId"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Hotel is a registered hotel and the operators that staff it.
type Hotel struct {
	PlaceID   string      `json:"placeId"`
	Name      string      `json:"name"`
	Address   string      `json:"address"`
	Status    HotelStatus `json:"status"`
	StaffIDs  []string    `json:"staffIds,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Ref returns the chat-room snapshot of the hotel.
func (h Hotel) Ref() HotelRef {
	return HotelRef{PlaceID: h.PlaceID, Name: h.Name, Address: h.Address}
}
