// Package hotel resolves hotel references and the operators that staff them.
package hotel

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/logx"
	"hotelchat/internal/pkg/req"
)

// Repository persists hotels. HotelByPlaceID returns errs.ErrHotelNotFound for unknown places and
// CreateHotel returns errs.ErrHotelExists for duplicates.
type Repository interface {
	HotelByPlaceID(ctx context.Context, placeID string) (model.Hotel, error)
	CreateHotel(ctx context.Context, h model.Hotel) (model.Hotel, error)
	DeleteHotel(ctx context.Context, placeID string) error
	ListHotels(ctx context.Context) ([]model.Hotel, error)
	OperatorIDs(ctx context.Context) ([]string, error)
}

// CreateInput registers a hotel.
type CreateInput struct {
	PlaceID string `json:"placeId" validate:"required,max=200"`
	Name    string `json:"name" validate:"required,max=200"`
	Address string `json:"address" validate:"max=500"`

	// StaffIDs lists extra operators; the creating operator is always staff.
	StaffIDs []string `json:"staffIds,omitempty" validate:"max=50"`
}

// Registry is the hotel registry.
type Registry struct {
	repo   Repository
	now    func() time.Time
	logger zerolog.Logger
}

// NewRegistry returns a hotel registry backed by repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo, now: time.Now, logger: logx.Component("hotel")}
}

// Resolve looks up a hotel by its place id.
func (r *Registry) Resolve(ctx context.Context, placeID string) (model.Hotel, error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return model.Hotel{}, errs.NewError(errs.ErrHotelNotFound)
	}
	return r.repo.HotelByPlaceID(ctx, placeID)
}

// Staff returns the operators that answer inquiries for h. Assigned staff that are not operators
// (anymore) are skipped. A hotel without usable assigned staff is served by every operator; with
// no operators at all the hotel is unstaffed.
func (r *Registry) Staff(ctx context.Context, h model.Hotel) ([]string, error) {
	operators, err := r.repo.OperatorIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(operators) == 0 {
		r.logger.Warn().Str("place_id", h.PlaceID).Msg("Hotel has no operator to route inquiries to")
		return nil, errs.NewError(errs.ErrHotelUnstaffed)
	}

	staff := make([]string, 0, len(h.StaffIDs))
	for _, id := range h.StaffIDs {
		if slices.Contains(operators, id) && !slices.Contains(staff, id) {
			staff = append(staff, id)
		}
	}
	if len(staff) < len(h.StaffIDs) {
		r.logger.Warn().Str("place_id", h.PlaceID).Int("skipped", len(h.StaffIDs)-len(staff)).Msg("Hotel lists staff that are not operators")
	}
	if len(staff) == 0 {
		return operators, nil
	}
	return staff, nil
}

// Create registers a hotel on behalf of an operator.
func (r *Registry) Create(ctx context.Context, caller model.Identity, in CreateInput) (model.Hotel, error) {
	if caller.Role != model.RoleOperator {
		return model.Hotel{}, errs.NewError(errs.ErrForbidden)
	}

	in.PlaceID = strings.TrimSpace(in.PlaceID)
	in.Name = strings.TrimSpace(in.Name)
	if customErr := req.Validate(in); customErr != nil {
		return model.Hotel{}, customErr
	}

	staff, err := r.checkStaff(ctx, caller.ID, in.StaffIDs)
	if err != nil {
		return model.Hotel{}, err
	}

	h, err := r.repo.CreateHotel(ctx, model.Hotel{
		PlaceID:   in.PlaceID,
		Name:      in.Name,
		Address:   strings.TrimSpace(in.Address),
		Status:    model.HotelAvailable,
		StaffIDs:  staff,
		CreatedAt: r.now().UTC(),
	})
	if err != nil {
		return model.Hotel{}, err
	}

	r.logger.Info().Str("place_id", h.PlaceID).Str("operator_id", caller.ID).Msg("Hotel registered")
	return h, nil
}

// checkStaff returns the staff list of a new hotel: the creating operator followed by the
// requested ids. Every requested id must belong to an operator.
func (r *Registry) checkStaff(ctx context.Context, creatorID string, ids []string) ([]string, error) {
	operators, err := r.repo.OperatorIDs(ctx)
	if err != nil {
		return nil, err
	}

	staff := []string{creatorID}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(staff, id) {
			continue
		}
		if !slices.Contains(operators, id) {
			return nil, errs.Validation(map[string]string{"staffIds": "Staff must be existing operators: " + id})
		}
		staff = append(staff, id)
	}
	return staff, nil
}

// Delete removes a hotel. Rooms about it stay in the store and become orphaned.
func (r *Registry) Delete(ctx context.Context, caller model.Identity, placeID string) error {
	if caller.Role != model.RoleOperator {
		return errs.NewError(errs.ErrForbidden)
	}
	if err := r.repo.DeleteHotel(ctx, placeID); err != nil {
		return err
	}

	r.logger.Info().Str("place_id", placeID).Str("operator_id", caller.ID).Msg("Hotel deleted")
	return nil
}

// List returns every registered hotel.
func (r *Registry) List(ctx context.Context) ([]model.Hotel, error) {
	return r.repo.ListHotels(ctx)
}
