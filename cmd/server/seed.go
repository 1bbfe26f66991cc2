package main

import (
	"context"

	"hotelchat/internal/app/hotel"
	"hotelchat/internal/app/user"
	"hotelchat/internal/handler"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/logx"
)

const demoPassword = "demo-password"

var demoHotels = []hotel.CreateInput{
	{PlaceID: "ChIJ-demo-harbor", Name: "Harbor View Hotel", Address: "1 Quay Street"},
	{PlaceID: "ChIJ-demo-alpine", Name: "Alpine Lodge", Address: "12 Summit Road"},
	{PlaceID: "ChIJ-demo-garden", Name: "Garden Court Inn", Address: "7 Orchard Lane"},
}

// seedDemoData creates a demo operator, a demo guest and a few hotels. Existing records are kept.
func seedDemoData(ctx context.Context, deps *handler.AppDeps) error {
	operator, err := ensureAccount(ctx, deps.Users, user.RegisterInput{
		Username:     "concierge",
		Email:        "operator@hotelchat.local",
		Password:     demoPassword,
		FirstName:    "Demo",
		LastName:     "Operator",
		Role:         string(model.RoleOperator),
		OperatorCode: deps.Config.OperatorCode,
	})
	if err != nil {
		return err
	}

	if _, err := ensureAccount(ctx, deps.Users, user.RegisterInput{
		Username:  "traveller",
		Email:     "guest@hotelchat.local",
		Password:  demoPassword,
		FirstName: "Demo",
		LastName:  "Guest",
	}); err != nil {
		return err
	}

	for _, in := range demoHotels {
		if _, err := deps.Hotels.Create(ctx, operator, in); err != nil && !errs.Is(err, errs.ErrHotelExists) {
			return err
		}
	}

	logx.Info("Demo data ready.", "operator", "operator@hotelchat.local", "guest", "guest@hotelchat.local", "password", demoPassword)
	return nil
}

func ensureAccount(ctx context.Context, users *user.Service, in user.RegisterInput) (model.Identity, error) {
	identity, err := users.Register(ctx, in)
	if errs.Is(err, errs.ErrUserAlreadyExists) {
		return users.Login(ctx, in.Email, in.Password)
	}
	return identity, err
}
