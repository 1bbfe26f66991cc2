/*
Package user implements the account side of the identity service: registration with a role
intent, credential checks, role lookup and profile maintenance.

Passwords are stored as bcrypt hashes. Roles are assigned here and only here; a caller can ask
to become an operator by presenting the operator invitation code, and admin accounts are never
self-registered.
*/
package user

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/logx"
	"hotelchat/internal/pkg/randx"
	"hotelchat/internal/pkg/req"
)

// Account is an identity together with its credential.
type Account struct {
	model.Identity
	PasswordHash string
}

// Repository persists accounts. Implementations return errs.ErrUserAlreadyExists (with the
// offending field in Fields) on duplicates and errs.ErrUserNotFound for unknown accounts.
type Repository interface {
	CreateAccount(ctx context.Context, acct Account) (model.Identity, error)
	AccountByEmail(ctx context.Context, email string) (Account, error)
	IdentityByID(ctx context.Context, id string) (model.Identity, error)
	UpdateProfile(ctx context.Context, id string, profile model.Profile) (model.Identity, error)
	UpdateAvatar(ctx context.Context, id, avatarRef string) (model.Identity, error)
}

// RegisterInput is the registration request.
type RegisterInput struct {
	Username  string `json:"username" validate:"required,min=3,max=30"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	Bio       string `json:"bio,omitempty" validate:"max=500"`

	// Role is the requested role ("guest" or "operator"; legacy "user" means guest).
	Role string `json:"role,omitempty"`

	// IsOperator is the legacy form of Role=operator.
	IsOperator bool `json:"isOperator,omitempty"`

	// OperatorCode must match the configured invitation code when an operator role is requested.
	OperatorCode string `json:"operatorCode,omitempty"`
}

// ProfileInput is the profile update request.
type ProfileInput struct {
	FirstName string `json:"firstName" validate:"max=50"`
	LastName  string `json:"lastName" validate:"max=50"`
	Bio       string `json:"bio" validate:"max=500"`
	AvatarRef string `json:"avatarRef,omitempty" validate:"max=300"`
}

// Service is the account service.
type Service struct {
	repo         Repository
	operatorCode string
	now          func() time.Time
	logger       zerolog.Logger

	// dummyHash keeps login timing similar for unknown emails.
	dummyHash []byte
}

// NewService returns an account service. operatorCode gates operator registration.
func NewService(repo Repository, operatorCode string) *Service {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)

	return &Service{
		repo:         repo,
		operatorCode: operatorCode,
		now:          time.Now,
		logger:       logx.Component("user"),
		dummyHash:    dummy,
	}
}

// NormalizeEmail lower-cases and trims an email address; emails are unique case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// resolveRoleIntent turns the requested role into the role to assign, checking the operator code.
func (s *Service) resolveRoleIntent(in RegisterInput) (model.Role, *errs.CustomError) {
	role := model.RoleFromLegacy(in.IsOperator)

	if in.Role != "" {
		parsed, ok := model.ParseRole(in.Role)
		if !ok {
			return "", errs.Validation(map[string]string{"role": "Unknown role"})
		}
		role = parsed
	}

	switch role {
	case model.RoleAdmin:
		return "", errs.Validation(map[string]string{"role": "Admin accounts cannot be self-registered"})
	case model.RoleOperator:
		code := strings.TrimSpace(in.OperatorCode)
		if code == "" {
			return "", errs.Validation(map[string]string{"operatorCode": "Operator code is required"})
		}
		if subtle.ConstantTimeCompare([]byte(code), []byte(s.operatorCode)) != 1 {
			return "", errs.Validation(map[string]string{"operatorCode": "Invalid operator code"})
		}
	}

	return role, nil
}

// Register creates a new account and returns its identity.
func (s *Service) Register(ctx context.Context, in RegisterInput) (model.Identity, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if customErr := req.Validate(in); customErr != nil {
		return model.Identity{}, customErr
	}

	role, customErr := s.resolveRoleIntent(in)
	if customErr != nil {
		return model.Identity{}, customErr
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.Identity{}, errs.NewError(errs.ErrUnknown, err)
	}

	now := s.now().UTC()
	identity, err := s.repo.CreateAccount(ctx, Account{
		Identity: model.Identity{
			ID:       randx.NewID(),
			Email:    in.Email,
			Username: in.Username,
			Role:     role,
			Profile: model.Profile{
				FirstName: in.FirstName,
				LastName:  in.LastName,
				Bio:       strings.TrimSpace(in.Bio),
			},
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		},
		PasswordHash: string(hashedPassword),
	})
	if err != nil {
		if errs.Is(err, errs.ErrUserAlreadyExists) {
			s.logger.Warn().Str("email", in.Email).Msg("Registration conflict: account already exists")
		} else {
			s.logger.Error().Err(err).Msg("Failed to create account")
		}
		return model.Identity{}, err
	}

	s.logger.Info().Str("user_id", identity.ID).Str("role", string(identity.Role)).Msg("Account registered")
	return identity, nil
}

// Login checks the email/password pair and returns the identity.
func (s *Service) Login(ctx context.Context, email, password string) (model.Identity, error) {
	acct, err := s.repo.AccountByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errs.Is(err, errs.ErrUserNotFound) {
			return model.Identity{}, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.logger.Warn().Msg("Login rejected: unknown email")
		return model.Identity{}, errs.NewError(errs.ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn().Str("user_id", acct.ID).Msg("Login rejected: password mismatch")
		return model.Identity{}, errs.NewError(errs.ErrInvalidCredentials)
	}

	return acct.Identity, nil
}

// Identity returns the current identity record of id.
func (s *Service) Identity(ctx context.Context, id string) (model.Identity, error) {
	return s.repo.IdentityByID(ctx, id)
}

// UpdateProfile replaces the profile fields of id.
func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileInput) (model.Identity, error) {
	if customErr := req.Validate(in); customErr != nil {
		return model.Identity{}, customErr
	}

	return s.repo.UpdateProfile(ctx, id, model.Profile{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Bio:       strings.TrimSpace(in.Bio),
	})
}

// SetAvatar records avatarRef as the avatar object of id.
func (s *Service) SetAvatar(ctx context.Context, id, avatarRef string) (model.Identity, error) {
	return s.repo.UpdateAvatar(ctx, id, avatarRef)
}
