package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"rendezvous/internal/geo"
	"rendezvous/internal/middleware"
	"rendezvous/internal/models"
	"rendezvous/internal/repository"
	"rendezvous/internal/validation"
)

// RegisterInput is a registration form.
type RegisterInput struct {
	Email           string
	Password        string
	PasswordConfirm string
	FirstName       string
	LastName        string
	Gender          models.Gender
	Address         string
	Avatar          []byte
}

// ListFilter narrows a user listing. A nil MaxDistance disables distance filtering.
type ListFilter struct {
	FirstName     string
	LastName      string
	Gender        models.Gender
	SortByRecency bool
	// MaxDistance keeps users strictly closer than this many meters.
	MaxDistance *float64
}

type UserService struct {
	userRepo       repository.UserRepository
	auth           *AuthService
	avatars        *AvatarService
	geocoder       geo.Geocoder
	defaultAddress string
}

func NewUserService(
	userRepo repository.UserRepository,
	auth *AuthService,
	avatars *AvatarService,
	geocoder geo.Geocoder,
	defaultAddress string,
) *UserService {
	return &UserService{
		userRepo:       userRepo,
		auth:           auth,
		avatars:        avatars,
		geocoder:       geocoder,
		defaultAddress: defaultAddress,
	}
}

// Register validates the form, stores the avatar, geocodes the address and
// creates the user. Geocoding problems leave the user without a position.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if err := validateRegistration(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("A user with this email already exists")
	}

	hash, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	avatar, err := s.avatars.Process(ctx, in.Email, in.Avatar)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:     in.Email,
		Password:  hash,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Gender:    in.Gender,
		Avatar:    avatar,
	}

	address := strings.TrimSpace(in.Address)
	if address == "" {
		address = s.defaultAddress
	}
	if p := s.locate(ctx, address); p != nil {
		user.SetPosition(p.Latitude, p.Longitude, true)
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		s.avatars.Remove(avatar)
		return nil, err
	}
	return user, nil
}

func validateRegistration(in RegisterInput) error {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return err
	}
	if err := validation.ValidateName("first_name", in.FirstName); err != nil {
		return err
	}
	if err := validation.ValidateName("last_name", in.LastName); err != nil {
		return err
	}
	if !in.Gender.Valid() {
		return errors.New("gender must be 'men' or 'women'")
	}
	if err := validation.ValidatePasswordConfirmation(in.Password, in.PasswordConfirm); err != nil {
		return err
	}
	return validation.ValidatePassword(in.Password)
}

func (s *UserService) locate(ctx context.Context, address string) *geo.Point {
	if s.geocoder == nil || address == "" {
		return nil
	}
	p, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "geocoding failed, registering without position",
			slog.String("address", address), slog.String("error", err.Error()))
		return nil
	}
	if p == nil {
		middleware.Logger.InfoContext(ctx, "address not found, registering without position",
			slog.String("address", address))
		return nil
	}
	if err := p.Validate(); err != nil {
		middleware.Logger.WarnContext(ctx, "geocoder returned an invalid position",
			slog.String("address", address), slog.String("error", err.Error()))
		return nil
	}
	return p
}

// GetUserByID returns a user by ID.
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// ListUsers returns the users other than requesterID that match f. An empty
// result is a NOT_FOUND error. Distance filtering needs the requester's position
// and skips candidates without one.
func (s *UserService) ListUsers(ctx context.Context, requesterID uint, f ListFilter) ([]models.User, error) {
	if f.Gender != "" && !f.Gender.Valid() {
		return nil, models.NewValidationError("gender must be 'men' or 'women'")
	}

	var origin *geo.Point
	if f.MaxDistance != nil {
		if math.IsNaN(*f.MaxDistance) || *f.MaxDistance < 0 {
			return nil, models.NewValidationError("distance must be a non-negative number of meters")
		}
		requester, err := s.userRepo.GetByID(ctx, requesterID)
		if err != nil {
			return nil, err
		}
		if !requester.HasPosition() {
			return nil, models.NewValidationError("Your position is unknown, so distance filtering is unavailable")
		}
		origin = &geo.Point{Latitude: *requester.Latitude, Longitude: *requester.Longitude}
	}

	users, err := s.userRepo.List(ctx, repository.UserFilter{
		FirstName:     f.FirstName,
		LastName:      f.LastName,
		Gender:        f.Gender,
		SortByRecency: f.SortByRecency,
		ExcludeID:     requesterID,
	})
	if err != nil {
		return nil, err
	}

	if origin != nil {
		users, err = withinDistance(users, *origin, *f.MaxDistance)
		if err != nil {
			return nil, err
		}
	}

	if len(users) == 0 {
		return nil, models.NewEmptyResultError("users")
	}
	return users, nil
}

// withinDistance keeps the users strictly closer than maxMeters to origin and
// records their distance. Order is preserved.
func withinDistance(users []models.User, origin geo.Point, maxMeters float64) ([]models.User, error) {
	out := users[:0]
	for _, u := range users {
		if !u.HasPosition() {
			continue
		}
		d, err := geo.Distance(origin, geo.Point{Latitude: *u.Latitude, Longitude: *u.Longitude})
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if d < maxMeters {
			u.Distance = &d
			out = append(out, u)
		}
	}
	return out, nil
}
