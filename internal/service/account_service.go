package service

import (
	"context"
	"errors"
	"fmt"

	"petstore-service/internal/docstore"
	"petstore-service/internal/models"
	"petstore-service/internal/store"
	"petstore-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAddressForbidden is returned when a user touches an address they do
// not own.
var ErrAddressForbidden = errors.New("address does not belong to this user")

// AccountService handles profiles and address books
type AccountService struct {
	store     *store.Store
	publisher Publisher
	logger    *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(store *store.Store, publisher Publisher) *AccountService {
	return &AccountService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// AddressRequest carries address form fields
type AddressRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone" binding:"required"`
	Line1 string `json:"line1" binding:"required"`
	Line2 string `json:"line2"`
	City  string `json:"city" binding:"required"`
	State string `json:"state" binding:"required"`
	Zip   string `json:"zip" binding:"required"`
}

// EnsureUser creates the profile record on first sight of an identity and
// returns it. First creation publishes UserRegistered for the welcome
// email.
func (s *AccountService) EnsureUser(ctx context.Context, id, email, displayName string) (*models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, err
	}

	user = &models.User{ID: id, Email: email, DisplayName: displayName}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, docstore.ErrExists) || errors.Is(err, docstore.ErrConflict) {
			return s.store.GetUser(ctx, id)
		}
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", id), zap.String("email", email))

	event := &models.UserRegisteredEvent{
		BaseEvent:   newBaseEvent(models.EventTypeUserRegistered),
		UserID:      id,
		Email:       email,
		DisplayName: displayName,
	}
	if err := s.publisher.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Error("Failed to publish UserRegistered event", zap.Error(err))
	}
	return user, nil
}

// UpdateProfile changes the display name on the profile record.
func (s *AccountService) UpdateProfile(ctx context.Context, userID, displayName string) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.DisplayName = displayName
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListAddresses retrieves the user's address book.
func (s *AccountService) ListAddresses(ctx context.Context, userID string) ([]models.Address, error) {
	return s.store.ListAddresses(ctx, userID)
}

// AddAddress inserts an address into the user's address book.
func (s *AccountService) AddAddress(ctx context.Context, userID string, req *AddressRequest) (*models.Address, error) {
	address := &models.Address{
		ID:     uuid.New().String(),
		UserID: userID,
		Name:   req.Name,
		Phone:  req.Phone,
		Line1:  req.Line1,
		Line2:  req.Line2,
		City:   req.City,
		State:  req.State,
		Zip:    req.Zip,
	}
	if err := s.store.CreateAddress(ctx, address); err != nil {
		return nil, err
	}
	return address, nil
}

// UpdateAddress overwrites an address the user owns.
func (s *AccountService) UpdateAddress(ctx context.Context, userID, addressID string, req *AddressRequest) (*models.Address, error) {
	address, err := s.ownedAddress(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}

	address.Name = req.Name
	address.Phone = req.Phone
	address.Line1 = req.Line1
	address.Line2 = req.Line2
	address.City = req.City
	address.State = req.State
	address.Zip = req.Zip

	if err := s.store.UpdateAddress(ctx, address); err != nil {
		return nil, err
	}
	return address, nil
}

// DeleteAddress removes an address the user owns.
func (s *AccountService) DeleteAddress(ctx context.Context, userID, addressID string) error {
	if _, err := s.ownedAddress(ctx, userID, addressID); err != nil {
		return err
	}
	return s.store.DeleteAddress(ctx, addressID)
}

func (s *AccountService) ownedAddress(ctx context.Context, userID, addressID string) (*models.Address, error) {
	address, err := s.store.GetAddress(ctx, addressID)
	if err != nil {
		return nil, err
	}
	if address.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrAddressForbidden, addressID)
	}
	return address, nil
}
