package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/kututa/railway-booking/internal/model"
	"github.com/kututa/railway-booking/internal/mpesa"
	"github.com/kututa/railway-booking/internal/repository"
)

// PassengerService manages the travellers registered by a user.
type PassengerService struct {
	st    Stores
	clock Clock
}

func NewPassengerService(st Stores, clk Clock) *PassengerService {
	return &PassengerService{st: st, clock: clk}
}

// CreatePassengerInput is a traveller's identity and contact details.
type CreatePassengerInput struct {
	UserID   string
	FullName string
	IDNumber string
	Phone    string
	Email    string
}

// Create registers a passenger for the user.  The phone number is stored
// in 254XXXXXXXXX form.
func (s *PassengerService) Create(ctx context.Context, in CreatePassengerInput) (model.Passenger, error) {
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return model.Passenger{}, &ValidationError{Field: "full_name", Message: "is required"}
	}
	idNumber := strings.TrimSpace(in.IDNumber)
	if idNumber == "" {
		return model.Passenger{}, &ValidationError{Field: "id_number", Message: "is required"}
	}
	phone, err := mpesa.NormalizePhone(in.Phone)
	if err != nil {
		return model.Passenger{}, &ValidationError{Field: "phone", Message: err.Error()}
	}
	p := model.Passenger{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		FullName:  name,
		IDNumber:  idNumber,
		Phone:     phone,
		CreatedAt: s.clock.Now(),
	}
	if e := strings.TrimSpace(in.Email); e != "" {
		p.Email = &e
	}
	if err := s.st.Passengers.Create(ctx, p); err != nil {
		return model.Passenger{}, upstream("create passenger", err)
	}
	return p, nil
}

// Get returns a passenger owned by userID.
func (s *PassengerService) Get(ctx context.Context, id, userID string) (model.Passenger, error) {
	p, err := s.st.Passengers.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && p.UserID != userID) {
		return model.Passenger{}, &NotFoundError{Resource: "passenger", ID: id}
	}
	if err != nil {
		return model.Passenger{}, upstream("get passenger", err)
	}
	return p, nil
}

// List returns the user's passengers.
func (s *PassengerService) List(ctx context.Context, userID string) ([]model.Passenger, error) {
	out, err := s.st.Passengers.ListByUser(ctx, userID)
	if err != nil {
		return nil, upstream("list passengers", err)
	}
	return out, nil
}
