// Package user registers bookstore customers and checks their credentials.
package user

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
	"github.com/ahinestrog/onlinebookstore/internal/domain"
	"github.com/ahinestrog/onlinebookstore/internal/events"
)

const minPasswordLen = 6

var validate = validator.New()

type Registration struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

type Profile struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

type Service struct {
	repo   Repository
	events events.Publisher
	cost   int
}

// NewService hashes passwords with bcrypt at cost, or bcrypt.DefaultCost when cost is 0.
func NewService(repo Repository, pub events.Publisher, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, events: pub, cost: cost}
}

func (p *Profile) normalize() error {
	p.UserName = strings.TrimSpace(p.UserName)
	p.Email = strings.TrimSpace(p.Email)
	p.FullName = strings.TrimSpace(p.FullName)
	if p.UserName == "" {
		return apperr.New(apperr.Invalid, "userName is required")
	}
	if err := validate.Var(p.Email, "required,email"); err != nil {
		return apperr.New(apperr.Invalid, "email is not valid")
	}
	return nil
}

func (s *Service) Register(ctx context.Context, in Registration) (*domain.User, error) {
	p := Profile{UserName: in.UserName, Email: in.Email, FullName: in.FullName}
	if err := p.normalize(); err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperr.New(apperr.Invalid, "password must have at least %d characters", minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		UserName:     p.UserName,
		Email:        p.Email,
		FullName:     p.FullName,
		PasswordHash: string(hash),
	}
	id, err := s.repo.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	u.ID = id
	log.Info().Int64("user_id", id).Str("user_name", u.UserName).Msg("user registered")
	events.Emit(ctx, s.events, events.UserCreated, events.UserCreatedEvent{
		UserID: id, UserName: u.UserName, Email: u.Email,
	})
	return u, nil
}

// Authenticate returns the user id for valid credentials. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, userName, password string) (int64, error) {
	u, err := s.repo.GetByUserName(ctx, strings.TrimSpace(userName))
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return 0, apperr.New(apperr.Unauthorized, "Invalid username or password.")
		}
		return 0, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return 0, apperr.New(apperr.Unauthorized, "Invalid username or password.")
	}
	return u.ID, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	return s.repo.List(ctx)
}

// Update changes the caller's own profile.
func (s *Service) Update(ctx context.Context, callerID, id int64, p Profile) error {
	if callerID != id {
		return apperr.New(apperr.Forbidden, "users can only modify their own account")
	}
	if err := p.normalize(); err != nil {
		return err
	}
	return s.repo.Update(ctx, &domain.User{ID: id, UserName: p.UserName, Email: p.Email, FullName: p.FullName})
}

// Delete removes the caller's own account. Books held in the cart go back
// to stock; past orders are kept.
func (s *Service) Delete(ctx context.Context, callerID, id int64) error {
	if callerID != id {
		return apperr.New(apperr.Forbidden, "users can only delete their own account")
	}
	released, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	log.Info().Int64("user_id", id).Int("released_units", released).Msg("user deleted")
	return nil
}
