package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"campusres/internal/domain"
	"campusres/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type UserService struct {
	repo   domain.UserRepository
	cost   int
	logger *zerolog.Logger
}

func NewUserService(repo domain.UserRepository, logger *zerolog.Logger) *UserService {
	return &UserService{repo: repo, cost: bcrypt.DefaultCost, logger: logger}
}

// AddUser validates u, hashes password into u.PasswordHash and stores it.
func (s *UserService) AddUser(ctx context.Context, u *models.User, password string) error {
	u.FullName = strings.TrimSpace(u.FullName)
	u.Email = strings.TrimSpace(u.Email)
	if u.FullName == "" {
		return &domain.FieldError{Field: "full_name", Reason: "is required"}
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return &domain.FieldError{Field: "email", Reason: "is not a valid address"}
	}
	if !u.Role.Valid() {
		return &domain.FieldError{Field: "role", Reason: "must be admin or requester"}
	}
	if password == "" {
		return &domain.FieldError{Field: "password", Reason: "is required"}
	}

	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash

	if err := s.repo.CreateUser(ctx, u); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", u.ID).Str("role", string(u.Role)).Msg("user created")
	return nil
}

// Authenticate returns the user for a matching email/password pair.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) Users(ctx context.Context) ([]models.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetUser(ctx, id)
}

// ByTelegramChat finds the account linked to a Telegram chat.
func (s *UserService) ByTelegramChat(ctx context.Context, chatID int64) (*models.User, error) {
	if chatID == 0 {
		return nil, domain.ErrNotFound
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].TelegramChatID == chatID {
			return &users[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// UserName returns the full name or "unknown".
func (s *UserService) UserName(ctx context.Context, id int64) string {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil || u.FullName == "" {
		return models.UnknownUserName
	}
	return u.FullName
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
