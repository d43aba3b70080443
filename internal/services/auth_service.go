package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"sierraspos/internal/domain"
	applog "sierraspos/internal/log"
	"sierraspos/internal/repos"
	"sierraspos/internal/validate"
)

var ErrBadCreds = errors.New("invalid username or password")

type UserNotifier interface {
	Credentials(ctx context.Context, u domain.User, password string)
}

type AuthService struct {
	Users  *repos.UserRepo
	Notify UserNotifier
}

func NewAuthService(users *repos.UserRepo, n UserNotifier) *AuthService {
	return &AuthService{Users: users, Notify: n}
}

// Login checks the password and opens a session. The returned token goes
// in the Authorization header of later requests.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	u, err := s.Users.ByUsername(ctx, username)
	if err != nil {
		return "", nil, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return "", nil, ErrBadCreds
	}
	token := uuid.NewString()
	if err := s.Users.BindSession(ctx, token, u.ID); err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.Users.UnbindSession(ctx, token)
}

func (s *AuthService) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	return s.Users.SessionUser(ctx, token)
}

func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.Users.List(ctx)
}

func cleanUser(u domain.User) (domain.User, error) {
	var ok bool
	if u.Username, ok = validate.Username(u.Username); !ok {
		return u, fmt.Errorf("username: %w", domain.ErrInvalidInput)
	}
	if u.Email, ok = validate.Email(u.Email); !ok {
		return u, fmt.Errorf("email: %w", domain.ErrInvalidInput)
	}
	if u.Role == "" {
		u.Role = domain.RoleSeller
	}
	if !u.Role.Valid() {
		return u, fmt.Errorf("role %q: %w", u.Role, domain.ErrInvalidInput)
	}
	if u.Name, ok = validate.Name(u.Name); !ok {
		u.Name = u.Username
	}
	return u, nil
}

func hashPassword(pw string) (string, error) {
	if !validate.Password(pw) {
		return "", fmt.Errorf("password must be 8-64 chars with upper, lower and digit: %w", domain.ErrInvalidInput)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CreateUser stores a new account and mails its credentials when it has an email.
func (s *AuthService) CreateUser(ctx context.Context, u domain.User, password string) (*domain.User, error) {
	u, err := cleanUser(u)
	if err != nil {
		return nil, err
	}
	if u.Hash, err = hashPassword(password); err != nil {
		return nil, err
	}
	id, err := s.Users.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	created, err := s.Users.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applog.Audit(nil, "user.create", map[string]any{"user_id": id, "role": string(u.Role)})
	if s.Notify != nil {
		s.Notify.Credentials(ctx, *created, password)
	}
	return created, nil
}

// UpdateUser edits an account. An empty password keeps the current one.
func (s *AuthService) UpdateUser(ctx context.Context, u domain.User, password string) (*domain.User, error) {
	u, err := cleanUser(u)
	if err != nil {
		return nil, err
	}
	u.Hash = ""
	if password != "" {
		if u.Hash, err = hashPassword(password); err != nil {
			return nil, err
		}
	}
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, err
	}
	applog.Audit(nil, "user.update", map[string]any{"user_id": u.ID, "password_changed": password != ""})
	return s.Users.ByID(ctx, u.ID)
}

// DeleteUser removes an account. Users cannot delete themselves.
func (s *AuthService) DeleteUser(ctx context.Context, id int64, caller domain.Caller) error {
	if id == caller.UserID {
		return fmt.Errorf("cannot delete your own account: %w", domain.ErrPrecondition)
	}
	if err := s.Users.Delete(ctx, id); err != nil {
		return err
	}
	applog.Audit(nil, "user.delete", map[string]any{"user_id": id, "by": caller.Name})
	return nil
}
