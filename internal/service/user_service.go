package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"direct-chat/internal/domain"
	"direct-chat/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordMismatch is returned when the confirmation does not match the password.
	ErrPasswordMismatch = errors.New("passwords don't match")
	// ErrUserAlreadyExists is returned when attempting to register with an existing username.
	ErrUserAlreadyExists = errors.New("username already exists")
	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

const minPasswordLength = 6

// ValidationError carries a client-facing reason for rejecting input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// SignupInput is the data a new user registers with.
type SignupInput struct {
	FullName        string
	Username        string
	Password        string
	ConfirmPassword string
	Gender          domain.Gender
}

// UserService describes user lifecycle operations.
type UserService interface {
	Signup(ctx context.Context, in SignupInput) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ListOthers(ctx context.Context, id int64) ([]domain.User, error)
}

type userService struct {
	users      repository.UserRepository
	avatarBase string
	cost       int
	dummyHash  []byte
}

func NewUserService(users repository.UserRepository, avatarBase string, bcryptCost int) (UserService, error) {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	// compared against when the username is unknown so both login failures cost the same
	dummy, err := bcrypt.GenerateFromPassword([]byte("direct-chat-dummy"), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &userService{
		users:      users,
		avatarBase: strings.TrimRight(strings.TrimSpace(avatarBase), "/"),
		cost:       bcryptCost,
		dummyHash:  dummy,
	}, nil
}

func (s *userService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Username = strings.TrimSpace(in.Username)

	switch {
	case in.FullName == "":
		return nil, invalid("full name is required")
	case in.Username == "":
		return nil, invalid("username is required")
	case in.Password == "":
		return nil, invalid("password is required")
	case !in.Gender.Valid():
		return nil, invalid("gender must be %q or %q", domain.GenderMale, domain.GenderFemale)
	}
	if in.Password != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	if len(in.Password) < minPasswordLength {
		return nil, invalid("password must be at least %d characters", minPasswordLength)
	}

	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     in.Username,
		FullName:     in.FullName,
		PasswordHash: string(hash),
		Gender:       in.Gender,
		ProfilePic:   s.avatarURL(in.Gender, in.Username),
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		// lost a race with a concurrent signup for the same name
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) avatarURL(gender domain.Gender, username string) string {
	kind := "girl"
	if gender == domain.GenderMale {
		kind = "boy"
	}
	return fmt.Sprintf("%s/%s?username=%s", s.avatarBase, kind, url.QueryEscape(username))
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) ListOthers(ctx context.Context, id int64) ([]domain.User, error) {
	users, err := s.users.ListExcept(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clean := *user
	clean.PasswordHash = ""
	return &clean
}
