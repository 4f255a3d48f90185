package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tripcrew/trip-planner/internal/model"
	"github.com/tripcrew/trip-planner/internal/store"
)

// ErrInvalidCredentials is returned when a login does not match.
var ErrInvalidCredentials = errors.New("invalid username or password")

// UserStore is the persistence the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

// AuthService registers users and issues bearer tokens.
type AuthService struct {
	users      UserStore
	secret     []byte
	expiration time.Duration
	cost       int
	now        func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(users UserStore, secret string, expiration time.Duration) *AuthService {
	return &AuthService{
		users:      users,
		secret:     []byte(secret),
		expiration: expiration,
		cost:       bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// Register creates a user and returns a token for it. A taken username
// surfaces as store.ErrDuplicate.
func (s *AuthService) Register(ctx context.Context, req *model.CredentialsRequest) (*model.TokenResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, model.NewValidationError("username", "username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, username, string(hash))
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login checks credentials and returns a token.
func (s *AuthService) Login(ctx context.Context, req *model.CredentialsRequest) (*model.TokenResponse, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*model.TokenResponse, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatInt(user.ID, 10),
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.expiration).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &model.TokenResponse{Token: token}, nil
}
