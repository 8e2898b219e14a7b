package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/pkg"
	"Forecast_Hub/internal/pkg/errs"
	"Forecast_Hub/internal/repository/redis"
	"Forecast_Hub/internal/repository/sqldb"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInactiveUser       = errors.New("user account is disabled")
	ErrSessionReplaced    = errors.New("account has been logged in elsewhere")
)

type UserService struct {
	repo   *sqldb.UserRepository
	tokens *redis.TokenRepository
	jwt    *pkg.JWTManager
}

func NewUserService(db *gorm.DB, tokens *redis.TokenRepository, jwt *pkg.JWTManager) *UserService {
	return &UserService{
		repo:   &sqldb.UserRepository{DB: db},
		tokens: tokens,
		jwt:    jwt,
	}
}

func (s *UserService) Register(ctx context.Context, username, password, email string) (*model.User, error) {
	fields := map[string]string{}
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		fields["username"] = "must be between 3 and 32 characters"
	}
	if len(password) < 8 {
		fields["password"] = "must be at least 8 characters"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = "invalid e-mail address"
	}
	if len(fields) > 0 {
		return nil, errs.FieldErrors(fields)
	}

	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return nil, errs.FieldErrors(map[string]string{"username": "already taken"})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if _, err := s.repo.FindByUsername(ctx, email); err == nil {
		return nil, errs.FieldErrors(map[string]string{"email": "already registered"})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username: username,
		Password: string(hash),
		Email:    email,
		IsActive: true,
	}
	if err = s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *UserService) Login(ctx context.Context, login, password string) (*pkg.Pair, error) {
	user, err := s.repo.FindByUsername(ctx, login)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return s.issue(ctx, user.ID)
}

func (s *UserService) issue(ctx context.Context, userID uint64) (*pkg.Pair, error) {
	pair, err := s.jwt.GeneratePair(userID)
	if err != nil {
		return nil, err
	}
	if err = s.tokens.AddUserToken(ctx, userID, pair.AccessToken); err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *UserService) Logout(ctx context.Context, userID uint64) error {
	return s.tokens.DeleteUserToken(ctx, userID)
}

func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	userID, pair, err := s.jwt.Refresh(refreshToken)
	if err != nil {
		return nil, err
	}
	if err = s.tokens.AddUserToken(ctx, userID, pair.AccessToken); err != nil {
		return nil, err
	}
	return pair, nil
}

// Authenticate resolves a bearer access token into an active user.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*model.User, error) {
	claims, err := s.jwt.ParseAccess(accessToken)
	if err != nil {
		return nil, err
	}
	if s.tokens.Enabled() {
		current, err := s.tokens.GetUserToken(ctx, claims.UserID)
		if err != nil || current != accessToken {
			return nil, ErrSessionReplaced
		}
		if err = s.tokens.ExtendUserToken(ctx, claims.UserID); err != nil {
			logrus.WithError(err).WithField("user_id", claims.UserID).Warn("extend token ttl")
		}
	}
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		return errs.FieldErrors(map[string]string{"old_password": "is incorrect"})
	}
	if len(newPassword) < 8 {
		return errs.FieldErrors(map[string]string{"new_password": "must be at least 8 characters"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err = s.repo.UpdatePassword(ctx, user, string(hash)); err != nil {
		return err
	}
	return s.Logout(ctx, userID)
}

func (s *UserService) Get(ctx context.Context, id uint64) (*model.User, error) {
	return s.repo.FindByID(ctx, id)
}
