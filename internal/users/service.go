package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/engine"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	// ErrUsernameTaken indicates another account already owns the username.
	ErrUsernameTaken = errors.New("users: username taken")
	// ErrInvalidCredentials indicates the username or password did not match.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrUserNotFound indicates no account exists for the id.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrInvalidAccount indicates registration input was unusable.
	ErrInvalidAccount = fmt.Errorf("users: invalid account: %w", engine.ErrInvalidInput)
)

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database     *gorm.DB
	Clock        func() time.Time
	IDProvider   engine.IDProvider
	PasswordCost int
	Logger       *zap.Logger
}

// Service manages user accounts and serves public profiles to the engine.
type Service struct {
	db           *gorm.DB
	now          func() time.Time
	idProvider   engine.IDProvider
	passwordCost int
	logger       *zap.Logger
	cache        sync.Map
	lookups      singleflight.Group
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("users: id provider required")
	}
	cost := cfg.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("users: password cost %d out of range", cost)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:           cfg.Database,
		now:          engine.ClockOrDefault(cfg.Clock),
		idProvider:   cfg.IDProvider,
		passwordCost: cost,
		logger:       logger,
	}, nil
}

// Register creates an account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Account, error) {
	username := NormalizeUsername(input.Username)
	if username == "" || input.Password == "" {
		return Account{}, ErrInvalidAccount
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&Account{}).Where("username = ?", username).Count(&existing).Error; err != nil {
		return Account{}, err
	}
	if existing > 0 {
		return Account{}, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.passwordCost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}
	userID, err := s.idProvider.NewID()
	if err != nil {
		return Account{}, fmt.Errorf("users: generate id: %w", err)
	}

	name := normalize(input.Name)
	if name == "" {
		name = username
	}
	now := s.now().UTC()
	account := Account{
		UserID:       userID,
		Username:     username,
		Email:        normalize(input.Email),
		PasswordHash: string(hash),
		Name:         name,
		Bio:          normalize(input.Bio),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if isUniqueViolation(err) {
			return Account{}, ErrUsernameTaken
		}
		return Account{}, err
	}

	s.logger.Info("account registered", zap.String("user_id", account.UserID), zap.String("username", username))
	s.cache.Store(account.UserID, account.Public())
	return account, nil
}

// Authenticate returns the account when password matches the stored hash.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("username = ?", NormalizeUsername(username)).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// FindByID loads an account by its id.
func (s *Service) FindByID(ctx context.Context, userID string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("user_id = ?", normalize(userID)).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrUserNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// UpdateProfile applies patch and refreshes the cached public profile.
func (s *Service) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (Account, error) {
	account, err := s.FindByID(ctx, userID)
	if err != nil {
		return Account{}, err
	}

	updates := map[string]interface{}{}
	if patch.Email != nil {
		account.Email = normalize(*patch.Email)
		updates["email"] = account.Email
	}
	if patch.Name != nil {
		account.Name = normalize(*patch.Name)
		if account.Name == "" {
			account.Name = account.Username
		}
		updates["display_name"] = account.Name
	}
	if patch.Bio != nil {
		account.Bio = normalize(*patch.Bio)
		updates["bio"] = account.Bio
	}
	if len(updates) == 0 {
		return account, nil
	}
	account.UpdatedAt = s.now().UTC()
	updates["updated_at"] = account.UpdatedAt

	if err := s.db.WithContext(ctx).Model(&Account{}).Where("user_id = ?", account.UserID).Updates(updates).Error; err != nil {
		return Account{}, err
	}
	s.cache.Store(account.UserID, account.Public())
	return account, nil
}

// PublicUserByID serves public profiles from cache, collapsing concurrent misses into one query.
func (s *Service) PublicUserByID(ctx context.Context, userID string) (engine.PublicUser, error) {
	if cached, ok := s.cache.Load(userID); ok {
		if profile, ok := cached.(engine.PublicUser); ok {
			return profile, nil
		}
	}

	value, err, _ := s.lookups.Do(userID, func() (interface{}, error) {
		account, err := s.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		profile := account.Public()
		s.cache.Store(userID, profile)
		return profile, nil
	})
	if err != nil {
		return engine.PublicUser{}, err
	}
	return value.(engine.PublicUser), nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
