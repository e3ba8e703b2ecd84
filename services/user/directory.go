package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tech-arch1tect/inkpress/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

type Directory interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u *User) error
}

type GormDirectory struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewGormDirectory(db *gorm.DB, logger *logging.Service) *GormDirectory {
	return &GormDirectory{db: db, logger: logger.Named("user")}
}

// NormalizeEmail is applied on every write and lookup so addresses compare case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d *GormDirectory) FindByID(ctx context.Context, id string) (*User, error) {
	var u User
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

func (d *GormDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := d.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

func (d *GormDirectory) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&User{}).Where("email = ?", NormalizeEmail(email)).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

func (d *GormDirectory) Create(ctx context.Context, u *User) error {
	u.Email = NormalizeEmail(u.Email)

	if err := d.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		d.logger.Error("failed to create user", zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	d.logger.Info("user created", zap.String("user_id", u.ID))
	return nil
}
