package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tech-arch1tect/inkpress/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound    = errors.New("session not found")
	ErrDeviceTaken = errors.New("device id already registered")
)

// Store persists sessions. Every mutation is keyed by (userID, deviceID) so
// one user can never touch another user's row.
type Store interface {
	FindByDeviceID(ctx context.Context, deviceID string) (*Session, error)
	FindByToken(ctx context.Context, jti, userID, deviceID string) (*Session, error)
	ListByUser(ctx context.Context, userID string) ([]Session, error)
	Create(ctx context.Context, s *Session) error
	Relogin(ctx context.Context, userID, deviceID, jti string, meta Metadata) (int64, error)
	RotateJTI(ctx context.Context, userID, deviceID, oldJTI, newJTI string, meta Metadata) (int64, error)
	MarkLoggedOut(ctx context.Context, userID, deviceID string) (int64, error)
	MarkAllLoggedOut(ctx context.Context, userID string) (int64, error)
}

type GormStore struct {
	db     *gorm.DB
	logger *logging.Service
	now    func() time.Time
}

func NewGormStore(db *gorm.DB, logger *logging.Service) *GormStore {
	return &GormStore{
		db:     db,
		logger: logger.Named("sessionstore"),
		now:    time.Now,
	}
}

func (s *GormStore) FindByDeviceID(ctx context.Context, deviceID string) (*Session, error) {
	var sess Session
	if err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&sess).Error; err != nil {
		return nil, s.notFound(err)
	}
	return &sess, nil
}

// FindByToken returns the session only when all three identifiers agree.
func (s *GormStore) FindByToken(ctx context.Context, jti, userID, deviceID string) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).
		Where("jti = ? AND user_id = ? AND device_id = ?", jti, userID, deviceID).
		First(&sess).Error
	if err != nil {
		return nil, s.notFound(err)
	}
	return &sess, nil
}

func (s *GormStore) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	var sessions []Session
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *GormStore) Create(ctx context.Context, sess *Session) error {
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDeviceTaken
		}
		s.logger.Error("failed to create session",
			zap.String("user_id", sess.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Debug("session created",
		zap.String("user_id", sess.UserID),
		zap.String("device_id", sess.DeviceID))
	return nil
}

// Relogin revives an existing row for a returning device with a fresh jti.
func (s *GormStore) Relogin(ctx context.Context, userID, deviceID, jti string, meta Metadata) (int64, error) {
	updates := s.metadataUpdates(meta)
	updates["jti"] = jti
	updates["is_logged_out"] = false

	result := s.db.WithContext(ctx).Model(&Session{}).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Updates(updates)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update session: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// RotateJTI is a compare-and-swap on the jti. Only the caller presenting the
// current jti of a live session gets a non-zero row count back.
func (s *GormStore) RotateJTI(ctx context.Context, userID, deviceID, oldJTI, newJTI string, meta Metadata) (int64, error) {
	updates := s.metadataUpdates(meta)
	updates["jti"] = newJTI

	result := s.db.WithContext(ctx).Model(&Session{}).
		Where("user_id = ? AND device_id = ? AND jti = ? AND is_logged_out = ?", userID, deviceID, oldJTI, false).
		Updates(updates)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to rotate session: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		s.logger.Warn("session rotation lost compare-and-swap",
			zap.String("user_id", userID),
			zap.String("device_id", deviceID),
			logging.ShortID(oldJTI))
	}
	return result.RowsAffected, nil
}

func (s *GormStore) MarkLoggedOut(ctx context.Context, userID, deviceID string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&Session{}).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Updates(map[string]any{"is_logged_out": true, "updated_at": s.now()})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to log out session: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) MarkAllLoggedOut(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&Session{}).
		Where("user_id = ? AND is_logged_out = ?", userID, false).
		Updates(map[string]any{"is_logged_out": true, "updated_at": s.now()})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to log out sessions: %w", result.Error)
	}

	s.logger.Info("all sessions logged out",
		zap.String("user_id", userID),
		zap.Int64("sessions", result.RowsAffected))
	return result.RowsAffected, nil
}

func (s *GormStore) metadataUpdates(meta Metadata) map[string]any {
	return map[string]any{
		"ip_address": meta.IPAddress,
		"location":   meta.Location,
		"device":     DescribeDevice(meta.UserAgent),
		"updated_at": s.now(),
	}
}

func (s *GormStore) notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to load session: %w", err)
}
