package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/inkpress/apperr"
	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/services/geo"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"github.com/tech-arch1tect/inkpress/services/metrics"
	"github.com/tech-arch1tect/inkpress/services/sessioncache"
	"github.com/tech-arch1tect/inkpress/services/sessionstore"
	"github.com/tech-arch1tect/inkpress/services/token"
	"github.com/tech-arch1tect/inkpress/services/user"
	"go.uber.org/zap"
)

var (
	ErrDeviceConflict   = errors.New("device is bound to another user")
	ErrRefreshRace      = errors.New("refresh token already redeemed")
	ErrSessionRevoked   = errors.New("session revoked or rotated")
	ErrMissingToken     = errors.New("refresh token missing")
	ErrConcurrentUpdate = errors.New("session changed during update")
)

const notifyTimeout = 30 * time.Second

// CredentialVerifier checks an email and password pair.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*user.User, error)
}

// LoginNotifier is told about sessions created for a device not seen before.
type LoginNotifier interface {
	NotifyNewDevice(ctx context.Context, notice NewDeviceNotice) error
}

type NewDeviceNotice struct {
	UserID    string
	Email     string
	Firstname string
	Device    string
	IPAddress string
	Location  string
	At        time.Time
}

type LoginRequest struct {
	Email     string
	Password  string
	DeviceID  string
	UserAgent string
	IPAddress string
}

type LoginParams struct {
	UserID    string
	Email     string
	Firstname string
	DeviceID  string
	UserAgent string
	IPAddress string
}

type RefreshRequest struct {
	RefreshToken string
	UserAgent    string
	IPAddress    string
}

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	JTI              string
}

type View struct {
	DeviceID    string    `json:"deviceId"`
	Device      string    `json:"device"`
	IPAddress   string    `json:"ipAddress"`
	Location    string    `json:"location"`
	IsLoggedOut bool      `json:"isLoggedOut"`
	Current     bool      `json:"current"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Manager is the only writer of session rows and cache entries.
type Manager struct {
	codec    *token.Codec
	store    sessionstore.Store
	cache    sessioncache.Cache
	geo      geo.Resolver
	verifier CredentialVerifier
	notifier LoginNotifier
	config   *config.SessionConfig
	logger   *logging.Service

	newJTI func() (string, error)
	now    func() time.Time

	pending sync.WaitGroup
}

type Dependencies struct {
	Codec    *token.Codec
	Store    sessionstore.Store
	Cache    sessioncache.Cache
	Geo      geo.Resolver
	Verifier CredentialVerifier
	Notifier LoginNotifier
}

func NewManager(deps Dependencies, cfg *config.SessionConfig, logger *logging.Service) *Manager {
	resolver := deps.Geo
	if resolver == nil {
		resolver = geo.StaticResolver{}
	}

	return &Manager{
		codec:    deps.Codec,
		store:    deps.Store,
		cache:    deps.Cache,
		geo:      resolver,
		verifier: deps.Verifier,
		notifier: deps.Notifier,
		config:   cfg,
		logger:   logger.Named("session"),
		newJTI:   newJTI,
		now:      time.Now,
	}
}

func newJTI() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Authenticate verifies credentials and signs the device in.
func (m *Manager) Authenticate(ctx context.Context, req LoginRequest) (*user.User, *TokenPair, error) {
	u, err := m.verifier.Verify(ctx, req.Email, req.Password)
	if err != nil {
		observe("login", err)
		return nil, nil, err
	}

	pair, err := m.Login(ctx, LoginParams{
		UserID:    u.ID,
		Email:     u.Email,
		Firstname: u.Firstname,
		DeviceID:  req.DeviceID,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

// Login binds the device to the user and issues a fresh token pair. A device
// already bound to another user is a conflict.
func (m *Manager) Login(ctx context.Context, p LoginParams) (pair *TokenPair, err error) {
	defer func() { observe("login", err) }()

	log := m.logger.With(zap.String("user_id", p.UserID), zap.String("device_id", p.DeviceID))

	location := m.geo.Resolve(ctx, p.IPAddress)

	jti, err := m.newJTI()
	if err != nil {
		return nil, apperr.Internal("failed to generate token id", err)
	}

	pair, err = m.issuePair(token.Claims{
		UserID:    p.UserID,
		Email:     p.Email,
		DeviceID:  p.DeviceID,
		UserAgent: p.UserAgent,
		IPAddress: p.IPAddress,
		Location:  location,
	}, jti)
	if err != nil {
		return nil, err
	}

	meta := sessionstore.Metadata{IPAddress: p.IPAddress, Location: location, UserAgent: p.UserAgent}

	existing, err := m.store.FindByDeviceID(ctx, p.DeviceID)
	if err != nil && !errors.Is(err, sessionstore.ErrNotFound) {
		return nil, apperr.Internal("failed to load session", err)
	}

	created := false
	createdAt := m.now()

	if existing == nil {
		sess := &sessionstore.Session{
			UserID:    p.UserID,
			DeviceID:  p.DeviceID,
			JTI:       jti,
			IPAddress: p.IPAddress,
			Location:  location,
			Device:    sessionstore.DescribeDevice(p.UserAgent),
		}
		err = m.store.Create(ctx, sess)
		switch {
		case err == nil:
			created = true
			createdAt = sess.CreatedAt
		case errors.Is(err, sessionstore.ErrDeviceTaken):
			// Another login for this device inserted first.
			existing, err = m.store.FindByDeviceID(ctx, p.DeviceID)
			if err != nil {
				return nil, apperr.Internal("failed to load session", err)
			}
		default:
			return nil, apperr.Internal("failed to create session", err)
		}
	}

	if existing != nil {
		if existing.UserID != p.UserID {
			log.Warn("login rejected: device bound to another user")
			return nil, apperr.Conflict("Device is already registered to another account", ErrDeviceConflict)
		}

		rows, err := m.store.Relogin(ctx, p.UserID, p.DeviceID, jti, meta)
		if err != nil {
			return nil, apperr.Internal("failed to update session", err)
		}
		if rows < 1 {
			log.Error("relogin updated no rows")
			return nil, apperr.Internal("failed to update session", ErrConcurrentUpdate)
		}
		createdAt = existing.CreatedAt
	}

	m.writeCache(ctx, p.UserID, p.DeviceID, sessioncache.Entry{
		JTI:       jti,
		IPAddress: p.IPAddress,
		Location:  location,
		CreatedAt: createdAt,
	}, m.cache.Replace)

	if created {
		m.notifyNewDevice(ctx, NewDeviceNotice{
			UserID:    p.UserID,
			Email:     p.Email,
			Firstname: p.Firstname,
			Device:    sessionstore.DescribeDevice(p.UserAgent),
			IPAddress: p.IPAddress,
			Location:  location,
			At:        createdAt,
		})
	}

	log.Info("login succeeded", zap.Bool("new_device", created), logging.ShortID(jti))
	return pair, nil
}

// Refresh redeems a refresh token for a new pair. Redemption advances the jti
// with a compare-and-swap, so each refresh token can be redeemed once.
func (m *Manager) Refresh(ctx context.Context, req RefreshRequest) (pair *TokenPair, err error) {
	defer func() { observe("refresh", err) }()

	if req.RefreshToken == "" {
		return nil, apperr.Unauthorized("Refresh token missing", ErrMissingToken)
	}

	claims, err := m.codec.Verify(req.RefreshToken, token.Refresh)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrTypeMismatch):
			return nil, apperr.Unauthorized("Only Refresh Token allowed", err)
		case errors.Is(err, token.ErrExpired):
			return nil, apperr.Unauthorized("Session has expired", err)
		default:
			return nil, apperr.Unauthorized("Invalid Refresh Token", err)
		}
	}
	if claims.TokenType != token.Refresh {
		return nil, apperr.Unauthorized("Only Refresh Token allowed", token.ErrTypeMismatch)
	}

	log := m.logger.With(
		zap.String("user_id", claims.UserID),
		zap.String("device_id", claims.DeviceID))

	sess, err := m.store.FindByToken(ctx, claims.JTI(), claims.UserID, claims.DeviceID)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			log.Warn("refresh rejected: no session for token")
			return nil, apperr.Unauthorized("Invalid session", ErrSessionRevoked)
		}
		return nil, apperr.Internal("failed to load session", err)
	}
	if sess.IsLoggedOut || sess.JTI != claims.JTI() {
		log.Warn("refresh rejected: session revoked", logging.ShortID(claims.JTI()))
		return nil, apperr.Unauthorized("Invalid session", ErrSessionRevoked)
	}

	userAgent := firstNonEmpty(req.UserAgent, claims.UserAgent)
	ipAddress := firstNonEmpty(req.IPAddress, claims.IPAddress)
	location := sess.Location
	if ipAddress != sess.IPAddress {
		location = m.geo.Resolve(ctx, ipAddress)
	}

	jti, err := m.newJTI()
	if err != nil {
		return nil, apperr.Internal("failed to generate token id", err)
	}

	rows, err := m.store.RotateJTI(ctx, claims.UserID, claims.DeviceID, claims.JTI(), jti, sessionstore.Metadata{
		IPAddress: ipAddress,
		Location:  location,
		UserAgent: userAgent,
	})
	if err != nil {
		return nil, apperr.Internal("failed to rotate session", err)
	}
	if rows < 1 {
		return nil, apperr.Unauthorized("Invalid session", ErrRefreshRace)
	}

	pair, err = m.issuePair(token.Claims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		DeviceID:  claims.DeviceID,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		Location:  location,
	}, jti)
	if err != nil {
		return nil, err
	}

	m.writeCache(ctx, claims.UserID, claims.DeviceID, sessioncache.Entry{
		JTI:       jti,
		IPAddress: ipAddress,
		Location:  location,
		CreatedAt: sess.CreatedAt,
	}, m.cache.Save)

	log.Info("session refreshed", logging.ShortID(jti))
	return pair, nil
}

func (m *Manager) Logout(ctx context.Context, userID, deviceID string) (err error) {
	defer func() { observe("logout", err) }()

	rows, err := m.store.MarkLoggedOut(ctx, userID, deviceID)
	if err != nil {
		return apperr.Internal("failed to log out", err)
	}

	if rows < 1 {
		return apperr.NotFound("Session not found", sessionstore.ErrNotFound)
	}

	m.revokeCache(ctx, userID, deviceID)

	m.logger.Info("logged out",
		zap.String("user_id", userID),
		zap.String("device_id", deviceID))
	return nil
}

// LogoutAll revokes every session of the user and returns how many were live.
func (m *Manager) LogoutAll(ctx context.Context, userID string) (revoked int64, err error) {
	defer func() { observe("logout_all", err) }()

	revoked, err = m.store.MarkAllLoggedOut(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("failed to log out sessions", err)
	}

	sessions, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		m.logger.Warn("failed to list sessions, dropping cached entries instead",
			zap.String("user_id", userID),
			zap.Error(err))
		if _, err := m.cache.DeleteAll(ctx, userID); err != nil {
			m.logger.Warn("failed to drop cached sessions",
				zap.String("user_id", userID),
				zap.Error(err))
		}
		return revoked, nil
	}
	for _, sess := range sessions {
		m.revokeCache(ctx, userID, sess.DeviceID)
	}

	return revoked, nil
}

// IsActive reports whether jti is the live token id of the (user, device)
// session. A cache entry that agrees admits directly when TrustCache is set;
// otherwise the store decides and the cache is repaired from it.
func (m *Manager) IsActive(ctx context.Context, userID, deviceID, jti string) (bool, error) {
	if m.config.TrustCache {
		entry, err := m.cache.Get(ctx, userID, deviceID)
		switch {
		case err == nil && !entry.IsLoggedOut && entry.JTI == jti:
			metrics.SessionCacheLookups.WithLabelValues("hit").Inc()
			return true, nil
		case err == nil:
			metrics.SessionCacheLookups.WithLabelValues("stale").Inc()
		case errors.Is(err, sessioncache.ErrMiss):
			metrics.SessionCacheLookups.WithLabelValues("miss").Inc()
		default:
			metrics.SessionCacheLookups.WithLabelValues("error").Inc()
			m.logger.Warn("session cache unavailable, using store", zap.Error(err))
		}
	}

	sess, err := m.store.FindByToken(ctx, jti, userID, deviceID)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if sess.IsLoggedOut {
		return false, nil
	}

	m.writeCache(ctx, userID, deviceID, sessioncache.Entry{
		JTI:       sess.JTI,
		IPAddress: sess.IPAddress,
		Location:  sess.Location,
		CreatedAt: sess.CreatedAt,
	}, m.cache.Save)
	return true, nil
}

func (m *Manager) ListSessions(ctx context.Context, userID, currentDeviceID string) ([]View, error) {
	sessions, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list sessions", err)
	}

	views := make([]View, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, View{
			DeviceID:    s.DeviceID,
			Device:      s.Device,
			IPAddress:   s.IPAddress,
			Location:    s.Location,
			IsLoggedOut: s.IsLoggedOut,
			Current:     s.DeviceID == currentDeviceID,
			CreatedAt:   s.CreatedAt,
			UpdatedAt:   s.UpdatedAt,
		})
	}
	return views, nil
}

// Wait blocks until in-flight new-device notifications finish or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// issuePair signs both tokens with the same jti and the same issue time.
func (m *Manager) issuePair(claims token.Claims, jti string) (*TokenPair, error) {
	issuedAt := m.now().Truncate(time.Second)
	claims.ID = jti
	claims.IssuedAt = jwt.NewNumericDate(issuedAt)

	access, err := m.codec.Issue(claims, token.Access)
	if err != nil {
		return nil, apperr.Internal("failed to issue access token", err)
	}
	refresh, err := m.codec.Issue(claims, token.Refresh)
	if err != nil {
		return nil, apperr.Internal("failed to issue refresh token", err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  issuedAt.Add(m.codec.TTL(token.Access)),
		RefreshExpiresAt: issuedAt.Add(m.codec.TTL(token.Refresh)),
		JTI:              jti,
	}, nil
}

type cacheWrite func(ctx context.Context, userID, deviceID string, entry sessioncache.Entry, ttl time.Duration) error

// writeCache stores entry and then re-reads the store. A logout or rotation
// that committed between the caller's store read and the write removes the
// entry again, so the cache never outlives the row it was copied from.
func (m *Manager) writeCache(ctx context.Context, userID, deviceID string, entry sessioncache.Entry, write cacheWrite) {
	log := m.logger.With(zap.String("user_id", userID), zap.String("device_id", deviceID))

	err := write(ctx, userID, deviceID, entry, m.codec.TTL(token.Refresh))
	switch {
	case errors.Is(err, sessioncache.ErrRevoked):
		log.Debug("cached session is revoked, not overwriting")
		return
	case err != nil:
		log.Warn("failed to cache session", zap.Error(err))
		return
	}

	ctx = context.WithoutCancel(ctx)
	sess, err := m.store.FindByToken(ctx, entry.JTI, userID, deviceID)
	if err == nil && !sess.IsLoggedOut {
		return
	}
	if err != nil && !errors.Is(err, sessionstore.ErrNotFound) {
		log.Warn("failed to confirm cached session", zap.Error(err))
	}
	if err := m.cache.Delete(ctx, userID, deviceID); err != nil {
		log.Warn("failed to drop unconfirmed cached session", zap.Error(err))
	}
}

// revokeCache leaves a logged-out entry behind so a concurrent refresh or
// read-repair cannot put the session back. It lives for one access TTL.
func (m *Manager) revokeCache(ctx context.Context, userID, deviceID string) {
	entry := sessioncache.Entry{IsLoggedOut: true, CreatedAt: m.now()}
	if err := m.cache.Replace(ctx, userID, deviceID, entry, m.codec.TTL(token.Access)); err != nil {
		m.logger.Warn("failed to revoke cached session",
			zap.String("user_id", userID),
			zap.String("device_id", deviceID),
			zap.Error(err))
	}
}

func (m *Manager) notifyNewDevice(ctx context.Context, notice NewDeviceNotice) {
	if m.notifier == nil || !m.config.NotifyNewDevice {
		return
	}

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()

		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		if err := m.notifier.NotifyNewDevice(notifyCtx, notice); err != nil {
			m.logger.Warn("new device notification failed",
				zap.String("user_id", notice.UserID),
				zap.Error(err))
		}
	}()
}

func observe(operation string, err error) {
	metrics.ObserveOperation(operation, err, err != nil && apperr.KindOf(err) != apperr.KindInternal)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
