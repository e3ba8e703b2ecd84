package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"go.uber.org/zap"
)

type Type string

const (
	Access  Type = "access"
	Refresh Type = "refresh"
)

var (
	ErrMalformed    = errors.New("malformed token")
	ErrExpired      = errors.New("token has expired")
	ErrTypeMismatch = errors.New("token type mismatch")
	ErrUnknownType  = errors.New("unknown token type")
)

// Claims is the payload carried by both token types. The jti lives in
// RegisteredClaims.ID and is shared by the access and refresh token of one pair.
type Claims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	DeviceID  string `json:"deviceId"`
	TokenType Type   `json:"tokenType"`
	UserAgent string `json:"userAgent,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	Location  string `json:"location,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) JTI() string {
	return c.ID
}

type Codec struct {
	config *config.JWTConfig
	logger *logging.Service
	now    func() time.Time
}

func NewCodec(cfg *config.JWTConfig, logger *logging.Service) *Codec {
	return &Codec{
		config: cfg,
		logger: logger.Named("token"),
		now:    time.Now,
	}
}

func (c *Codec) TTL(typ Type) time.Duration {
	if typ == Refresh {
		return c.config.RefreshExpiry
	}
	return c.config.AccessExpiry
}

func (c *Codec) key(typ Type) ([]byte, error) {
	switch typ {
	case Access:
		return []byte(c.config.AccessSecret), nil
	case Refresh:
		return []byte(c.config.RefreshSecret), nil
	default:
		return nil, ErrUnknownType
	}
}

// Issue signs claims as a token of the given type. IssuedAt defaults to now and
// ExpiresAt is always IssuedAt plus the type's TTL.
func (c *Codec) Issue(claims Claims, typ Type) (string, error) {
	key, err := c.key(typ)
	if err != nil {
		return "", err
	}

	issuedAt := c.now()
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	claims.TokenType = typ
	claims.Subject = claims.UserID
	claims.Issuer = c.config.Issuer
	claims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(c.TTL(typ)))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		c.logger.Error("failed to sign token", zap.String("token_type", string(typ)), zap.Error(err))
		return "", fmt.Errorf("failed to sign %s token: %w", typ, err)
	}

	return signed, nil
}

// Verify checks the signature with the key of the token's declared type, then
// requires that type to match the expected one.
func (c *Codec) Verify(tokenString string, expected Type) (*Claims, error) {
	claims := &Claims{}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	}
	if c.config.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(c.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		declared, ok := t.Claims.(*Claims)
		if !ok {
			return nil, ErrMalformed
		}
		return c.key(declared.TokenType)
	}, parserOpts...)

	if err != nil {
		c.logger.Debug("token verification failed", zap.String("expected_type", string(expected)), zap.Error(err))

		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	if !token.Valid {
		return nil, ErrMalformed
	}

	if claims.TokenType != expected {
		c.logger.Warn("token type mismatch",
			zap.String("expected_type", string(expected)),
			zap.String("token_type", string(claims.TokenType)))
		return nil, ErrTypeMismatch
	}

	return claims, nil
}
