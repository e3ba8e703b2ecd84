package authguard

import (
	"context"
	"errors"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/inkpress/services/token"
	"github.com/tech-arch1tect/inkpress/services/user"
)

const (
	IdentityKey = "_auth_identity"
	ClaimsKey   = "_auth_claims"
)

var ErrNoDirectory = errors.New("no user directory configured")

// Identity is the authenticated caller of one request. The user record is
// loaded on first use and reused for the rest of the request.
type Identity struct {
	UserID   string
	Email    string
	DeviceID string
	JTI      string

	users user.Directory
	once  sync.Once
	user  *user.User
	err   error
}

func newIdentity(claims *token.Claims, users user.Directory) *Identity {
	return &Identity{
		UserID:   claims.UserID,
		Email:    claims.Email,
		DeviceID: claims.DeviceID,
		JTI:      claims.JTI(),
		users:    users,
	}
}

func (i *Identity) User(ctx context.Context) (*user.User, error) {
	i.once.Do(func() {
		if i.users == nil {
			i.err = ErrNoDirectory
			return
		}
		i.user, i.err = i.users.FindByID(ctx, i.UserID)
	})
	return i.user, i.err
}

func GetIdentity(c echo.Context) *Identity {
	if identity, ok := c.Get(IdentityKey).(*Identity); ok {
		return identity
	}
	return nil
}

func GetClaims(c echo.Context) *token.Claims {
	if claims, ok := c.Get(ClaimsKey).(*token.Claims); ok {
		return claims
	}
	return nil
}
