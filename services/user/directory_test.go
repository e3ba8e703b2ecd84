package user

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/inkpress/testutils"
)

func setupDirectory(t *testing.T) *GormDirectory {
	t.Helper()
	db := testutils.SetupTestDB(t, &User{})
	return NewGormDirectory(db, nil)
}

func TestGormDirectory_Create(t *testing.T) {
	dir := setupDirectory(t)
	ctx := context.Background()

	t.Run("assigns a v7 id and lower-cases the email", func(t *testing.T) {
		u := &User{Firstname: "Ada", Email: "  Ada@Example.COM ", Password: "hash"}

		require.NoError(t, dir.Create(ctx, u))

		parsed, err := uuid.Parse(u.ID)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
		assert.Equal(t, "ada@example.com", u.Email)
		assert.False(t, u.CreatedAt.IsZero())
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := dir.Create(ctx, &User{Firstname: "Other", Email: "ADA@example.com", Password: "hash"})

		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestGormDirectory_Lookups(t *testing.T) {
	dir := setupDirectory(t)
	ctx := context.Background()

	u := &User{Firstname: "Grace", Email: "grace@example.com", Password: "hash"}
	require.NoError(t, dir.Create(ctx, u))

	t.Run("find by id", func(t *testing.T) {
		found, err := dir.FindByID(ctx, u.ID)

		require.NoError(t, err)
		assert.Equal(t, "Grace", found.Firstname)
	})

	t.Run("find by email ignores case", func(t *testing.T) {
		found, err := dir.FindByEmail(ctx, "Grace@Example.com")

		require.NoError(t, err)
		assert.Equal(t, u.ID, found.ID)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := dir.FindByID(ctx, "missing")

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing email", func(t *testing.T) {
		_, err := dir.FindByEmail(ctx, "nobody@example.com")

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("exists by email", func(t *testing.T) {
		exists, err := dir.ExistsByEmail(ctx, "grace@example.com")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = dir.ExistsByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestUser_PasswordNeverSerialised(t *testing.T) {
	u := User{ID: "id", Email: "a@x.com", Password: "secret-hash"}

	data, err := json.Marshal(u)
	require.NoError(t, err)

	assert.Equal(t, "blog_users", u.TableName())
	assert.NotContains(t, string(data), "secret-hash")
}
