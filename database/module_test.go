package database

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"github.com/tech-arch1tect/inkpress/services/user"
	"github.com/tech-arch1tect/inkpress/testutils"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"gorm.io/gorm"
)

func TestProvideRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled returns no client", func(t *testing.T) {
		client, err := ProvideRedis(ctx, config.RedisConfig{Enabled: false}, nil)

		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("connects and pings", func(t *testing.T) {
		mr := miniredis.RunT(t)

		client, err := ProvideRedis(ctx, config.RedisConfig{Enabled: true, Addr: mr.Addr(), Timeout: time.Second}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
		assert.True(t, mr.Exists("k"))
	})

	t.Run("unreachable server fails", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		client, err := ProvideRedis(ctx, config.RedisConfig{Enabled: true, Addr: addr, Timeout: 200 * time.Millisecond}, nil)

		require.Error(t, err)
		assert.Nil(t, client)
	})
}

func TestModule(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testutils.GetTestConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()

	var (
		db     *gorm.DB
		client *redis.Client
	)

	app := fxtest.New(t,
		fx.Supply(cfg),
		fx.Supply(WithModels(&user.User{})),
		fx.Provide(func() *logging.Service { return nil }),
		Module,
		fx.Populate(&db, &client),
	)
	app.RequireStart()

	require.NotNil(t, db)
	require.NotNil(t, client)
	assert.True(t, db.Migrator().HasTable("blog_users"))

	app.RequireStop()

	assert.Error(t, client.Ping(context.Background()).Err())
}
