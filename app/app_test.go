package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/inkpress/api"
	"github.com/tech-arch1tect/inkpress/testutils"
	"go.uber.org/fx"
)

func serve(t *testing.T, app *App, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", testutils.TestUserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	app.Echo().ServeHTTP(rec, req)
	return rec
}

func TestApp_AuthFlow(t *testing.T) {
	mr, client := testutils.SetupTestRedis(t)

	app, err := NewApp().WithConfig(createTestConfig()).WithRedisClient(client).Build()
	require.NoError(t, err)

	rec := serve(t, app, http.MethodPost, api.AuthPrefix+"/register", api.RegisterRequest{
		Firstname:       testutils.TestFirstname,
		Email:           testutils.TestEmail,
		Password:        testutils.TestPasswords.Valid,
		ConfirmPassword: testutils.TestPasswords.Valid,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(t, app, http.MethodPost, api.AuthPrefix+"/login", api.LoginRequest{
		Email:    testutils.TestEmail,
		Password: testutils.TestPasswords.Valid,
		DeviceID: testutils.TestDeviceID,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refresh := rec.Header().Get(api.RefreshTokenHeader)
	require.NotEmpty(t, refresh)

	var login struct {
		Data api.LoginData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	access := login.Data.AccessToken.Token
	userID := login.Data.UserData.ID

	t.Run("session is cached in redis", func(t *testing.T) {
		key := fmt.Sprintf("session:%s:%s", userID, testutils.TestDeviceID)
		assert.True(t, mr.Exists(key))
		assert.Greater(t, mr.TTL(key), time.Duration(0))
	})

	t.Run("access token admits", func(t *testing.T) {
		rec := serve(t, app, http.MethodGet, api.AuthPrefix+"/me", nil, map[string]string{"Authorization": "Bearer " + access})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("refresh rotates and retires the old access token", func(t *testing.T) {
		rec := serve(t, app, http.MethodPost, api.AuthPrefix+"/refresh", nil, map[string]string{api.RefreshTokenHeader: refresh})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		old := serve(t, app, http.MethodGet, api.AuthPrefix+"/me", nil, map[string]string{"Authorization": "Bearer " + access})
		assert.Equal(t, http.StatusUnauthorized, old.Code)

		var refreshed struct {
			Data api.RefreshData `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
		access = refreshed.Data.AccessToken
	})

	t.Run("logout leaves a revoked cache entry", func(t *testing.T) {
		rec := serve(t, app, http.MethodPost, api.AuthPrefix+"/logout", nil, map[string]string{"Authorization": "Bearer " + access})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		key := fmt.Sprintf("session:%s:%s", userID, testutils.TestDeviceID)
		require.True(t, mr.Exists(key))
		assert.Equal(t, "true", mr.HGet(key, "isLoggedOut"))
		assert.Empty(t, mr.HGet(key, "jti"))

		me := serve(t, app, http.MethodGet, api.AuthPrefix+"/me", nil, map[string]string{"Authorization": "Bearer " + access})
		assert.Equal(t, http.StatusUnauthorized, me.Code)
	})
}

func TestApp_StartStop(t *testing.T) {
	app, err := NewApp().WithConfig(createTestConfig()).Build()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Start(ctx))

	var addr string
	require.Eventually(t, func() bool {
		if a := app.Echo().ListenerAddr(); a != nil {
			addr = a.String()
			return true
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + addr + api.HealthPath)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, app.Stop(ctx))
}

func TestApp_StartError(t *testing.T) {
	app := &App{fx: fx.New(
		fx.NopLogger,
		fx.Invoke(func(lc fx.Lifecycle) {
			lc.Append(fx.Hook{OnStart: func(context.Context) error { return assert.AnError }})
		}),
	)}

	err := app.Start(context.Background())

	assert.ErrorIs(t, err, assert.AnError)
}

func TestApp_Accessors(t *testing.T) {
	app := &App{}

	assert.Nil(t, app.Echo())
	assert.Nil(t, app.Server())
	assert.Nil(t, app.DB())
	assert.Nil(t, app.Sessions())
	assert.Nil(t, app.Logger())
	assert.Nil(t, app.Config())
}
