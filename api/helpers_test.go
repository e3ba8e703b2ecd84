package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/middleware/ratelimit"
	"github.com/tech-arch1tect/inkpress/server"
	"github.com/tech-arch1tect/inkpress/services/auth"
	"github.com/tech-arch1tect/inkpress/services/session"
	"github.com/tech-arch1tect/inkpress/services/sessioncache"
	"github.com/tech-arch1tect/inkpress/services/sessionstore"
	"github.com/tech-arch1tect/inkpress/services/token"
	"github.com/tech-arch1tect/inkpress/services/user"
	"github.com/tech-arch1tect/inkpress/testutils"
)

type testAPI struct {
	t      *testing.T
	srv    *server.Server
	codec  *token.Codec
	auth   *auth.Service
	config *config.Config
}

type envelope struct {
	Message string          `json:"message"`
	Status  int             `json:"status"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
}

func newTestAPI(t *testing.T, mutate ...func(*config.Config)) *testAPI {
	t.Helper()

	cfg := testutils.GetTestConfig()
	for _, m := range mutate {
		m(cfg)
	}

	db := testutils.SetupTestDB(t, &user.User{}, &sessionstore.Session{})
	users := user.NewGormDirectory(db, nil)
	authService := auth.NewService(&cfg.Auth, users, nil)
	codec := token.NewCodec(&cfg.JWT, nil)
	manager := session.NewManager(session.Dependencies{
		Codec:    codec,
		Store:    sessionstore.NewGormStore(db, nil),
		Cache:    sessioncache.NewMemoryCache(),
		Geo:      testutils.StaticGeo(testutils.TestLocation),
		Verifier: authService,
	}, &cfg.Session, nil)

	limitStore := ratelimit.NewMemoryStore()
	t.Cleanup(limitStore.Close)

	srv := server.New(cfg, nil)
	RegisterRoutes(RouterParams{
		Server:     srv,
		Config:     cfg,
		Codec:      codec,
		Sessions:   manager,
		Users:      users,
		Handler:    NewAuthHandler(authService, manager, nil),
		Routes:     PublicRoutes(cfg),
		Docs:       NewDocument(cfg),
		LimitStore: limitStore,
	})

	return &testAPI{t: t, srv: srv, codec: codec, auth: authService, config: cfg}
}

func (a *testAPI) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", testutils.TestUserAgent)
	req.Header.Set("X-Real-IP", testutils.TestIP)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	a.srv.Echo().ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(email string) {
	a.t.Helper()
	_, err := a.auth.Register(context.Background(), auth.RegisterInput{
		Firstname:       testutils.TestFirstname,
		Email:           email,
		Password:        testutils.TestPasswords.Valid,
		ConfirmPassword: testutils.TestPasswords.Valid,
	})
	require.NoError(a.t, err)
}

// login returns the access token and the refresh token header.
func (a *testAPI) login(email, deviceID string) (string, string) {
	a.t.Helper()

	rec := a.do(http.MethodPost, AuthPrefix+"/login", LoginRequest{
		Email:    email,
		Password: testutils.TestPasswords.Valid,
		DeviceID: deviceID,
	}, nil)
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())

	var data LoginData
	decodeData(a.t, rec, &data)
	return data.AccessToken.Token, rec.Header().Get(RefreshTokenHeader)
}

func bearer(accessToken string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + accessToken}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) envelope {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.NoError(t, json.Unmarshal(env.Data, dst))
	return env
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}
