package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-im/server/internal/auth"
	"github.com/lumen-im/server/internal/db"
	"github.com/lumen-im/server/internal/devices"
	httphandler "github.com/lumen-im/server/internal/http"
	"github.com/lumen-im/server/internal/http/handlers"
	"github.com/lumen-im/server/internal/repo"
	"github.com/lumen-im/server/internal/uia"

	_ "github.com/lib/pq"
)

func TestMain(m *testing.M) {
	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "test-jwt-secret-at-least-32-characters-long")
	}
	os.Exit(m.Run())
}

// testServer holds the server and DB for integration tests
type testServer struct {
	Server *httptest.Server
	DB     *sql.DB
	Users  repo.UserRepo
}

// newTestServer builds the full stack against a real Postgres. Tests skip
// when DATABASE_URL is unset.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ctx := context.Background()
	database, err := db.Open(ctx, dsn)
	require.NoError(t, err, "database open must succeed; check DATABASE_URL and that test DB exists")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, RunMigrations(database), "migrations must run successfully")
	require.NoError(t, TruncateTables(ctx, database), "truncate tables")

	userRepo := repo.NewUserRepo(database)
	deviceRepo := repo.NewDeviceRepo(database)
	tokenRepo := repo.NewTokenRepo(database)

	jwtService := auth.NewJWTService(os.Getenv("JWT_SECRET"))
	authService := auth.NewAuthService(jwtService, userRepo, deviceRepo, tokenRepo)
	gate := uia.NewGate(uia.NewMemStore(time.Minute), auth.NewPasswordValidator(userRepo))
	deviceService := devices.NewService(deviceRepo, gate)

	loginHandler := handlers.NewLoginHandler(authService)
	devicesHandler := handlers.NewDevicesHandler(deviceService)
	router := httphandler.NewRouter(loginHandler, devicesHandler, jwtService, tokenRepo)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, DB: database, Users: userRepo}
}

func (s *testServer) createUser(t *testing.T, username, password string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	_, err = s.Users.Create(context.Background(), username, hash, false)
	require.NoError(t, err)
}

func (s *testServer) request(t *testing.T, method, path, token string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(method, s.Server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

func (s *testServer) login(t *testing.T, username, password, displayName string) (token, deviceID string) {
	t.Helper()
	status, body := s.request(t, http.MethodPost, "/login", "", map[string]interface{}{
		"type":                        uia.StagePassword,
		"user":                        username,
		"password":                    password,
		"initial_device_display_name": displayName,
	})
	require.Equal(t, http.StatusOK, status, "login: %v", body)
	return body["access_token"].(string), body["device_id"].(string)
}

func TestDeviceLifecycle_Postgres(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "alice", "correct horse")

	phone, phoneDevice := s.login(t, "alice", "correct horse", "Phone")
	_, laptopDevice := s.login(t, "alice", "correct horse", "Laptop")

	// Rename and read back.
	status, _ := s.request(t, http.MethodPut, "/devices/"+laptopDevice, phone, map[string]interface{}{
		"display_name": "Work Laptop",
	})
	require.Equal(t, http.StatusOK, status)

	status, body := s.request(t, http.MethodGet, "/devices/"+laptopDevice, phone, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Work Laptop", body["display_name"])

	// Gated delete: challenge, then authed retry.
	status, body = s.request(t, http.MethodDelete, "/devices/"+laptopDevice, phone, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	session := body["session"].(string)

	status, body = s.request(t, http.MethodDelete, "/devices/"+laptopDevice, phone, map[string]interface{}{
		"auth": map[string]interface{}{
			"type":     uia.StagePassword,
			"session":  session,
			"user":     "alice",
			"password": "correct horse",
		},
	})
	require.Equal(t, http.StatusOK, status, "authed delete: %v", body)

	status, body = s.request(t, http.MethodGet, "/devices", phone, nil)
	require.Equal(t, http.StatusOK, status)
	list := body["devices"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, phoneDevice, list[0].(map[string]interface{})["device_id"])
}

func TestBulkDeleteResubmission_Postgres(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "alice", "correct horse")

	phone, _ := s.login(t, "alice", "correct horse", "Phone")
	_, laptopDevice := s.login(t, "alice", "correct horse", "Laptop")

	payload := map[string]interface{}{"devices": []string{laptopDevice, "GHOSTDEVICE"}}
	status, body := s.request(t, http.MethodPost, "/delete_devices", phone, payload)
	require.Equal(t, http.StatusUnauthorized, status)

	payload["auth"] = map[string]interface{}{
		"type":     uia.StagePassword,
		"session":  body["session"].(string),
		"user":     "alice",
		"password": "correct horse",
	}
	status, body = s.request(t, http.MethodPost, "/delete_devices", phone, payload)
	require.Equal(t, http.StatusOK, status, "bulk delete with ghost id: %v", body)

	// A deleted device's token no longer resolves.
	var tokenCount int
	err := s.DB.QueryRow(`SELECT count(*) FROM access_tokens WHERE device_id = $1`, laptopDevice).Scan(&tokenCount)
	require.NoError(t, err)
	assert.Zero(t, tokenCount, "device deletion must remove its access tokens")
}
