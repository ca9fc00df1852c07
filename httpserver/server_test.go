package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokengate/token-allowlist-backend/api"
	"github.com/tokengate/token-allowlist-backend/api/handlers"
	"github.com/tokengate/token-allowlist-backend/interfaces"
	"github.com/tokengate/token-allowlist-backend/keystore"
	"github.com/tokengate/token-allowlist-backend/ledger"
	"github.com/tokengate/token-allowlist-backend/program"
	"github.com/tokengate/token-allowlist-backend/registry"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	keys, err := keystore.New(bytes.Repeat([]byte{5}, 32))
	require.NoError(t, err)
	authority, err := keys.DeriveKeypair("authority")
	require.NoError(t, err)

	l := ledger.New(log, ledger.Config{
		Rent: program.DefaultRent,
		Genesis: map[interfaces.Identity]uint64{
			authority.Identity: 10_000_000_000,
		},
	})

	client, err := registry.NewAllowlistClient(l, l, keys, log)
	require.NoError(t, err)
	_, err = client.InitRegistry(context.Background(), 4)
	require.NoError(t, err)
	_, err = client.CreateShard(context.Background(), 5)
	require.NoError(t, err)

	handler := handlers.NewHandler(client, l, nil, nil, log)

	srv, err := New(&HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      log,
		DrainDuration:            time.Millisecond,
		GracefulShutdownDuration: time.Second,
	}, handler)
	require.NoError(t, err)

	return srv, client.Registry().String()
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.getRouter()

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/livez").Code)
	assert.Equal(t, http.StatusOK, get("/readyz").Code)

	assert.Equal(t, http.StatusOK, get("/drain").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz").Code)

	assert.Equal(t, http.StatusOK, get("/undrain").Code)
	assert.Equal(t, http.StatusOK, get("/readyz").Code)
}

func TestRouterServesRegistryRoutes(t *testing.T) {
	srv, registryHex := testServer(t)
	router := srv.getRouter()

	member := interfaces.Identity{0xAB}
	body, err := json.Marshal(api.AddMemberRequest{Identity: member.String(), Allocation: 3})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/admin/registry/"+registryHex+"/members", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/public/registry/"+registryHex+"/members", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.MembersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Members, 1)
}
