package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokengate/token-allowlist-backend/api"
	"github.com/tokengate/token-allowlist-backend/interfaces"
	"github.com/tokengate/token-allowlist-backend/keystore"
	"github.com/tokengate/token-allowlist-backend/ledger"
	"github.com/tokengate/token-allowlist-backend/program"
	"github.com/tokengate/token-allowlist-backend/registry"
	"github.com/tokengate/token-allowlist-backend/storage"
)

type testEnv struct {
	handler  *Handler
	client   *registry.AllowlistClient
	ledger   *ledger.Ledger
	registry string
	router   http.Handler
}

// setupTestEnvironment wires a handler to an in-process ledger with an
// initialized registry, one shard and a file snapshot backend.
func setupTestEnvironment(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	keys, err := keystore.New(bytes.Repeat([]byte{3}, 32))
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
	_, err = client.InitRegistry(context.Background(), 8)
	require.NoError(t, err)
	_, err = client.CreateShard(context.Background(), 3)
	require.NoError(t, err)

	backend, err := storage.NewFileBackend(t.TempDir(), log)
	require.NoError(t, err)
	publisher := storage.NewPublisher(backend, log)

	handler := NewHandler(client, l, publisher, nil, log)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/admin/registry/{registry}/members", handler.HandleAddMember)
	mux.HandleFunc("DELETE /api/admin/registry/{registry}/members/{identity}", handler.HandleRemoveMember)
	mux.HandleFunc("POST /api/admin/registry/{registry}/shards", handler.HandleCreateShard)
	mux.HandleFunc("POST /api/admin/registry/{registry}/close", handler.HandleClose)
	mux.HandleFunc("POST /api/admin/snapshot", handler.HandleSnapshot)
	mux.HandleFunc("GET /api/public/registry/{registry}", handler.HandleRegistryInfo)
	mux.HandleFunc("GET /api/public/registry/{registry}/members", handler.HandleListMembers)
	mux.HandleFunc("GET /api/public/registry/{registry}/members/{identity}", handler.HandleMemberStatus)

	return &testEnv{
		handler:  handler,
		client:   client,
		ledger:   l,
		registry: client.Registry().String(),
		router:   mux,
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func hexIdentity(b byte) string {
	var id interfaces.Identity
	for i := range id {
		id[i] = b
	}
	return id.String()
}

func TestAddAndQueryMember(t *testing.T) {
	env := setupTestEnvironment(t)
	member := hexIdentity(0x11)

	rec := env.do(t, "POST", "/api/admin/registry/"+env.registry+"/members",
		api.AddMemberRequest{Identity: member, Allocation: 777})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var txResp api.TxResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txResp))
	assert.NotEmpty(t, txResp.TxID)

	rec = env.do(t, "GET", "/api/public/registry/"+env.registry+"/members/"+member, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status api.MemberStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Listed)
	assert.Equal(t, uint64(777), status.Allocation)
}

func TestAddDuplicateMemberConflicts(t *testing.T) {
	env := setupTestEnvironment(t)
	member := hexIdentity(0x22)

	req := api.AddMemberRequest{Identity: member, Allocation: 1}
	rec := env.do(t, "POST", "/api/admin/registry/"+env.registry+"/members", req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "POST", "/api/admin/registry/"+env.registry+"/members", req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRemoveMember(t *testing.T) {
	env := setupTestEnvironment(t)
	member := hexIdentity(0x33)

	rec := env.do(t, "POST", "/api/admin/registry/"+env.registry+"/members",
		api.AddMemberRequest{Identity: member, Allocation: 5})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "DELETE", "/api/admin/registry/"+env.registry+"/members/"+member, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", "/api/public/registry/"+env.registry+"/members/"+member, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status api.MemberStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Listed)

	rec = env.do(t, "DELETE", "/api/admin/registry/"+env.registry+"/members/"+member, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidIdentityRejected(t *testing.T) {
	env := setupTestEnvironment(t)

	rec := env.do(t, "POST", "/api/admin/registry/"+env.registry+"/members",
		api.AddMemberRequest{Identity: "not-hex", Allocation: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "GET", "/api/public/registry/"+env.registry+"/members/zz", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRegistryRejected(t *testing.T) {
	env := setupTestEnvironment(t)
	other := hexIdentity(0xFE)

	rec := env.do(t, "GET", "/api/public/registry/"+other+"/members/"+hexIdentity(1), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateShardAndRegistryInfo(t *testing.T) {
	env := setupTestEnvironment(t)

	rec := env.do(t, "POST", "/api/admin/registry/"+env.registry+"/shards",
		api.CreateShardRequest{Capacity: 7})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created api.CreateShardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.do(t, "GET", "/api/public/registry/"+env.registry, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var info api.RegistryInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, env.registry, info.Registry)
	assert.Len(t, info.Shards, 2)
	assert.Contains(t, info.Shards, created.Shard)
}

func TestCreateShardOverCapacityRejected(t *testing.T) {
	env := setupTestEnvironment(t)

	rec := env.do(t, "POST", "/api/admin/registry/"+env.registry+"/shards",
		api.CreateShardRequest{Capacity: 51})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMembers(t *testing.T) {
	env := setupTestEnvironment(t)

	for i := byte(1); i <= 2; i++ {
		rec := env.do(t, "POST", "/api/admin/registry/"+env.registry+"/members",
			api.AddMemberRequest{Identity: hexIdentity(i), Allocation: uint64(i)})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(t, "GET", "/api/public/registry/"+env.registry+"/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.MembersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Members, 2)
	assert.Equal(t, hexIdentity(1), resp.Members[0].Identity)
}

func TestCloseShard(t *testing.T) {
	env := setupTestEnvironment(t)

	shards, err := env.client.Shards()
	require.NoError(t, err)
	require.Len(t, shards, 1)

	rec := env.do(t, "POST", "/api/admin/registry/"+env.registry+"/close",
		api.CloseRequest{Target: shards[0].String(), Destination: hexIdentity(0xAB)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	acc, ok := env.ledger.GetAccount(shards[0])
	require.True(t, ok)
	assert.Zero(t, acc.Balance)
}

func TestSnapshotPublishes(t *testing.T) {
	env := setupTestEnvironment(t)

	rec := env.do(t, "POST", "/api/admin/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp api.SnapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, env.ledger.Slot(), resp.Slot)

	snapshotID, err := interfaces.NewSnapshotIDFromHex(resp.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeSnapshotID(env.ledger.EncodeSnapshot()), snapshotID)
}
