package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tokengate/token-allowlist-backend/api"
	"github.com/tokengate/token-allowlist-backend/interfaces"
	"github.com/tokengate/token-allowlist-backend/metrics"
	"github.com/tokengate/token-allowlist-backend/program"
	"github.com/tokengate/token-allowlist-backend/registry"
	"github.com/tokengate/token-allowlist-backend/storage"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// RequestError provides structured error information for HTTP responses.
// It includes both an HTTP status code and the underlying error.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

// Snapshotter provides the encoded ledger state for snapshot publication.
type Snapshotter interface {
	EncodeSnapshot() []byte
	Slot() uint64
}

// Handler processes HTTP requests for the allowlist registry service. Admin
// routes mutate the registry through the client, public routes only read
// account state.
type Handler struct {
	client    *registry.AllowlistClient
	source    Snapshotter
	publisher *storage.Publisher
	metrics   *metrics.MetricsServer
	log       *slog.Logger
}

// NewHandler creates a new HTTP request handler.
//
// Parameters:
//   - client: registry client holding the mutation authority
//   - source: ledger providing encoded snapshots
//   - publisher: snapshot publisher, may be nil to disable snapshots
//   - m: metrics server, may be nil
//   - log: structured logger
func NewHandler(client *registry.AllowlistClient, source Snapshotter, publisher *storage.Publisher, m *metrics.MetricsServer, log *slog.Logger) *Handler {
	return &Handler{
		client:    client,
		source:    source,
		publisher: publisher,
		metrics:   m,
		log:       log,
	}
}

// SetMetrics attaches a metrics server after construction. Used when the
// metrics listener is owned by the HTTP server wrapping this handler.
func (h *Handler) SetMetrics(m *metrics.MetricsServer) {
	h.metrics = m
}

// HandleAddMember lists a member in the registry.
//
// URL format: POST /api/admin/registry/{registry}/members
// Request body: {"identity": "<hex>", "allocation": <uint64>}
func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	if !h.checkRegistry(w, r) {
		return
	}

	var req api.AddMemberRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	member, err := interfaces.NewIdentityFromHex(req.Identity)
	if err != nil {
		http.Error(w, "Invalid member identity", http.StatusBadRequest)
		return
	}

	txid, err := h.client.AddMember(r.Context(), member, req.Allocation)
	if err != nil {
		h.writeError(w, "add member", err)
		return
	}

	h.recordSlot()
	h.writeJSON(w, api.TxResponse{TxID: txid.String()})
}

// HandleRemoveMember delists a member.
//
// URL format: DELETE /api/admin/registry/{registry}/members/{identity}
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if !h.checkRegistry(w, r) {
		return
	}

	member, err := interfaces.NewIdentityFromHex(r.PathValue("identity"))
	if err != nil {
		http.Error(w, "Invalid member identity", http.StatusBadRequest)
		return
	}

	txid, err := h.client.RemoveMember(r.Context(), member)
	if err != nil {
		h.writeError(w, "remove member", err)
		return
	}

	h.recordSlot()
	h.writeJSON(w, api.TxResponse{TxID: txid.String()})
}

// HandleCreateShard creates and registers an additional shard.
//
// URL format: POST /api/admin/registry/{registry}/shards
// Request body: {"capacity": <uint64>}
func (h *Handler) HandleCreateShard(w http.ResponseWriter, r *http.Request) {
	if !h.checkRegistry(w, r) {
		return
	}

	var req api.CreateShardRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	shard, err := h.client.CreateShard(r.Context(), req.Capacity)
	if err != nil {
		h.writeError(w, "create shard", err)
		return
	}

	h.recordSlot()
	h.writeJSON(w, api.CreateShardResponse{Shard: shard.String()})
}

// HandleClose tears down a shard or the registry map account, sending its
// balance to the destination account.
//
// URL format: POST /api/admin/registry/{registry}/close
// Request body: {"target": "<hex>", "destination": "<hex>"}
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if !h.checkRegistry(w, r) {
		return
	}

	var req api.CloseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	target, err := interfaces.NewIdentityFromHex(req.Target)
	if err != nil {
		http.Error(w, "Invalid target identity", http.StatusBadRequest)
		return
	}
	destination, err := interfaces.NewIdentityFromHex(req.Destination)
	if err != nil {
		http.Error(w, "Invalid destination identity", http.StatusBadRequest)
		return
	}

	txid, err := h.client.Close(r.Context(), target, destination)
	if err != nil {
		h.writeError(w, "close account", err)
		return
	}

	h.recordSlot()
	h.writeJSON(w, api.TxResponse{TxID: txid.String()})
}

// HandleSnapshot publishes the current ledger state to snapshot storage.
//
// URL format: POST /api/admin/snapshot
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		http.Error(w, "Snapshot storage not configured", http.StatusNotImplemented)
		return
	}

	data := h.source.EncodeSnapshot()
	slot := h.source.Slot()

	snapshotID, manifestID, err := h.publisher.Publish(r.Context(), data, slot)
	if err != nil {
		h.log.Error("Snapshot publication failed", "err", err)
		http.Error(w, "Snapshot publication failed", http.StatusBadGateway)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordSnapshot()
	}

	h.writeJSON(w, api.SnapshotResponse{
		SnapshotID: snapshotID.String(),
		ManifestID: manifestID.String(),
		Slot:       slot,
	})
}

// HandleMemberStatus answers a single allowlist lookup.
//
// URL format: GET /api/public/registry/{registry}/members/{identity}
func (h *Handler) HandleMemberStatus(w http.ResponseWriter, r *http.Request) {
	if !h.checkRegistry(w, r) {
		return
	}

	member, err := interfaces.NewIdentityFromHex(r.PathValue("identity"))
	if err != nil {
		http.Error(w, "Invalid member identity", http.StatusBadRequest)
		return
	}

	allocation, listed, err := h.client.AllocationOf(member)
	if err != nil {
		h.writeError(w, "member lookup", err)
		return
	}

	h.writeJSON(w, api.MemberStatusResponse{
		Identity:   member.String(),
		Listed:     listed,
		Allocation: allocation,
	})
}

// HandleListMembers dumps every listed member across all shards.
//
// URL format: GET /api/public/registry/{registry}/members
func (h *Handler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	if !h.checkRegistry(w, r) {
		return
	}

	shards, err := h.client.Shards()
	if err != nil {
		h.writeError(w, "list shards", err)
		return
	}

	members := make([]api.MemberInfo, 0)
	for _, shard := range shards {
		shardMembers, err := h.client.Members(shard)
		if err != nil {
			h.writeError(w, "list members", err)
			return
		}
		for _, m := range shardMembers {
			members = append(members, api.MemberInfo{
				Identity:   m.Identity.String(),
				Allocation: m.Allocation,
				Shard:      shard.String(),
			})
		}
	}

	h.writeJSON(w, api.MembersResponse{
		Registry: h.client.Registry().String(),
		Members:  members,
	})
}

// HandleRegistryInfo describes the managed registry.
//
// URL format: GET /api/public/registry/{registry}
func (h *Handler) HandleRegistryInfo(w http.ResponseWriter, r *http.Request) {
	if !h.checkRegistry(w, r) {
		return
	}

	shards, err := h.client.Shards()
	if err != nil {
		h.writeError(w, "registry info", err)
		return
	}

	shardHexes := make([]string, len(shards))
	for i, s := range shards {
		shardHexes[i] = s.String()
	}

	h.writeJSON(w, api.RegistryInfoResponse{
		Registry:  h.client.Registry().String(),
		Authority: h.client.Authority().String(),
		Slot:      h.source.Slot(),
		Shards:    shardHexes,
	})
}

// checkRegistry validates that the registry path parameter names the
// registry this service manages.
func (h *Handler) checkRegistry(w http.ResponseWriter, r *http.Request) bool {
	registryHex := r.PathValue("registry")
	id, err := interfaces.NewIdentityFromHex(registryHex)
	if err != nil {
		http.Error(w, "Invalid registry identity", http.StatusBadRequest)
		return false
	}
	if !id.Equal(h.client.Registry()) {
		http.Error(w, "Unknown registry", http.StatusNotFound)
		return false
	}
	return true
}

// statusForError maps registry program errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, program.ErrDuplicateEntry),
		errors.Is(err, program.ErrCapacityExceeded),
		errors.Is(err, program.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, program.ErrEntryNotFound),
		errors.Is(err, program.ErrNotInitialized):
		return http.StatusNotFound
	case errors.Is(err, program.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, program.ErrInvalidInstructionData),
		errors.Is(err, program.ErrInvalidAccountData),
		errors.Is(err, program.ErrNotRentExempt),
		errors.Is(err, program.ErrOverflow):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, operation string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", slog.String("operation", operation), "err", err)
	} else {
		h.log.Debug("Request rejected", slog.String("operation", operation), "err", err)
	}

	reqErr := &RequestError{StatusCode: status, Err: err}
	http.Error(w, reqErr.Error(), reqErr.StatusCode)
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("Failed to encode response", "err", err)
		http.Error(w, fmt.Sprintf("Internal server error: %v", err), http.StatusInternalServerError)
	}
}

func (h *Handler) recordSlot() {
	if h.metrics != nil {
		h.metrics.SetSlot(h.source.Slot())
	}
}
