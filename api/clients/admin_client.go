package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tokengate/token-allowlist-backend/api"
	"github.com/tokengate/token-allowlist-backend/interfaces"
)

// AdminClient provides methods for interacting with the allowlist service
// API. It wraps both the admin mutation routes and the public query routes.
type AdminClient struct {
	baseURL    string
	registry   interfaces.Identity
	httpClient *http.Client
}

// NewAdminClient creates a client for the allowlist service.
//
// Parameters:
//   - baseURL: The base URL of the service (e.g., "http://localhost:8080")
//   - registry: The registry map account the server manages
//   - timeout: Request timeout duration (optional, default 30 seconds)
func NewAdminClient(baseURL string, registry interfaces.Identity, timeout ...time.Duration) *AdminClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &AdminClient{
		baseURL:  baseURL,
		registry: registry,
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// AddMember lists a member with a token allocation.
func (c *AdminClient) AddMember(ctx context.Context, member interfaces.Identity, allocation uint64) (string, error) {
	url := fmt.Sprintf("%s/api/admin/registry/%s/members", c.baseURL, c.registry.String())

	var resp api.TxResponse
	err := c.doJSON(ctx, http.MethodPost, url,
		api.AddMemberRequest{Identity: member.String(), Allocation: allocation}, &resp)
	if err != nil {
		return "", fmt.Errorf("add member request failed: %w", err)
	}
	return resp.TxID, nil
}

// RemoveMember delists a member.
func (c *AdminClient) RemoveMember(ctx context.Context, member interfaces.Identity) (string, error) {
	url := fmt.Sprintf("%s/api/admin/registry/%s/members/%s", c.baseURL, c.registry.String(), member.String())

	var resp api.TxResponse
	if err := c.doJSON(ctx, http.MethodDelete, url, nil, &resp); err != nil {
		return "", fmt.Errorf("remove member request failed: %w", err)
	}
	return resp.TxID, nil
}

// CreateShard creates and registers a new shard with the given capacity.
func (c *AdminClient) CreateShard(ctx context.Context, capacity uint64) (string, error) {
	url := fmt.Sprintf("%s/api/admin/registry/%s/shards", c.baseURL, c.registry.String())

	var resp api.CreateShardResponse
	if err := c.doJSON(ctx, http.MethodPost, url, api.CreateShardRequest{Capacity: capacity}, &resp); err != nil {
		return "", fmt.Errorf("create shard request failed: %w", err)
	}
	return resp.Shard, nil
}

// Close tears down a registry account, sending its balance to destination.
func (c *AdminClient) Close(ctx context.Context, target, destination interfaces.Identity) (string, error) {
	url := fmt.Sprintf("%s/api/admin/registry/%s/close", c.baseURL, c.registry.String())

	var resp api.TxResponse
	err := c.doJSON(ctx, http.MethodPost, url,
		api.CloseRequest{Target: target.String(), Destination: destination.String()}, &resp)
	if err != nil {
		return "", fmt.Errorf("close request failed: %w", err)
	}
	return resp.TxID, nil
}

// Snapshot asks the server to publish a ledger snapshot.
func (c *AdminClient) Snapshot(ctx context.Context) (*api.SnapshotResponse, error) {
	url := fmt.Sprintf("%s/api/admin/snapshot", c.baseURL)

	var resp api.SnapshotResponse
	if err := c.doJSON(ctx, http.MethodPost, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	return &resp, nil
}

// MemberStatus queries the listing status and allocation of a member.
func (c *AdminClient) MemberStatus(ctx context.Context, member interfaces.Identity) (*api.MemberStatusResponse, error) {
	url := fmt.Sprintf("%s/api/public/registry/%s/members/%s", c.baseURL, c.registry.String(), member.String())

	var resp api.MemberStatusResponse
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("member status request failed: %w", err)
	}
	return &resp, nil
}

// ListMembers dumps every listed member.
func (c *AdminClient) ListMembers(ctx context.Context) (*api.MembersResponse, error) {
	url := fmt.Sprintf("%s/api/public/registry/%s/members", c.baseURL, c.registry.String())

	var resp api.MembersResponse
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("list members request failed: %w", err)
	}
	return &resp, nil
}

// RegistryInfo describes the registry the server manages.
func (c *AdminClient) RegistryInfo(ctx context.Context) (*api.RegistryInfoResponse, error) {
	url := fmt.Sprintf("%s/api/public/registry/%s", c.baseURL, c.registry.String())

	var resp api.RegistryInfoResponse
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("registry info request failed: %w", err)
	}
	return &resp, nil
}

func (c *AdminClient) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with code %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
