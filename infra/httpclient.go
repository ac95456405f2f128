// Package infra implements the External Interfaces collaborators the
// core consumes: PackageIndex, DataIndex, and Capability HTTP clients,
// InfraFile parsing, and the hand-written gRPC transports for the
// Checker and Execution services (see DESIGN.md for why no protoc
// stubs are generated).
package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"goa.design/federator/dsl/parser"
)

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient overrides the underlying *http.Client (e.g. for custom
// transports or in tests).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(h *HTTPClient) { h.http = c }
}

// WithRateLimit bounds outbound request rate, protecting a shared
// registry from a bursty planner. This is a rate limit, not a retry
// policy: a request that fails is never resent by this client.
func WithRateLimit(r rate.Limit, burst int) ClientOption {
	return func(h *HTTPClient) { h.limiter = rate.NewLimiter(r, burst) }
}

// WithTimeout bounds a single request's wall-clock duration.
func WithTimeout(d time.Duration) ClientOption {
	return func(h *HTTPClient) { h.timeout = d }
}

// HTTPClient is the shared transport underneath PackageIndexClient,
// DataIndexClient, and CapabilityClient: a base URL, an http.Client, an
// optional outbound limiter, and a per-call timeout.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewHTTPClient builds an HTTPClient rooted at baseURL (e.g.
// "https://registry.example.com").
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	h := &HTTPClient{
		baseURL: baseURL,
		http:    http.DefaultClient,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("infra: rate limiter: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("infra: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return fmt.Errorf("infra: request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("infra: read response from %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("infra: %s returned status %d: %s", path, resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("infra: parse response from %s: %w", path, err)
	}
	return nil
}

func (h *HTTPClient) postJSON(ctx context.Context, path string, in, out any) error {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("infra: rate limiter: %w", err)
		}
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("infra: encode request body for %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("infra: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return fmt.Errorf("infra: request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("infra: read response from %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("infra: %s returned status %d: %s", path, resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// getJSONWithBody issues a GET carrying a JSON request body, for endpoints
// that are semantically reads (no side effect) but need to pass more than
// a path can encode, such as the transfer check (spec.md §4.5 step 3b).
func (h *HTTPClient) getJSONWithBody(ctx context.Context, path string, in, out any) error {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("infra: rate limiter: %w", err)
		}
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("infra: encode request body for %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("infra: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return fmt.Errorf("infra: request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("infra: read response from %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("infra: %s returned status %d: %s", path, resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// PackageIndexClient implements dsl/parser.PackageIndex and the
// planner's richer metadata needs against `GET <api>/graphql`-shaped
// package index responses, cached as an immutable snapshot refreshed on
// demand (spec.md §5's shared-snapshot guidance).
type PackageIndexClient struct {
	http *HTTPClient
	mu   sync.RWMutex
	// snapshot is read under mu's read lock and replaced wholesale under
	// mu's write lock. The read lock is held for one Lookup call only, so
	// a Refresh can land between two lookups of the same compile.
	snapshot map[string]parser.PackageMeta
}

// NewPackageIndexClient builds a client that has not yet fetched a
// snapshot; call Refresh before first use.
func NewPackageIndexClient(h *HTTPClient) *PackageIndexClient {
	return &PackageIndexClient{http: h}
}

// packageIndexWire is the raw shape of the package index endpoint:
// {package_name: {version: PackageMeta}}. Only the highest (lexically
// last) version per package is kept in the flattened snapshot, matching
// the analyser's need for one authoritative signature per task target.
type packageIndexWire = map[string]map[string]wirePackageMeta

type wirePackageMeta struct {
	Signature    string   `json:"signature"`
	Capabilities []string `json:"capabilities"`
	ImageDigest  string   `json:"image_digest"`
	ArgNames     []string `json:"arg_names"`
}

// Refresh fetches a new snapshot and replaces the client's view under a
// write lock. Callers concurrently calling Lookup hold a read lock for
// the duration of their own call and so observe either the old or new
// snapshot in full, never a partial one.
func (c *PackageIndexClient) Refresh(ctx context.Context) error {
	var wire packageIndexWire
	if err := c.http.getJSON(ctx, "/graphql", &wire); err != nil {
		return err
	}
	snapshot := make(map[string]parser.PackageMeta, len(wire))
	for pkg, versions := range wire {
		var latestVersion string
		var latest wirePackageMeta
		for version, meta := range versions {
			if version > latestVersion {
				latestVersion, latest = version, meta
			}
		}
		snapshot[pkg] = parser.PackageMeta{
			Version:      latestVersion,
			Signature:    latest.Signature,
			Capabilities: latest.Capabilities,
			ArgNames:     latest.ArgNames,
		}
	}
	c.mu.Lock()
	c.snapshot = snapshot
	c.mu.Unlock()
	return nil
}

// Lookup implements dsl/parser.PackageIndex.
func (c *PackageIndexClient) Lookup(pkg string) (parser.PackageMeta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.snapshot[pkg]
	return meta, ok
}

// DataIndexClient implements dsl/parser.DataIndex and the planner's
// richer "where is this dataset locally accessible" query against
// `GET <api>/data/info`.
type DataIndexClient struct {
	http *HTTPClient
	mu   sync.RWMutex
	// snapshot is read under mu's read lock and replaced wholesale under
	// mu's write lock. The read lock is held for one Known or Locations
	// call only, so a Refresh can land between two calls of the same plan.
	snapshot map[string]DatasetInfo
}

// DatasetInfo records, per location id, how a dataset is accessed there.
type DatasetInfo struct {
	Access map[string]AccessInfo `json:"access"`
}

// AccessInfo mirrors ast.AccessKind on the wire.
type AccessInfo struct {
	How  string `json:"how"`
	Path string `json:"path,omitempty"`
}

// NewDataIndexClient builds a client that has not yet fetched a snapshot.
func NewDataIndexClient(h *HTTPClient) *DataIndexClient {
	return &DataIndexClient{http: h}
}

// Known implements dsl/parser.DataIndex.
func (c *DataIndexClient) Known(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.snapshot[name]
	return ok
}

// Locations returns the set of location ids where name is directly
// accessible, for the planner's disambiguation and Available/Unavailable
// resolution (spec.md §4.4).
func (c *DataIndexClient) Locations(name string) (map[string]AccessInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.snapshot[name]
	if !ok {
		return nil, false
	}
	return info.Access, true
}

// Refresh fetches a new snapshot and replaces the client's view under a
// write lock; each Known/Locations call holds a read lock for its own
// duration only, not for a whole planning pass.
func (c *DataIndexClient) Refresh(ctx context.Context) error {
	var wire map[string]DatasetInfo
	if err := c.http.getJSON(ctx, "/data/info", &wire); err != nil {
		return err
	}
	c.mu.Lock()
	c.snapshot = wire
	c.mu.Unlock()
	return nil
}

// CapabilityClient queries a single location's advertised capability set.
type CapabilityClient struct{ http *HTTPClient }

// NewCapabilityClient builds a CapabilityClient.
func NewCapabilityClient(h *HTTPClient) *CapabilityClient { return &CapabilityClient{http: h} }

// Capabilities fetches `GET <api>/infra/capabilities/<location>`.
func (c *CapabilityClient) Capabilities(ctx context.Context, location string) ([]string, error) {
	var caps []string
	if err := c.http.getJSON(ctx, "/infra/capabilities/"+location, &caps); err != nil {
		return nil, err
	}
	return caps, nil
}
