package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/joseph-ayodele/transportschein/internal/common"
)

// Doer abstracts the HTTP client so tests can stub the dispatch API.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the dispolive open API.
type Client struct {
	cfg    common.DispatchConfig
	http   Doer
	logger *slog.Logger
}

func NewClient(cfg common.DispatchConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// NewClientWithDoer injects a custom transport, used by tests.
func NewClientWithDoer(cfg common.DispatchConfig, doer Doer, logger *slog.Logger) *Client {
	return &Client{cfg: cfg, http: doer, logger: logger}
}

// Institution is a dispatch directory entry.
type Institution struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Street string `json:"street"`
	Zip    string `json:"zip"`
	City   string `json:"city"`
}

// NewInstitution is the creation payload for the directory.
type NewInstitution struct {
	Mandant int    `json:"mandant"`
	Name    string `json:"name"`
	Street  string `json:"street"`
	Zip     string `json:"zip"`
	City    string `json:"city"`
	Tel     string `json:"tel"`
}

// Verordnungsart is a prescription transport category.
type Verordnungsart struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Kostentraeger is an insurance payer record.
type Kostentraeger struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	IK     string `json:"ikKtNr"`
	Street string `json:"street"`
	Zip    string `json:"zip"`
	City   string `json:"city"`
}

func (c *Client) endpoint(parts ...string) string {
	base := strings.TrimSuffix(c.cfg.BaseURL, "/")
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return base + "/custom/open-api/" + strings.Join(escaped, "/")
}

// get performs a lookup. A non-200 answer is logged and reported as a miss,
// not an error: the directory routinely has no entry for a new institution.
func (c *Client) get(ctx context.Context, endpoint string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("dispatch request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("dispatch.lookup.miss", "endpoint", endpoint,
			"status", resp.StatusCode, "body", truncate(string(body), 512))
		return false, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("%w: %v", common.ErrParse, err)
	}
	return true, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error("dispatch.post.failed", "endpoint", endpoint,
			"status", resp.StatusCode, "body", truncate(string(respBody), 512))
		return common.NewAppError("DISPATCH_ERROR",
			fmt.Sprintf("dispatch API returned status %d", resp.StatusCode), nil)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: %v", common.ErrParse, err)
		}
	}
	return nil
}

// FindInstitution looks an institution up by its exact name. A miss returns
// a zero Institution and no error.
func (c *Client) FindInstitution(ctx context.Context, name string) (Institution, error) {
	var inst Institution
	ok, err := c.get(ctx, c.endpoint("institutionen", "findByName", name), &inst)
	if err != nil {
		return Institution{}, err
	}
	if !ok {
		return Institution{}, nil
	}
	c.logger.Info("dispatch.institution.found", "name", inst.Name, "id", inst.ID)
	return inst, nil
}

// CreateInstitution registers a new institution in the directory.
func (c *Client) CreateInstitution(ctx context.Context, params NewInstitution) (Institution, error) {
	var inst Institution
	if err := c.post(ctx, c.endpoint("institutionen", "add"), params, &inst); err != nil {
		return Institution{}, err
	}
	c.logger.Info("dispatch.institution.created", "name", inst.Name, "id", inst.ID)
	return inst, nil
}

// FindVerordnungsart resolves a transport category like "KTW" to its id.
func (c *Client) FindVerordnungsart(ctx context.Context, name string) (Verordnungsart, error) {
	var va Verordnungsart
	ok, err := c.get(ctx, c.endpoint("verordnungsarten", "findByName", name), &va)
	if err != nil || !ok {
		return Verordnungsart{}, err
	}
	return va, nil
}

// FindKostentraegerByIK resolves an insurance payer by its IK number. The
// API answers with either a single object or a list.
func (c *Client) FindKostentraegerByIK(ctx context.Context, ik string) (Kostentraeger, error) {
	var raw json.RawMessage
	ok, err := c.get(ctx, c.endpoint("kostentraeger", "findByIk", ik), &raw)
	if err != nil || !ok {
		return Kostentraeger{}, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []Kostentraeger
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return Kostentraeger{}, fmt.Errorf("%w: %v", common.ErrParse, err)
		}
		if len(list) == 0 {
			return Kostentraeger{}, nil
		}
		return list[0], nil
	}

	var kt Kostentraeger
	if err := json.Unmarshal(trimmed, &kt); err != nil {
		return Kostentraeger{}, fmt.Errorf("%w: %v", common.ErrParse, err)
	}
	return kt, nil
}

// CreateDriverReport submits the ride to fahrberichte/add.
func (c *Client) CreateDriverReport(ctx context.Context, payload DriverReport) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.post(ctx, c.endpoint("fahrberichte", "add"), payload, &out); err != nil {
		return nil, err
	}
	c.logger.Info("dispatch.report.created")
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
