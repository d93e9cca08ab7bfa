// Package shockapi is a thin client for the OpenShock HTTP API.
package shockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/model"
)

// DefaultBaseURL is the hosted API endpoint. Registrations may override it
// for self-hosted instances.
const DefaultBaseURL = "https://api.openshock.app"

const (
	authHeader     = "OpenShockToken"
	defaultTimeout = 10 * time.Second
)

// Shocker describes one controllable unit as reported by the API.
type Shocker struct {
	Ref  string
	Name string
}

// Sender dispatches control commands and validates credentials.
type Sender interface {
	// SendControl fires one action on the device. A non-2xx response or
	// transport failure is returned as *errs.ExternalError.
	SendControl(ctx context.Context, credential, baseURL, deviceRef string, kind model.ActionKind, intensity, durationMS int, label string) (int, error)
	// ValidateCredential checks the credential by listing its shockers.
	// A valid token with zero shockers returns an empty slice and no error.
	ValidateCredential(ctx context.Context, credential, baseURL string) ([]Shocker, error)
}

// Client implements Sender over net/http.
type Client struct {
	httpc *http.Client
}

// New builds a client with the default timeout.
func New() *Client {
	return &Client{httpc: &http.Client{Timeout: defaultTimeout}}
}

// NewWithHTTPClient allows injecting a custom transport, used in tests.
func NewWithHTTPClient(httpc *http.Client) *Client {
	return &Client{httpc: httpc}
}

type controlShock struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Intensity int    `json:"intensity"`
	Duration  int    `json:"duration"`
	Exclusive bool   `json:"exclusive"`
}

type controlRequest struct {
	Shocks     []controlShock `json:"shocks"`
	CustomName string         `json:"customName"`
}

// SendControl fires a single command against the v2 control endpoint.
func (c *Client) SendControl(ctx context.Context, credential, baseURL, deviceRef string, kind model.ActionKind, intensity, durationMS int, label string) (int, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	body := controlRequest{
		Shocks: []controlShock{{
			ID:        deviceRef,
			Type:      string(kind),
			Intensity: intensity,
			Duration:  durationMS,
			Exclusive: true,
		}},
		CustomName: label,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal control request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/2/shockers/control", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(authHeader, credential)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, &errs.ExternalError{Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, &errs.ExternalError{Status: resp.StatusCode, Body: string(snippet)}
	}
	return resp.StatusCode, nil
}

type ownShockersResponse struct {
	Data []struct {
		Shockers []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"shockers"`
	} `json:"data"`
}

// ValidateCredential lists the shockers the credential owns. An unauthorized
// or otherwise failing response comes back as *errs.ExternalError.
func (c *Client) ValidateCredential(ctx context.Context, credential, baseURL string) ([]Shocker, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/1/shockers/own", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(authHeader, credential)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &errs.ExternalError{Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &errs.ExternalError{Status: resp.StatusCode, Body: string(snippet)}
	}

	var parsed ownShockersResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode shockers response: %w", err)
	}

	var out []Shocker
	for _, hub := range parsed.Data {
		for _, s := range hub.Shockers {
			out = append(out, Shocker{Ref: s.ID, Name: s.Name})
		}
	}
	return out, nil
}
