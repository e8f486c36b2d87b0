package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/buildgrid/ngexec/internal/process"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(port int) *Client {
	return &Client{
		BaseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		HTTPClient: &http.Client{
			// Runs can take as long as the request's own timeout;
			// don't cut them off at the transport.
			Timeout: 0,
		},
	}
}

func (c *Client) Run(req process.Request, correlationID string) (process.Result, error) {
	var resp RunResponse
	if err := c.post("/run", RunRequest{Request: req, CorrelationID: correlationID}, &resp); err != nil {
		return process.Result{}, err
	}
	if resp.Error != "" {
		return process.Result{}, fmt.Errorf("%s", resp.Error)
	}
	return resp.Result, nil
}

func (c *Client) Servers() ([]ServerStatus, error) {
	var resp []ServerStatus
	if err := c.get("/servers", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Health() error {
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(c.BaseURL + "/health")
	if err != nil {
		return fmt.Errorf("daemon not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) get(path string, result interface{}) error {
	resp, err := c.HTTPClient.Get(c.BaseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
	if result != nil {
		return json.Unmarshal(body, result)
	}
	return nil
}

func (c *Client) post(path string, payload, result interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Post(c.BaseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnprocessableEntity {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
	if result != nil {
		return json.Unmarshal(body, result)
	}
	return nil
}
