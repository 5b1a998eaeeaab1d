package ctl

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"physiotrack-backend/internal/model"
)

// Bed is the subset of the bed view the CLI prints.
type Bed struct {
	ID            int                  `json:"id"`
	Status        model.BedStatus      `json:"status"`
	IsPaused      bool                 `json:"isPaused"`
	RemainingTime int                  `json:"remainingTime"`
	Preset        model.ActivePreset   `json:"preset"`
	CurrentStep   *model.TreatmentStep `json:"currentStep"`
}

type commandResult struct {
	Applied bool `json:"applied"`
	Bed     Bed  `json:"bed"`
}

// SyncStatus mirrors GET /api/sync/status.
type SyncStatus struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type apiError struct {
	Error string `json:"error"`
}

// Client talks to a physiotrackd HTTP API.
type Client struct {
	http *resty.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(200 * time.Millisecond).
			SetHeader("Accept", "application/json"),
	}
}

func (c *Client) Beds() ([]Bed, error) {
	var beds []Bed
	if err := c.do(c.http.R().SetResult(&beds), "GET", "/api/beds"); err != nil {
		return nil, err
	}
	return beds, nil
}

// Command posts a body-less bed command such as "advance" or "pause".
func (c *Client) Command(id int, name string) (Bed, bool, error) {
	var res commandResult
	path := fmt.Sprintf("/api/beds/%d/%s", id, name)
	if err := c.do(c.http.R().SetResult(&res), "POST", path); err != nil {
		return Bed{}, false, err
	}
	return res.Bed, res.Applied, nil
}

func (c *Client) Reset() ([]Bed, error) {
	var beds []Bed
	if err := c.do(c.http.R().SetResult(&beds), "POST", "/api/beds/reset"); err != nil {
		return nil, err
	}
	return beds, nil
}

func (c *Client) SyncStatus() (SyncStatus, error) {
	var st SyncStatus
	if err := c.do(c.http.R().SetResult(&st), "GET", "/api/sync/status"); err != nil {
		return SyncStatus{}, err
	}
	return st, nil
}

func (c *Client) do(req *resty.Request, method, path string) error {
	var apiErr apiError
	resp, err := req.SetError(&apiErr).Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		if apiErr.Error != "" {
			return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode(), apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status())
	}
	return nil
}
