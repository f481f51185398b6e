package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/reportengine/internal/models"
	"github.com/reportengine/internal/scheduler"
)

type Client struct {
	baseURL    string
	user       string
	httpClient *http.Client
}

func NewClient() (*Client, error) {
	baseURL := os.Getenv("REPORTENGINE_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid REPORTENGINE_API_URL: %v", err)
	}

	return &Client{
		baseURL: baseURL,
		user:    os.Getenv("REPORTENGINE_USER"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type TriggerResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}

type ExecutionResponse struct {
	Execution  models.ReportExecution    `json:"execution"`
	Deliveries []models.ReportDeliveryLog `json:"deliveries"`
}

type ReloadResponse struct {
	Message string              `json:"message"`
	Jobs    []scheduler.JobInfo `json:"jobs"`
}

type HealthResponse struct {
	Status            string              `json:"status"`
	UptimeSeconds     int64               `json:"uptime_seconds"`
	RunningExecutions int64               `json:"running_executions"`
	SlotsInUse        int                 `json:"slots_in_use"`
	SlotsCapacity     int                 `json:"slots_capacity"`
	RegisteredJobs    int                 `json:"registered_jobs"`
	Jobs              []scheduler.JobInfo `json:"jobs"`
}

func (c *Client) ExecuteConfig(configID uint) (*TriggerResponse, error) {
	var resp TriggerResponse
	if err := c.post(fmt.Sprintf("/api/v1/configs/%d/execute", configID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) TriggerSchedule(scheduleID uint) (*TriggerResponse, error) {
	var resp TriggerResponse
	if err := c.post(fmt.Sprintf("/api/v1/schedules/%d/trigger", scheduleID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetExecution(executionID string) (*ExecutionResponse, error) {
	var resp ExecutionResponse
	if err := c.get(fmt.Sprintf("/api/v1/executions/%s", executionID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CancelExecution(executionID string) error {
	return c.post(fmt.Sprintf("/api/v1/executions/%s/cancel", executionID), nil, nil)
}

func (c *Client) ListJobs() ([]scheduler.JobInfo, error) {
	var jobs []scheduler.JobInfo
	if err := c.get("/api/v1/jobs", &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *Client) ReloadSchedules() (*ReloadResponse, error) {
	var resp ReloadResponse
	if err := c.post("/api/v1/schedules/reload", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetHealth() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get("/api/v1/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(endpoint string, v interface{}) error {
	resp, err := c.doRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) post(endpoint string, data, v interface{}) error {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %v", err)
		}
		body = bytes.NewReader(jsonData)
	}

	resp, err := c.doRequest(http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if v != nil {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

func (c *Client) doRequest(method, endpoint string, body io.Reader) (*http.Response, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %v", err)
	}
	u.Path = path.Join(u.Path, endpoint)

	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	if c.user != "" {
		req.Header.Set("X-User-ID", c.user)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("API error: %s", errResp.Error)
		}
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	return resp, nil
}
