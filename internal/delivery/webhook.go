package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookAdapter POSTs a JSON notice to each recipient URL. The artifact
// itself stays on disk; the payload carries its location and the resolved
// window so the receiver can fetch or reconcile.
type WebhookAdapter struct {
	client *http.Client
}

type webhookConfig struct {
	Headers        map[string]string `json:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds"`
}

func NewWebhookAdapter() *WebhookAdapter {
	return &WebhookAdapter{client: &http.Client{Timeout: 30 * time.Second}}
}

func (a *WebhookAdapter) Send(ctx context.Context, methodConfig string, recipients []string, artifact Artifact, vars map[string]string) (Detail, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipient URLs for webhook delivery")
	}

	var wc webhookConfig
	if methodConfig != "" {
		if err := json.Unmarshal([]byte(methodConfig), &wc); err != nil {
			return nil, fmt.Errorf("invalid webhook delivery config: %v", err)
		}
	}

	client := a.client
	if wc.TimeoutSeconds > 0 {
		client = &http.Client{Timeout: time.Duration(wc.TimeoutSeconds) * time.Second}
	}

	payload, err := json.Marshal(map[string]interface{}{
		"report_name":     artifact.ReportName,
		"file_name":       artifact.FileName,
		"file_path":       artifact.Path,
		"file_size_bytes": artifact.SizeBytes,
		"format":          artifact.Format,
		"time_range":      vars,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %v", err)
	}

	statuses := make(map[string]int, len(recipients))
	for _, url := range recipients {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("webhook request to %s: %v", url, err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range wc.Headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("webhook POST to %s: %v", url, err)
		}
		resp.Body.Close()
		statuses[url] = resp.StatusCode
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("webhook %s returned status %d", url, resp.StatusCode)
		}
	}

	return Detail{"status_codes": statuses}, nil
}
