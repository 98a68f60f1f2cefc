package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// WebhookConfig holds configuration for batched event export
type WebhookConfig struct {
	URL       string
	APIKey    string
	BatchSize int
	Interval  time.Duration
}

// WebhookExporter batches events and posts them to an external endpoint.
// Export failures are logged and the batch is dropped; events are an audit
// feed and never block the staking operations that produced them.
type WebhookExporter struct {
	config     WebhookConfig
	httpClient *retryablehttp.Client

	mutex      sync.Mutex
	batch      []Record
	lastExport time.Time
	exported   int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWebhookExporter creates the exporter and starts its periodic flush loop
func NewWebhookExporter(config WebhookConfig) (*WebhookExporter, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("webhook URL not configured")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	ctx, cancel := context.WithCancel(context.Background())
	e := &WebhookExporter{
		config:     config,
		httpClient: client,
		batch:      make([]Record, 0, config.BatchSize),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go e.periodicExport(ctx)

	logrus.WithField("url", config.URL).Info("Event webhook exporter initialized")
	return e, nil
}

// Emit implements Sink.
func (e *WebhookExporter) Emit(_ context.Context, r Record) {
	e.mutex.Lock()
	e.batch = append(e.batch, r)
	full := len(e.batch) >= e.config.BatchSize
	e.mutex.Unlock()

	if full {
		go func() {
			if err := e.Flush(context.Background()); err != nil {
				logrus.Errorf("Failed to export events: %v", err)
			}
		}()
	}
}

func (e *WebhookExporter) periodicExport(ctx context.Context) {
	defer close(e.done)
	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.Flush(ctx); err != nil {
				logrus.Errorf("Failed to export events: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Flush posts the pending batch, if any
func (e *WebhookExporter) Flush(ctx context.Context) error {
	e.mutex.Lock()
	if len(e.batch) == 0 {
		e.mutex.Unlock()
		return nil
	}
	records := e.batch
	e.batch = make([]Record, 0, e.config.BatchSize)
	e.lastExport = time.Now()
	e.mutex.Unlock()

	payload := struct {
		Events     []Record `json:"events"`
		ExportTime string   `json:"export_time"`
		Count      int      `json:"count"`
	}{
		Events:     records,
		ExportTime: time.Now().UTC().Format(time.RFC3339),
		Count:      len(records),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}

	e.mutex.Lock()
	e.exported += len(records)
	e.mutex.Unlock()
	logrus.Debugf("Exported %d events to webhook", len(records))
	return nil
}

// Stop ends the flush loop and exports whatever is still pending
func (e *WebhookExporter) Stop(ctx context.Context) error {
	e.cancel()
	<-e.done
	return e.Flush(ctx)
}

// Status returns the current state of the exporter
func (e *WebhookExporter) Status() map[string]interface{} {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	status := map[string]interface{}{
		"batch_size":    e.config.BatchSize,
		"interval":      e.config.Interval.String(),
		"current_batch": len(e.batch),
		"exported":      e.exported,
	}
	if !e.lastExport.IsZero() {
		status["last_export"] = e.lastExport.Format(time.RFC3339)
	}
	return status
}
