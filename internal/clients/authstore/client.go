package authstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/herbtrace/herbtrace-backend/internal/domain"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
)

// Submission is the outbound payload accepted by the authoritative store.
type Submission struct {
	QRCode       string          `json:"qrCode"`
	CollectionID string          `json:"collectionId"`
	Farmer       FarmerPayload   `json:"farmer"`
	Herb         HerbPayload     `json:"herb"`
	Location     LocationPayload `json:"location"`
	Timestamp    time.Time       `json:"timestamp"`
	Metadata     Metadata        `json:"metadata"`
}

type FarmerPayload struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	FarmerID string `json:"farmerId"`
	Village  string `json:"village"`
	District string `json:"district"`
	State    string `json:"state"`
}

type HerbPayload struct {
	BotanicalName string  `json:"botanicalName"`
	CommonName    string  `json:"commonName"`
	PartUsed      string  `json:"partUsed"`
	Quantity      float64 `json:"quantity"`
	Unit          string  `json:"unit"`
}

type LocationPayload struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

type Metadata struct {
	Source        string `json:"source"`
	DeviceInfo    string `json:"deviceInfo"`
	NetworkStatus string `json:"networkStatus"`
	SyncAttempt   int    `json:"syncAttempt"`
}

// SubmitResponse mirrors the store's envelope; any response without
// success=true counts as a transmission failure.
type SubmitResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

type Client interface {
	Submit(ctx context.Context, sub Submission, attempt int) (*SubmitResponse, error)
}

type Config struct {
	BaseURL      string
	PathVariants []string
	Timeout      time.Duration
	Source       string
	DeviceInfo   string
}

// defaultPathVariants are the ingest path spellings deployed store versions
// answer on, in priority order.
var defaultPathVariants = []string{
	"/api/v1/collections",
	"/api/collections",
	"/collections",
}

type client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing authoritative store base URL")
	}
	if len(cfg.PathVariants) == 0 {
		cfg.PathVariants = defaultPathVariants
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Source == "" {
		cfg.Source = "herbtrace-backend"
	}
	return &client{
		log:  log.With("client", "AuthStoreClient"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Submit posts the payload to each path variant in priority order and stops
// at the first acceptance. The per-request timeout converts a hung endpoint
// into a failure that feeds the caller's retry path.
func (c *client) Submit(ctx context.Context, sub Submission, attempt int) (*SubmitResponse, error) {
	sub.Metadata.Source = c.cfg.Source
	sub.Metadata.DeviceInfo = c.cfg.DeviceInfo
	sub.Metadata.SyncAttempt = attempt

	body, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	base := strings.TrimRight(c.cfg.BaseURL, "/")
	var lastErr error
	for _, path := range c.cfg.PathVariants {
		resp, err := c.post(ctx, base+path, body)
		if err != nil {
			lastErr = err
			c.log.Debug("submission endpoint refused", "path", path, "error", err)
			continue
		}
		c.log.Debug("submission accepted", "path", path, "qrCode", sub.QRCode)
		return resp, nil
	}
	return nil, fmt.Errorf("all submission endpoints failed: %w", lastErr)
}

func (c *client) post(ctx context.Context, url string, body []byte) (*SubmitResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out SubmitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("store rejected submission: %s", out.Message)
	}
	return &out, nil
}

// Transport adapts the client to the sync queue: it decodes the queued
// payload back into a Submission and forwards the item's attempt count so
// the store can correlate retries.
type Transport struct {
	client Client
}

func NewTransport(client Client) *Transport {
	return &Transport{client: client}
}

func (t *Transport) Send(ctx context.Context, item *domain.SyncItem) error {
	var sub Submission
	if err := json.Unmarshal(item.Payload, &sub); err != nil {
		return fmt.Errorf("decode queued submission %d: %w", item.ID, err)
	}
	_, err := t.client.Submit(ctx, sub, item.Attempts+1)
	return err
}
