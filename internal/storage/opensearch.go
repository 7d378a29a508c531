// Package storage maintains the OpenSearch secondary index of processed
// events and transactions. Indexing is best effort: Postgres is the source
// of truth and search lag is acceptable.
package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/faultline-systems/faultline/internal/models"
)

// Config holds OpenSearch connection and index configuration
type Config struct {
	URL             string
	Username        string
	Password        string
	TLSSkipVerify   bool
	IndexPrefix     string
	ShardCount      int
	ReplicaCount    int
	RefreshInterval string
}

// DefaultConfig returns sensible defaults for OpenSearch configuration
func DefaultConfig() Config {
	return Config{
		URL:             "https://localhost:9200",
		Username:        "admin",
		Password:        "admin",
		TLSSkipVerify:   true,
		IndexPrefix:     "faultline",
		ShardCount:      1,
		ReplicaCount:    0,
		RefreshInterval: "5s",
	}
}

// Client indexes processed documents into OpenSearch.
type Client struct {
	osClient    *opensearch.Client
	config      Config
	initialized bool
}

// NewClient creates a new OpenSearch client
func NewClient(cfg Config) (*Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		},
	}

	osCfg := opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &Client{
		osClient: client,
		config:   cfg,
	}, nil
}

// Initialize verifies connectivity and installs the index template.
func (c *Client) Initialize(ctx context.Context) error {
	if c.initialized {
		return nil
	}

	info, err := c.osClient.Info()
	if err != nil {
		return fmt.Errorf("failed to connect to opensearch: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	if err := c.createIndexTemplate(ctx); err != nil {
		return fmt.Errorf("failed to create index template: %w", err)
	}

	c.initialized = true
	slog.Info("OpenSearch initialized", slog.String("index_prefix", c.config.IndexPrefix))
	return nil
}

// EventsIndex returns the index name for error event documents.
func (c *Client) EventsIndex() string {
	return c.config.IndexPrefix + "-events"
}

// TransactionsIndex returns the index name for transaction documents.
func (c *Client) TransactionsIndex() string {
	return c.config.IndexPrefix + "-transactions"
}

// IndexEvent indexes a processed error event document keyed by event id, so
// a redelivered task overwrites rather than duplicates.
func (c *Client) IndexEvent(ctx context.Context, issue *models.Issue, event *models.Event) error {
	doc := map[string]any{
		"event_id":    event.EventID,
		"project_id":  event.ProjectID,
		"issue_id":    issue.ID,
		"fingerprint": issue.Fingerprint,
		"title":       issue.Title,
		"error_type":  issue.ErrorType,
		"received_at": event.ReceivedAt.Format(time.RFC3339Nano),
		"payload":     json.RawMessage(event.Payload),
	}
	return c.index(ctx, c.EventsIndex(), event.EventID, doc)
}

// IndexTransaction indexes a processed transaction document.
func (c *Client) IndexTransaction(ctx context.Context, tx *models.Transaction) error {
	doc := map[string]any{
		"transaction_id": tx.ID,
		"project_id":     tx.ProjectID,
		"name":           tx.Name,
		"measurements":   json.RawMessage(tx.Measurements),
		"received_at":    tx.ReceivedAt.Format(time.RFC3339Nano),
	}
	if tx.DurationMS != nil {
		doc["duration_ms"] = *tx.DurationMS
	}
	return c.index(ctx, c.TransactionsIndex(), tx.ID, doc)
}

func (c *Client) index(ctx context.Context, indexName, docID string, doc map[string]any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	res, err := c.osClient.Index(
		indexName,
		bytes.NewReader(body),
		c.osClient.Index.WithContext(ctx),
		c.osClient.Index.WithDocumentID(docID),
	)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		respBody, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index document: %s - %s", res.Status(), string(respBody))
	}

	return nil
}

func (c *Client) createIndexTemplate(ctx context.Context) error {
	template := map[string]any{
		"index_patterns": []string{c.config.IndexPrefix + "-*"},
		"template": map[string]any{
			"settings": map[string]any{
				"number_of_shards":   c.config.ShardCount,
				"number_of_replicas": c.config.ReplicaCount,
				"refresh_interval":   c.config.RefreshInterval,
				"codec":              "best_compression",
			},
			"mappings": c.getMappings(),
		},
		"priority": 100,
	}

	body, err := json.Marshal(template)
	if err != nil {
		return err
	}

	res, err := c.osClient.Indices.PutIndexTemplate(
		c.config.IndexPrefix+"-template",
		bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		respBody, _ := io.ReadAll(res.Body)
		return fmt.Errorf("failed to create index template: %s - %s", res.Status(), string(respBody))
	}

	return nil
}

func (c *Client) getMappings() map[string]any {
	return map[string]any{
		"dynamic": true,
		"dynamic_templates": []map[string]any{
			{
				"strings_as_keywords": map[string]any{
					"match_mapping_type": "string",
					"mapping": map[string]any{
						"type": "text",
						"fields": map[string]any{
							"keyword": map[string]any{
								"type":         "keyword",
								"ignore_above": 256,
							},
						},
					},
				},
			},
		},
		"properties": map[string]any{
			"received_at": map[string]any{
				"type": "date",
			},
			"project_id": map[string]any{
				"type": "long",
			},
			"issue_id": map[string]any{
				"type": "long",
			},
			"duration_ms": map[string]any{
				"type": "long",
			},
			"fingerprint": map[string]any{
				"type": "keyword",
			},
			"error_type": map[string]any{
				"type": "keyword",
			},
		},
	}
}
