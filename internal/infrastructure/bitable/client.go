package bitable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nvclab/student-sync/internal/config"
	domain "github.com/nvclab/student-sync/internal/domain/sync"
)

const listPageSize = 500

// Client talks to the bitable records API. Every request runs under the
// retry policy and carries a token from the shared token manager.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenManager
	retry      RetryPolicy
	logger     *slog.Logger
}

func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		tokens:     NewTokenManager(cfg.AppID, cfg.AppSecret, cfg.BaseURL, httpClient),
		retry:      DefaultRetryPolicy(),
		logger:     logger,
	}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type apiRecord struct {
	RecordID string         `json:"record_id"`
	Fields   map[string]any `json:"fields"`
}

func (r apiRecord) toDomain() domain.Record {
	return domain.Record{ID: r.RecordID, Fields: r.Fields}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	return c.retry.Do(ctx, func() error {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}

		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return err
			}
			reader = bytes.NewReader(payload)
		}

		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &APIError{Status: resp.StatusCode, Message: string(raw)}
		}

		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if env.Code != 0 {
			return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Msg}
		}
		if out != nil {
			if err := json.Unmarshal(env.Data, out); err != nil {
				return fmt.Errorf("decode response data: %w", err)
			}
		}
		return nil
	})
}

func recordsPath(table domain.TableRef) string {
	return fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records", table.AppToken, table.TableID)
}

// ListRecords pages through the whole table.
func (c *Client) ListRecords(ctx context.Context, table domain.TableRef) ([]domain.Record, error) {
	var all []domain.Record
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("page_size", strconv.Itoa(listPageSize))
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		var data struct {
			Items     []apiRecord `json:"items"`
			HasMore   bool        `json:"has_more"`
			PageToken string      `json:"page_token"`
		}
		if err := c.do(ctx, http.MethodGet, recordsPath(table), query, nil, &data); err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}

		for _, item := range data.Items {
			all = append(all, item.toDomain())
		}
		if !data.HasMore || data.PageToken == "" {
			break
		}
		pageToken = data.PageToken
	}

	c.logger.Debug("listed records", "table", table.TableID, "count", len(all))
	return all, nil
}

// FindRecord scans the table for the first record whose field equals value.
// The server-side filter syntax has proven unreliable, so filtering happens
// client-side over the paged scan, the way the records are cached anyway.
func (c *Client) FindRecord(ctx context.Context, table domain.TableRef, field, value string) (*domain.Record, error) {
	records, err := c.ListRecords(ctx, table)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].FieldString(field) == value {
			return &records[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s=%q", domain.ErrRecordNotFound, field, value)
}

func (c *Client) CreateRecord(ctx context.Context, table domain.TableRef, fields map[string]any) (string, error) {
	var data struct {
		Record apiRecord `json:"record"`
	}
	body := map[string]any{"fields": fields}
	if err := c.do(ctx, http.MethodPost, recordsPath(table), nil, body, &data); err != nil {
		return "", fmt.Errorf("create record: %w", err)
	}
	c.logger.Debug("created record", "table", table.TableID, "record_id", data.Record.RecordID)
	return data.Record.RecordID, nil
}

func (c *Client) UpdateRecord(ctx context.Context, table domain.TableRef, recordID string, fields map[string]any) error {
	body := map[string]any{"fields": fields}
	if err := c.do(ctx, http.MethodPut, recordsPath(table)+"/"+recordID, nil, body, nil); err != nil {
		return fmt.Errorf("update record %s: %w", recordID, err)
	}
	return nil
}

// CreateLink points the link field of the source row at the target row. The
// bidirectional link field type takes an array of record ids.
func (c *Client) CreateLink(ctx context.Context, source domain.TableRef, sourceID string, target domain.TableRef, targetID, linkField string) error {
	_ = target
	if err := c.UpdateRecord(ctx, source, sourceID, map[string]any{
		linkField: []string{targetID},
	}); err != nil {
		return fmt.Errorf("link %s -> %s: %w", sourceID, targetID, err)
	}
	return nil
}
