package objstore

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

	"golang.org/x/oauth2"

	"campus-rag/internal/domain"
)

// Client reads and writes objects in one bucket of a JSON-API object
// store.
type Client struct {
	baseURL string
	bucket  string
	tokens  oauth2.TokenSource
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL, bucket string, tokens oauth2.TokenSource, client *http.Client, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		tokens:  tokens,
		client:  client,
		logger:  logger,
	}
}

func (c *Client) Download(ctx context.Context, path string) (string, error) {
	u := fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", c.baseURL, c.bucket, url.PathEscape(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if err := c.authorize(req); err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("object endpoint returned %d for %s", resp.StatusCode, path)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read object body: %w", err)
	}
	return string(data), nil
}

type listResponse struct {
	Items []struct {
		Name string `json:"name"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	pageToken := ""

	for {
		params := url.Values{}
		params.Set("prefix", prefix)
		params.Set("fields", "items(name),nextPageToken")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		u := fmt.Sprintf("%s/storage/v1/b/%s/o?%s", c.baseURL, c.bucket, params.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if err := c.authorize(req); err != nil {
			return nil, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("list prefix %s: %w", prefix, err)
		}

		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("list endpoint returned %d", resp.StatusCode)
		}

		var body listResponse
		err = json.NewDecoder(resp.Body).Decode(&body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode list response: %w", err)
		}

		for _, item := range body.Items {
			names = append(names, item.Name)
		}
		if body.NextPageToken == "" {
			break
		}
		pageToken = body.NextPageToken
	}

	c.logger.Debug("blob_list_completed",
		slog.String("prefix", prefix),
		slog.Int("objects", len(names)),
	)
	return names, nil
}

func (c *Client) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	params := url.Values{}
	params.Set("uploadType", "media")
	params.Set("name", path)

	u := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?%s", c.baseURL, c.bucket, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload endpoint returned %d for %s", resp.StatusCode, path)
	}

	c.logger.Info("blob_uploaded",
		slog.String("path", path),
		slog.Int("bytes", len(data)),
	)
	return nil
}

func (c *Client) authorize(req *http.Request) error {
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("fetch token: %w", err)
	}
	token.SetAuthHeader(req)
	return nil
}

var _ domain.BlobStore = (*Client)(nil)
