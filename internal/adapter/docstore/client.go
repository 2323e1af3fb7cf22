package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"campus-rag/internal/domain"
)

// Field names carried by metadata documents. Older documents may lack any
// of them; decoding tolerates missing fields.
const (
	fieldGroupID  = "group_id"
	fieldFileID   = "file_id"
	fieldChunkIDs = "chunks"
)

// Client talks to a schemaless document store over its REST API. Records
// are keyed by arbitrary string ids and queried by exact field value or
// array containment.
type Client struct {
	baseURL    string
	projectID  string
	database   string
	collection string
	tokens     oauth2.TokenSource
	client     *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL, projectID, database, collection string, tokens oauth2.TokenSource, client *http.Client, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		projectID:  projectID,
		database:   database,
		collection: collection,
		tokens:     tokens,
		client:     client,
		logger:     logger,
	}
}

func (c *Client) documentsURL() string {
	return fmt.Sprintf("%s/v1/projects/%s/databases/%s/documents", c.baseURL, c.projectID, c.database)
}

// value is the tagged-union value encoding of the document API. Only the
// variants the metadata schema uses are decoded.
type value struct {
	StringValue *string `json:"stringValue,omitempty"`
	ArrayValue  *struct {
		Values []value `json:"values"`
	} `json:"arrayValue,omitempty"`
}

type document struct {
	Name   string           `json:"name"`
	Fields map[string]value `json:"fields"`
}

func (c *Client) GetByID(ctx context.Context, id string) (*domain.MetadataRecord, error) {
	url := fmt.Sprintf("%s/%s/%s", c.documentsURL(), c.collection, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if err := c.authorize(req); err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document endpoint returned %d", resp.StatusCode)
	}

	var doc document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return recordFromDocument(&doc), nil
}

func (c *Client) FindByFileID(ctx context.Context, fileID string) (*domain.MetadataRecord, error) {
	return c.runQuery(ctx, fieldFileID, "EQUAL", fileID)
}

func (c *Client) FindByChunkID(ctx context.Context, chunkID string) (*domain.MetadataRecord, error) {
	return c.runQuery(ctx, fieldChunkIDs, "ARRAY_CONTAINS", chunkID)
}

type structuredQuery struct {
	StructuredQuery struct {
		From []struct {
			CollectionID string `json:"collectionId"`
		} `json:"from"`
		Where struct {
			FieldFilter struct {
				Field struct {
					FieldPath string `json:"fieldPath"`
				} `json:"field"`
				Op    string `json:"op"`
				Value value  `json:"value"`
			} `json:"fieldFilter"`
		} `json:"where"`
		Limit int `json:"limit"`
	} `json:"structuredQuery"`
}

type queryResult struct {
	Document *document `json:"document,omitempty"`
}

func (c *Client) runQuery(ctx context.Context, field, op, needle string) (*domain.MetadataRecord, error) {
	var q structuredQuery
	q.StructuredQuery.From = []struct {
		CollectionID string `json:"collectionId"`
	}{{CollectionID: c.collection}}
	q.StructuredQuery.Where.FieldFilter.Field.FieldPath = field
	q.StructuredQuery.Where.FieldFilter.Op = op
	q.StructuredQuery.Where.FieldFilter.Value = value{StringValue: &needle}
	q.StructuredQuery.Limit = 1

	payload, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.documentsURL()+":runQuery", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(req); err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("run query on %s: %w", field, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query endpoint returned %d", resp.StatusCode)
	}

	var results []queryResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode query results: %w", err)
	}

	for _, result := range results {
		if result.Document != nil {
			return recordFromDocument(result.Document), nil
		}
	}
	return nil, nil
}

func (c *Client) authorize(req *http.Request) error {
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("fetch token: %w", err)
	}
	token.SetAuthHeader(req)
	return nil
}

func recordFromDocument(doc *document) *domain.MetadataRecord {
	record := &domain.MetadataRecord{}
	if idx := strings.LastIndex(doc.Name, "/"); idx >= 0 {
		record.DocID = doc.Name[idx+1:]
	} else {
		record.DocID = doc.Name
	}

	if v, ok := doc.Fields[fieldGroupID]; ok && v.StringValue != nil {
		record.GroupID = *v.StringValue
	}
	if v, ok := doc.Fields[fieldFileID]; ok && v.StringValue != nil {
		record.FileID = *v.StringValue
	}
	if v, ok := doc.Fields[fieldChunkIDs]; ok && v.ArrayValue != nil {
		for _, elem := range v.ArrayValue.Values {
			if elem.StringValue != nil {
				record.ChunkIDs = append(record.ChunkIDs, *elem.StringValue)
			}
		}
	}
	return record
}

var _ domain.MetadataStore = (*Client)(nil)
