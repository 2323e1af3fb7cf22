package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"campus-rag/internal/domain"
)

// groupNamespace is the restrict namespace every datapoint is tagged with
// at ingest time. Queries filter on it so one tenant can never see
// another tenant's hits.
const groupNamespace = "group_id"

// Index queries a deployed nearest-neighbor index endpoint over REST.
type Index struct {
	endpointURL     string
	deployedIndexID string
	tokens          oauth2.TokenSource
	client          *http.Client
	logger          *slog.Logger
}

// NewIndex constructs an index client. endpointURL is the full index
// endpoint resource URL; findNeighbors is appended per call.
func NewIndex(endpointURL, deployedIndexID string, tokens oauth2.TokenSource, client *http.Client, logger *slog.Logger) *Index {
	return &Index{
		endpointURL:     strings.TrimRight(endpointURL, "/"),
		deployedIndexID: deployedIndexID,
		tokens:          tokens,
		client:          client,
		logger:          logger,
	}
}

type findNeighborsRequest struct {
	DeployedIndexID string  `json:"deployedIndexId"`
	Queries         []query `json:"queries"`
}

type query struct {
	Datapoint     datapoint `json:"datapoint"`
	NeighborCount int       `json:"neighborCount"`
}

type datapoint struct {
	FeatureVector []float32  `json:"featureVector"`
	Restricts     []restrict `json:"restricts,omitempty"`
}

type restrict struct {
	Namespace string   `json:"namespace"`
	AllowList []string `json:"allowList"`
}

type findNeighborsResponse struct {
	NearestNeighbors []struct {
		Neighbors []struct {
			Datapoint struct {
				DatapointID string `json:"datapointId"`
			} `json:"datapoint"`
			Distance float32 `json:"distance"`
		} `json:"neighbors"`
	} `json:"nearestNeighbors"`
}

func (i *Index) Search(ctx context.Context, groupID string, embedding []float32, topK int) ([]domain.VectorHit, error) {
	start := time.Now()

	payload, err := json.Marshal(findNeighborsRequest{
		DeployedIndexID: i.deployedIndexID,
		Queries: []query{{
			Datapoint: datapoint{
				FeatureVector: embedding,
				Restricts: []restrict{{
					Namespace: groupNamespace,
					AllowList: []string{groupID},
				}},
			},
			NeighborCount: topK,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrSearchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpointURL+":findNeighbors", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrSearchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := i.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: fetch token: %v", domain.ErrSearchFailed, err)
	}
	token.SetAuthHeader(req)

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: index endpoint returned %d", domain.ErrSearchFailed, resp.StatusCode)
	}

	var body findNeighborsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrSearchFailed, err)
	}

	var hits []domain.VectorHit
	if len(body.NearestNeighbors) > 0 {
		for _, n := range body.NearestNeighbors[0].Neighbors {
			if n.Datapoint.DatapointID == "" {
				continue
			}
			hits = append(hits, domain.VectorHit{
				ID:    n.Datapoint.DatapointID,
				Score: n.Distance,
			})
		}
	}

	i.logger.Info("vector_search_completed",
		slog.String("group_id", groupID),
		slog.Int("hits", len(hits)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return hits, nil
}

var _ domain.VectorIndex = (*Index)(nil)
