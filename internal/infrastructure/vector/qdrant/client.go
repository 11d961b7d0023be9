package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// Client stores trial segments in one qdrant collection carrying a dense
// named vector and a sparse named vector per point, so both retrieval legs
// run against the same candidate pool.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) IndexSegments(
	ctx context.Context,
	trial *domain.TrialRecord,
	segments []domain.TrialSegment,
	vectors [][]float32,
) error {
	if len(segments) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(segments) != len(vectors) {
		return fmt.Errorf("segments/vectors mismatch")
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	conditions := make([]string, 0, len(trial.Conditions))
	for _, condition := range trial.Conditions {
		if normalized := normalizeKeyword(condition); normalized != "" {
			conditions = append(conditions, normalized)
		}
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  map[string]any `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(segments))
	for i, segment := range segments {
		points = append(points, point{
			ID: uuid.NewString(),
			Vector: map[string]any{
				denseVectorName:  vectors[i],
				sparseVectorName: encodeSparseSegment(segment.Text, trial.Title),
			},
			Payload: map[string]any{
				"trial_id":   trial.ID,
				"title":      trial.Title,
				"status":     normalizeKeyword(trial.Status),
				"phase":      normalizeKeyword(trial.Phase),
				"conditions": conditions,
				"section":    segment.Section,
				"seg_index":  segment.Index,
				"text":       segment.Text,
			},
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant upsert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return fmt.Errorf("qdrant upsert status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("qdrant upsert status: %s", resp.Status)
	}
	return nil
}

func (c *Client) SearchDense(
	ctx context.Context,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.ScoredSegment, error) {
	if len(queryVector) == 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   denseVectorName,
			"vector": queryVector,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if clause := buildTrialFilter(filter); clause != nil {
		reqBody["filter"] = clause
	}
	return c.searchPoints(ctx, reqBody, "dense")
}

func (c *Client) SearchSparse(
	ctx context.Context,
	queryText string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.ScoredSegment, error) {
	sparse := encodeSparseQuery(queryText)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   sparseVectorName,
			"vector": sparse,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if clause := buildTrialFilter(filter); clause != nil {
		reqBody["filter"] = clause
	}
	return c.searchPoints(ctx, reqBody, "sparse")
}

func (c *Client) searchPoints(ctx context.Context, reqBody map[string]any, leg string) ([]domain.ScoredSegment, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal %s search body: %w", leg, err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s search request: %w", leg, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant %s search request: %w", leg, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return nil, fmt.Errorf("qdrant %s search status: %s: %s", leg, resp.Status, msg)
		}
		return nil, fmt.Errorf("qdrant %s search status: %s", leg, resp.Status)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode %s search response: %w", leg, err)
	}

	out := make([]domain.ScoredSegment, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.ScoredSegment{
			Segment: domain.TrialSegment{
				TrialID: getStringPayload(r.Payload, "trial_id"),
				Index:   getIntPayload(r.Payload, "seg_index"),
				Section: getStringPayload(r.Payload, "section"),
				Text:    getStringPayload(r.Payload, "text"),
			},
			Score: r.Score,
		})
	}
	return out, nil
}

func buildTrialFilter(filter domain.SearchFilter) map[string]any {
	var must []map[string]any
	if filter.Status != "" {
		must = append(must, matchClause("status", normalizeKeyword(filter.Status)))
	}
	if filter.Phase != "" {
		must = append(must, matchClause("phase", normalizeKeyword(filter.Phase)))
	}
	// Conditions are stored as a keyword array; a match clause hits any element.
	if filter.Condition != "" {
		must = append(must, matchClause("conditions", normalizeKeyword(filter.Condition)))
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func matchClause(key, value string) map[string]any {
	return map[string]any{
		"key": key,
		"match": map[string]any{
			"value": value,
		},
	}
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 if already exists (depends on version/config).
	if resp.StatusCode == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return fmt.Errorf("qdrant ensure collection status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("qdrant ensure collection status: %s", resp.Status)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func normalizeKeyword(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return int(i)
	default:
		return 0
	}
}
