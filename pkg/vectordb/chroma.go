package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const defaultTimeout = 30 * time.Second

var _ Store = (*Chroma)(nil)

// Chroma queries one collection of a Chroma server over its REST API.
// Construct it once at process start and inject it wherever a Store is
// needed; it is safe for concurrent queries.
type Chroma struct {
	baseURL    string
	collection string
	embedder   Embedder
	client     *http.Client

	mu           sync.Mutex
	collectionID string
}

// NewChroma creates a client for the named collection. The baseURL points at
// the Chroma server root (no trailing slash). A nil httpClient gets a default
// with a 30-second timeout.
func NewChroma(baseURL, collection string, embedder Embedder, httpClient *http.Client) *Chroma {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Chroma{
		baseURL:    baseURL,
		collection: collection,
		embedder:   embedder,
		client:     httpClient,
	}
}

// Query embeds the text and runs a ranked similarity search, optionally
// restricted by a metadata filter.
func (c *Chroma) Query(ctx context.Context, text string, nResults int, where Filter) (QueryResult, error) {
	id, err := c.resolveCollectionID(ctx)
	if err != nil {
		return QueryResult{}, err
	}

	embedding, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return QueryResult{}, fmt.Errorf("vectordb: embed query: %w", err)
	}

	reqBody := map[string]any{
		"query_embeddings": [][]float64{embedding},
		"n_results":        nResults,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if len(where) > 0 {
		reqBody["where"] = where
	}

	var resp struct {
		Documents [][]string         `json:"documents"`
		Metadatas [][]map[string]any `json:"metadatas"`
		Distances [][]float64        `json:"distances"`
	}
	path := fmt.Sprintf("/api/v1/collections/%s/query", url.PathEscape(id))
	if err := c.postJSON(ctx, path, reqBody, &resp); err != nil {
		return QueryResult{}, fmt.Errorf("vectordb: query %s: %w", c.collection, err)
	}

	// The server nests results per query embedding; we always send one.
	var result QueryResult
	if len(resp.Documents) > 0 {
		result.Documents = resp.Documents[0]
	}
	if len(resp.Metadatas) > 0 {
		result.Metadatas = resp.Metadatas[0]
	}
	if len(resp.Distances) > 0 {
		result.Distances = resp.Distances[0]
	}

	return result, nil
}

// resolveCollectionID looks up the collection's UUID by name. Only success
// is cached; a transient lookup failure is retried on the next query instead
// of poisoning the store for the process lifetime.
func (c *Chroma) resolveCollectionID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.collectionID != "" {
		return c.collectionID, nil
	}

	var resp struct {
		ID string `json:"id"`
	}
	path := "/api/v1/collections/" + url.PathEscape(c.collection)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return "", fmt.Errorf("vectordb: resolve collection %s: %w", c.collection, err)
	}

	c.collectionID = resp.ID
	return c.collectionID, nil
}

func (c *Chroma) getJSON(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.doJSON(req, dest)
}

func (c *Chroma) postJSON(ctx context.Context, path string, payload, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doJSON(req, dest)
}

func (c *Chroma) doJSON(req *http.Request, dest any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if dest == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
