// internal/corpus/elastic.go
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticIndex backs the retriever with an Elasticsearch index. Queries
// are a multi_match over title, body, and tags with the title boosted.
type ElasticIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticIndex(client *elasticsearch.Client, index string) *ElasticIndex {
	return &ElasticIndex{client: client, index: index}
}

func (e *ElasticIndex) Add(ctx context.Context, passages ...Passage) error {
	for _, p := range passages {
		if p.IndexedAt.IsZero() {
			p.IndexedAt = time.Now()
		}

		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal passage %s: %w", p.ID, err)
		}

		req := esapi.IndexRequest{
			Index:      e.index,
			DocumentID: p.ID,
			Body:       strings.NewReader(string(body)),
			Refresh:    "true",
		}
		res, err := req.Do(ctx, e.client)
		if err != nil {
			return fmt.Errorf("index passage %s: %w", p.ID, err)
		}
		res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("index passage %s: %s", p.ID, res.Status())
		}
	}
	return nil
}

func (e *ElasticIndex) Search(ctx context.Context, query string, k int) ([]ScoredPassage, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return []ScoredPassage{}, nil
	}

	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^3", "body^2", "tags"},
				"type":   "best_fields",
			},
		},
	}
	body, _ := json.Marshal(queryBody)

	size := k
	req := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search query failed: %s", res.String())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				ID     string  `json:"_id"`
				Score  float64 `json:"_score"`
				Source Passage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	scored := make([]ScoredPassage, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		p := hit.Source
		if p.ID == "" {
			p.ID = hit.ID
		}
		scored = append(scored, ScoredPassage{Passage: p, Score: hit.Score})
	}
	return scored, nil
}

func (e *ElasticIndex) Count(ctx context.Context) (int, error) {
	req := esapi.CountRequest{Index: []string{e.index}}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		// A missing index counts as empty so first-boot seeding can run.
		if res.StatusCode == http.StatusNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("count failed: %s", res.Status())
	}

	var r struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, err
	}
	return r.Count, nil
}
