// internal/pipeline/retrieve-context/handler.go
package retrievecontext

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"clarity-agent/internal/common/logger"
	"clarity-agent/internal/corpus"
)

const StageName = "retrieve-context"

// ErrRetrievalUnavailable reports that the passage index could not be
// consulted at all. No matches is not an error.
var ErrRetrievalUnavailable = errors.New("RETRIEVAL_UNAVAILABLE")

type Input struct {
	Query string `json:"query"`
	// TopK overrides the configured passage count when positive.
	TopK int `json:"topK,omitempty"`
}

type Output struct {
	Passages []corpus.ScoredPassage `json:"passages"`
	CacheHit bool                   `json:"cacheHit"`
}

// Handler grounds a turn in the passage corpus, with an optional redis
// read-through cache in front of the index.
type Handler struct {
	config      *Config
	index       corpus.Index
	redisClient *redis.Client
	logger      logger.Logger
}

// NewHandler builds a retrieve-context handler. redisClient may be nil;
// the cache is then skipped regardless of config.
func NewHandler(config *Config, index corpus.Index, redisClient *redis.Client, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Handler{
		config:      config,
		index:       index,
		redisClient: redisClient,
		logger:      log.WithFields(map[string]interface{}{"stage": StageName}),
	}
}

// Execute retrieves passages for one turn under the stage timeout.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}

	k := input.TopK
	if k <= 0 {
		k = h.config.TopK
	}

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return &Output{Passages: []corpus.ScoredPassage{}}, nil
	}

	cacheKey := h.cacheKey(query, k)
	if passages, ok := h.fromCache(ctx, cacheKey); ok {
		return &Output{Passages: passages, CacheHit: true}, nil
	}

	passages, err := h.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrRetrievalUnavailable, err)
	}

	// Ordering and truncation are enforced here so every backend hands
	// the manager the same shape for the same corpus.
	passages = corpus.DedupeNormalized(passages)
	corpus.SortDeterministic(passages)
	if len(passages) > k {
		passages = passages[:k]
	}
	if passages == nil {
		passages = []corpus.ScoredPassage{}
	}

	h.toCache(ctx, cacheKey, passages)

	h.logger.Debug("Context retrieved", map[string]interface{}{
		"passageCount": len(passages),
		"topK":         k,
	})

	return &Output{Passages: passages}, nil
}

func (h *Handler) cacheKey(query string, k int) string {
	sum := sha1.Sum([]byte(strings.ToLower(query)))
	return fmt.Sprintf("ctx:%x:%d", sum, k)
}

func (h *Handler) fromCache(ctx context.Context, key string) ([]corpus.ScoredPassage, bool) {
	if !h.config.CacheEnabled || h.redisClient == nil {
		return nil, false
	}
	val, err := h.redisClient.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var passages []corpus.ScoredPassage
	if err := json.Unmarshal([]byte(val), &passages); err != nil {
		return nil, false
	}
	return passages, true
}

func (h *Handler) toCache(ctx context.Context, key string, passages []corpus.ScoredPassage) {
	if !h.config.CacheEnabled || h.redisClient == nil || len(passages) == 0 {
		return
	}
	data, err := json.Marshal(passages)
	if err != nil {
		return
	}
	if err := h.redisClient.Set(ctx, key, data, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("Failed to cache retrieved passages", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
