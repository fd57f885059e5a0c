// cmd/agentd/main.go
//
// agentd wires the conversational pipeline together and serves it over
// HTTP: risk gate, intent classifier, context retriever, composer, tool
// registry and session store behind the dialogue manager. Backing
// clients (Redis, PostgreSQL, Elasticsearch, AWS) are initialized only
// for the features the configuration enables.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"clarity-agent/internal/common/config"
	"clarity-agent/internal/common/database"
	commonerrors "clarity-agent/internal/common/errors"
	"clarity-agent/internal/common/logger"
	"clarity-agent/internal/common/observability"
	"clarity-agent/internal/corpus"
	"clarity-agent/internal/dialogue"
	"clarity-agent/internal/escalation"
	"clarity-agent/internal/journal"
	"clarity-agent/internal/models"
	assessrisk "clarity-agent/internal/pipeline/assess-risk"
	classifyintent "clarity-agent/internal/pipeline/classify-intent"
	composereply "clarity-agent/internal/pipeline/compose-reply"
	retrievecontext "clarity-agent/internal/pipeline/retrieve-context"
	"clarity-agent/internal/session"
	focustimer "clarity-agent/internal/tools/focus-timer"
	"clarity-agent/internal/tools/journaling"
	studyplan "clarity-agent/internal/tools/study-plan"
	"clarity-agent/pkg/tools"
)

const serviceName = "agentd"

// retryWithBackoff retries an operation with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")

	zapLog.Info("Starting agentd...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Rebuild the logger at the configured level and format.
	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New(serviceName)
	defer obs.Shutdown()

	var tracing *observability.Tracing
	if cfg.Observability.Tracing.Enabled {
		tracing, err = observability.NewTracing(serviceName, cfg.Observability.Tracing.JaegerEndpoint, cfg.Observability.Tracing.SampleRatio)
		if err != nil {
			zapLog.Warn("Tracing initialization failed, continuing without tracing", zap.Error(err))
			tracing = nil
		} else {
			defer tracing.Shutdown()
			zapLog.Info("Tracing initialized",
				zap.String("endpoint", cfg.Observability.Tracing.JaegerEndpoint),
				zap.Float64("sampleRatio", cfg.Observability.Tracing.SampleRatio))
		}
	}

	ctx := context.Background()

	// Redis backs the session store, the retrieval cache and the focus
	// timer. Connect when any of those is configured.
	var redisClient *database.RedisClient
	needRedis := cfg.Session.Backend == config.SessionBackendRedis ||
		cfg.Corpus.Cache.Enabled ||
		cfg.Database.Redis.Address != ""
	if needRedis {
		err = retryWithBackoff(func() error {
			var rerr error
			redisClient, rerr = database.NewRedis(cfg.Database.Redis)
			if rerr != nil {
				return rerr
			}
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		zapLog.Info("Connected to Redis", zap.String("address", cfg.Database.Redis.Address))
	}

	// PostgreSQL backs the journal store.
	var journalStore *journal.Store
	if cfg.Journal.Enabled {
		var postgresClient *database.PostgresClient
		err = retryWithBackoff(func() error {
			var perr error
			postgresClient, perr = database.NewPostgres(cfg.Database.Postgres)
			if perr != nil {
				return perr
			}
			return postgresClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		defer postgresClient.Close()
		zapLog.Info("Connected to PostgreSQL", zap.String("host", cfg.Database.Postgres.Host))

		journalStore = journal.NewStore(postgresClient.GetDB(), log)
		if err := journalStore.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("Failed to ensure journal schema", zap.Error(err))
		}
	}

	// Knowledge corpus: Elasticsearch when configured, in-memory otherwise.
	var index corpus.Index
	if cfg.Corpus.Backend == config.CorpusBackendElasticsearch {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var eerr error
			esClient, eerr = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if eerr != nil {
				return eerr
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("Failed to connect to Elasticsearch", zap.Error(err))
		}
		zapLog.Info("Connected to Elasticsearch", zap.String("index", cfg.Corpus.Index))
		index = corpus.NewElasticIndex(esClient.Client, cfg.Corpus.Index)
	} else {
		index = corpus.NewMemoryIndex()
	}

	if cfg.Corpus.SeedData {
		if err := corpus.Seed(ctx, index); err != nil {
			zapLog.Fatal("Failed to seed knowledge corpus", zap.Error(err))
		}
		zapLog.Info("Knowledge corpus seeded", zap.String("backend", cfg.Corpus.Backend))
	}

	// Pipeline stages. The risk gate is mandatory; the others degrade
	// gracefully when disabled.
	riskHandler, err := assessrisk.NewHandler(assessrisk.FromAppConfig(cfg), log)
	if err != nil {
		zapLog.Fatal("Failed to initialize risk detector", zap.Error(err))
	}

	var intentHandler *classifyintent.Handler
	if config.IsStageEnabled(cfg, classifyintent.StageName) {
		intentHandler, err = classifyintent.NewHandler(classifyintent.FromAppConfig(cfg), log)
		if err != nil {
			zapLog.Fatal("Failed to initialize intent classifier", zap.Error(err))
		}
		zapLog.Info("Intent classifier enabled")
	}

	var retrieverHandler *retrievecontext.Handler
	if config.IsStageEnabled(cfg, retrievecontext.StageName) {
		var cacheClient *redis.Client
		if redisClient != nil && cfg.Corpus.Cache.Enabled {
			cacheClient = redisClient.GetClient()
		}
		retrieverHandler = retrievecontext.NewHandler(retrievecontext.FromAppConfig(cfg), index, cacheClient, log)
		zapLog.Info("Context retriever enabled",
			zap.String("backend", cfg.Corpus.Backend),
			zap.Bool("cache", cacheClient != nil))
	}

	composer := composereply.New(composereply.FromAppConfig(cfg), log)

	// Tool registry. Each tool family registers only when its backing
	// client is available.
	registry := tools.NewRegistry(log)

	if redisClient != nil {
		timer := focustimer.NewTimer(focustimer.FromAppConfig(cfg), redisClient.GetClient(), log)
		if err := focustimer.Register(registry, timer); err != nil {
			zapLog.Fatal("Failed to register focus timer tools", zap.Error(err))
		}
		zapLog.Info("Focus timer tools registered")
	}

	if journalStore != nil {
		executors := journaling.NewExecutors(journalStore, journaling.FromAppConfig(cfg), log)
		if err := journaling.Register(registry, executors); err != nil {
			zapLog.Fatal("Failed to register journaling tools", zap.Error(err))
		}
		zapLog.Info("Journaling tools registered")
	}

	if err := studyplan.Register(registry); err != nil {
		zapLog.Fatal("Failed to register study plan tool", zap.Error(err))
	}

	if cfg.Tools.RegistryFile != "" {
		file, err := tools.LoadRegistryFile(cfg.Tools.RegistryFile)
		if err != nil {
			zapLog.Fatal("Failed to load tool registry file",
				zap.String("path", cfg.Tools.RegistryFile), zap.Error(err))
		}
		if err := registry.ApplyOverrides(file); err != nil {
			zapLog.Fatal("Failed to apply tool registry overrides", zap.Error(err))
		}
		zapLog.Info("Tool registry overrides applied",
			zap.String("path", cfg.Tools.RegistryFile), zap.String("version", file.Version))
	}

	// Crisis notifier. Construction fails only when an enabled channel
	// cannot build its AWS client; a disabled notifier needs nothing.
	notifier, err := escalation.NewNotifier(ctx, escalation.FromAppConfig(cfg), log)
	if err != nil {
		zapLog.Fatal("Failed to initialize crisis notifier", zap.Error(err))
	}

	var store session.Store
	if cfg.Session.Backend == config.SessionBackendRedis && redisClient != nil {
		store = session.NewRedisStore(redisClient.GetClient(),
			time.Duration(cfg.Session.TTLMinutes)*time.Minute, cfg.Session.HistoryLimit, log)
		zapLog.Info("Session store: redis", zap.Int("ttlMinutes", cfg.Session.TTLMinutes))
	} else {
		store = session.NewMemoryStore(cfg.Session.HistoryLimit)
		zapLog.Info("Session store: memory", zap.Int("historyLimit", cfg.Session.HistoryLimit))
	}

	manager, err := dialogue.NewManager(dialogue.FromAppConfig(cfg), dialogue.Deps{
		Risk:       riskHandler,
		Classifier: intentHandler,
		Retriever:  retrieverHandler,
		Composer:   composer,
		Registry:   registry,
		Store:      store,
		Notifier:   notifier,
		Tracing:    tracing,
		Obs:        obs,
	}, log)
	if err != nil {
		zapLog.Fatal("Failed to initialize dialogue manager", zap.Error(err))
	}

	api := &apiServer{
		manager: manager,
		errs:    commonerrors.NewErrorHandler(log.WithFields(map[string]interface{}{"component": "http-api"})),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/turns", api.handleTurn)
	mux.HandleFunc("POST /v1/conversations/{id}/risk/reset", api.handleRiskReset)
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /ready", handleReady)
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}
	// pprof registers on the default mux via its side-effect import.
	mux.Handle("/debug/", http.DefaultServeMux)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	zapLog.Info("agentd started successfully",
		zap.Bool("classifier", intentHandler != nil),
		zap.Bool("retriever", retrieverHandler != nil),
		zap.Int("tools", len(registry.List())),
		zap.String("corpusBackend", cfg.Corpus.Backend),
		zap.String("sessionBackend", cfg.Session.Backend))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutting down agentd...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown error", zap.Error(err))
	}

	zapLog.Info("agentd shutdown complete")
}

// apiServer exposes the dialogue manager over HTTP.
type apiServer struct {
	manager *dialogue.Manager
	errs    *commonerrors.ErrorHandler
}

// turnRequest is the POST /v1/turns body.
type turnRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// resetRequest is the POST /v1/conversations/{id}/risk/reset body.
type resetRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// turnResponse carries the turn outcome and, when the turn completed
// under a fault (risk fail-safe, unknown tool), the code it completed
// under. Outcome and Error can both be set.
type turnResponse struct {
	Outcome *models.TurnOutcome `json:"outcome,omitempty"`
	Error   *errorBody          `json:"error,omitempty"`
}

func (s *apiServer) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, turnResponse{Error: &errorBody{
			Code:    string(commonerrors.ErrCodeValidation),
			Message: "request body must be JSON with conversation_id and text",
		}})
		return
	}

	outcome, err := s.manager.ProcessTurn(r.Context(), req.ConversationID, req.Text)
	if outcome == nil && err != nil {
		s.errs.Handle("process-turn", err, map[string]interface{}{"conversationId": req.ConversationID})
		writeJSON(w, statusForError(err), turnResponse{Error: toErrorBody(err)})
		return
	}

	resp := turnResponse{Outcome: outcome}
	if err != nil {
		resp.Error = toErrorBody(err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleRiskReset(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]*errorBody{"error": {
			Code:    string(commonerrors.ErrCodeValidation),
			Message: "request body must be JSON with actor and reason",
		}})
		return
	}

	summary, err := s.manager.ResetRisk(r.Context(), conversationID, req.Actor, req.Reason)
	if err != nil {
		status := statusForError(err)
		if errors.Is(err, session.ErrNotFound) {
			status = http.StatusNotFound
		} else {
			s.errs.Handle("reset-risk", err, map[string]interface{}{"conversationId": conversationID})
		}
		writeJSON(w, status, map[string]*errorBody{"error": toErrorBody(err)})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func statusForError(err error) int {
	switch {
	case commonerrors.HasCode(err, commonerrors.ErrCodeValidation):
		return http.StatusBadRequest
	case commonerrors.HasCode(err, commonerrors.ErrCodeSessionStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toErrorBody(err error) *errorBody {
	return &errorBody{
		Code:    string(commonerrors.CodeOf(err)),
		Message: err.Error(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
