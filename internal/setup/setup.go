// Package setup builds the dependencies shared by the API server and the
// worker from the environment.
package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/aletheia-codex/backend/internal/cache"
	"github.com/aletheia-codex/backend/internal/secrets"
	"github.com/aletheia-codex/backend/internal/storage"
	"github.com/aletheia-codex/backend/internal/util"
	"github.com/aletheia-codex/backend/pkg/ai"
	anthropicai "github.com/aletheia-codex/backend/pkg/ai/anthropic"
	ollamaai "github.com/aletheia-codex/backend/pkg/ai/ollama"
	openaiai "github.com/aletheia-codex/backend/pkg/ai/openai"
	"github.com/aletheia-codex/backend/pkg/graph"
	"github.com/aletheia-codex/backend/pkg/leaselock"
	"github.com/aletheia-codex/backend/pkg/loader"
	"github.com/aletheia-codex/backend/pkg/loader/doc"
	"github.com/aletheia-codex/backend/pkg/loader/web"
	"github.com/aletheia-codex/backend/pkg/logger"
	"github.com/aletheia-codex/backend/pkg/review"
	"github.com/aletheia-codex/backend/pkg/store"
	"github.com/aletheia-codex/backend/pkg/store/memory"
	neo4jstore "github.com/aletheia-codex/backend/pkg/store/neo4j"
	pgxstore "github.com/aletheia-codex/backend/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
)

// Deps holds the long lived clients of a process. Close releases them.
type Deps struct {
	Cache    cache.Cache
	Secrets  *secrets.Resolver
	Reviews  store.ReviewRepository
	Graph    store.GraphStore
	Storage  storage.DocumentStorage
	Locks    *leaselock.Client
	Queue    *review.Queue
	Workflow *review.Workflow
	Batch    *review.BatchProcessor

	// DatabaseURL is set when the pgx backend is in use.
	DatabaseURL string

	closers []func()
}

// Init connects every backend selected by the environment. Backends that
// are not configured fall back to in-memory implementations, which is only
// useful for local development and tests.
func Init(ctx context.Context) (*Deps, error) {
	d := &Deps{}
	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	var rdb *goredis.Client
	if addr := util.GetEnv("REDIS_ADDR"); addr != "" {
		c, client, err := cache.NewRedis(ctx, cache.NewRedisParams{
			Addr:     addr,
			Password: util.GetEnv("REDIS_PASSWORD"),
			DB:       int(util.GetEnvNumeric("REDIS_DB", 0)),
		})
		if err != nil {
			return nil, err
		}
		rdb = client
		d.Cache = c
		d.closers = append(d.closers, func() { _ = client.Close() })
	} else {
		d.Cache = cache.NewMemory()
	}
	d.Secrets = secrets.NewResolver(d.Cache, util.GetEnvDuration("SECRETS_TTL", secrets.DefaultTTL))

	switch backend := util.GetEnvString("STORE_BACKEND", "pgx"); backend {
	case "pgx":
		dbURL, err := d.Secrets.Get(ctx, "DATABASE_URL")
		if err != nil {
			return nil, err
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		d.closers = append(d.closers, pool.Close)
		d.DatabaseURL = dbURL
		d.Reviews = pgxstore.NewReviewDBStorage(pool)
		d.Locks = leaselock.NewPostgres(pool)
	case "memory":
		logger.Warn("[Config] Using in-memory review store, data is lost on restart")
		d.Reviews = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", backend)
	}
	if d.Locks == nil {
		if rdb != nil {
			d.Locks = leaselock.NewRedis(rdb)
		} else {
			d.Locks = leaselock.NewMemory()
		}
	}

	if uri := util.GetEnv("NEO4J_URI"); uri != "" {
		password, err := d.Secrets.Get(ctx, "NEO4J_PASSWORD")
		if err != nil {
			return nil, err
		}
		g, err := neo4jstore.NewGraphNeo4jStorage(ctx, neo4jstore.NewGraphNeo4jStorageParams{
			URI:         uri,
			User:        util.GetEnv("NEO4J_USER"),
			Password:    password,
			Database:    util.GetEnv("NEO4J_DATABASE"),
			MaxPoolSize: int(util.GetEnvNumeric("NEO4J_MAX_POOL_SIZE", 50)),
			Timeout:     util.GetEnvDuration("NEO4J_TIMEOUT", 10*time.Second),
		})
		if err != nil {
			return nil, err
		}
		g.EnsureSchema(ctx)
		d.closers = append(d.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = g.Close(closeCtx)
		})
		d.Graph = g
	} else {
		logger.Warn("[Config] NEO4J_URI not set, using in-memory graph")
		d.Graph = memory.NewGraph()
	}

	if bucket := util.GetEnv("AWS_BUCKET"); bucket != "" {
		secretKey, err := d.Secrets.Get(ctx, "AWS_SECRET_KEY")
		if err != nil {
			return nil, err
		}
		s3, err := storage.NewS3Storage(ctx, storage.NewS3StorageParams{
			Region:    util.GetEnvString("AWS_REGION", "us-east-1"),
			Endpoint:  util.GetEnv("AWS_ENDPOINT"),
			AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey: secretKey,
			Bucket:    bucket,
		})
		if err != nil {
			return nil, err
		}
		d.Storage = s3
	} else {
		logger.Warn("[Config] AWS_BUCKET not set, keeping document bodies in memory")
		d.Storage = storage.NewMemory()
	}

	d.Queue = review.NewQueue(d.Reviews, d.Reviews)
	d.Workflow = review.NewWorkflow(review.NewWorkflowParams{
		Queue: d.Queue,
		Graph: d.Graph,
		Audit: d.Reviews,
	})
	d.Batch = review.NewBatchProcessor(d.Queue, d.Workflow)

	ok = true
	return d, nil
}

// Close releases clients in reverse order of creation.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// Loaders returns the registry of document sources: inline text, web pages
// and .docx uploads.
func (d *Deps) Loaders() *loader.Registry {
	r := loader.NewRegistry()
	r.Register(loader.SourceTypeWeb, web.NewLoader(web.NewLoaderParams{
		Cache:    d.Cache,
		CacheTTL: util.GetEnvDuration("WEB_CACHE_TTL", time.Hour),
	}))
	r.Register(loader.SourceTypeDocx, doc.NewLoader())
	return r
}

// AIClient builds the provider adapter selected by AI_ADAPTER.
func (d *Deps) AIClient(ctx context.Context) (ai.GraphAIClient, error) {
	key, err := d.Secrets.Get(ctx, "AI_CHAT_KEY")
	if err != nil {
		return nil, err
	}
	model := util.GetEnv("AI_CHAT_EXTRACT_MODEL")
	baseURL := util.GetEnv("AI_CHAT_URL")

	switch adapter := util.GetEnvString("AI_ADAPTER", "openai"); adapter {
	case "ollama":
		client, err := ollamaai.NewGraphOllamaClient(ollamaai.NewGraphOllamaClientParams{
			ExtractionModel:       model,
			BaseURL:               baseURL,
			ApiKey:                key,
			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
		})
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		return client, nil
	case "anthropic":
		return anthropicai.NewGraphAnthropicClient(anthropicai.NewGraphAnthropicClientParams{
			ExtractionModel: model,
			BaseURL:         baseURL,
			ApiKey:          key,
		}), nil
	case "openai":
		return openaiai.NewGraphOpenAIClient(openaiai.NewGraphOpenAIClientParams{
			ExtractionModel: model,
			ChatURL:         baseURL,
			ChatKey:         key,
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q", adapter)
	}
}

// Pipeline builds the extraction pipeline on top of client.
func (d *Deps) Pipeline(client ai.GraphAIClient) *graph.GraphClient {
	return graph.NewGraphClient(graph.NewGraphClientParams{
		Extractor: graph.NewExtractor(graph.NewExtractorParams{
			Client:  client,
			Backoff: util.BackoffFromEnv(),
			Pricing: ai.Pricing{
				InputPerMillion:  util.GetEnvFloat("AI_PRICE_INPUT_PER_MILLION", ai.DefaultPricing.InputPerMillion),
				OutputPerMillion: util.GetEnvFloat("AI_PRICE_OUTPUT_PER_MILLION", ai.DefaultPricing.OutputPerMillion),
			},
		}),
		Queue:                     d.Queue,
		Approver:                  d.Workflow,
		Endpoints:                 d.Graph,
		ChunkSize:                 int(util.GetEnvNumeric("CHUNK_SIZE", graph.DefaultChunkSize)),
		ChunkOverlap:              int(util.GetEnvNumeric("CHUNK_OVERLAP", graph.DefaultChunkOverlap)),
		ParallelAiRequests:        int(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
		EntityMinConfidence:       util.GetEnvFloat("ENTITY_MIN_CONFIDENCE", graph.DefaultEntityMinConfidence),
		RelationshipMinConfidence: util.GetEnvFloat("RELATIONSHIP_MIN_CONFIDENCE", graph.DefaultRelationshipMinConfidence),
		AutoApproveEntity:         util.GetEnvFloat("AUTO_APPROVE_ENTITY_CONFIDENCE", graph.DefaultAutoApproveEntityConfidence),
		AutoApproveRelationship:   util.GetEnvFloat("AUTO_APPROVE_RELATIONSHIP_CONFIDENCE", graph.DefaultAutoApproveRelationshipConfidence),
	})
}
