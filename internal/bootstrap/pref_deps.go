package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"preference_server/adapter/in/http"
	"preference_server/adapter/out/embedding"
	"preference_server/adapter/out/graph"
	"preference_server/adapter/out/messaging"
	"preference_server/adapter/out/mongodb"
	"preference_server/adapter/out/persistence"
	"preference_server/config"
	"preference_server/core/port/out"
	"preference_server/core/service/classification"
	"preference_server/core/service/extraction"
	"preference_server/core/service/preference"
	"preference_server/core/service/taxonomy"
	"preference_server/infra/database"
	"preference_server/pkg/apperr"
	"preference_server/pkg/cache"
	"preference_server/pkg/logger"
	"preference_server/pkg/metrics"
	"preference_server/pkg/resilience"
)

const startupTimeout = 30 * time.Second

// Dependencies is the wired object graph shared by the API and the worker.
type Dependencies struct {
	Config *config.Config

	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client
	Neo4j   neo4j.DriverWithContext

	Cache     out.PreferenceCache
	Publisher out.JobPublisher

	Directory  *taxonomy.Directory
	Resolver   *classification.HybridResolver
	Extractor  *extraction.Extractor
	Aggregator *preference.Aggregator

	PreferenceService *preference.Service
	TaxonomyService   *preference.TaxonomyService
}

// NewDependencies connects the configured stores and builds the services.
// MongoDB is required; Postgres, Redis, Neo4j and OpenAI are optional and
// their features are skipped when unset or unreachable.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Config: cfg}

	// Taxonomy
	dir, err := newDirectory(cfg)
	if err != nil {
		return fail(err)
	}
	deps.Directory = dir
	logger.Info("Taxonomy loaded (version %s, %d categories)", dir.Version(), len(dir.Categories()))

	// MongoDB (primary store)
	if cfg.MongoDBURL == "" {
		return fail(apperr.ConfigError("MONGODB_URL is required"))
	}
	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDBURL, mongodb.DefaultClientConfig())
	if err != nil {
		return fail(err)
	}
	deps.MongoDB = mongoClient
	cleanups = append(cleanups, func() { _ = mongoClient.Disconnect(context.Background()) })

	mongoDB := mongoClient.Database(cfg.MongoDBName)
	prefRepo := mongodb.NewPreferenceAdapter(mongoDB, dir.Name)
	statusRepo := mongodb.NewStatusAdapter(mongoDB)
	if err := prefRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("Failed to ensure preference indexes: %v", err)
	}
	if err := statusRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("Failed to ensure status indexes: %v", err)
	}

	// PostgreSQL (snapshot history)
	var snapshotRepo out.SnapshotRepository
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL, database.DefaultPostgresConfig())
		if err != nil {
			logger.Warn("PostgreSQL unavailable, snapshot history disabled: %v", err)
		} else {
			deps.DB = db
			deps.SQLDB = database.NewSQLX(db)
			cleanups = append(cleanups, func() {
				_ = deps.SQLDB.Close()
				db.Close()
			})
			metrics.RegisterDBStats(deps.SQLDB.DB, "postgres")

			snapshots := persistence.NewSnapshotAdapter(deps.SQLDB)
			if err := snapshots.EnsureSchema(ctx); err != nil {
				logger.Warn("Failed to ensure snapshot schema: %v", err)
			}
			snapshotRepo = snapshots
		}
	}

	// Redis (cache + streams)
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(ctx, cfg.RedisURL, database.DefaultRedisConfig())
		if err != nil {
			logger.Warn("Redis unavailable, cache and job queue disabled: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { _ = redisClient.Close() })
			deps.Cache = cache.NewRedisCache(redisClient)
			deps.Publisher = messaging.NewRedisProducer(redisClient, cfg.StreamMaxLen)
		}
	}

	// Neo4j (interest graph)
	var interestGraph out.InterestGraph
	if cfg.Neo4jURL != "" {
		driver, err := graph.NewDriver(ctx, cfg.Neo4jURL, cfg.Neo4jUsername, cfg.Neo4jPassword)
		if err != nil {
			logger.Warn("Neo4j unavailable, interest graph disabled: %v", err)
		} else {
			deps.Neo4j = driver
			cleanups = append(cleanups, func() { _ = driver.Close(context.Background()) })

			interests := graph.NewInterestAdapter(driver, "")
			if err := interests.EnsureIndexes(ctx); err != nil {
				logger.Warn("Failed to ensure Neo4j constraints: %v", err)
			}
			interestGraph = interests
		}
	}

	// Classification
	p := cfg.Preference
	deps.Resolver = classification.NewHybridResolver(
		classification.NewKeywordClassifier(dir),
		classification.NewEmbeddingClassifier(newEmbeddingProvider(cfg, deps.Cache), classification.BuildCandidates(dir), classification.EmbeddingConfig{
			Threshold: p.EmbeddingThreshold,
			BatchSize: cfg.EmbeddingBatchSize,
		}),
		classification.HybridConfig{
			RuleConfidence:   p.RuleConfidence,
			RuleWeight:       p.RuleWeight,
			EmbeddingWeight:  p.EmbeddingWeight,
			EmbeddingTimeout: cfg.EmbeddingTimeout,
		},
	)
	deps.Extractor = extraction.NewExtractor(dir, deps.Resolver, extraction.Config{ImplicitWeight: p.ImplicitWeight})
	deps.Aggregator = preference.NewAggregator(preference.AggregatorConfig{
		DecayFactor: p.DecayFactor,
		MaxShare:    p.MaxShare,
	})

	// Services
	deps.PreferenceService = preference.NewService(preference.ServiceDeps{
		Directory:   dir,
		Extractor:   deps.Extractor,
		Aggregator:  deps.Aggregator,
		Preferences: prefRepo,
		Status:      statusRepo,
		Snapshots:   snapshotRepo,
		Graph:       interestGraph,
		Cache:       deps.Cache,
	}, preference.ServiceConfig{
		SnapshotTopN: p.SnapshotTopN,
		GraphTopN:    p.GraphTopN,
	})
	deps.TaxonomyService = preference.NewTaxonomyService(dir, deps.Resolver, deps.Cache)

	return deps, cleanup, nil
}

func newDirectory(cfg *config.Config) (*taxonomy.Directory, error) {
	catalog := taxonomy.BuiltinCatalog()
	if cfg.TaxonomyFile != "" {
		merged, err := taxonomy.LoadFile(cfg.TaxonomyFile, catalog)
		if err != nil {
			return nil, fmt.Errorf("load taxonomy file: %w", err)
		}
		catalog = merged
	}
	return taxonomy.NewDirectory(catalog, taxonomy.WithStrict(cfg.StrictTaxonomy))
}

// newEmbeddingProvider returns nil when embeddings are disabled, which
// leaves the resolver on keyword rules only.
func newEmbeddingProvider(cfg *config.Config, shared out.PreferenceCache) out.EmbeddingProvider {
	if !cfg.EmbeddingEnabled || cfg.OpenAIAPIKey == "" {
		logger.Info("Embeddings disabled, using keyword classification only")
		return nil
	}

	breaker := resilience.DefaultBreakerConfig("openai-embeddings")
	breaker.FailureRatio = cfg.BreakerFailureRatio
	breaker.OpenTimeout = cfg.BreakerOpenTimeout
	breaker.MinRequests = cfg.BreakerMinRequests

	provider := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.EmbeddingModel,
		Breaker: breaker,
	})
	return embedding.NewCachedProvider(provider, embedding.NewMemoryCache(cfg.EmbeddingCacheSize, cfg.EmbeddingCacheTTL), shared)
}

// HealthChecks returns a check per backing service.
func (d *Dependencies) HealthChecks() map[string]http.HealthCheck {
	checks := map[string]http.HealthCheck{
		"mongodb":  func(ctx context.Context) error { return mongodb.Ping(ctx, d.MongoDB) },
		"postgres": nil,
		"redis":    nil,
		"neo4j":    nil,
	}
	if d.DB != nil {
		checks["postgres"] = d.DB.Ping
	}
	if d.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return d.Redis.Ping(ctx).Err() }
	}
	if d.Neo4j != nil {
		checks["neo4j"] = d.Neo4j.VerifyConnectivity
	}
	return checks
}

// PoolStats returns pool snapshots for the connected Postgres and Redis clients.
func (d *Dependencies) PoolStats() map[string]http.PoolStats {
	pools := make(map[string]http.PoolStats)
	if d.DB != nil {
		pools["postgres"] = func() any { return database.GetPoolStats(d.DB) }
	}
	if d.Redis != nil {
		pools["redis"] = func() any { return database.GetRedisStats(d.Redis) }
	}
	return pools
}
