// Package bootstrap wires configuration into the services shared by the API,
// the worker binaries and the CLI.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"script-backend/internal/analyses"
	"script-backend/internal/analyzer"
	"script-backend/internal/costrates"
	"script-backend/internal/extract"
	"script-backend/internal/llm"
	"script-backend/internal/llm/gemini"
	"script-backend/internal/llm/openai"
	"script-backend/internal/queue"
	"script-backend/internal/services/health"
	"script-backend/internal/shared/config"
	"script-backend/internal/shared/server"
	"script-backend/internal/shared/storage/db"
	"script-backend/internal/shared/storage/object"
	localstore "script-backend/internal/shared/storage/object/local"
	s3store "script-backend/internal/shared/storage/object/s3"
	"script-backend/internal/workflow"
)

const mongoConnectTimeout = 10 * time.Second

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Mongo           *mongo.Client
	Store           object.ObjectStore
	Queue           queue.Client
	LLM             llm.Client
	Rates           costrates.Source
	Orchestrator    *workflow.Orchestrator
	AnalysesRepo    analyses.Repo
	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
	Health          *health.Service

	ownsDB bool
}

// Build prepares every dependency and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	return BuildContext(context.Background(), cfg)
}

// BuildContext is Build with a caller-supplied context for the dial-time
// work (database ping, Mongo ping, AWS config loading).
func BuildContext(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if err := checkCallBudget(cfg.CallBudget); err != nil {
		return nil, err
	}

	app := &App{Config: cfg}

	sqlDB, owned, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB, app.ownsDB = sqlDB, owned

	if app.Store, err = buildStore(ctx, cfg); err != nil {
		return nil, app.closeOnError(err)
	}
	if app.Queue, err = buildQueue(ctx, cfg); err != nil {
		return nil, app.closeOnError(err)
	}
	if app.LLM, err = BuildLLM(ctx, cfg); err != nil {
		return nil, app.closeOnError(err)
	}
	app.Mongo, app.Rates = BuildRates(ctx, cfg)

	app.Orchestrator = workflow.New(
		extract.NewPDFExtractor(app.Store),
		analyzer.New(app.LLM, app.Rates),
		workflow.Options{Timeout: cfg.WorkflowTimeout, MaxRevisions: cfg.MaxRevisions},
	)

	if app.DB != nil {
		app.AnalysesRepo = &analyses.PGRepo{DB: app.DB}
	} else {
		app.AnalysesRepo = analyses.NewMemoryRepo()
	}
	app.AnalysesService = &analyses.Service{
		Repo:     app.AnalysesRepo,
		Store:    app.Store,
		Workflow: app.Orchestrator,
		Queue:    app.Queue,
		// A run never outlives its timeout, so twice that marks a dead worker.
		ClaimLease: 2*cfg.WorkflowTimeout + time.Minute,
	}
	app.AnalysisHandler = analyses.NewHandler(app.AnalysesService)
	if app.DB != nil {
		app.Health = health.NewService(app.DB)
	} else {
		app.Health = health.NewService(nil)
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		AnalysisHandler: app.AnalysisHandler,
		Health:          app.Health,
	})
	return app, nil
}

// Close releases connections the App opened. The Lambda-shared database
// pool is left open for the next invocation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Mongo != nil {
		if err := a.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongo disconnect: %w", err))
		}
	}
	if a.DB != nil && a.ownsDB {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) closeOnError(err error) error {
	if cerr := a.Close(context.Background()); cerr != nil {
		log.Printf("bootstrap: cleanup after failed build: %v", cerr)
	}
	return err
}

// checkCallBudget refuses configurations that could not afford one
// successful run.
func checkCallBudget(budget int) error {
	if budget < workflow.CallsPerRun {
		return fmt.Errorf("LLM_CALL_BUDGET=%d is below the %d generative calls one run makes", budget, workflow.CallsPerRun)
	}
	return nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, bool, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, false, nil
		}
		return nil, false, errors.New("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		owned bool
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.Shared(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.OptionsFor(db.RoleLambda, 0)))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.OptionsFor(db.RoleServer, cfg.WorkerConcurrency)))
		owned = true
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, false, nil
		}
		return nil, false, err
	}
	return sqlDB, owned, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.SQSQueueURL) == "" {
		log.Printf("bootstrap: SQS_QUEUE_URL empty; analyses run in-process")
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
}

// BuildLLM returns the configured provider behind the shared rate limiter.
// Missing credentials fall back to the offline heuristic outside
// production.
func BuildLLM(ctx context.Context, cfg config.Config) (llm.Client, error) {
	var (
		client llm.Client
		err    error
	)
	switch cfg.LLMProvider {
	case "fake":
		client = analyzer.HeuristicClient{}
	case "none":
		client = llm.PlaceholderClient{}
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" && isDevLike(cfg.Env) {
			log.Printf("bootstrap: OPENAI_API_KEY empty; using heuristic analyzer")
			client = analyzer.HeuristicClient{}
			break
		}
		client, err = openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.OpenAIBaseURL, cfg.LLMTimeout)
	default:
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" && isDevLike(cfg.Env) {
			log.Printf("bootstrap: GEMINI_API_KEY empty; using heuristic analyzer")
			client = analyzer.HeuristicClient{}
			break
		}
		client, err = gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
	}
	if err != nil {
		return nil, fmt.Errorf("build %s client: %w", cfg.LLMProvider, err)
	}
	return llm.NewRateLimited(client, cfg.LLMRateLimit, 1), nil
}

// BuildRates prefers the Mongo rate collection and falls back to the
// built-in card when Mongo is unset or unreachable.
func BuildRates(ctx context.Context, cfg config.Config) (*mongo.Client, costrates.Source) {
	if strings.TrimSpace(cfg.MongoURI) == "" {
		return nil, costrates.Fallback{}
	}
	dialCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()
	client, err := costrates.ConnectMongo(dialCtx, cfg.MongoURI)
	if err != nil {
		log.Printf("bootstrap: cost rates from built-in card: %v", err)
		return nil, costrates.Fallback{}
	}
	col := client.Database(cfg.MongoDB).Collection(cfg.MongoCollection)
	return client, costrates.WithFallback{Primary: costrates.NewMongoSource(col), Fallback: costrates.Fallback{}}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
