package application

import (
	"context"
	"io"
	"net/http"
	"sync"

	"stem-unmixer/src/application/cloud_storage"
	filestore "stem-unmixer/src/application/cloud_storage/store"
	"stem-unmixer/src/application/config"
	"stem-unmixer/src/application/extraction"
	"stem-unmixer/src/application/jobs/extract"
	"stem-unmixer/src/application/jobs/job_router"
	"stem-unmixer/src/application/lalalai"
	"stem-unmixer/src/application/publish"
	runentity "stem-unmixer/src/application/runs/entity"
	runstore "stem-unmixer/src/application/runs/store"
	"stem-unmixer/src/application/worker"
	"stem-unmixer/src/lib/cerr"
	"stem-unmixer/src/lib/env"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// SetupLogging installs the apex/log handler picked in the config.
func SetupLogging(logConfig config.LogConfig, writer io.Writer) error {
	level, err := log.ParseLevel(logConfig.Level)
	if err != nil {
		return cerr.Field("level", logConfig.Level).Wrap(err).Error("Unrecognized log level")
	}

	switch logConfig.Format {
	case "json":
		log.SetHandler(json.New(writer))
	default:
		log.SetHandler(cli.New(writer))
	}

	log.SetLevel(level)
	return nil
}

func NewOrchestrator(cfg config.Config) extraction.Orchestrator {
	client := lalalai.NewClient(cfg.Lalalai.BaseURL, &http.Client{})

	return extraction.NewOrchestrator(client, extraction.Options{
		PollInterval: cfg.Extraction.PollInterval,
		MaxWait:      cfg.Extraction.MaxWait,
		ChunkSize:    cfg.Extraction.ChunkSize,
	})
}

func NewRunStore(cfg config.Config) runstore.DynamoDBRunStore {
	return runstore.NewDynamoDBRunStore(env.Get(), cfg.Runs.Region, cfg.Runs.Table)
}

// NewArtifactMirror returns nil when no storage backend is configured.
func NewArtifactMirror(ctx context.Context, cfg config.Config) (extract.ArtifactMirror, error) {
	switch cfg.Storage.Backend {
	case config.GoogleCloud:
		fileStore, err := filestore.NewGoogleFileStore(cfg.Storage.GoogleCloudKey)
		if err != nil {
			return nil, err
		}
		return cloud_storage.NewMirror(fileStore, cfg.Storage.BaseURL), nil

	case config.MinioStorage:
		minioConfig := cfg.Storage.Minio
		fileStore, err := filestore.NewMinioFileStore(filestore.MinioConfig{
			Endpoint:  minioConfig.Endpoint,
			AccessKey: minioConfig.AccessKey,
			SecretKey: minioConfig.SecretKey,
			Region:    minioConfig.Region,
			UseSSL:    minioConfig.UseSSL,
		})
		if err != nil {
			return nil, err
		}

		if err := fileStore.EnsureBucket(ctx, minioConfig.Bucket, minioConfig.Region); err != nil {
			return nil, err
		}

		baseURL := cfg.Storage.BaseURL
		if baseURL == "" {
			baseURL = fileStore.Host() + "/" + minioConfig.Bucket
		}
		return cloud_storage.NewMirror(fileStore, baseURL), nil

	default:
		return nil, nil
	}
}

type App struct {
	workers []worker.QueueWorker
	conns   []*amqp.Connection
}

func NewApp(ctx context.Context, cfg config.Config) (App, error) {
	consumerConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return App{}, cerr.Wrap(err).Error("Failed to connect to RabbitMQ")
	}

	producerConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		_ = consumerConn.Close()
		return App{}, cerr.Wrap(err).Error("Failed to connect to RabbitMQ")
	}

	app := App{conns: []*amqp.Connection{consumerConn, producerConn}}

	mirror, err := NewArtifactMirror(ctx, cfg)
	if err != nil {
		app.Close()
		return App{}, cerr.Wrap(err).Error("Failed to set up artifact storage")
	}

	runStore := NewRunStore(cfg)
	orchestrator := NewOrchestrator(cfg)

	for i := 0; i < cfg.RabbitMQ.Workers; i++ {
		progressPublisher, err := publish.NewRabbitMQPublisher(producerConn, cfg.RabbitMQ.ProgressQueue)
		if err != nil {
			app.Close()
			return App{}, cerr.Wrap(err).Error("Failed to create progress publisher")
		}

		handler := extract.NewJobHandler(orchestrator, runStore, progressPublisher, mirror, cfg.Settings.Path)
		router := job_router.NewJobRouter(runStore, handler)

		queueWorker, err := worker.NewQueueWorkerFromConnection(consumerConn, cfg.RabbitMQ.Queue, cfg.RabbitMQ.Prefetch, router)
		if err != nil {
			app.Close()
			return App{}, cerr.Field("worker", i).Wrap(err).Error("Failed to create worker")
		}

		app.workers = append(app.workers, queueWorker)
	}

	return app, nil
}

// Start runs every worker until ctx is done or their streams close.
func (a *App) Start(ctx context.Context) {
	var wg sync.WaitGroup

	for _, queueWorker := range a.workers {
		wg.Add(1)
		go func(worker worker.QueueWorker) {
			defer wg.Done()
			if err := worker.Start(ctx); err != nil {
				cerr.Log(cerr.Wrap(err).Error("Worker stopped with an error"))
			}
		}(queueWorker)
	}

	wg.Wait()
}

func (a *App) Close() {
	for _, conn := range a.conns {
		if err := conn.Close(); err != nil {
			log.WithError(err).Warn("Failed to close RabbitMQ connection")
		}
	}
}

// Enqueue records a new run and publishes its extract job. It returns the
// run ID.
func Enqueue(ctx context.Context, cfg config.Config, runStore runentity.RunStore, publisher publish.Publisher, params extract.JobParams) (string, error) {
	if params.RunID == "" {
		params.RunID = uuid.New().String()
	}

	errctx := cerr.Field("run_id", params.RunID)

	run := runentity.Run{
		ID:            params.RunID,
		Status:        runentity.RequestedStatus,
		StatusMessage: "Waiting for a worker",
		InputPath:     params.InputPath,
		Stems:         params.Stems,
		BackingTracks: params.BackingTracks,
	}

	if err := runStore.SetRun(ctx, run); err != nil {
		return "", errctx.Wrap(err).Error("Failed to record the run")
	}

	job, err := extract.CreateJobMessage(params)
	if err != nil {
		return "", errctx.Wrap(err).Error("Failed to create job message")
	}

	if err := publisher.Publish(job); err != nil {
		return "", errctx.Wrap(err).Error("Failed to publish job message")
	}

	log.WithFields(log.Fields{
		"run_id": params.RunID,
		"queue":  cfg.RabbitMQ.Queue,
	}).Info("Enqueued extraction")

	return params.RunID, nil
}
