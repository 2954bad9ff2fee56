package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facetrack/internal/api"
	"github.com/your-org/facetrack/internal/api/ws"
	"github.com/your-org/facetrack/internal/camera"
	"github.com/your-org/facetrack/internal/config"
	"github.com/your-org/facetrack/internal/engine"
	"github.com/your-org/facetrack/internal/history"
	"github.com/your-org/facetrack/internal/models"
	"github.com/your-org/facetrack/internal/observability"
	"github.com/your-org/facetrack/internal/queue"
	"github.com/your-org/facetrack/internal/registry"
	"github.com/your-org/facetrack/internal/storage"
	"github.com/your-org/facetrack/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting facetrack engine",
		"port", cfg.Server.Port,
		"tick_interval", cfg.Engine.TickInterval,
	)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize ONNX Runtime. A failed init leaves detection and
	// enrollment disabled but keeps the admin API up.
	var embedFn func([]byte) ([]float32, float32, error)
	var recognizer vision.Recognizer

	ortReady := false
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Warn("onnx runtime init failed, detection disabled", "error", err)
	} else {
		ortReady = true
		defer ort.DestroyEnvironment()
	}

	// Model registry with the built-in RetinaFace detector and MinIO-backed
	// custom artifact loading.
	reg := registry.New(
		registry.BuiltinLoader(cfg.Engine.ModelsDir, cfg.Engine.DetectionThreshold),
		registry.CustomLoader(minioStore, cfg.Engine.DetectionThreshold),
	)
	defer reg.Close()

	builtin := reg.Create("RetinaFace det_10g", "builtin", models.ArtifactRef{Kind: models.ArtifactBuiltIn})
	if ortReady {
		if err := reg.SetActive(ctx, builtin.ID); err != nil {
			slog.Warn("activate built-in model", "error", err)
		}
	}

	// Face recognizer over the pgvector identity directory.
	if ortReady {
		embPath := filepath.Join(cfg.Engine.ModelsDir, "w600k_r50.onnx")
		embedder, err := vision.NewEmbedder(embPath)
		if err != nil {
			slog.Warn("load embedder, recognition disabled", "path", embPath, "error", err)
		} else {
			defer embedder.Close()
			faceRec := vision.NewFaceRecognizer(embedder, db, cfg.Engine.RecognitionThreshold)
			recognizer = faceRec
			embedFn = func(imageData []byte) ([]float32, float32, error) {
				lm, ok := reg.ActiveModel()
				if !ok {
					return nil, 0, fmt.Errorf("no active detector")
				}
				return faceRec.Embed(lm.Detector, imageData)
			}
			// The embeddings table is declared vector(512); a model with a
			// different width would fail every insert.
			slog.Info("face recognizer ready", "embedding_dim", embedder.EmbeddingDim())
		}
	}

	// Camera frame source
	var source camera.Source = camera.NullSource{}
	if cfg.Camera.URL != "" {
		ffmpeg := camera.NewFFmpegSource(cfg.Camera.URL, cfg.Camera.FPS, cfg.Camera.Width)
		if err := ffmpeg.Start(ctx); err != nil {
			slog.Error("start camera source", "error", err)
			os.Exit(1)
		}
		defer ffmpeg.Stop()
		source = ffmpeg
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Engine pipeline
	hist := history.NewStore(cfg.Engine.HistoryCapacity)
	pipeline := engine.NewPipeline(reg)
	resolver := engine.NewResolver(recognizer, cfg.Engine.ConfidenceThreshold, cfg.Camera.Label)
	tracker := engine.NewTracker(producer, storage.NewAttendanceLogger(db))
	eng := engine.New(cfg.Engine.TickInterval, source, pipeline, resolver, tracker, hist, hub, minioStore)

	if cfg.Engine.AutoStart {
		eng.Start(ctx)
	}

	// HTTP server
	router := api.NewRouter(api.RouterConfig{
		AppCtx:   ctx,
		APIKey:   cfg.Server.APIKey,
		DB:       db,
		MinIO:    minioStore,
		Producer: producer,
		Registry: reg,
		History:  hist,
		Engine:   eng,
		Hub:      hub,
		EmbedFn:  embedFn,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")
	eng.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
