package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alfredoptarigan/assessment-recommender/internal/handlers"
	"alfredoptarigan/assessment-recommender/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Index the catalog if needed and serve the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()

	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize services", zap.Error(err))
		return err
	}
	defer a.Close()

	if err := a.syncCatalog(); err != nil {
		log.Warn("catalog database sync failed", zap.Error(err))
	}

	if err := a.ensureIndexed(ctx); err != nil {
		log.Error("startup indexing failed", zap.Error(err))
		return err
	}

	uploads := services.NewUploadStore(cfg.Storage.UploadPath, cfg.Storage.MaxFileSize)
	if err := uploads.EnsureDir(); err != nil {
		return err
	}

	recommendHandler := handlers.NewRecommendHandler(a.recommender, log)
	uploadHandler := handlers.NewUploadHandler(
		a.recommender,
		uploads,
		services.NewPDFParserService(log),
		log,
	)
	catalogHandler := handlers.NewCatalogHandler(a.index, handlers.CatalogInfo{
		Backend:             cfg.Index.Backend,
		EmbeddingModel:      cfg.Gemini.EmbeddingModel,
		EmbeddingDimension:  cfg.Gemini.EmbeddingDimension,
		SimilarityThreshold: cfg.RAG.SimilarityThreshold,
		FallbackThreshold:   cfg.RAG.FallbackThreshold,
		SelectionPolicy:     cfg.RAG.SelectionPolicy,
	})

	server := fiber.New(fiber.Config{
		AppName:      "Assessment Recommender API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		BodyLimit:    int(cfg.Storage.MaxFileSize),
		ErrorHandler: handlers.ErrorHandler,
	})

	server.Use(recover.New())
	server.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	api := server.Group("/api/v1")
	api.Get("/health", catalogHandler.HandleHealth)
	api.Get("/catalog/stats", catalogHandler.HandleStats)
	api.Post("/recommend", recommendHandler.HandleRecommend)
	api.Post("/recommend/upload", uploadHandler.HandleUpload)

	server.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	server.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Assessment Recommender API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/recommend",
				"POST /api/v1/recommend/upload",
				"GET /api/v1/catalog/stats",
				"GET /api/v1/health",
				"GET /metrics",
			},
		})
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")
		if err := server.Shutdown(); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info("server starting", zap.String("addr", addr))

	if err := server.Listen(addr); err != nil {
		log.Error("failed to start server", zap.Error(err))
		return err
	}

	return nil
}
