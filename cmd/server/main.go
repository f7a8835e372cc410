package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/familyvault/backend/internal/config"
	"github.com/familyvault/backend/internal/database"
	"github.com/familyvault/backend/internal/handlers"
	"github.com/familyvault/backend/internal/middleware"
	"github.com/familyvault/backend/internal/services"
	"github.com/familyvault/backend/internal/storage"
	"github.com/familyvault/backend/pkg/logger"
	"github.com/familyvault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

func main() {
	logger.Init()
	cfg := config.Load()

	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		logger.Error("database_connect_failed", err, nil)
		os.Exit(1)
	}

	storageClient, err := newStorageClient(cfg)
	if err != nil {
		logger.Error("storage_init_failed", err, map[string]interface{}{
			"backend": cfg.Storage.Backend,
		})
		os.Exit(1)
	}

	app := buildApp(cfg, db, storageClient)

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("server_starting", map[string]interface{}{
			"addr":    addr,
			"storage": cfg.Storage.Backend,
		})
		if err := app.Listen(addr); err != nil {
			logger.Error("server_listen_failed", err, nil)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server_shutting_down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("server_shutdown_failed", err, nil)
	}
	logger.Info("server_stopped", nil)
}

func newStorageClient(cfg *config.Config) (storage.Client, error) {
	switch cfg.Storage.Backend {
	case "minio":
		client, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return client, nil
	case "local":
		return storage.NewLocalClient(cfg.Storage.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func buildApp(cfg *config.Config, db *gorm.DB, storageClient storage.Client) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: cfg.Server.BodyLimitMB * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	auth := middleware.NewAuthMiddleware(db)
	accessService := services.NewAccessService(db)
	familyService := services.NewFamilyService(db)

	authHandler := handlers.NewAuthHandler(db, familyService)
	usersHandler := handlers.NewUsersHandler(db, accessService, familyService)
	documentsHandler := handlers.NewDocumentsHandler(db, storageClient, accessService, familyService)

	app.Get("/health", func(c *fiber.Ctx) error {
		return utils.Success(c, fiber.StatusOK, fiber.Map{"status": "ok"})
	})

	app.Post("/auth/register", authHandler.Register)
	app.Post("/auth/login", authHandler.Login)

	users := app.Group("/users", auth.RequireAuth)
	users.Get("/me", usersHandler.Me)
	users.Put("/me", usersHandler.UpdateMe)
	users.Post("/me/family", usersHandler.AddFamilyMember)
	users.Delete("/me/family/:memberId", usersHandler.RemoveFamilyMember)
	users.Get("/:id", usersHandler.Get)

	documents := app.Group("/documents", auth.RequireAuth)
	documents.Post("/", documentsHandler.Upload)
	documents.Get("/", documentsHandler.List)
	documents.Get("/:id", documentsHandler.Get)
	documents.Get("/:id/download", documentsHandler.Download)
	documents.Put("/:id", documentsHandler.Update)
	documents.Delete("/:id", documentsHandler.Delete)
	documents.Post("/:id/share", documentsHandler.Share)

	return app
}
