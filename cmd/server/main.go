package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/joefour/SnapJS-AdminServer/admin"
	"github.com/joefour/SnapJS-AdminServer/admin/handlers"
	"github.com/joefour/SnapJS-AdminServer/admin/registry"
	"github.com/joefour/SnapJS-AdminServer/admin/services"
	"github.com/joefour/SnapJS-AdminServer/internal/middleware/requestid"
	"github.com/joefour/SnapJS-AdminServer/internal/platform"
	platformconfig "github.com/joefour/SnapJS-AdminServer/internal/platform/config"
	"github.com/joefour/SnapJS-AdminServer/storage"
	storagehandlers "github.com/joefour/SnapJS-AdminServer/storage/handlers"
	"github.com/joefour/SnapJS-AdminServer/storage/provider"
)

func main() {
	cfg, err := platformconfig.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load platform config: %v", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			log.Printf("[ErrorHandler] Path: %s, Error: %v, Code: %d", c.Path(), err, code)

			// If response already set by handler, don't override it
			if len(c.Response().Body()) > 0 {
				return nil
			}
			return c.Status(code).JSON(fiber.Map{
				"errors": fiber.Map{"message": err.Error()},
			})
		},
	})

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.WebDomain,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, PATCH, OPTIONS",
	}))

	ctx := context.Background()
	baseService, err := platform.NewBaseService(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create base service: %v", err)
	}
	defer baseService.Close()

	var blobStorage provider.BlobProvider
	if cfg.Storage.BucketName != "" {
		blobStorage, err = provider.NewS3Provider(&cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to create storage provider: %v", err)
		}
	} else {
		log.Println("Object storage is not configured; CSV import is disabled")
	}

	reg := registry.NewRegistry()
	if err := registerResources(reg); err != nil {
		log.Fatalf("Failed to register resources: %v", err)
	}

	resourceService := services.NewResourceService(baseService, reg)
	resourceHandler := handlers.NewResourceHandler(resourceService, reg, blobStorage)
	admin.RegisterRoutes(app, cfg, resourceHandler)

	if blobStorage != nil {
		storage.RegisterRoutes(app, &storage.StorageHandlers{
			StorageHandler: storagehandlers.NewStorageHandler(blobStorage),
		}, cfg)
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := baseService.HealthCheck(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting admin server (%s backend) on %s", baseService.GetDatabaseType(), addr)
	log.Fatal(app.Listen(addr))
}

// registerResources declares the administrable resources. New resources
// only need an entry here.
func registerResources(reg *registry.Registry) error {
	userType := &registry.ResourceType{
		Name:       "user",
		Collection: "users",
		Fields: []string{
			"objectId", "username", "fullName", "email", "avatar",
			"banner", "tagLine", "socialName", "createdDate",
		},
		Protected: []string{"password", "salt"},
	}
	if err := reg.Register(userType); err != nil {
		return err
	}

	postType := &registry.ResourceType{
		Name:       "post",
		Collection: "posts",
		Fields: []string{
			"objectId", "body", "ownerUserId", "ownerDisplayName",
			"tags", "image", "score", "viewCount", "deleted",
		},
		Relations: map[string]string{
			"ownerUserId": "user",
		},
	}
	if err := reg.Register(postType); err != nil {
		return err
	}

	circleType := &registry.ResourceType{
		Name:       "circle",
		Collection: "circles",
		Fields:     []string{"objectId", "name", "ownerUserId", "isSystem"},
		Relations: map[string]string{
			"ownerUserId": "user",
		},
	}
	return reg.Register(circleType)
}
