package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"cardapi/internal/service"
)

// RouteOptions carries the optional pieces of the route table.
type RouteOptions struct {
	// Auth guards the /api/financial group. Nil leaves it open.
	Auth fiber.Handler
	// OpenAPIPath is the OpenAPI document served at /openapi.yaml.
	OpenAPIPath string
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db *sql.DB, cardSvc service.CardService, opts RouteOptions) {
	if opts.OpenAPIPath == "" {
		opts.OpenAPIPath = "openapi.yaml"
	}
	app.Get("/openapi.yaml", OpenAPISpec(opts.OpenAPIPath))
	app.Get("/docs", DocsUI())

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	var guard []fiber.Handler
	if opts.Auth != nil {
		guard = append(guard, opts.Auth)
	}
	api := app.Group("/api/financial", guard...)

	api.Post("/cards/generate", GenerateFromPayment(cardSvc))
	api.Post("/cards/generate-giveaway", GenerateFromGiveaway(cardSvc))
	api.Get("/cards", ListCards(cardSvc))
	api.Get("/cards/:number", GetCard(cardSvc))
	api.Post("/cards/:number/regenerate", RegenerateCard(cardSvc))
	api.Get("/cards/:number/pdf", DownloadCard(cardSvc))
	api.Get("/cards/:number/download", DownloadCardURL(cardSvc))
}
