// Package api wires the job-management endpoints onto the echo server.
package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/victoryforphil/cursed-next-odm/internal/core/nodeodm"
	"github.com/victoryforphil/cursed-next-odm/internal/server/api/handlers"
)

type RouterConfig struct {
	Client *nodeodm.Client
}

func SetupRouter(e *echo.Echo, cfg RouterConfig) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	v1 := e.Group("/api/v1")
	config := huma.DefaultConfig("ODM Dashboard API", "1.0.0")
	config.Servers = []*huma.Server{{URL: "/api/v1"}}
	config.Info.Description = "Browser dashboard for a NodeODM processing server"

	api := humaecho.NewWithGroup(e, v1, config)

	jobsHandler := handlers.NewJobsHandler(cfg.Client)
	huma.Register(api, huma.Operation{
		OperationID: "get-server-info",
		Method:      http.MethodGet,
		Path:        "/server",
		Summary:     "Get processing server info",
		Tags:        []string{"Server"},
	}, jobsHandler.ServerInfo)

	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List all jobs",
		Tags:        []string{"Jobs"},
	}, jobsHandler.List)

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}",
		Summary:     "Get job status and metadata",
		Tags:        []string{"Jobs"},
	}, jobsHandler.Get)

	huma.Register(api, huma.Operation{
		OperationID: "get-job-output",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}/output",
		Summary:     "Get job console output",
		Tags:        []string{"Jobs"},
	}, jobsHandler.Output)

	huma.Register(api, huma.Operation{
		OperationID: "cancel-job",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/cancel",
		Summary:     "Cancel a running job",
		Tags:        []string{"Jobs"},
	}, jobsHandler.Cancel)

	huma.Register(api, huma.Operation{
		OperationID: "restart-job",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/restart",
		Summary:     "Restart a job with its existing options",
		Tags:        []string{"Jobs"},
	}, jobsHandler.Restart)

	huma.Register(api, huma.Operation{
		OperationID: "remove-job",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/remove",
		Summary:     "Remove a job and its results",
		Tags:        []string{"Jobs"},
	}, jobsHandler.Remove)

	// Multipart image upload stays on the plain echo surface.
	v1.POST("/jobs", jobsHandler.Create)
}
