package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/dayflow/api/handler"
)

type Handlers struct {
	Auth     *apiHandler.AuthHandler
	Task     *apiHandler.TaskHandler
	Stream   *apiHandler.StreamHandler
	Template *apiHandler.TemplateHandler
	Health   *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/login", handlers.Auth.Login)
	r.POST("/api/v1/auth/logout", authMiddleware(handlers.Auth.Logout))

	// Protected routes
	r.GET("/api/v1/tasks", authMiddleware(handlers.Task.GetTasks))
	r.POST("/api/v1/tasks", authMiddleware(handlers.Task.CreateTask))
	r.GET("/api/v1/tasks/stream", authMiddleware(handlers.Stream.Stream))
	r.PATCH("/api/v1/tasks/{id}", authMiddleware(handlers.Task.UpdateTask))
	r.DELETE("/api/v1/tasks/{id}", authMiddleware(handlers.Task.DeleteTask))
	r.GET("/api/v1/stats", authMiddleware(handlers.Task.GetStats))

	r.GET("/api/v1/template", authMiddleware(handlers.Template.GetTemplate))
	r.PUT("/api/v1/template", authMiddleware(handlers.Template.SaveTemplate))
	r.POST("/api/v1/template/apply", authMiddleware(handlers.Template.ApplyTemplate))

	return r
}
