package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/pprofhandler"

	apiHandler "github.com/fastygo/taskhub/api/handler"
)

type Handlers struct {
	Auth   *apiHandler.AuthHandler
	Task   *apiHandler.TaskHandler
	Chat   *apiHandler.ChatHandler
	Health *apiHandler.HealthHandler
}

type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// RouteMiddleware wraps a handler knowing the route pattern it serves.
type RouteMiddleware func(route string, next fasthttp.RequestHandler) fasthttp.RequestHandler

type Options struct {
	Auth      Middleware
	AccessLog RouteMiddleware
	// Metrics is mounted at /metrics when non-nil.
	Metrics fasthttp.RequestHandler
	Pprof   bool
}

const apiPrefix = "/api/v1"

func New(handlers Handlers, opts Options) *router.Router {
	r := router.New()
	r.RedirectTrailingSlash = false

	auth := opts.Auth
	if auth == nil {
		auth = func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }
	}
	wrap := func(route string, h fasthttp.RequestHandler) fasthttp.RequestHandler {
		if opts.AccessLog == nil {
			return h
		}
		return opts.AccessLog(route, h)
	}

	r.GET("/health", wrap("/health", handlers.Health.Check))

	api := r.Group(apiPrefix)

	// Public routes
	api.POST("/auth/register", wrap("/auth/register", handlers.Auth.Register))
	api.POST("/auth/login", wrap("/auth/login", handlers.Auth.Login))
	api.POST("/ai/chat", wrap("/ai/chat", handlers.Chat.Chat))

	// Protected routes
	api.POST("/auth/logout", wrap("/auth/logout", auth(handlers.Auth.Logout)))
	api.GET("/profile", wrap("/profile", auth(handlers.Auth.Profile)))

	api.GET("/tasks", wrap("/tasks", auth(handlers.Task.GetTasks)))
	api.POST("/tasks", wrap("/tasks", auth(handlers.Task.CreateTask)))
	api.GET("/tasks/{id}", wrap("/tasks/{id}", auth(handlers.Task.GetTask)))
	api.PUT("/tasks/{id}", wrap("/tasks/{id}", auth(handlers.Task.UpdateTask)))
	api.DELETE("/tasks/{id}", wrap("/tasks/{id}", auth(handlers.Task.DeleteTask)))

	if opts.Metrics != nil {
		r.GET("/metrics", opts.Metrics)
	}
	if opts.Pprof {
		r.GET("/debug/pprof/{profile:*}", pprofhandler.PprofHandler)
	}

	return r
}
