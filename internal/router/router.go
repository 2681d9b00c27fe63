package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"focusflow/backend/internal/handler"
	"focusflow/backend/internal/middleware"
	"focusflow/backend/internal/service"
)

type Handlers struct {
	Auth      *handler.AuthHandler
	Pomodoro  *handler.PomodoroHandler
	Stopwatch *handler.StopwatchHandler
}

func New(
	authService *service.AuthService,
	handlers Handlers,
	corsOrigins []string,
	log *zap.Logger,
) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestLogger(log), middleware.Recovery(log), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/signin", handlers.Auth.SignIn)
	auth.POST("/register", handlers.Auth.Register)
	auth.GET("/me", middleware.Auth(authService), handlers.Auth.Me)

	pomodoro := api.Group("/pomodoro")
	pomodoro.Use(middleware.Auth(authService))
	pomodoro.GET("/state", handlers.Pomodoro.GetState)
	pomodoro.POST("/start", handlers.Pomodoro.Start)
	pomodoro.POST("/pause", handlers.Pomodoro.Pause)
	pomodoro.POST("/stop", handlers.Pomodoro.Stop)
	pomodoro.POST("/skip", handlers.Pomodoro.Skip)
	pomodoro.PUT("/settings", handlers.Pomodoro.UpdateSettings)
	pomodoro.GET("/events", handlers.Pomodoro.Events)
	pomodoro.GET("/history", handlers.Pomodoro.GetHistory)
	pomodoro.GET("/summary", handlers.Pomodoro.GetSummary)

	stopwatch := api.Group("/stopwatch")
	stopwatch.Use(middleware.Auth(authService))
	stopwatch.GET("/state", handlers.Stopwatch.GetState)
	stopwatch.POST("/start", handlers.Stopwatch.Start)
	stopwatch.POST("/pause", handlers.Stopwatch.Pause)
	stopwatch.POST("/stop", handlers.Stopwatch.Stop)
	stopwatch.GET("/entries", handlers.Stopwatch.ListEntries)
	stopwatch.POST("/entries", handlers.Stopwatch.AddEntry)

	return engine
}
