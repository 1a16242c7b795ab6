package http

import (
	"log/slog"
	"os"
	"time"

	"github.com/geocoder89/lifeplus/internal/http/handlers"
	"github.com/geocoder89/lifeplus/internal/http/middlewares"
	"github.com/geocoder89/lifeplus/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	maxJSONBody      = 1 << 20
	maxMultipartBody = 11 << 20
)

// Deps is everything the router wires into handlers.
type Deps struct {
	Log      *slog.Logger
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Health   *handlers.HealthHandler
	Tokens   middlewares.TokenVerifier
	APIDoc   []byte

	Registrar handlers.AccountRegistrar
	Recovery  handlers.PasswordRecovery
	Accounts  handlers.AccountService
	Medicines handlers.MedicineService
	Ledger    handlers.DoseLedger
	Exams     handlers.ExamService

	ServiceName    string
	AllowedOrigins []string
	TrustedProxies []string

	// per-IP budget for /auth, per minute; zero means 20
	AuthRateLimit int
}

func NewRouter(d Deps) *gin.Engine {
	cfgEnv := os.Getenv("APP_ENV")

	if cfgEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	if d.Log == nil {
		d.Log = slog.Default()
	}

	// ClientIP keys the rate limiters, so forwarded headers only count from
	// configured proxies
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		d.Log.Warn("router: ignoring trusted proxies", "err", err)
		_ = r.SetTrustedProxies(nil)
	}
	if d.Health == nil {
		d.Health = handlers.NewHealthHandler(nil)
	}
	if d.ServiceName == "" {
		d.ServiceName = "lifeplus-api"
	}
	if d.AuthRateLimit <= 0 {
		d.AuthRateLimit = 20
	}

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(d.ServiceName))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxJSONBody, maxMultipartBody))

	// health and ops
	r.GET("/healthz", d.Health.Healthz)
	r.GET("/readyz", d.Health.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	docs := handlers.NewDocsHandler(d.APIDoc)
	r.GET("/docs", docs.UI)
	r.GET("/docs/openapi.yaml", docs.OpenAPI)

	am := middlewares.NewAuthMiddleware(d.Tokens)

	// auth, public and rate limited per IP
	authLimiter := middlewares.NewRateLimiter(d.AuthRateLimit, time.Minute)
	authH := handlers.NewAuthHandler(d.Registrar, d.Recovery, d.Log)

	authGroup := r.Group("/auth", authLimiter.RateLimiterMiddleware(middlewares.KeyByIP), middlewares.RequireJSON())
	{
		authGroup.POST("/register", authH.Register)
		authGroup.POST("/login", authH.Login)
		authGroup.POST("/forgot-password", authH.ForgotPassword)
		authGroup.POST("/reset-password", authH.ResetPassword)
	}

	// everything below needs a bearer token
	apiLimiter := middlewares.NewRateLimiter(300, time.Minute)
	protected := r.Group("", am.RequireAuth(), apiLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))

	usersH := handlers.NewUsersHandler(d.Accounts, d.Log)
	users := protected.Group("/users")
	{
		users.GET("", am.RequireRole("admin"), usersH.List)
		users.GET("/me", usersH.Me)
		users.DELETE("/me", usersH.Delete)
		users.POST("/update-password", middlewares.RequireJSON(), usersH.UpdatePassword)
		users.POST("/update-email", middlewares.RequireJSON(), usersH.UpdateEmail)
		users.PUT("/update-profile", middlewares.RequireJSON(), usersH.UpdateProfile)
	}

	medH := handlers.NewMedicinesHandler(d.Medicines, d.Log)
	histH := handlers.NewHistoryHandler(d.Ledger, d.Log)
	meds := protected.Group("/medicines")
	{
		meds.GET("", medH.List)
		meds.POST("", middlewares.RequireJSON(), medH.Create)
		meds.GET("/:id", medH.Get)
		meds.PUT("/:id", middlewares.RequireJSON(), medH.Update)
		meds.DELETE("/:id", medH.Delete)

		meds.POST("/:id/history", middlewares.RequireJSON(), histH.RecordDose)
		meds.GET("/:id/history", histH.List)
		meds.GET("/history/:historyId", histH.Get)
		meds.DELETE("/history/:historyId", histH.Delete)
	}

	examH := handlers.NewExamsHandler(d.Exams, d.Log)
	multipartOnly := middlewares.RequireContentType("multipart/form-data")
	exams := protected.Group("/exams")
	{
		exams.GET("", examH.List)
		exams.POST("", multipartOnly, examH.Create)
		exams.GET("/:id", examH.Get)
		exams.PUT("/:id", multipartOnly, examH.Update)
		exams.DELETE("/:id", examH.Delete)
		exams.GET("/photos/:photoId", examH.GetPhoto)
	}

	return r
}
