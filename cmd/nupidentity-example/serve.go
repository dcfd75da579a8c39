package main

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/nupidentity/auth/oidc"
	"github.com/kbukum/nupidentity/bootstrap"
	apperrors "github.com/kbukum/nupidentity/errors"
	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/observability"
	"github.com/kbukum/nupidentity/server"
	"github.com/kbukum/nupidentity/server/authroutes"
	"github.com/kbukum/nupidentity/server/middleware"
)

const (
	permReportsRead  = "reports:read"
	permReportsWrite = "reports:write"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags.configFile, flags.envFile)
			if err != nil {
				return err
			}
			app, err := bootstrap.NewApp(cfg)
			if err != nil {
				return err
			}
			if err := wire(cmd.Context(), app); err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

// wire builds the components and routes of the service onto app.
func wire(ctx context.Context, app *bootstrap.App[*AppConfig]) error {
	cfg := app.Cfg
	log := app.Logger

	var tp trace.TracerProvider
	if cfg.Observability.Tracing {
		sdkTP, err := observability.InitTracer(ctx, cfg.Observability.Tracer)
		if err != nil {
			return err
		}
		app.OnStop(sdkTP.Shutdown)
		tp = sdkTP
	}
	mp, metricsHandler, err := observability.InitMeter(ctx, cfg.Observability.Meter)
	if err != nil {
		return err
	}
	app.OnStop(mp.Shutdown)

	clientOpts := []oidc.Option{oidc.WithLogger(log), oidc.WithMeterProvider(mp)}
	if tp != nil {
		clientOpts = append(clientOpts, oidc.WithTracerProvider(tp))
	}
	authMetrics, err := observability.NewAuthMetrics(observability.Meter(mp))
	if err != nil {
		return err
	}
	cache := middleware.NewClientCache(log, clientOpts...).Warm(cfg.Identity)
	authn := middleware.NewCachedAuthenticator(cache, cfg.Identity,
		middleware.WithAuthLogger(log), middleware.WithAuthMetrics(authMetrics))

	srv := server.New(cfg.Server, log)
	srv.ApplyDefaults(app.Name, app.Health, metricsHandler)
	routes(srv.GinEngine(), authn, cfg, log)

	if err := app.RegisterComponent(cache); err != nil {
		return err
	}
	if err := app.RegisterComponent(srv); err != nil {
		return err
	}

	if cfg.Sync.Enabled() {
		app.OnStart(func(ctx context.Context) error {
			client, err := cache.Get(ctx, cfg.Identity)
			if err != nil {
				return err
			}
			result, err := oidc.SyncOnStartup(ctx, client, cfg.manifest(), cfg.Sync.SyncOptions)
			if err != nil {
				return err
			}
			if result != nil {
				log.Info("system registered", logger.Fields(
					logger.FieldSystemID, result.SystemID,
					"created", result.FunctionsCreated,
					"updated", result.FunctionsUpdated,
					"removed", result.FunctionsRemoved,
				))
			}
			return nil
		})
	}
	return nil
}

func routes(r *gin.Engine, authn *middleware.Authenticator, cfg *AppConfig, log *logger.Logger) {
	opts := cfg.Routes
	opts.Logger = log
	authroutes.Mount(r.Group("/auth"), authn, opts)

	api := r.Group("/api")
	api.GET("/profile", authn.RequireAuth(middleware.AuthOptions{}), profile)
	api.GET("/reports", append(authn.EnsurePermission(middleware.AuthOptions{}, permReportsRead), listReports)...)
	api.POST("/reports", append(authn.EnsurePermission(middleware.AuthOptions{}, permReportsWrite), createReport)...)
	api.GET("/reports/export", authn.RequireAuth(middleware.AuthOptions{}), middleware.EnsureScope("offline_access"), listReports)
}

func profile(c *gin.Context) {
	user, _ := middleware.UserFrom(c)
	server.RespondOK(c, gin.H{
		"userId":         user.UserID(),
		"email":          user.Email,
		"organizationId": user.OrganizationID,
		"permissions":    user.Permissions,
	})
}

func listReports(c *gin.Context) {
	server.RespondOK(c, []gin.H{
		{"id": "r-1", "title": "Quarterly impact", "owner": c.GetString(middleware.ContextKeyUserID)},
	})
}

func createReport(c *gin.Context) {
	var body struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			server.RespondWithError(c, apperrors.MissingField("title"))
			return
		}
		server.RespondWithError(c, apperrors.InvalidInput("title", err.Error()))
		return
	}
	server.RespondCreated(c, gin.H{"id": "r-2", "title": body.Title, "owner": c.GetString(middleware.ContextKeyUserID)})
}
