package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/civicstack/ms-go-payflow/app/controller"
	"github.com/civicstack/ms-go-payflow/app/gateway"
	"github.com/civicstack/ms-go-payflow/app/notify"
	"github.com/civicstack/ms-go-payflow/app/proxy"
	"github.com/civicstack/ms-go-payflow/app/repository"
	"github.com/civicstack/ms-go-payflow/app/scheduler"
	"github.com/civicstack/ms-go-payflow/app/service"
	"github.com/civicstack/ms-go-payflow/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	core, cleanup := mustCreateCore()
	defer cleanup()

	assertServeConfig(core.cfg)

	paymentController := controller.NewPaymentController(
		core.gatewayProxy,
		core.recorder,
		core.lifecycle,
		core.dispatcher,
	)

	e := setupHTTPServer(paymentController)

	go func() {
		httpAddr := net.JoinHostPort(core.cfg.HTTP.Host, core.cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(paymentController *controller.PaymentController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", paymentController.Health)

	pay := e.Group("/pay")
	pay.POST("/:tenant", paymentController.InitiatePayment)
	pay.GET("/:tenant/:paymentId", paymentController.GetPaymentStatus)

	e.POST("/invite-to-pay/:sessionId", paymentController.InviteToPay)
	e.POST("/create-send-events/:sessionId", paymentController.CreateSendEvents)

	paymentRequest := e.Group("/payment-request/:paymentRequestId")
	paymentRequest.GET("", paymentController.GetPaymentRequest)
	paymentRequest.POST("/pay/:tenant", paymentController.PayPaymentRequest)
	paymentRequest.GET("/payment/:tenant/:paymentId", paymentController.GetPaymentRequestStatus)

	return e
}

// core holds the wired subsystem shared by serve and the jobs.
type core struct {
	cfg        *config.Config
	recorder   *service.PaymentStatusRecorder
	lifecycle  *service.PaymentRequestLifecycle
	dispatcher *service.SubmissionDispatcher
	reconciler *service.PaymentReconciler

	gatewayProxy *proxy.GatewayProxy
}

func mustCreateCore() (*core, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	sessionRepo := repository.NewSessionRepository(db)
	requestRepo := repository.NewPaymentRequestRepository(db)
	auditRepo := repository.NewPaymentAuditRepository(db)

	tokens := gateway.TokenMap(cfg.Gateway.Tokens)

	gatewayProxy := proxy.NewGatewayProxy(proxy.Config{
		BaseURL:     cfg.Gateway.BaseURL,
		Tokens:      tokens,
		HTTPTimeout: cfg.Gateway.HTTPTimeout,
	})
	gatewayClient := gateway.NewClient(gateway.ClientConfig{
		BaseURL:     cfg.Gateway.BaseURL,
		Tokens:      tokens,
		HTTPTimeout: cfg.Gateway.HTTPTimeout,
	})

	notifier := notify.NewSlackNotifier(cfg.Notify.SlackWebhookURL, cfg.Notify.HTTPTimeout)
	schedulerClient := scheduler.NewClient(scheduler.Config{
		Endpoint:    cfg.Scheduler.Endpoint,
		AdminSecret: cfg.Scheduler.AdminSecret,
		HTTPTimeout: cfg.Scheduler.HTTPTimeout,
	})

	locks := service.NewSessionLockManager(sessionRepo)
	lifecycle := service.NewPaymentRequestLifecycle(locks, requestRepo, sessionRepo)
	recorder := service.NewPaymentStatusRecorder(auditRepo, sessionRepo, notifier, lifecycle, cfg.App.IsProduction())
	dispatcher := service.NewSubmissionDispatcher(schedulerClient, cfg.Submission.SendBaseURL)
	reconciler := service.NewPaymentReconciler(requestRepo, gatewayClient, recorder, cfg.Jobs.ReconcileStaleAfter, cfg.Jobs.BatchSize)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return &core{
		cfg:          cfg,
		recorder:     recorder,
		lifecycle:    lifecycle,
		dispatcher:   dispatcher,
		reconciler:   reconciler,
		gatewayProxy: gatewayProxy,
	}, cleanup
}

// assertServeConfig fails fast on collaborator credentials the request path
// cannot run without.
func assertServeConfig(cfg *config.Config) {
	if len(cfg.Gateway.Tokens) == 0 {
		logrus.Fatal("No GOVPAY_TOKEN_<TENANT> variables configured")
	}
	if cfg.Notify.SlackWebhookURL == "" {
		logrus.Fatal("SLACK_WEBHOOK_URL is required")
	}
	if cfg.Scheduler.Endpoint == "" || cfg.Scheduler.AdminSecret == "" {
		logrus.Fatal("SCHEDULER_ENDPOINT and SCHEDULER_ADMIN_SECRET are required")
	}
	if cfg.Submission.SendBaseURL == "" {
		logrus.Fatal("SUBMISSION_SEND_BASE_URL is required")
	}
}

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	return nil
}
