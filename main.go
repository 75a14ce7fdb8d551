package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/logging"
	"storefront/internal/middleware"
	"storefront/internal/notify"
	"storefront/internal/remoteconfig"
	"storefront/internal/storage"
)

func main() {
	config.Load()
	env := config.AppEnv
	logging.Setup(env.LogLevel, env.LogFormat)
	log := logging.Component("main")

	if err := env.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	client, err := database.Connect(env.MongoURI)
	if err != nil {
		log.WithError(err).Fatal("mongo connection failed")
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	db := client.Database(env.DBName)
	log.WithField("db", db.Name()).Info("database selected")

	if err := database.EnsureIndexes(db); err != nil {
		log.WithError(err).Warn("index warning")
	}

	var notifier *notify.Notifier
	sender, err := notify.NewEmailAPIClient(notify.ClientConfig{
		Endpoint: env.EmailAPIURL,
		APIKey:   env.EmailAPIKey,
		From:     env.EmailFrom,
	})
	if err != nil {
		log.WithError(err).Warn("email disabled")
	} else {
		notifier = notify.NewNotifier(sender, handlers.SettingsRecipients{DB: db}, env.FallbackEmail, env.SiteURL)
	}

	// Typed nil pointers would pass the handlers' nil checks.
	var reservationNotifier handlers.ReservationNotifier
	var inviteNotifier handlers.InviteNotifier
	if notifier != nil {
		reservationNotifier = notifier
		inviteNotifier = notifier
	}

	images := storage.NewLocalStore(env.UploadDir, env.UploadBaseURL)
	colors := remoteconfig.NewStore(db)
	catalog := handlers.CatalogConfig{
		Store:           images,
		UseTransactions: env.UseTransactions,
		MaxImages:       env.MaxUploadImages,
	}
	session := handlers.SessionConfig{
		JWTSecret:       env.JWTSecret,
		SessionTTL:      env.SessionTTL,
		IdentitySecret:  env.IdentitySecret,
		IdentityIssuer:  env.IdentityIssuer,
		UseTransactions: env.UseTransactions,
	}

	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	limiter := middleware.NewRateLimiter(env.RateLimitRPS, env.RateLimitBurst)
	limiter.StartCleanup(time.Minute, stopCleanup)
	limited := limiter.Middleware()

	r := routes{
		env:          env,
		db:           db,
		images:       images,
		colors:       colors,
		catalog:      catalog,
		session:      session,
		limited:      limited,
		reservations: reservationNotifier,
		invites:      inviteNotifier,
	}.engine()

	srv := &http.Server{
		Addr:              ":" + env.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("port", env.Port).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}
}
