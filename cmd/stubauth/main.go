package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campus-connect/appcore/internal/config"
	"github.com/campus-connect/appcore/internal/stub"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Mails go to a local SMTP sink when one is configured, the log otherwise.
	var mailer stub.Mailer
	if cfg.SMTPHost != "" {
		mailer = stub.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)
	} else {
		mailer = stub.NewLogMailer()
	}

	server := stub.NewServer(stub.Options{
		AnonKey:        cfg.ServiceAnonKey,
		RoleKey:        cfg.ServiceRoleKey,
		JWTSecret:      cfg.StubJWTSecret,
		TokenTTL:       cfg.StubTokenTTL,
		ResendCooldown: cfg.ResendCooldown,
		Mailer:         mailer,
	})

	srv := &http.Server{
		Addr:         cfg.StubAddr,
		Handler:      server.Router(cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Auth emulator starting on %s (env=%s)", cfg.StubAddr, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down emulator...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Emulator stopped")
}
