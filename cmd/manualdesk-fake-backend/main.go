// Package main runs an in-memory stand-in for the manual service, for local
// development and demos of the manualdesk CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/manualdesk/internal/fakebackend"
	"github.com/raphaelgruber/manualdesk/internal/models"
	"github.com/rs/cors"
)

var seedManuals = []models.ManualFile{
	{Name: "WF45T6000AW.pdf", Brand: "Samsung", Model: "WF45T6000AW", ProductType: "Washing Machine", Year: "2021", Language: "en"},
	{Name: "OLED55C1.pdf", Brand: "LG", Model: "OLED55C1", ProductType: "TV", Year: "2021", Language: "en"},
	{Name: "KD-55X80J.pdf", Brand: "Sony", Model: "KD-55X80J", ProductType: "Smart TV", Year: "2022", Language: "es"},
}

func main() {
	seed := flag.Bool("seed", false, "start with a few example manuals")
	flag.Parse()

	// Get server port from environment or default
	port := os.Getenv("MANUALDESK_FAKE_PORT")
	if port == "" {
		port = "5000"
	}

	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	backend := fakebackend.New(fakebackend.Options{Logger: logger})
	if *seed {
		for _, m := range seedManuals {
			backend.AddFile(m, []byte("%PDF-1.4 example manual for "+m.Model))
		}
	}

	// Browsers running the web client call from another origin.
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      c.Handler(backend),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("fake manual service listening", "url", fmt.Sprintf("http://localhost:%s/api", port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
