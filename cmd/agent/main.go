package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/framecut/framecut-agent/internal/api"
	"github.com/framecut/framecut-agent/internal/config"
	"github.com/framecut/framecut-agent/internal/db"
	"github.com/framecut/framecut-agent/internal/engine"
	"github.com/framecut/framecut-agent/internal/export"
	"github.com/framecut/framecut-agent/internal/logging"
	"github.com/framecut/framecut-agent/internal/media"
	"github.com/framecut/framecut-agent/internal/project"
	"github.com/framecut/framecut-agent/internal/render"
	"github.com/framecut/framecut-agent/internal/timeline"
	"github.com/framecut/framecut-agent/internal/ui"
)

var Version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.AssetsDir(), cfg.ThumbnailsDir(), cfg.EngineWorkspaceDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting framecut agent", "version", Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	authToken, err := ensureAuthToken(database)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                   FRAMECUT AGENT v0.1.0                   ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	adapter := engine.NewCommandAdapter(engine.CommandConfig{
		Workspace: cfg.EngineWorkspaceDir(),
		Binary:    cfg.EngineBin(),
		Timeout:   cfg.EngineCommandTimeout(),
		Logger:    logger,
	})
	defer adapter.Close()

	assetRepo := media.NewRepository(database.Conn())
	registry := media.NewRegistry(assetRepo, adapter, cfg.ThumbnailsDir(), logger)

	projects := project.NewStore(database.Conn(), logger)
	registry.SetReferenceChecker(projects)

	planner := render.NewPlanner(logger)
	exportRepo := export.NewRepository(database.Conn())
	orchestrator := export.NewOrchestrator(adapter, planner, exportRepo, cfg.EngineLoadRetries(), logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:         cfg.Port(),
		Registry:     registry,
		Projects:     projects,
		Orchestrator: orchestrator,
		Tokens:       database,
		Defaults: timeline.Settings{
			Container:  cfg.ExportContainer(),
			VideoCodec: cfg.ExportVideoCodec(),
			AudioCodec: cfg.ExportAudioCodec(),
			CRF:        cfg.ExportCRF(),
			Preset:     cfg.ExportPreset(),
		},
		Logger:    logger,
		StartTime: startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Orchestrator: orchestrator,
			Logger:       logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()

		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-quitCh:
					return
				case <-ticker.C:
					if job := orchestrator.Active(); job != nil {
						tray.UpdateExport(job.State, job.Progress)
					} else {
						tray.UpdateExport(export.StateIdle, 0)
					}
				}
			}
		}()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")

	if job := orchestrator.Active(); job != nil {
		orchestrator.Cancel(job.ID)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(database *db.DB) (string, error) {
	ctx := context.Background()

	existing, err := database.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := database.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
