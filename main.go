package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"blockrand/internal/api"
	"blockrand/internal/config"
	"blockrand/internal/container"
	"blockrand/ui"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if err := appContainer.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	hub := api.NewSSEHub()
	defer hub.Close()
	appContainer.Enrollment.AddListener(api.NewSSEEventBroadcaster(hub))

	handler := api.NewAssignmentHandler(appContainer.Enrollment, appContainer.Balance)
	router := api.NewRouter(handler, hub)

	dashboard, err := ui.NewApp(ui.Config{Port: appConfig.Server.Port, LogLimit: 200}, appContainer.Enrollment, appContainer.Balance, router)
	if err != nil {
		log.Fatalf("Failed to initialize dashboard: %v", err)
	}

	log.Printf("Storage backend: %s, block size %d, %d strata", appConfig.Storage.Backend, appContainer.Enrollment.BlockSize(), len(appContainer.Stratifier.Keys()))
	if err := dashboard.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}
