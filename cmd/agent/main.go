package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dn51/speedtracker/internal/service_registry"
	"github.com/dn51/speedtracker/internal/utils"
	"github.com/dn51/speedtracker/pkg/file"
	"github.com/dn51/speedtracker/pkg/identity"
	"github.com/dn51/speedtracker/pkg/mqtt"
	"github.com/dn51/speedtracker/pkg/permission"
	"github.com/dn51/speedtracker/pkg/prefs"
)

func main() {
	// Set up structured logging with JSON output
	logger := zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig("configs/config.yaml", fileClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize DeviceInfo
	deviceInfo := identity.NewDeviceInfo(config.Identity.DeviceFile, fileClient)
	if err := deviceInfo.LoadDeviceInfo(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load device information")
	}

	// Generate a unique MQTT Client ID by appending a UUID
	clientID := config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", clientID).Msg("Using MQTT client ID")

	// Initialize the shared sync transport connection
	mqttClient := mqtt.NewMqttService(fileClient)
	if err := mqttClient.Initialize(config.MQTT.Broker, clientID, config.MQTT.CACertificate); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize sync transport connection")
	}

	// Permission gate: grants persist in the state file; requests are
	// approved by the display affordance flow.
	gate, err := permission.NewFileGate(config.Permission.StateFile, fileClient, permission.AutoApprove{})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load permission state")
	}

	prefStore, err := prefs.NewFileStore(config.Preferences.File, fileClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load preferences")
	}

	workerPool := utils.NewWorkerPool(config.Services.Tracker.Workers)

	// Create a new service registry and register services from configuration
	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, fileClient, gate, prefStore, workerPool, logger)
	if err := serviceRegistry.RegisterServices(config, deviceInfo); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register services")
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start services")
	}
	logger.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop services cleanly")
	}
	workerPool.Shutdown()
	mqttClient.Disconnect(250)
}
