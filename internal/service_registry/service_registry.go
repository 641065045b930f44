package service_registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dn51/speedtracker/internal/datasync"
	"github.com/dn51/speedtracker/internal/registry"
	"github.com/dn51/speedtracker/internal/server"
	"github.com/dn51/speedtracker/internal/services"
	"github.com/dn51/speedtracker/internal/speed"
	"github.com/dn51/speedtracker/internal/utils"
	"github.com/dn51/speedtracker/pkg/file"
	"github.com/dn51/speedtracker/pkg/gps"
	"github.com/dn51/speedtracker/pkg/identity"
	"github.com/dn51/speedtracker/pkg/mqtt"
	"github.com/dn51/speedtracker/pkg/permission"
	"github.com/dn51/speedtracker/pkg/prefs"
)

// ServiceRegistry manages the lifecycle of the application services.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration

	mqttClient mqtt.MQTTClient
	fileClient file.FileOperations
	gate       permission.Gate
	prefStore  prefs.Store
	workerPool *utils.WorkerPool
	Logger     zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, fileClient file.FileOperations, gate permission.Gate,
	prefStore prefs.Store, workerPool *utils.WorkerPool, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]registry.Service),
		mqttClient: mqttClient,
		fileClient: fileClient,
		gate:       gate,
		prefStore:  prefStore,
		workerPool: workerPool,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return err
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices builds and registers the application services from
// configuration: the display server, the optional status publisher, and the
// tracker dispatcher with its location source.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, deviceInfo identity.DeviceInfoInterface) error {
	provider, err := sr.buildLocationProvider(config)
	if err != nil {
		return err
	}

	fixes := make(chan gps.Fix)
	locationService := services.NewLocationService(
		time.Duration(config.Services.Location.Interval)*time.Second,
		provider,
		fixes,
		sr.Logger,
	)

	displayServer := server.NewDisplayServer(config.Services.Display.ListenAddr, sr.Logger)

	publisher := datasync.NewSyncPublisher(
		config.Services.Sync.TopicPrefix,
		config.Services.Sync.Urgent,
		sr.mqttClient,
		sr.Logger,
	)

	trackerService := services.NewTrackerService(
		config.Services.Tracker.DefaultLimit,
		speed.Unit(config.Services.Tracker.Unit),
		time.Duration(config.Services.Tracker.IndicatorFade)*time.Millisecond,
		sr.gate,
		sr.prefStore,
		publisher,
		displayServer,
		locationService,
		sr.workerPool,
		fixes,
		sr.Logger,
	)
	displayServer.SetCommandHandler(trackerService.HandleCommand)

	if config.Services.Location.Provider == utils.ProviderNetwork {
		// Same warning the user would see on GPS-less hardware.
		trackerService.SetStartupNotice("GPS is not available on this hardware; using network location")
	}

	sr.RegisterService("display", displayServer)

	if config.Services.Status.Enabled {
		sr.RegisterService("status", services.NewStatusService(
			config.Services.Sync.TopicPrefix,
			time.Duration(config.Services.Status.Interval)*time.Second,
			config.Services.Status.QOS,
			deviceInfo,
			sr.mqttClient,
			sr.Logger,
		))
	}

	sr.RegisterService("tracker", trackerService)

	sr.Logger.Info().Msgf("Registered services in order: %v", sr.serviceKeys)
	return nil
}

// buildLocationProvider selects the fix provider from configuration.
func (sr *ServiceRegistry) buildLocationProvider(config *utils.Config) (gps.Provider, error) {
	switch config.Services.Location.Provider {
	case utils.ProviderNMEA:
		return gps.NewNMEAProvider(
			config.Services.Location.GPSDevicePort,
			config.Services.Location.GPSDeviceBaudRate,
		), nil
	case utils.ProviderNetwork:
		return gps.NewGeolocationProvider(config.Services.Location.MapsAPIKey)
	default:
		return nil, fmt.Errorf("unknown location provider: %q", config.Services.Location.Provider)
	}
}
