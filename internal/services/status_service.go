package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"

	"github.com/dn51/speedtracker/internal/constants"
	"github.com/dn51/speedtracker/internal/models"
	"github.com/dn51/speedtracker/pkg/identity"
	"github.com/dn51/speedtracker/pkg/mqtt"
)

// StatusService periodically publishes device status to the paired device so
// the companion can tell the wearable is alive and healthy.
type StatusService struct {
	topicPrefix string
	interval    time.Duration
	qos         int
	deviceInfo  identity.DeviceInfoInterface
	mqttClient  mqtt.MQTTClient
	logger      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStatusService initializes a new StatusService.
func NewStatusService(topicPrefix string, interval time.Duration, qos int,
	deviceInfo identity.DeviceInfoInterface, mqttClient mqtt.MQTTClient, logger zerolog.Logger) *StatusService {
	return &StatusService{
		topicPrefix: topicPrefix,
		interval:    interval,
		qos:         qos,
		deviceInfo:  deviceInfo,
		mqttClient:  mqttClient,
		logger:      logger,
	}
}

// Start launches the status loop in a separate goroutine.
func (s *StatusService) Start() error {
	if s.ctx != nil {
		s.logger.Warn().Msg("StatusService is already running")
		return errors.New("status service is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runStatusLoop()
	}()

	s.logger.Info().Str("topic_prefix", s.topicPrefix).Msg("StatusService started successfully")
	return nil
}

// Stop gracefully stops the status service.
func (s *StatusService) Stop() error {
	if s.ctx == nil {
		s.logger.Warn().Msg("StatusService is not running")
		return errors.New("status service is not running")
	}

	s.cancel()
	s.wg.Wait()

	s.ctx = nil
	s.cancel = nil

	s.logger.Info().Msg("StatusService stopped successfully")
	return nil
}

// runStatusLoop continuously sends status messages at the specified interval.
func (s *StatusService) runStatusLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			statusMessage := s.collectStatus()

			payload, err := json.Marshal(statusMessage)
			if err != nil {
				s.logger.Error().Err(err).Msg("Failed to serialize status message")
				continue
			}

			topic := fmt.Sprintf("%s/%s/%s", s.topicPrefix, constants.StatusPath, statusMessage.DeviceID)
			token := s.mqttClient.Publish(topic, byte(s.qos), false, payload)
			token.Wait()

			if err := token.Error(); err != nil {
				s.logger.Error().Err(err).Msg("Failed to publish status message")
			} else {
				s.logger.Debug().Msg("Status published successfully")
			}

		case <-s.ctx.Done():
			s.logger.Info().Msg("StatusService stopping gracefully")
			return
		}
	}
}

// collectStatus gathers host health for the status message. Collection
// failures degrade to zero values rather than skipping the heartbeat.
func (s *StatusService) collectStatus() models.DeviceStatus {
	status := models.DeviceStatus{
		DeviceID:       s.deviceInfo.GetDeviceID(),
		PairedDeviceID: s.deviceInfo.GetPairedDeviceID(),
		Timestamp:      time.Now(),
		Status:         constants.StatusAlive,
	}

	if uptime, err := host.Uptime(); err == nil {
		status.UptimeSeconds = uptime
	} else {
		s.logger.Debug().Err(err).Msg("Failed to read host uptime")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		status.MemoryUsedPercent = vm.UsedPercent
	} else {
		s.logger.Debug().Err(err).Msg("Failed to read memory statistics")
	}

	if avg, err := load.Avg(); err == nil {
		status.LoadAverage = avg.Load1
	} else {
		s.logger.Debug().Err(err).Msg("Failed to read load average")
	}

	return status
}
