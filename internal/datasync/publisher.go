package datasync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dn51/speedtracker/internal/constants"
	"github.com/dn51/speedtracker/internal/models"
	"github.com/dn51/speedtracker/pkg/gps"
	"github.com/dn51/speedtracker/pkg/mqtt"
)

// Publisher forwards accepted location samples to the paired device.
type Publisher interface {
	PublishFix(fix gps.Fix) error
}

// SyncPublisher serializes each fix into a three-field record and hands it to
// the sync transport. Failures are logged and the sample is dropped; delivery
// ordering is whatever the transport provides.
type SyncPublisher struct {
	topicPrefix string
	qos         int
	mqttClient  mqtt.MQTTClient
	logger      zerolog.Logger
}

// NewSyncPublisher creates a SyncPublisher. Urgent requests low-latency
// delivery, which maps to QoS 1 on the transport.
func NewSyncPublisher(topicPrefix string, urgent bool, mqttClient mqtt.MQTTClient, logger zerolog.Logger) *SyncPublisher {
	qos := 0
	if urgent {
		qos = 1
	}
	return &SyncPublisher{
		topicPrefix: topicPrefix,
		qos:         qos,
		mqttClient:  mqttClient,
		logger:      logger,
	}
}

// Path returns the record path for a capture time. The millisecond key keeps
// records for distinct fixes from overwriting each other on the companion.
func (p *SyncPublisher) Path(capturedAt time.Time) string {
	return fmt.Sprintf("%s/%s/%d", p.topicPrefix, constants.LocationPath, capturedAt.UnixMilli())
}

// Record builds the payload synced for a fix.
func Record(fix gps.Fix) models.LocationRecord {
	return models.LocationRecord{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Time:      fix.CapturedAt.UnixMilli(),
	}
}

// PublishFix sends the record for one fix to the paired device.
func (p *SyncPublisher) PublishFix(fix gps.Fix) error {
	payload, err := json.Marshal(Record(fix))
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to serialize location record")
		return err
	}

	path := p.Path(fix.CapturedAt)
	token := p.mqttClient.Publish(path, byte(p.qos), false, payload)
	token.Wait()

	if err := token.Error(); err != nil {
		p.logger.Error().
			Err(err).
			Str("path", path).
			Msg("Failed to sync location record to paired device")
		return err
	}

	p.logger.Debug().
		Str("path", path).
		Float64("latitude", fix.Latitude).
		Float64("longitude", fix.Longitude).
		Msg("Location record synced successfully")
	return nil
}
