package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dn51/speedtracker/pkg/gps"
)

// LocationService subscribes to periodic location fixes and delivers them to
// the dispatcher. Start and Stop are idempotent so the foreground/background
// lifecycle can call them freely; stopping only unsubscribes, it does not
// close the provider.
type LocationService struct {
	// Configuration fields
	interval time.Duration

	// Dependencies
	provider gps.Provider
	fixes    chan<- gps.Fix
	logger   zerolog.Logger

	// Internal state management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	lastFix    gps.Fix
	hasLastFix bool
}

// NewLocationService creates a new LocationService delivering fixes on the
// given channel at the configured interval.
func NewLocationService(interval time.Duration, provider gps.Provider, fixes chan<- gps.Fix, logger zerolog.Logger) *LocationService {
	return &LocationService{
		interval: interval,
		provider: provider,
		fixes:    fixes,
		logger:   logger,
	}
}

// Start begins fix delivery. Calling Start while running is a no-op.
func (l *LocationService) Start() error {
	if l.running {
		l.logger.Debug().Msg("LocationService is already running")
		return nil
	}

	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.running = true

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.runFixLoop()
	}()

	l.logger.Info().
		Dur("interval", l.interval).
		Msg("LocationService started")
	return nil
}

// Stop unsubscribes from fix delivery. Calling Stop while stopped is a no-op.
func (l *LocationService) Stop() error {
	if !l.running {
		l.logger.Debug().Msg("LocationService is not running")
		return nil
	}

	l.cancel()
	l.wg.Wait()

	l.running = false
	l.logger.Info().Msg("LocationService stopped")
	return nil
}

// Close releases the underlying provider. The service must not be restarted
// afterwards.
func (l *LocationService) Close() error {
	if err := l.provider.Close(); err != nil {
		l.logger.Error().Err(err).Msg("Failed to close location provider")
		return err
	}
	return nil
}

// runFixLoop polls the provider at the configured interval and forwards each
// usable fix to the dispatcher.
func (l *LocationService) runFixLoop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fix, err := l.provider.GetFix()
			if err != nil {
				l.logger.Error().Err(err).Msg("Failed to get fix from provider")
				continue
			}

			// Providers without speed over ground (network geolocation) get
			// speed derived from the previous fix.
			if !fix.SpeedValid && l.hasLastFix {
				fix.SpeedMPS = gps.DeriveSpeedMPS(l.lastFix, fix)
				fix.SpeedValid = true
			}
			l.lastFix = fix
			l.hasLastFix = true

			if !fix.SpeedValid {
				// First fix from a speed-less provider; nothing to classify yet.
				continue
			}

			select {
			case l.fixes <- fix:
			case <-l.ctx.Done():
				return
			}

		case <-l.ctx.Done():
			l.logger.Info().Msg("LocationService is stopping")
			return
		}
	}
}
