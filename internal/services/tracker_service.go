package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dn51/speedtracker/internal/constants"
	"github.com/dn51/speedtracker/internal/datasync"
	"github.com/dn51/speedtracker/internal/display"
	"github.com/dn51/speedtracker/internal/server"
	"github.com/dn51/speedtracker/internal/speed"
	"github.com/dn51/speedtracker/internal/utils"
	"github.com/dn51/speedtracker/pkg/gps"
	"github.com/dn51/speedtracker/pkg/permission"
	"github.com/dn51/speedtracker/pkg/prefs"
)

// FrameSink receives every rendered display frame.
type FrameSink interface {
	Broadcast(frame display.Frame)
}

// LocationSource is the subscribe/unsubscribe contract of the location
// service. Start and Stop are idempotent; Close releases the provider.
type LocationSource interface {
	Start() error
	Stop() error
	Close() error
}

// Tracker events posted to the dispatch loop.
type permissionResultEvent struct{ granted bool }
type limitPickedEvent struct{ limit int }
type hideIndicatorEvent struct{}

// TrackerService is the single-threaded dispatcher at the center of the
// application: all state transitions happen on its loop goroutine, driven by
// fix deliveries, permission results and picker results. It owns the
// presenter and fans each accepted fix out to the display and the
// cross-device publisher.
type TrackerService struct {
	// Configuration fields
	defaultLimit  int
	unit          speed.Unit
	indicatorFade time.Duration

	// Dependencies
	gate       permission.Gate
	prefStore  prefs.Store
	publisher  datasync.Publisher
	frames     FrameSink
	location   LocationSource
	workerPool *utils.WorkerPool
	logger     zerolog.Logger

	// Dispatcher-owned state
	presenter *display.Presenter
	limit     int

	fixes  <-chan gps.Fix
	events chan any

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewTrackerService creates a new TrackerService consuming fixes from the
// given channel.
func NewTrackerService(defaultLimit int, unit speed.Unit, indicatorFade time.Duration,
	gate permission.Gate, prefStore prefs.Store, publisher datasync.Publisher, frames FrameSink,
	location LocationSource, workerPool *utils.WorkerPool, fixes <-chan gps.Fix, logger zerolog.Logger) *TrackerService {
	// A live context from construction keeps post and requestPermission safe
	// for display clients that connect before Start; queued events are picked
	// up when the dispatch loop begins.
	ctx, cancel := context.WithCancel(context.Background())
	return &TrackerService{
		defaultLimit:  defaultLimit,
		unit:          unit,
		indicatorFade: indicatorFade,
		gate:          gate,
		prefStore:     prefStore,
		publisher:     publisher,
		frames:        frames,
		location:      location,
		workerPool:    workerPool,
		presenter:     display.NewPresenter(unit),
		fixes:         fixes,
		events:        make(chan any, 16),
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger,
	}
}

// Start restores persisted state, authorizes the location source and launches
// the dispatch loop.
func (t *TrackerService) Start() error {
	if t.running {
		t.logger.Warn().Msg("TrackerService is already running")
		return errors.New("tracker service is already running")
	}

	t.running = true

	t.limit = t.prefStore.GetInt(constants.PrefsSpeedLimitKey, t.defaultLimit)
	t.presenter.SetLimit(t.limit)

	granted := t.gate.Granted(permission.CapabilityFineLocation)
	t.presenter.SetGranted(granted)
	if granted {
		if err := t.location.Start(); err != nil {
			t.logger.Error().Err(err).Msg("Failed to start location updates")
		}
	}
	t.frames.Broadcast(t.presenter.Frame())

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.runDispatchLoop()
	}()

	t.logger.Info().
		Int("speed_limit", t.limit).
		Str("unit", string(t.unit)).
		Bool("permission_granted", granted).
		Msg("TrackerService started")
	return nil
}

// Stop terminates the dispatch loop, unsubscribes from location updates and
// releases the provider.
func (t *TrackerService) Stop() error {
	if !t.running {
		t.logger.Warn().Msg("TrackerService is not running")
		return errors.New("tracker service is not running")
	}

	t.cancel()
	t.wg.Wait()

	if err := t.location.Stop(); err != nil {
		t.logger.Error().Err(err).Msg("Failed to stop location updates")
	}
	if err := t.location.Close(); err != nil {
		t.logger.Error().Err(err).Msg("Failed to close location source")
	}

	t.running = false
	t.logger.Info().Msg("TrackerService stopped")
	return nil
}

// HandleCommand accepts a display-client command. Safe to call from any
// goroutine; the command is handed to the dispatch loop.
func (t *TrackerService) HandleCommand(cmd server.Command) {
	switch cmd.Type {
	case server.CommandSetLimit:
		t.post(limitPickedEvent{limit: cmd.Value})
	case server.CommandRequestPermission:
		t.requestPermission()
	default:
		t.logger.Warn().Str("type", cmd.Type).Msg("Unknown display command")
	}
}

// NotifyPermissionChanged informs the dispatcher of a grant or revocation
// decided outside the display, e.g. by the platform permission screen. Safe
// to call from any goroutine.
func (t *TrackerService) NotifyPermissionChanged(granted bool) {
	t.post(permissionResultEvent{granted: granted})
}

// SetStartupNotice attaches a one-time informational message shown on the
// display, e.g. when the hardware has no GPS receiver. Call before Start.
func (t *TrackerService) SetStartupNotice(notice string) {
	t.presenter.SetNotice(notice)
}

// post hands an event to the dispatch loop without blocking shutdown.
func (t *TrackerService) post(ev any) {
	select {
	case t.events <- ev:
	case <-t.ctx.Done():
	}
}

// requestPermission runs the async grant request off the dispatch loop and
// posts the result back as an event.
func (t *TrackerService) requestPermission() {
	t.workerPool.Submit(func() {
		granted, err := t.gate.Request(t.ctx, permission.CapabilityFineLocation)
		if err != nil {
			t.logger.Error().Err(err).Msg("Permission request failed")
		}
		t.post(permissionResultEvent{granted: granted})
	})
}

// runDispatchLoop is the serial queue: every state transition happens here.
func (t *TrackerService) runDispatchLoop() {
	for {
		select {
		case fix := <-t.fixes:
			t.handleFix(fix)

		case ev := <-t.events:
			switch e := ev.(type) {
			case permissionResultEvent:
				t.handlePermissionResult(e.granted)
			case limitPickedEvent:
				t.handleLimitPicked(e.limit)
			case hideIndicatorEvent:
				t.presenter.SetIndicator(false)
				t.frames.Broadcast(t.presenter.Frame())
			}

		case <-t.ctx.Done():
			t.logger.Info().Msg("TrackerService dispatch loop stopping")
			return
		}
	}
}

// handleFix classifies and renders a new fix, flashes the activity dot, and
// forwards the sample to the paired device.
func (t *TrackerService) handleFix(fix gps.Fix) {
	if !t.gate.Granted(permission.CapabilityFineLocation) {
		// The subscription can deliver a last fix while winding down after a
		// revocation; such samples are not accepted.
		return
	}

	t.presenter.OnFix(t.unit.FromMPS(fix.SpeedMPS))
	t.presenter.SetIndicator(true)
	t.frames.Broadcast(t.presenter.Frame())

	// Each fix schedules its own hide; earlier timers are not cancelled,
	// matching the shipped blink behavior.
	time.AfterFunc(t.indicatorFade, func() {
		t.post(hideIndicatorEvent{})
	})

	t.workerPool.Submit(func() {
		// Failure is logged by the publisher; the sample is dropped.
		_ = t.publisher.PublishFix(fix)
	})
}

// handlePermissionResult applies a grant or revocation.
func (t *TrackerService) handlePermissionResult(granted bool) {
	t.presenter.SetGranted(granted)

	if granted {
		if err := t.location.Start(); err != nil {
			t.logger.Error().Err(err).Msg("Failed to start location updates")
		}
	} else {
		t.logger.Info().Msg("Location permission not granted")
		if err := t.location.Stop(); err != nil {
			t.logger.Error().Err(err).Msg("Failed to stop location updates")
		}
	}

	t.frames.Broadcast(t.presenter.Frame())
}

// handleLimitPicked persists and applies a new speed limit from the picker.
func (t *TrackerService) handleLimitPicked(limit int) {
	if err := t.prefStore.PutInt(constants.PrefsSpeedLimitKey, limit); err != nil {
		t.logger.Error().Err(err).Msg("Failed to persist speed limit")
	}

	t.limit = limit
	t.presenter.SetLimit(limit)
	t.frames.Broadcast(t.presenter.Frame())

	t.logger.Info().Int("speed_limit", limit).Msg("Speed limit updated")
}
