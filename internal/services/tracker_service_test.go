package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dn51/speedtracker/internal/display"
	"github.com/dn51/speedtracker/internal/server"
	"github.com/dn51/speedtracker/internal/services"
	"github.com/dn51/speedtracker/internal/speed"
	"github.com/dn51/speedtracker/internal/utils"
	"github.com/dn51/speedtracker/pkg/gps"
)

type frameRecorder struct {
	mu     sync.Mutex
	frames []display.Frame
}

func (r *frameRecorder) Broadcast(frame display.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *frameRecorder) any(match func(display.Frame) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, frame := range r.frames {
		if match(frame) {
			return true
		}
	}
	return false
}

func (r *frameRecorder) last() display.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return display.Frame{}
	}
	return r.frames[len(r.frames)-1]
}

type fakeGate struct {
	mu            sync.Mutex
	granted       bool
	requestResult bool
}

func (g *fakeGate) Granted(capability string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted
}

func (g *fakeGate) Request(ctx context.Context, capability string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.granted = g.requestResult
	return g.requestResult, nil
}

func (g *fakeGate) Revoke(capability string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.granted = false
	return nil
}

type fakeStore struct {
	mu     sync.Mutex
	values map[string]int
}

func (s *fakeStore) GetInt(key string, defaultValue int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return defaultValue
}

func (s *fakeStore) PutInt(key string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]int)
	}
	s.values[key] = value
	return nil
}

type fakePublisher struct {
	mu    sync.Mutex
	fixes []gps.Fix
}

func (p *fakePublisher) PublishFix(fix gps.Fix) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fixes = append(p.fixes, fix)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fixes)
}

type fakeLocation struct {
	mu         sync.Mutex
	running    bool
	stopCalls  int
	startCalls int
}

func (l *fakeLocation) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = true
	l.startCalls++
	return nil
}

func (l *fakeLocation) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
	l.stopCalls++
	return nil
}

func (l *fakeLocation) Close() error { return nil }

func (l *fakeLocation) isRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

type trackerFixture struct {
	tracker   *services.TrackerService
	frames    *frameRecorder
	gate      *fakeGate
	store     *fakeStore
	publisher *fakePublisher
	location  *fakeLocation
	fixes     chan gps.Fix
	pool      *utils.WorkerPool
}

func newTrackerFixture(t *testing.T, granted bool, fade time.Duration) *trackerFixture {
	t.Helper()

	f := &trackerFixture{
		frames:    &frameRecorder{},
		gate:      &fakeGate{granted: granted, requestResult: true},
		store:     &fakeStore{},
		publisher: &fakePublisher{},
		location:  &fakeLocation{},
		fixes:     make(chan gps.Fix),
		pool:      utils.NewWorkerPool(2),
	}
	f.tracker = services.NewTrackerService(
		45, speed.UnitMPH, fade,
		f.gate, f.store, f.publisher, f.frames, f.location, f.pool, f.fixes,
		zerolog.Nop(),
	)
	t.Cleanup(f.pool.Shutdown)
	return f
}

func TestTrackerService_StartStop(t *testing.T) {
	f := newTrackerFixture(t, true, 500*time.Millisecond)

	require.NoError(t, f.tracker.Start())
	err := f.tracker.Start()
	assert.Error(t, err)
	assert.Equal(t, "tracker service is already running", err.Error())

	require.NoError(t, f.tracker.Stop())
	err = f.tracker.Stop()
	assert.Error(t, err)
	assert.Equal(t, "tracker service is not running", err.Error())
}

func TestTrackerService_GrantThenFixReachesLive(t *testing.T) {
	f := newTrackerFixture(t, false, 500*time.Millisecond)

	require.NoError(t, f.tracker.Start())
	defer f.tracker.Stop()

	// Without a grant the display awaits permission and no updates run.
	assert.Equal(t, "awaiting_permission", f.frames.last().Phase)
	assert.False(t, f.location.isRunning())

	// The permission-request affordance grants access.
	f.tracker.HandleCommand(server.Command{Type: server.CommandRequestPermission})
	require.Eventually(t, func() bool {
		return f.frames.last().Phase == "awaiting_first_fix" && f.location.isRunning()
	}, 2*time.Second, 10*time.Millisecond)

	// First fix moves the display to live with a classified speed.
	f.fixes <- gps.Fix{SpeedMPS: 20, SpeedValid: true, CapturedAt: time.Now()} // ~44.7 mph
	require.Eventually(t, func() bool {
		frame := f.frames.last()
		return frame.Phase == "live" && frame.SpeedColor == speed.Close.Color()
	}, 2*time.Second, 10*time.Millisecond)
	assert.InDelta(t, 44.7, f.frames.last().Speed, 0.1)
	assert.Equal(t, 45, f.frames.last().SpeedLimit)
}

func TestTrackerService_RevocationReturnsToAwaitingPermission(t *testing.T) {
	f := newTrackerFixture(t, true, 500*time.Millisecond)

	require.NoError(t, f.tracker.Start())
	defer f.tracker.Stop()

	f.fixes <- gps.Fix{SpeedMPS: 10, SpeedValid: true, CapturedAt: time.Now()}
	require.Eventually(t, func() bool {
		return f.frames.last().Phase == "live"
	}, 2*time.Second, 10*time.Millisecond)

	// Revocation drops the display back regardless of prior fixes.
	require.NoError(t, f.gate.Revoke("fine_location"))
	f.tracker.NotifyPermissionChanged(false)
	require.Eventually(t, func() bool {
		return f.frames.last().Phase == "awaiting_permission" && !f.location.isRunning()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTrackerService_FixesArePublished(t *testing.T) {
	f := newTrackerFixture(t, true, 500*time.Millisecond)

	require.NoError(t, f.tracker.Start())
	defer f.tracker.Stop()

	f.fixes <- gps.Fix{Latitude: 37.1, Longitude: -122.2, SpeedMPS: 5, SpeedValid: true, CapturedAt: time.Now()}
	require.Eventually(t, func() bool {
		return f.publisher.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTrackerService_RevokedFixesNotAccepted(t *testing.T) {
	f := newTrackerFixture(t, true, 500*time.Millisecond)

	require.NoError(t, f.tracker.Start())
	defer f.tracker.Stop()

	// A fix delivered after the grant is gone is dropped entirely.
	require.NoError(t, f.gate.Revoke("fine_location"))
	f.fixes <- gps.Fix{SpeedMPS: 5, SpeedValid: true, CapturedAt: time.Now()}

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, f.publisher.count())
}

func TestTrackerService_IndicatorFlash(t *testing.T) {
	f := newTrackerFixture(t, true, 40*time.Millisecond)

	require.NoError(t, f.tracker.Start())
	defer f.tracker.Stop()

	f.fixes <- gps.Fix{SpeedMPS: 10, SpeedValid: true, CapturedAt: time.Now()}

	// Visible immediately after the fix.
	require.Eventually(t, func() bool {
		return f.frames.any(func(frame display.Frame) bool {
			return frame.Phase == "live" && frame.Indicator
		})
	}, 2*time.Second, 5*time.Millisecond)

	// Hidden again once the fade delay elapses.
	require.Eventually(t, func() bool {
		frame := f.frames.last()
		return frame.Phase == "live" && !frame.Indicator
	}, 2*time.Second, 5*time.Millisecond)

	// Fixes arriving faster than the fade re-trigger the dot without leaving
	// it stuck: after the final fade elapses the dot is hidden again.
	for i := 0; i < 3; i++ {
		f.fixes <- gps.Fix{SpeedMPS: 10, SpeedValid: true, CapturedAt: time.Now()}
		time.Sleep(10 * time.Millisecond)
	}
	require.Eventually(t, func() bool {
		return !f.frames.last().Indicator
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTrackerService_LimitPickerResult(t *testing.T) {
	f := newTrackerFixture(t, true, 500*time.Millisecond)
	f.store.values = map[string]int{"SpeedLimit": 45}

	require.NoError(t, f.tracker.Start())
	defer f.tracker.Stop()

	f.fixes <- gps.Fix{SpeedMPS: 22.5, SpeedValid: true, CapturedAt: time.Now()} // ~50.3 mph
	require.Eventually(t, func() bool {
		frame := f.frames.last()
		return frame.Phase == "live" && frame.SpeedColor == speed.Above.Color()
	}, 2*time.Second, 10*time.Millisecond)

	// Raising the limit reclassifies the current speed and persists the pick.
	f.tracker.HandleCommand(server.Command{Type: server.CommandSetLimit, Value: 60})
	require.Eventually(t, func() bool {
		frame := f.frames.last()
		return frame.SpeedLimit == 60 && frame.SpeedColor == speed.Below.Color()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 60, f.store.GetInt("SpeedLimit", 45))
}

func TestTrackerService_CommandsBeforeStartAreQueued(t *testing.T) {
	f := newTrackerFixture(t, false, 500*time.Millisecond)

	// Display clients can connect and issue commands before the dispatch
	// loop runs; they must queue, not crash.
	f.tracker.HandleCommand(server.Command{Type: server.CommandSetLimit, Value: 60})
	f.tracker.HandleCommand(server.Command{Type: server.CommandRequestPermission})

	require.NoError(t, f.tracker.Start())
	defer f.tracker.Stop()

	require.Eventually(t, func() bool {
		return f.store.GetInt("SpeedLimit", 45) == 60 &&
			f.location.isRunning() &&
			f.frames.last().Phase == "awaiting_first_fix"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTrackerService_StartupNoticeShown(t *testing.T) {
	f := newTrackerFixture(t, true, 500*time.Millisecond)

	f.tracker.SetStartupNotice("GPS is not available on this hardware; using network location")
	require.NoError(t, f.tracker.Start())
	defer f.tracker.Stop()

	assert.Equal(t, "GPS is not available on this hardware; using network location",
		f.frames.last().Notice)
}

func TestTrackerService_PersistedLimitRestoredOnStart(t *testing.T) {
	f := newTrackerFixture(t, true, 500*time.Millisecond)
	f.store.values = map[string]int{"SpeedLimit": 60}

	require.NoError(t, f.tracker.Start())
	defer f.tracker.Stop()

	f.fixes <- gps.Fix{SpeedMPS: 20, SpeedValid: true, CapturedAt: time.Now()} // ~44.7 mph
	require.Eventually(t, func() bool {
		frame := f.frames.last()
		return frame.Phase == "live" && frame.SpeedLimit == 60 && frame.SpeedColor == speed.Below.Color()
	}, 2*time.Second, 10*time.Millisecond)
}
