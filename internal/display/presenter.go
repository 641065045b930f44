package display

import (
	"time"

	"github.com/dn51/speedtracker/internal/speed"
)

// Phase is the availability state of the display.
type Phase int

const (
	// AwaitingPermission: location access not granted; show the
	// permission-request affordance and hide the speed fields.
	AwaitingPermission Phase = iota
	// AwaitingFirstFix: access granted but no fix received yet; show the
	// acquiring message and hide the speed fields.
	AwaitingFirstFix
	// Live: access granted and at least one fix received; show the limit and
	// the colored current speed.
	Live
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case AwaitingFirstFix:
		return "awaiting_first_fix"
	case Live:
		return "live"
	default:
		return "awaiting_permission"
	}
}

const (
	permissionNeededMessage = "Location permission is needed to show your speed"
	acquiringMessage        = "Acquiring GPS signal..."

	// Both the acquiring and live phases show the saving icon; only a missing
	// grant switches to the not-saving icon. Matches the shipped behavior.
	iconSaving    = "gps-saving"
	iconNotSaving = "gps-not-saving"
)

// Presenter renders the tracker state into display frames. It has no
// synchronization of its own: the dispatcher owns it and calls it from a
// single goroutine.
type Presenter struct {
	unit speed.Unit

	granted   bool
	hadFix    bool
	limit     int
	speed     float64
	state     speed.State
	indicator bool
	notice    string
}

// NewPresenter creates a Presenter rendering speeds in the given unit.
func NewPresenter(unit speed.Unit) *Presenter {
	return &Presenter{unit: unit}
}

// Phase returns the current availability phase.
func (p *Presenter) Phase() Phase {
	switch {
	case !p.granted:
		return AwaitingPermission
	case !p.hadFix:
		return AwaitingFirstFix
	default:
		return Live
	}
}

// SetGranted records the result of a permission event. Revocation returns the
// display to AwaitingPermission regardless of prior fixes; the fix history is
// kept, so a restored grant goes straight back to Live.
func (p *Presenter) SetGranted(granted bool) {
	p.granted = granted
}

// SetLimit updates the speed limit and reclassifies the current speed.
func (p *Presenter) SetLimit(limit int) {
	p.limit = limit
	p.state = speed.Classify(p.speed, p.limit)
}

// OnFix records a unit-converted speed from a new fix.
func (p *Presenter) OnFix(displaySpeed float64) {
	p.hadFix = true
	p.speed = displaySpeed
	p.state = speed.Classify(p.speed, p.limit)
}

// SetIndicator shows or hides the blinking activity dot.
func (p *Presenter) SetIndicator(visible bool) {
	p.indicator = visible
}

// SetNotice attaches a one-time informational message, e.g. missing GPS
// hardware. It does not block any phase.
func (p *Presenter) SetNotice(notice string) {
	p.notice = notice
}

// Frame renders the current state.
func (p *Presenter) Frame() Frame {
	f := Frame{
		Phase:  p.Phase().String(),
		Notice: p.notice,
		Stamp:  time.Now().UnixMilli(),
	}

	switch p.Phase() {
	case AwaitingPermission:
		f.Icon = iconNotSaving
		f.IssueText = permissionNeededMessage
	case AwaitingFirstFix:
		f.Icon = iconSaving
		f.IssueText = acquiringMessage
	case Live:
		f.Icon = iconSaving
		f.ShowSpeed = true
		f.SpeedLimit = p.limit
		f.Speed = p.speed
		f.SpeedColor = p.state.Color()
		f.Unit = p.unit.Label()
		f.Indicator = p.indicator
	}

	return f
}
