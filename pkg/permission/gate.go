package permission

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/dn51/speedtracker/pkg/file"
)

// CapabilityFineLocation is the capability gating all location acquisition.
const CapabilityFineLocation = "fine_location"

// ErrNoPrompter indicates a grant was requested but no prompter is wired in,
// so the user could not be asked.
var ErrNoPrompter = errors.New("no permission prompter configured")

// Prompter asks the user to approve a capability and reports the decision.
type Prompter interface {
	Prompt(ctx context.Context, capability string) (bool, error)
}

// Gate tracks whether a capability has been granted. Grants persist across
// launches through the gate's own state file, mirroring a platform permission
// store; denial is never retried except by an explicit new Request.
type Gate interface {
	Granted(capability string) bool
	Request(ctx context.Context, capability string) (bool, error)
	Revoke(capability string) error
}

// FileGate is a Gate backed by a JSON state file.
type FileGate struct {
	stateFile string
	fileOps   file.FileOperations
	prompter  Prompter

	mu     sync.Mutex
	grants map[string]bool
}

// NewFileGate initializes a FileGate and loads any persisted grants.
func NewFileGate(stateFile string, fileOps file.FileOperations, prompter Prompter) (*FileGate, error) {
	g := &FileGate{
		stateFile: stateFile,
		fileOps:   fileOps,
		prompter:  prompter,
		grants:    make(map[string]bool),
	}

	err := fileOps.ReadJsonFile(stateFile, &g.grants)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if g.grants == nil {
		g.grants = make(map[string]bool)
	}

	return g, nil
}

// Granted reports whether the capability is currently granted.
func (g *FileGate) Granted(capability string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.grants[capability]
}

// Request asks the user for the capability. A grant is persisted; a denial
// leaves the gate closed until the user acts again.
func (g *FileGate) Request(ctx context.Context, capability string) (bool, error) {
	if g.Granted(capability) {
		return true, nil
	}
	if g.prompter == nil {
		return false, ErrNoPrompter
	}

	granted, err := g.prompter.Prompt(ctx, capability)
	if err != nil {
		return false, err
	}
	if !granted {
		return false, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.grants[capability] = true
	return true, g.fileOps.WriteJsonFile(g.stateFile, g.grants)
}

// Revoke withdraws a previously granted capability.
func (g *FileGate) Revoke(capability string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.grants, capability)
	return g.fileOps.WriteJsonFile(g.stateFile, g.grants)
}
