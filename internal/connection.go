package internal

import (
	"context"
	"sync"
)

// ConnectionManager serializes session establishment for a client.
// A successful initialization is remembered; a failed one can be retried
// by the next caller.
type ConnectionManager struct {
	mu          sync.Mutex
	initialized bool
	err         error
}

// NewConnectionManager creates a new ConnectionManager instance ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{}
}

// Initialize runs fn unless a previous call already succeeded.
// Concurrent callers wait for the call in progress and then observe its outcome.
func (cm *ConnectionManager) Initialize(ctx context.Context, fn func(context.Context) error) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.initialized {
		return nil
	}

	cm.err = fn(ctx)
	cm.initialized = cm.err == nil
	return cm.err
}

// Error returns the error from the last initialization attempt, if any.
func (cm *ConnectionManager) Error() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.err
}

// IsInitialized reports whether an initialization attempt has succeeded.
func (cm *ConnectionManager) IsInitialized() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.initialized
}

// MarkInitialized records a session established outside Initialize,
// e.g. by an explicit login call.
func (cm *ConnectionManager) MarkInitialized() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.initialized = true
	cm.err = nil
}

// Reset forgets any previous outcome so the next Initialize runs again.
func (cm *ConnectionManager) Reset() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.initialized = false
	cm.err = nil
}
