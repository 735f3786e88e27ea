package dispatch

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fitbarz/kitcontrol/internal/scanner"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("dispatch session not found")

// ScannerFactory builds one adapter per scanning session.
type ScannerFactory func() *scanner.Adapter

// Manager owns the active dispatch sessions and the camera adapter of
// whichever session is currently scanning. The device stream is held
// exclusively by one session for the lifetime of its scanning step and
// released deterministically however that step is exited.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	scanners map[int64]*scanner.Adapter

	logs       LogRepository
	roles      RoleResolver
	newScanner ScannerFactory
}

func NewManager(logs LogRepository, roles RoleResolver, factory ScannerFactory) *Manager {
	return &Manager{
		sessions:   make(map[int64]*Session),
		scanners:   make(map[int64]*scanner.Adapter),
		logs:       logs,
		roles:      roles,
		newScanner: factory,
	}
}

// Create registers a new logged-out session.
func (m *Manager) Create() *Session {
	s := NewSession(m.logs, m.roles)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s
}

// Get looks up a session by id.
func (m *Manager) Get(id int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close removes a session, releasing its camera if one is open.
func (m *Manager) Close(id int64) {
	m.CloseScanner(id)
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// OpenScanner starts a camera adapter for the session and routes
// decoded codes into its confirmation policy. Only sessions in the
// scanning step may open the camera.
func (m *Manager) OpenScanner(ctx context.Context, sessionID int64, facing scanner.Facing) error {
	s, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	if s.State() != StateScanning {
		return ErrBadState
	}
	if m.newScanner == nil {
		return errors.New("no capture device configured")
	}

	m.CloseScanner(sessionID)

	adapter := m.newScanner()
	handler := func(code string) {
		if _, err := s.Scan(code); err != nil {
			zap.L().Info("scan rejected",
				zap.Int64("session", sessionID),
				zap.String("code", code),
				zap.Error(err))
		}
	}
	if err := adapter.Bus().Subscribe(scanner.TopicCodeDecoded, handler); err != nil {
		return errors.Wrap(err, "subscribe decoded codes")
	}
	if err := adapter.Start(ctx, facing); err != nil {
		_ = adapter.Bus().Unsubscribe(scanner.TopicCodeDecoded, handler)
		return err
	}

	m.mu.Lock()
	m.scanners[sessionID] = adapter
	m.mu.Unlock()
	return nil
}

// ToggleScanner flips the open camera between front and rear.
func (m *Manager) ToggleScanner(ctx context.Context, sessionID int64) error {
	m.mu.RLock()
	adapter, ok := m.scanners[sessionID]
	m.mu.RUnlock()
	if !ok {
		return errors.New("scanner not open")
	}
	return adapter.Toggle(ctx)
}

// CloseScanner releases the session's camera. Idempotent.
func (m *Manager) CloseScanner(sessionID int64) {
	m.mu.Lock()
	adapter, ok := m.scanners[sessionID]
	delete(m.scanners, sessionID)
	m.mu.Unlock()
	if ok {
		adapter.Stop()
	}
}

// Scanner returns the adapter of a scanning session, if open.
func (m *Manager) Scanner(sessionID int64) (*scanner.Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	adapter, ok := m.scanners[sessionID]
	return adapter, ok
}
