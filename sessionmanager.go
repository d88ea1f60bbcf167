// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nexus-edge/opcua-client/transport"
)

// SessionManager is a named, concurrency-safe container of Sessions,
// letting an application address one of many OPC UA servers by a
// short logical name instead of threading *Session values through
// every layer.
type SessionManager struct {
	tr      transport.Transport
	log     zerolog.Logger
	metrics *Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a SessionManager that dials every Session
// it creates through tr.
func NewSessionManager(tr transport.Transport) *SessionManager {
	return &SessionManager{
		tr:       tr,
		log:      withComponent(zerolog.Nop(), "session-manager"),
		sessions: make(map[string]*Session),
	}
}

// WithLogger attaches a logger propagated to every Session created
// afterwards.
func (m *SessionManager) WithLogger(logger zerolog.Logger) *SessionManager {
	m.log = withComponent(logger, "session-manager")
	return m
}

// WithMetrics attaches a Metrics collector propagated to every Session
// created afterwards.
func (m *SessionManager) WithMetrics(metrics *Metrics) *SessionManager {
	m.metrics = metrics
	return m
}

// Create builds, connects and registers a Session under name. name
// must be unique among live sessions; ErrNameInUse otherwise.
func (m *SessionManager) Create(ctx context.Context, name, endpoint string, opts ...Option) (*Session, error) {
	m.mu.Lock()
	if _, exists := m.sessions[name]; exists {
		m.mu.Unlock()
		return nil, ErrNameInUse
	}
	s := NewSession(m.tr, endpoint, opts...)
	s.WithLogger(m.log)
	if m.metrics != nil {
		s.WithMetrics(m.metrics)
	}
	m.sessions[name] = s
	m.mu.Unlock()

	if err := s.Connect(ctx); err != nil {
		m.mu.Lock()
		delete(m.sessions, name)
		m.mu.Unlock()
		return nil, err
	}
	return s, nil
}

// Get returns the named Session, or ok=false if none is registered.
func (m *SessionManager) Get(name string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[name]
	return s, ok
}

// Close closes and forgets the named Session.
func (m *SessionManager) Close(ctx context.Context, name string) error {
	m.mu.Lock()
	s, ok := m.sessions[name]
	delete(m.sessions, name)
	m.mu.Unlock()
	if !ok {
		return ErrUnknownSessionName
	}
	return s.Close(ctx)
}

// CloseAll closes every registered Session, not stopping on individual
// errors, and returns the first error encountered.
func (m *SessionManager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Names returns the names of every currently registered Session.
func (m *SessionManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		out = append(out, name)
	}
	return out
}

// LoadConnections reads connSpecsPath and creates one Session per
// entry, using each ConnectionSpec's Name and EndpointURL and applying
// its derived Options. A connection that fails is logged and does not
// abort the remaining entries; only the first such error is returned.
func (m *SessionManager) LoadConnections(ctx context.Context, connSpecsPath string) error {
	specs, err := LoadConnectionSpecs(connSpecsPath)
	if err != nil {
		return err
	}

	var firstErr error
	for _, spec := range specs {
		if _, err := m.Create(ctx, spec.Name, spec.EndpointURL, spec.Options()...); err != nil {
			m.log.Error().Err(err).Str("connection", spec.Name).Msg("failed to establish connection")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
