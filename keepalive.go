// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/nexus-edge/opcua-client/id"
	"github.com/nexus-edge/opcua-client/ua"
)

// defaultKeepAliveInterval is the probe cadence. Callers connecting to
// a server with a short session timeout should keep this at most a
// quarter of that timeout so the session never expires between probes.
const defaultKeepAliveInterval = 3 * time.Second

// maxConsecutiveFailures is the number of failed recovery attempts the
// breaker tolerates before tripping into its cool-down window.
const maxConsecutiveFailures = 5

// keepAliveCooldown is how long the breaker stays open once tripped.
const keepAliveCooldown = 10 * time.Second

// KeepAlive periodically exercises a Session to detect liveness and
// trigger Recovery on failure. It trips a circuit breaker after
// maxConsecutiveFailures recovery attempts fail in succession; while it
// is open (keepAliveCooldown) probes still run on every tick but no
// recovery attempt is made — replacing a hand rolled failure
// counter/timer pair with sony/gobreaker.
type KeepAlive struct {
	s        *Session
	interval time.Duration
	log      zerolog.Logger

	breaker *gobreaker.CircuitBreaker[struct{}]

	stopOnce sync.Once
	stopCh   chan struct{}

	lastSuccess atomic64
}

// atomic64 stores a unix-nano timestamp without importing sync/atomic
// into every call site; kept tiny and unexported.
type atomic64 struct {
	mu sync.Mutex
	v  int64
}

func (a *atomic64) set(v int64) {
	a.mu.Lock()
	a.v = v
	a.mu.Unlock()
}

func (a *atomic64) get() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}

func newKeepAlive(s *Session) *KeepAlive {
	k := &KeepAlive{
		s:        s,
		interval: defaultKeepAliveInterval,
		log:      withComponent(zerolog.Nop(), "keepalive"),
		stopCh:   make(chan struct{}),
	}
	st := gobreaker.Settings{
		Name:        "keepalive-recovery",
		MaxRequests: 1,
		Timeout:     keepAliveCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxConsecutiveFailures
		},
	}
	k.breaker = gobreaker.NewCircuitBreaker[struct{}](st)
	return k
}

// currentTimeNode is the standard node KeepAlive reads every tick: a
// cheap, universally-present liveness probe.
var currentTimeNode = ua.NewTwoByteNodeID(id.Server_ServerStatus_CurrentTime)

func (k *KeepAlive) run(ctx context.Context) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-k.stopCh:
			return
		case <-ticker.C:
			k.tick(ctx)
		}
	}
}

func (k *KeepAlive) tick(ctx context.Context) {
	req := &ua.ReadRequest{
		TimestampsToReturn: ua.TimestampsToReturnServer,
		NodesToRead: []*ua.ReadValueID{
			{NodeID: currentTimeNode, AttributeID: ua.AttributeIDValue},
		},
	}

	_, err := k.s.Read(ctx, req)
	if err == nil {
		k.lastSuccess.set(time.Now().UnixNano())
		k.s.metrics.keepAliveTick("success")
		k.log.Debug().Msg("keepalive tick ok")
		return
	}

	if opcErr, ok := err.(*Error); ok {
		switch opcErr.Kind {
		case KindDomain:
			// The server answered, just not with a value; that still
			// proves the session is alive.
			k.lastSuccess.set(time.Now().UnixNano())
			k.s.metrics.keepAliveTick("success")
			k.log.Debug().Err(err).Msg("keepalive probe rejected but session alive")
			return
		case KindUsage, KindCancelled:
			// Mid-recovery or cancelled probes prove nothing either way.
			k.log.Debug().Err(err).Msg("keepalive probe skipped")
			return
		}
	}

	k.s.metrics.keepAliveTick("failure")
	k.log.Warn().Err(err).Msg("keepalive tick failed")

	_, breakerErr := k.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, k.s.recovery.attempt(ctx)
	})
	if breakerErr != nil {
		k.log.Warn().Err(breakerErr).Msg("recovery attempt did not succeed, backing off")
	}
}

// stop cancels the KeepAlive loop; safe to call multiple times.
func (k *KeepAlive) stop() {
	k.stopOnce.Do(func() { close(k.stopCh) })
}
