// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"context"
	"io"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/nexus-edge/opcua-client/transport"
	"github.com/nexus-edge/opcua-client/ua"
)

// reconnectAction enumerates the reconnect state machine's steps.
type reconnectAction uint8

const (
	actionNone reconnectAction = iota
	actionCreateSecureChannel
	actionRestoreSession
	actionRecreateSession
	actionRepublishSubscriptions
	actionRestoreSubscriptions
	actionAbort
)

// Recovery rebuilds a Session's secure channel and session, then
// re-establishes each known Subscription and its MonitoredItems with
// the same user-visible identities. At most one Recovery runs per
// Session at a time; concurrent triggers await its result.
type Recovery struct {
	s   *Session
	log zerolog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	lastErr error

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newRecovery(s *Session) *Recovery {
	return &Recovery{
		s:      s,
		log:    withComponent(zerolog.Nop(), "recovery"),
		stopCh: make(chan struct{}),
	}
}

func (r *Recovery) stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// attempt runs one Recovery cycle (or waits for an in-progress one),
// entered by KeepAlive on a failed probe.
func (r *Recovery) attempt(ctx context.Context) error {
	return r.run(ctx, actionRecreateSession)
}

// begin claims the single-flight slot. It returns the attempt's done
// channel and whether the caller owns the attempt; a non-owner only
// waits on done.
func (r *Recovery) begin() (done chan struct{}, owner bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return r.done, false
	}
	r.running = true
	r.done = make(chan struct{})
	return r.done, true
}

func (r *Recovery) finish(err error) {
	r.mu.Lock()
	r.running = false
	r.lastErr = err
	close(r.done)
	r.mu.Unlock()
}

func (r *Recovery) result() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// inProgress reports whether a Recovery attempt is currently running.
// Service requests issued by the repair steps themselves check this so
// their failures surface to the state machine instead of re-triggering
// it.
func (r *Recovery) inProgress() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// run is the single-flight entry point: if a Recovery is already in
// progress it awaits that one's completion instead of starting a
// second.
func (r *Recovery) run(ctx context.Context, start reconnectAction) error {
	done, owner := r.begin()
	if !owner {
		select {
		case <-done:
			return r.result()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	started := time.Now()
	r.s.metrics.recoveryStarted()
	err := r.execute(ctx, start)
	r.s.metrics.recoveryFinished(time.Since(started).Seconds())
	r.finish(err)
	return err
}

// trigger starts an attempt on a background goroutine unless one is
// already in flight, returning a channel that closes when the attempt
// (new or joined) completes. The background context detaches the
// repair from whichever request's deadline noticed the failure.
func (r *Recovery) trigger() <-chan struct{} {
	done, owner := r.begin()
	if !owner {
		return done
	}
	go func() {
		started := time.Now()
		r.s.metrics.recoveryStarted()
		err := r.execute(context.Background(), actionRecreateSession)
		r.s.metrics.recoveryFinished(time.Since(started).Seconds())
		if err != nil {
			r.log.Warn().Err(err).Msg("recovery attempt failed")
		}
		r.finish(err)
	}()
	return done
}

// monitor watches the Session's transport fault channel and drives the
// reconnect state machine when a fault arrives.
func (r *Recovery) monitor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case err, ok := <-r.s.faultsCh:
			if !ok || (err == io.EOF && r.s.State() == StateClosed) {
				return
			}

			r.s.state.Store(StateFaulted)

			if !r.s.cfg.AutoReconnect {
				r.log.Warn().Msg("auto reconnect disabled, session will not be restored")
				r.s.state.Store(StateClosed)
				return
			}

			action := classifyFault(err)
			if action == actionAbort {
				r.log.Error().Err(err).Msg("reconnection not recoverable")
				r.s.state.Store(StateClosed)
				return
			}

			if execErr := r.run(ctx, action); execErr != nil {
				r.log.Error().Err(execErr).Msg("recovery failed")
			}
		}
	}
}

// classifyFault maps a transport-level fault to the first reconnect
// action to take.
func classifyFault(err error) reconnectAction {
	switch err {
	case io.EOF:
		return actionCreateSecureChannel
	case syscall.ECONNREFUSED:
		return actionAbort
	}
	if te, ok := err.(*transport.Error); ok {
		switch te.Code {
		case ua.StatusBadSecureChannelIDInvalid:
			return actionCreateSecureChannel
		case ua.StatusBadSessionIDInvalid:
			return actionRecreateSession
		case ua.StatusBadSubscriptionIDInvalid:
			return actionRestoreSubscriptions
		default:
			return actionCreateSecureChannel
		}
	}
	return actionCreateSecureChannel
}

// execute runs the reconnect state machine starting at action until it
// reaches actionNone or actionAbort.
func (r *Recovery) execute(ctx context.Context, action reconnectAction) error {
	s := r.s
	s.registry.pauseAll(ctx)

	for action != actionNone {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		switch action {
		case actionCreateSecureChannel:
			if s.ch != nil {
				_ = s.tr.Close(ctx, s.ch)
				s.ch = nil
			}
			s.state.Store(StateConnecting)

			if err := r.reopenChannel(ctx); err != nil {
				s.state.Store(StateFaulted)
				return err
			}
			action = actionRestoreSession

		case actionRestoreSession:
			h := s.DetachSession()
			if h == nil {
				action = actionRecreateSession
				continue
			}
			r.log.Info().Msg("restoring session")
			if err := s.activateSession(ctx, h); err != nil {
				r.log.Warn().Err(err).Msg("restore session failed, recreating")
				action = actionRecreateSession
				continue
			}
			s.state.Store(StateActivated)
			action = actionRepublishSubscriptions

		case actionRecreateSession:
			r.log.Info().Msg("recreating session")
			// drop any stale handle so activation does not try to
			// close a session the server already discarded
			_ = s.DetachSession()
			h, err := s.createSession(ctx)
			if err != nil {
				r.log.Warn().Err(err).Msg("recreate session failed")
				action = actionCreateSecureChannel
				continue
			}
			if err := s.activateSession(ctx, h); err != nil {
				r.log.Warn().Err(err).Msg("reactivate session failed")
				action = actionCreateSecureChannel
				continue
			}
			s.state.Store(StateActivated)
			action = actionRestoreSubscriptions

		case actionRepublishSubscriptions:
			var toRestore []SubscriptionKey
			for _, key := range s.registry.keys() {
				if err := s.registry.republish(ctx, key); err != nil {
					r.log.Warn().Err(err).Str("key", string(key)).Msg("republish failed, will restore")
					toRestore = append(toRestore, key)
				}
			}
			if len(toRestore) > 0 {
				if err := s.registry.restoreAll(ctx, toRestore); err != nil {
					r.log.Warn().Err(err).Msg("restore subscriptions failed")
					action = actionRecreateSession
					continue
				}
			}
			s.registry.resumeAll(ctx)
			s.state.Store(StateActivated)
			action = actionNone

		case actionRestoreSubscriptions:
			keys := s.registry.keys()
			toRepublish, toRestore := s.registry.transfer(ctx, keys)

			for _, key := range toRepublish {
				if err := s.registry.republish(ctx, key); err != nil {
					r.log.Warn().Err(err).Str("key", string(key)).Msg("republish after transfer failed")
					toRestore = append(toRestore, key)
				}
			}

			if len(toRestore) > 0 {
				if err := s.registry.restoreAll(ctx, toRestore); err != nil {
					r.log.Warn().Err(err).Msg("restore subscriptions failed")
					action = actionRecreateSession
					continue
				}
			}
			s.registry.resumeAll(ctx)
			s.state.Store(StateActivated)
			action = actionNone

		case actionAbort:
			r.log.Error().Msg("reconnection not recoverable")
			s.state.Store(StateClosed)
			return ErrSessionLost
		}
	}
	return nil
}

// maxChannelReopenWindow bounds how long reopenChannel keeps retrying
// before the session is declared lost.
const maxChannelReopenWindow = 2 * time.Minute

// reopenChannel re-dials the Transport with exponential backoff
// (start 500ms, cap 10s), giving up with ErrSessionLost once the retry
// window is exhausted.
func (r *Recovery) reopenChannel(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = maxChannelReopenWindow

	err := backoff.Retry(func() error {
		select {
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		default:
		}
		if err := r.s.Dial(ctx); err != nil {
			r.log.Debug().Err(err).Msg("reopen channel failed, retrying")
			return err
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		r.log.Error().Err(err).Msg("could not reopen secure channel")
		return ErrSessionLost
	}
	return nil
}
