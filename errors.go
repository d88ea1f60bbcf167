// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/nexus-edge/opcua-client/ua"
)

// Kind classifies an Error so callers and the Session's recovery logic
// can switch on it without string matching. See classifyStatus.
type Kind uint8

const (
	// KindTransport covers connect/read/write/timeout failures at the
	// channel level. Recoverable: triggers Recovery on an established
	// Session.
	KindTransport Kind = iota
	// KindSessionInvalidated covers server-reported session/channel
	// invalid codes. Triggers Recovery.
	KindSessionInvalidated
	// KindDomain covers bad node id, type mismatch, unsupported
	// service and similar application-level errors. Surfaced to the
	// caller verbatim; Recovery is not triggered.
	KindDomain
	// KindProtocol covers malformed responses and unknown service
	// faults. The Session is faulted; Recovery is attempted once.
	KindProtocol
	// KindUsage covers caller errors: unknown SubscriptionKey, double
	// close, name collision.
	KindUsage
	// KindCancelled covers user-initiated close or deadline expiry.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindSessionInvalidated:
		return "session-invalidated"
	case KindDomain:
		return "domain"
	case KindProtocol:
		return "protocol"
	case KindUsage:
		return "usage"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the client core's error type: a Kind plus the underlying
// pkg/errors chain that produced it.
type Error struct {
	Kind Kind
	err  error
}

func newError(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, err: errors.Errorf(format, args...)}
}

func wrapError(k Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, err: errors.Wrap(err, msg)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("opcua: %s: %s", e.Kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// IsRecoverable reports whether the error kind should drive Recovery.
func (e *Error) IsRecoverable() bool {
	return e.Kind == KindTransport || e.Kind == KindSessionInvalidated
}

var (
	// ErrSessionNotReady is returned by service calls issued while the
	// Session is not Activated and the caller did not opt into waiting
	// for an in-progress Recovery.
	ErrSessionNotReady = newError(KindUsage, "session not ready")
	// ErrSessionLost is returned when Recovery gives up after exhausting
	// its retry budget.
	ErrSessionLost = newError(KindSessionInvalidated, "session lost")
	// ErrAlreadyConnected is returned by Connect/Dial on a Session that
	// already has an open secure channel.
	ErrAlreadyConnected = newError(KindUsage, "already connected")
	// ErrUnknownSubscriptionKey is returned by SubscriptionRegistry
	// operations referencing a key that was never created or has been
	// deleted.
	ErrUnknownSubscriptionKey = newError(KindUsage, "unknown subscription key")
	// ErrUnknownClientHandle is returned by monitored-item operations
	// referencing a client handle the subscription does not hold.
	ErrUnknownClientHandle = newError(KindUsage, "unknown monitored item client handle")
	// ErrNameInUse is returned by SessionManager.Create for a name that
	// already has a live Session.
	ErrNameInUse = newError(KindUsage, "session name already in use")
	// ErrUnknownSessionName is returned by SessionManager.Close for a
	// name with no registered Session.
	ErrUnknownSessionName = newError(KindUsage, "unknown session name")
)

// classifyStatus maps a StatusCode observed on a response or channel
// fault to an error Kind.
func classifyStatus(code ua.StatusCode) Kind {
	switch code {
	case ua.StatusBadSecureChannelIDInvalid,
		ua.StatusBadSessionIDInvalid,
		ua.StatusBadSessionNotActivated,
		ua.StatusBadSessionClosed,
		ua.StatusBadSubscriptionIDInvalid,
		ua.StatusBadNoSubscription,
		ua.StatusBadServerNotConnected:
		return KindSessionInvalidated
	case ua.StatusBadNodeIDUnknown,
		ua.StatusBadNodeIDInvalid,
		ua.StatusBadAttributeIDInvalid,
		ua.StatusBadTypeMismatch,
		ua.StatusBadEventFilterInvalid,
		ua.StatusBadServiceUnsupported,
		ua.StatusBadUserAccessDenied,
		ua.StatusBadDataTypeIDUnknown:
		return KindDomain
	case ua.StatusBadTimeout, ua.StatusBadRequestCancelledByClient:
		return KindCancelled
	default:
		return KindProtocol
	}
}
