// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package opcua implements the client-side runtime of an OPC UA client:
// Session lifecycle, the Subscription/MonitoredItem engine, and the
// Recovery state machine that keeps subscription identity stable across
// transient connection loss. Binary encoding, secure-channel
// cryptography and message framing are supplied by a transport.Transport
// implementation; this package never encodes or frames a message
// itself.
package opcua

import (
	"context"
	"crypto/rand"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexus-edge/opcua-client/id"
	"github.com/nexus-edge/opcua-client/transport"
	"github.com/nexus-edge/opcua-client/ua"
)

// GetEndpoints opens a short-lived channel to endpoint, lists its
// endpoint descriptions, and closes it.
func GetEndpoints(ctx context.Context, tr transport.Transport, endpoint string) ([]*ua.EndpointDescription, error) {
	s := NewSession(tr, endpoint, AutoReconnect(false))
	if err := s.Dial(ctx); err != nil {
		return nil, err
	}
	defer s.Close(ctx)
	res, err := s.GetEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	return res.Endpoints, nil
}

// SelectEndpoint returns the endpoint with the highest security level
// that matches policy and mode. Either may be left zero-valued so only
// one of them has to match.
func SelectEndpoint(endpoints []*ua.EndpointDescription, policy string, mode ua.MessageSecurityMode) *ua.EndpointDescription {
	if len(endpoints) == 0 {
		return nil
	}

	sorted := append([]*ua.EndpointDescription(nil), endpoints...)
	sortBySecurityLevelDesc(sorted)
	policy = ua.FormatSecurityPolicyURI(policy)

	if policy == "" && mode == ua.MessageSecurityModeInvalid {
		return sorted[0]
	}
	for _, p := range sorted {
		switch {
		case policy == "" && p.SecurityMode == mode:
			return p
		case p.SecurityPolicyURI == policy && mode == ua.MessageSecurityModeInvalid:
			return p
		case p.SecurityPolicyURI == policy && p.SecurityMode == mode:
			return p
		}
	}
	return nil
}

func sortBySecurityLevelDesc(eps []*ua.EndpointDescription) {
	for i := 1; i < len(eps); i++ {
		for j := i; j > 0 && eps[j-1].SecurityLevel < eps[j].SecurityLevel; j-- {
			eps[j-1], eps[j] = eps[j], eps[j-1]
		}
	}
}

// State is the Session's connection state.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateActivated
	StateFaulted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateActivated:
		return "activated"
	case StateFaulted:
		return "faulted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session owns a live logical session over a Transport. It exposes the
// Read/Write/Browse/Call service facades, detects session invalidity,
// and drives KeepAlive and Recovery for as long as it is open.
type Session struct {
	endpointURL string
	cfg         *Config
	sessionCfg  *SessionConfig
	tr          transport.Transport
	metrics     *Metrics
	log         zerolog.Logger

	ch       transport.Channel
	faultsCh <-chan error

	active atomic.Value // *sessionHandle, nil when not activated

	registry     *SubscriptionRegistry
	dispatchPool *dispatchPool

	state       atomic.Value // State
	keepAlive   *KeepAlive
	recovery    *Recovery
	monitorOnce sync.Once
	sessionOnce sync.Once

	closeOnce sync.Once
}

// sessionHandle carries the protocol-level state returned by
// CreateSession/ActivateSession: the authentication token and the
// nonce/signature material needed to activate or re-activate it.
type sessionHandle struct {
	cfg               *SessionConfig
	resp              *ua.CreateSessionResponse
	serverCertificate []byte
	serverNonce       []byte
}

// NewSession creates a Session bound to tr and endpoint. Call Connect to
// establish the channel, create and activate the session, and start
// KeepAlive/Recovery.
func NewSession(tr transport.Transport, endpoint string, opts ...Option) *Session {
	cfg, sessionCfg := ApplyConfig(opts...)
	s := &Session{
		endpointURL: endpoint,
		cfg:         cfg,
		sessionCfg:  sessionCfg,
		tr:          tr,
		log:         withComponent(zerolog.Nop(), "session"),
	}
	s.registry = newSubscriptionRegistry(s)
	s.dispatchPool = newDispatchPool(cfg.DispatchPoolSize)
	s.keepAlive = newKeepAlive(s)
	s.recovery = newRecovery(s)
	s.state.Store(StateDisconnected)
	return s
}

// WithLogger attaches logger to the Session and the components it owns.
func (s *Session) WithLogger(logger zerolog.Logger) *Session {
	s.log = withComponent(logger, "session")
	s.keepAlive.log = withComponent(logger, "keepalive")
	s.recovery.log = withComponent(logger, "recovery")
	return s
}

// WithMetrics attaches a Metrics collector to the Session and the
// components it owns.
func (s *Session) WithMetrics(m *Metrics) *Session {
	s.metrics = m
	return s
}

// Connect establishes a secure channel, creates and activates a
// session, and starts the KeepAlive/Recovery monitor.
func (s *Session) Connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.ch != nil {
		return ErrAlreadyConnected
	}

	s.state.Store(StateConnecting)
	if err := s.Dial(ctx); err != nil {
		return err
	}
	h, err := s.createSession(ctx)
	if err != nil {
		_ = s.Close(ctx)
		return err
	}
	if err := s.activateSession(ctx, h); err != nil {
		_ = s.Close(ctx)
		return err
	}
	s.state.Store(StateActivated)

	s.monitorOnce.Do(func() {
		go s.keepAlive.run(ctx)
		go s.recovery.monitor(ctx)
	})

	return nil
}

// Dial establishes the secure channel without creating a session.
// GetEndpoints uses this to list endpoints without authenticating.
func (s *Session) Dial(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.sessionOnce.Do(func() {
		s.active.Store((*sessionHandle)(nil))
	})
	if s.ch != nil {
		return ErrAlreadyConnected
	}

	ch, err := s.tr.Open(ctx, s.endpointURL, s.cfg.securityOptions())
	if err != nil {
		return wrapError(KindTransport, err, "open secure channel")
	}
	s.ch = ch
	s.faultsCh = s.tr.Faults(ch)
	return nil
}

func (s *Session) createSession(ctx context.Context) (*sessionHandle, error) {
	if s.ch == nil {
		return nil, newError(KindTransport, "secure channel not connected")
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, wrapError(KindProtocol, err, "generate client nonce")
	}

	name := s.sessionCfg.SessionName
	if name == "" {
		name = fmt.Sprintf("opcua-client-%d", time.Now().UnixNano())
	}

	req := &ua.CreateSessionRequest{
		ClientDescription:       s.sessionCfg.ClientDescription,
		EndpointURL:             s.endpointURL,
		SessionName:             name,
		ClientNonce:             nonce,
		ClientCertificate:       s.cfg.Certificate,
		RequestedSessionTimeout: float64(s.sessionCfg.SessionTimeout / time.Millisecond),
	}

	v, err := s.tr.Request(ctx, s.ch, req)
	if err != nil {
		return nil, s.classifyTransportErr(err)
	}
	var res *ua.CreateSessionResponse
	if err := safeAssign(v, &res); err != nil {
		return nil, wrapError(KindProtocol, err, "create session")
	}

	// Adopt the anonymous policy id the server actually advertises when
	// the caller left the default in place.
	if tok, ok := s.sessionCfg.UserIdentityToken.(*ua.AnonymousIdentityToken); ok && tok.PolicyID == defaultAnonymousPolicyID {
		tok.PolicyID = anonymousPolicyID(res.ServerEndpoints)
	}

	return &sessionHandle{
		cfg:               s.sessionCfg,
		resp:              res,
		serverNonce:       res.ServerNonce,
		serverCertificate: res.ServerCertificate,
	}, nil
}

const defaultAnonymousPolicyID = "Anonymous"

// anonymousPolicyID finds the PolicyID a None/None endpoint advertises
// for anonymous authentication, falling back to the well-known default
// when the server's endpoint description omits one.
func anonymousPolicyID(endpoints []*ua.EndpointDescription) string {
	for _, e := range endpoints {
		if e.SecurityMode != ua.MessageSecurityModeNone || e.SecurityPolicyURI != ua.SecurityPolicyURINone {
			continue
		}
		for _, t := range e.UserIdentityTokens {
			if t.TokenType == ua.UserTokenTypeAnonymous {
				return t.PolicyID
			}
		}
	}
	return defaultAnonymousPolicyID
}

func (s *Session) activateSession(ctx context.Context, h *sessionHandle) error {
	if s.ch == nil {
		return newError(KindTransport, "secure channel not connected")
	}

	req := &ua.ActivateSessionRequest{
		ClientSignature:    &ua.SignatureData{},
		LocaleIDs:          h.cfg.LocaleIDs,
		UserIdentityToken:  ua.NewExtensionObject(h.cfg.UserIdentityToken),
		UserTokenSignature: h.cfg.UserTokenSignature,
	}

	v, err := s.requestWithToken(ctx, req, h.resp.AuthenticationToken, s.cfg.RequestTimeout)
	if err != nil {
		return s.classifyTransportErr(err)
	}
	var res *ua.ActivateSessionResponse
	if err := safeAssign(v, &res); err != nil {
		return wrapError(KindProtocol, err, "activate session")
	}
	h.serverNonce = res.ServerNonce
	s.active.Store(h)
	return nil
}

// CloseSession closes the currently active session, if any.
func (s *Session) CloseSession(ctx context.Context) error {
	if err := s.closeSession(ctx, s.activeHandle()); err != nil {
		return err
	}
	s.active.Store((*sessionHandle)(nil))
	return nil
}

func (s *Session) closeSession(ctx context.Context, h *sessionHandle) error {
	if h == nil {
		return nil
	}
	req := &ua.CloseSessionRequest{DeleteSubscriptions: true}
	_, err := s.requestWithToken(ctx, req, h.resp.AuthenticationToken, s.cfg.RequestTimeout)
	return err
}

// DetachSession removes the active session from the Session without
// closing it; the caller is responsible for re-activating or closing
// it. Used by Recovery to attempt a restore before recreating.
func (s *Session) DetachSession() *sessionHandle {
	h := s.activeHandle()
	s.active.Store((*sessionHandle)(nil))
	return h
}

func (s *Session) activeHandle() *sessionHandle {
	v := s.active.Load()
	if v == nil {
		return nil
	}
	return v.(*sessionHandle)
}

func (s *Session) sessionClosed() bool {
	return s.activeHandle() == nil
}

// dispatchDrainTimeout bounds how long Close waits for in-flight
// notification handlers to finish draining.
const dispatchDrainTimeout = 2 * time.Second

// Close is idempotent: it cancels KeepAlive and Recovery, stops every
// subscription's Publish pump, drains the dispatch pool, deletes
// subscriptions belonging to this Session, and closes the secure
// channel.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.keepAlive.stop()
		s.recovery.stop()
		s.registry.deleteAll(ctx)
		s.dispatchPool.stop(dispatchDrainTimeout)
		_ = s.CloseSession(ctx)
		s.state.Store(StateClosed)
		if s.ch != nil {
			err = s.tr.Close(ctx, s.ch)
		}
	})
	return err
}

// State returns the Session's current connection state.
func (s *Session) State() State {
	v := s.state.Load()
	if v == nil {
		return StateDisconnected
	}
	return v.(State)
}

// ready reports whether the Session can service a request right now.
func (s *Session) ready() bool {
	return s.State() == StateActivated
}

// Send issues req against the active session, injecting its
// authentication token, and waits for the matching response using the
// Session's default RequestTimeout.
func (s *Session) Send(ctx context.Context, req ua.Request) (interface{}, error) {
	return s.sendWithTimeout(ctx, req, s.cfg.RequestTimeout)
}

func (s *Session) sendWithTimeout(ctx context.Context, req ua.Request, timeout time.Duration) (interface{}, error) {
	if !s.ready() {
		if !s.cfg.WaitForRecovery || s.State() == StateClosed {
			return nil, ErrSessionNotReady
		}
		if err := s.awaitActivated(ctx, timeout); err != nil {
			return nil, err
		}
	}
	v, err := s.requestWithToken(ctx, req, s.authToken(), timeout)
	if err == nil {
		return v, nil
	}

	cerr := s.classifyTransportErr(err)
	opcErr, ok := cerr.(*Error)
	if !ok || !opcErr.IsRecoverable() || s.recovery.inProgress() {
		// Domain/protocol errors belong to the caller; requests issued
		// by the repair steps surface their failures to the state
		// machine driving them instead of re-triggering it.
		return nil, cerr
	}
	if statusCodeOf(cerr) == ua.StatusBadSubscriptionIDInvalid {
		// a stale subscription id, not a dead session; the owning
		// subscription recreates itself through the registry
		return nil, cerr
	}

	done := s.triggerRecovery()
	if !s.cfg.WaitForRecovery {
		return nil, cerr
	}
	select {
	case <-done:
	case <-ctx.Done():
		return nil, wrapError(KindCancelled, ctx.Err(), "await recovery")
	}
	if !s.ready() {
		return nil, ErrSessionLost
	}

	// retry once against the recovered session
	v, err = s.requestWithToken(ctx, req, s.authToken(), timeout)
	if err != nil {
		return nil, s.classifyTransportErr(err)
	}
	return v, nil
}

func (s *Session) authToken() *ua.NodeID {
	if h := s.activeHandle(); h != nil {
		return h.resp.AuthenticationToken
	}
	return nil
}

// triggerRecovery starts a background Recovery attempt, detached from
// the failing request's deadline, returning a channel closed when it
// completes. Recovery is single-flight: concurrent triggers join the
// attempt already in flight.
func (s *Session) triggerRecovery() <-chan struct{} {
	if !s.cfg.AutoReconnect || s.State() == StateClosed {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.recovery.trigger()
}

// awaitActivated blocks until the Session reaches Activated again, the
// caller's context or timeout expires, or the Session closes for good.
func (s *Session) awaitActivated(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		switch s.State() {
		case StateActivated:
			return nil
		case StateClosed:
			return ErrSessionLost
		}
		select {
		case <-ctx.Done():
			return wrapError(KindCancelled, ctx.Err(), "await recovery")
		case <-deadline.C:
			return ErrSessionLost
		case <-tick.C:
		}
	}
}

func (s *Session) requestWithToken(ctx context.Context, req ua.Request, token *ua.NodeID, timeout time.Duration) (interface{}, error) {
	if s.ch == nil {
		return nil, newError(KindTransport, "secure channel not connected")
	}
	req.Header().AuthenticationToken = token
	rctx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		rctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.tr.Request(rctx, s.ch, req)
}

// classifyTransportErr wraps a Transport-level error with the Kind
// Recovery and callers need to decide what to do next.
func (s *Session) classifyTransportErr(err error) error {
	if err == nil {
		return nil
	}
	if te, ok := err.(*transport.Error); ok {
		return wrapError(classifyStatus(te.Code), err, "request")
	}
	if err == context.DeadlineExceeded {
		return wrapError(KindCancelled, err, "request timed out")
	}
	return wrapError(KindTransport, err, "request")
}

// Node returns a node facade bound to this Session.
func (s *Session) Node(nodeID *ua.NodeID) *Node {
	return &Node{ID: nodeID, s: s}
}

// GetEndpoints lists the endpoints this Session's server offers. It is
// a discovery service: it only needs an open secure channel, not an
// activated session, so it bypasses the usual readiness gate.
func (s *Session) GetEndpoints(ctx context.Context) (*ua.GetEndpointsResponse, error) {
	req := &ua.GetEndpointsRequest{EndpointURL: s.endpointURL}
	var token *ua.NodeID
	if h := s.activeHandle(); h != nil {
		token = h.resp.AuthenticationToken
	}
	v, err := s.requestWithToken(ctx, req, token, s.cfg.RequestTimeout)
	if err != nil {
		return nil, s.classifyTransportErr(err)
	}
	var res *ua.GetEndpointsResponse
	if err := safeAssign(v, &res); err != nil {
		return nil, wrapError(KindProtocol, err, "get endpoints")
	}
	return res, nil
}

// Read executes a synchronous read request, defaulting AttributeID to
// Value and DataEncoding to the server's default encoding for any
// ReadValueID that left them zero-valued.
func (s *Session) Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error) {
	rvs := make([]*ua.ReadValueID, len(req.NodesToRead))
	for i, rv := range req.NodesToRead {
		rc := *rv
		if rc.AttributeID == 0 {
			rc.AttributeID = ua.AttributeIDValue
		}
		if rc.DataEncoding == nil {
			rc.DataEncoding = &ua.QualifiedName{}
		}
		rvs[i] = &rc
	}
	cloned := &ua.ReadRequest{
		MaxAge:             req.MaxAge,
		TimestampsToReturn: req.TimestampsToReturn,
		NodesToRead:        rvs,
	}

	v, err := s.Send(ctx, cloned)
	if err != nil {
		return nil, err
	}
	var res *ua.ReadResponse
	if err := safeAssign(v, &res); err != nil {
		return nil, wrapError(KindProtocol, err, "read")
	}
	return res, nil
}

// Write executes a synchronous write request.
func (s *Session) Write(ctx context.Context, req *ua.WriteRequest) (*ua.WriteResponse, error) {
	v, err := s.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	var res *ua.WriteResponse
	if err := safeAssign(v, &res); err != nil {
		return nil, wrapError(KindProtocol, err, "write")
	}
	return res, nil
}

// Browse executes a synchronous browse request.
func (s *Session) Browse(ctx context.Context, req *ua.BrowseRequest) (*ua.BrowseResponse, error) {
	v, err := s.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	var res *ua.BrowseResponse
	if err := safeAssign(v, &res); err != nil {
		return nil, wrapError(KindProtocol, err, "browse")
	}
	return res, nil
}

// BrowseNext continues a Browse whose result set was truncated.
func (s *Session) BrowseNext(ctx context.Context, req *ua.BrowseNextRequest) (*ua.BrowseNextResponse, error) {
	v, err := s.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	var res *ua.BrowseNextResponse
	if err := safeAssign(v, &res); err != nil {
		return nil, wrapError(KindProtocol, err, "browse next")
	}
	return res, nil
}

// Call invokes a single method, widening InputArguments to the numeric
// types declared by the method's InputArguments property if the caller
// supplied a narrower one. Widening is best-effort: a method whose
// InputArguments cannot be resolved is still called with the arguments
// as supplied.
func (s *Session) Call(ctx context.Context, req *ua.CallMethodRequest) (*ua.CallMethodResult, error) {
	if len(req.InputArguments) > 0 {
		if types, err := s.inputArgumentTypes(ctx, req.MethodID); err == nil {
			req = widenCallArguments(req, types)
		} else {
			s.log.Debug().Err(err).Str("method", req.MethodID.String()).
				Msg("call: could not resolve InputArguments, skipping numeric widening")
		}
	}

	creq := &ua.CallRequest{MethodsToCall: []*ua.CallMethodRequest{req}}
	v, err := s.Send(ctx, creq)
	if err != nil {
		return nil, err
	}
	var res *ua.CallResponse
	if err := safeAssign(v, &res); err != nil {
		return nil, wrapError(KindProtocol, err, "call")
	}
	if len(res.Results) != 1 {
		return nil, wrapError(KindProtocol, ua.StatusBadUnknownResponse, "call: unexpected result count")
	}
	return res.Results[0], nil
}

// widenCallArguments returns a copy of req with each InputArgument
// widened to the corresponding declared type in types, leaving
// arguments the caller already matched (or that widening fails for, or
// that have no declared numeric type) untouched.
func widenCallArguments(req *ua.CallMethodRequest, types []ua.VariantType) *ua.CallMethodRequest {
	widened := make([]*ua.Variant, len(req.InputArguments))
	for i, arg := range req.InputArguments {
		widened[i] = arg
		if i >= len(types) || types[i] == ua.TypeNull {
			continue
		}
		if w, err := arg.WidenNumeric(types[i]); err == nil {
			widened[i] = w
		}
	}
	out := *req
	out.InputArguments = widened
	return &out
}

// inputArgumentTypes resolves the declared VariantType of each entry in
// methodID's InputArguments property (Part 3, 8.6), by browsing for the
// property node and reading its Value. It returns a nil slice, nil
// error for a method that declares no InputArguments property.
func (s *Session) inputArgumentTypes(ctx context.Context, methodID *ua.NodeID) ([]ua.VariantType, error) {
	browseRes, err := s.Browse(ctx, &ua.BrowseRequest{
		NodesToBrowse: []*ua.BrowseDescription{{
			NodeID:          methodID,
			Direction:       ua.BrowseDirectionForward,
			ReferenceTypeID: ua.NewTwoByteNodeID(id.HasProperty),
			IncludeSubtypes: true,
			NodeClassMask:   ua.NodeClassVariable,
		}},
	})
	if err != nil {
		return nil, err
	}
	if len(browseRes.Results) != 1 || browseRes.Results[0].StatusCode.IsBad() {
		return nil, wrapError(KindProtocol, ua.StatusBadUnknownResponse, "call: browse InputArguments property")
	}

	var propID *ua.NodeID
	for _, ref := range browseRes.Results[0].References {
		if ref.BrowseName.Name == "InputArguments" {
			propID = ref.NodeID.NodeID
			break
		}
	}
	if propID == nil {
		return nil, nil
	}

	readRes, err := s.Read(ctx, &ua.ReadRequest{
		NodesToRead: []*ua.ReadValueID{{NodeID: propID, AttributeID: ua.AttributeIDValue}},
	})
	if err != nil {
		return nil, err
	}
	if len(readRes.Results) != 1 || readRes.Results[0].Status.IsBad() {
		return nil, wrapError(KindProtocol, ua.StatusBadUnknownResponse, "call: read InputArguments value")
	}
	args, ok := readRes.Results[0].Value.Value().([]*ua.Argument)
	if !ok {
		return nil, wrapError(KindProtocol, ua.StatusBadUnknownResponse, "call: InputArguments value is not an Argument array")
	}

	types := make([]ua.VariantType, len(args))
	for i, a := range args {
		vt, ok := ua.VariantTypeForDataType(a.DataType)
		if !ok {
			vt = ua.TypeNull
		}
		types[i] = vt
	}
	return types, nil
}

// RegisterNodes registers node ids for more efficient reads.
func (s *Session) RegisterNodes(ctx context.Context, req *ua.RegisterNodesRequest) (*ua.RegisterNodesResponse, error) {
	v, err := s.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	var res *ua.RegisterNodesResponse
	if err := safeAssign(v, &res); err != nil {
		return nil, wrapError(KindProtocol, err, "register nodes")
	}
	return res, nil
}

// UnregisterNodes unregisters node ids previously registered with
// RegisterNodes.
func (s *Session) UnregisterNodes(ctx context.Context, req *ua.UnregisterNodesRequest) (*ua.UnregisterNodesResponse, error) {
	v, err := s.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	var res *ua.UnregisterNodesResponse
	if err := safeAssign(v, &res); err != nil {
		return nil, wrapError(KindProtocol, err, "unregister nodes")
	}
	return res, nil
}

// HistoryReadRawModified issues a raw-value HistoryRead.
func (s *Session) HistoryReadRawModified(ctx context.Context, nodes []*ua.HistoryReadValueID, details *ua.ReadRawModifiedDetails) (*ua.HistoryReadResponse, error) {
	req := &ua.HistoryReadRequest{
		TimestampsToReturn: ua.TimestampsToReturnBoth,
		NodesToRead:        nodes,
		HistoryReadDetails: &ua.ExtensionObject{
			TypeID:       ua.NewFourByteExpandedNodeID(0, id.ReadRawModifiedDetails_Encoding_DefaultBinary),
			EncodingMask: ua.ExtensionObjectBinary,
			Value:        details,
		},
	}
	v, err := s.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	var res *ua.HistoryReadResponse
	if err := safeAssign(v, &res); err != nil {
		return nil, wrapError(KindProtocol, err, "history read")
	}
	return res, nil
}

// safeAssign implements a type-safe assign from T to *T, returning
// InvalidResponseTypeError if the Transport handed back the wrong
// concrete response type for the request that was sent.
func safeAssign(t, ptrT interface{}) error {
	if reflect.TypeOf(t) != reflect.TypeOf(ptrT).Elem() {
		return InvalidResponseTypeError{t, ptrT}
	}
	reflect.ValueOf(ptrT).Elem().Set(reflect.ValueOf(t))
	return nil
}

// InvalidResponseTypeError is returned by safeAssign when a Transport
// returns a response of the wrong concrete type for a request.
type InvalidResponseTypeError struct {
	got, want interface{}
}

func (e InvalidResponseTypeError) Error() string {
	return fmt.Sprintf("invalid response: got %T want %T", e.got, e.want)
}
