// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/nexus-edge/opcua-client/transport"
	"github.com/nexus-edge/opcua-client/ua"
)

// messageNotAvailable reports whether err resulted from the server
// responding BadMessageNotAvailable, the signal that a Republish loop
// has drained every retransmittable message.
func messageNotAvailable(err error) bool {
	return statusCodeOf(err) == ua.StatusBadMessageNotAvailable
}

// tooManyPublishRequests reports whether err resulted from the server
// responding BadTooManyPublishRequests: backpressure, not a failure
// that should invalidate the notification stream.
func tooManyPublishRequests(err error) bool {
	return statusCodeOf(err) == ua.StatusBadTooManyPublishRequests
}

// publishExpired reports whether a Publish long-poll ended because its
// deadline passed without the server having anything to say. The pump
// simply issues a fresh one.
func publishExpired(err error) bool {
	opcErr, ok := err.(*Error)
	return ok && opcErr.Kind == KindCancelled
}

func statusCodeOf(err error) ua.StatusCode {
	opcErr, ok := err.(*Error)
	if !ok {
		return ua.StatusOK
	}
	te, ok := errors.Cause(opcErr.Unwrap()).(*transport.Error)
	if !ok {
		return ua.StatusOK
	}
	return te.Code
}

// Default subscription parameters, used by SubscriptionParameters.setDefaults
// for any field left at its zero value.
const (
	DefaultSubscriptionInterval                   = 100 * time.Millisecond
	DefaultSubscriptionLifetimeCount              = 10000
	DefaultSubscriptionMaxKeepAliveCount          = 3000
	DefaultSubscriptionMaxNotificationsPerPublish = 0
	DefaultSubscriptionPriority                   = 0

	// minOutstandingPublishRequests is the floor the pump never backs off
	// below, even after repeated TooManyPublishRequests backpressure.
	minOutstandingPublishRequests = 2
	// maxOutstandingPublishRequests is the absolute cap on in-flight
	// Publish requests.
	maxOutstandingPublishRequests = 10
	// maxAcksPerPublish bounds how many pending acknowledgements one
	// Publish request carries; the rest wait for the next one, FIFO.
	maxAcksPerPublish = 100
)

// targetOutstanding computes how many Publish requests the pump keeps
// in flight: one per second of revised publishing interval, floored at
// minOutstandingPublishRequests and capped at
// maxOutstandingPublishRequests. Some servers revise the interval to 0
// to mean "event-driven only"; that still returns the floor rather
// than 0 so at least one Publish stays outstanding.
func targetOutstanding(revisedInterval time.Duration) int {
	if revisedInterval <= 0 {
		return minOutstandingPublishRequests
	}
	n := int(math.Ceil(float64(revisedInterval) / float64(time.Second)))
	if n < minOutstandingPublishRequests {
		n = minOutstandingPublishRequests
	}
	if n > maxOutstandingPublishRequests {
		n = maxOutstandingPublishRequests
	}
	return n
}

// SubscriptionParameters configures CreateSubscription (Part 4, 7.19.2).
// A zero-valued field is replaced by a library default in setDefaults.
type SubscriptionParameters struct {
	Interval                   time.Duration
	LifetimeCount              uint32
	MaxKeepAliveCount          uint32
	MaxNotificationsPerPublish uint32
	Priority                   byte
}

func (p *SubscriptionParameters) setDefaults() {
	if p.Interval == 0 {
		p.Interval = DefaultSubscriptionInterval
	}
	if p.LifetimeCount == 0 {
		p.LifetimeCount = DefaultSubscriptionLifetimeCount
	}
	if p.MaxKeepAliveCount == 0 {
		p.MaxKeepAliveCount = DefaultSubscriptionMaxKeepAliveCount
	}
}

// RevisedParameters reports the server's actual, possibly-adjusted
// subscription parameters after CreateSubscription/ModifySubscription.
type RevisedParameters struct {
	PublishingInterval time.Duration
	LifetimeCount      uint32
	MaxKeepAliveCount  uint32
}

// pumpState is the Subscription's internal Publish-pump state:
// publishing while healthy, paused while Recovery owns the Session,
// deleted once torn down.
type pumpState uint8

const (
	pumpPublishing pumpState = iota
	pumpPaused
	pumpDeleted
)

// Subscription owns one server-side subscription and the background
// Publish pump that keeps its notification stream flowing. Identity
// (the SubscriptionKey assigned by SubscriptionRegistry) is stable
// across Recovery even though SubscriptionID is reassigned when the
// subscription must be fully recreated.
type Subscription struct {
	key SubscriptionKey
	s   *Session

	SubscriptionID            uint32
	RevisedPublishingInterval time.Duration
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32

	pool *dispatchPool
	log  zerolog.Logger

	mu                sync.Mutex
	params            SubscriptionParameters
	items             map[uint32]*MonitoredItem // keyed by client handle
	state             pumpState
	publishingEnabled bool

	// publishTarget is how many Publish requests the pump keeps in
	// flight, initialized from the revised publishing interval, lowered
	// by TooManyPublishRequests backpressure, and reset from the revised
	// interval by modify and recreate.
	publishTarget int

	lastSequenceNumber uint32
	lastActivity       uint32 // unix seconds of the last Publish response
	handleCounter      uint32
	recreating         int32 // guards requestRecreate's single flight

	// nextExpectedSeq and pendingOutOfOrder let the pump hold several
	// Publish requests outstanding while still delivering to each
	// MonitoredItem in strict ascending sequence order: a response that
	// arrives ahead of its turn is buffered here until the gap in front
	// of it closes.
	nextExpectedSeq   uint32
	pendingOutOfOrder map[uint32]*ua.PublishResponse

	pausech  chan struct{}
	resumech chan struct{}
	stopch   chan struct{}
	stopOnce sync.Once

	publishResultsCh chan publishResult
}

// newSubscription issues CreateSubscription and starts tracking the
// resulting server-side subscription; the caller starts the pump with
// run.
func newSubscription(ctx context.Context, s *Session, params SubscriptionParameters, pool *dispatchPool) (*Subscription, error) {
	req := &ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: float64(params.Interval / time.Millisecond),
		RequestedLifetimeCount:      params.LifetimeCount,
		RequestedMaxKeepAliveCount:  params.MaxKeepAliveCount,
		MaxNotificationsPerPublish:  params.MaxNotificationsPerPublish,
		PublishingEnabled:           true,
		Priority:                    params.Priority,
	}

	v, err := s.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	var res *ua.CreateSubscriptionResponse
	if err := safeAssign(v, &res); err != nil {
		return nil, wrapError(KindProtocol, err, "create subscription")
	}
	if res.SubscriptionID == 0 {
		return nil, newError(KindProtocol, "server assigned subscription id 0")
	}

	sub := &Subscription{
		s:                         s,
		SubscriptionID:            res.SubscriptionID,
		RevisedPublishingInterval: time.Duration(res.RevisedPublishingInterval) * time.Millisecond,
		RevisedLifetimeCount:      res.RevisedLifetimeCount,
		RevisedMaxKeepAliveCount:  res.RevisedMaxKeepAliveCount,
		pool:                      pool,
		log:                       withComponent(zerolog.Nop(), "subscription"),
		params:                    params,
		items:                     make(map[uint32]*MonitoredItem),
		publishingEnabled:         true,
		nextExpectedSeq:           1,
		pausech:                   make(chan struct{}),
		resumech:                  make(chan struct{}),
		stopch:                    make(chan struct{}),
	}
	sub.publishTarget = targetOutstanding(sub.RevisedPublishingInterval)
	if sub.RevisedLifetimeCount < 3*sub.RevisedMaxKeepAliveCount {
		sub.log.Warn().
			Uint32("lifetime_count", sub.RevisedLifetimeCount).
			Uint32("max_keep_alive_count", sub.RevisedMaxKeepAliveCount).
			Msg("server revised lifetime_count below 3x max_keep_alive_count, accepting anyway")
	}
	return sub, nil
}

func (sub *Subscription) currentTarget() int {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.publishTarget
}

// decreaseTarget ratchets the outstanding-Publish target down by one,
// never below the floor, in response to BadTooManyPublishRequests.
func (sub *Subscription) decreaseTarget() {
	sub.mu.Lock()
	if sub.publishTarget > minOutstandingPublishRequests {
		sub.publishTarget--
	}
	sub.mu.Unlock()
}

func (sub *Subscription) revised() RevisedParameters {
	return RevisedParameters{
		PublishingInterval: sub.RevisedPublishingInterval,
		LifetimeCount:      sub.RevisedLifetimeCount,
		MaxKeepAliveCount:  sub.RevisedMaxKeepAliveCount,
	}
}

func (sub *Subscription) itemCount() int {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return len(sub.items)
}

// run drives the Publish pump until stopped, keeping Publish requests
// outstanding up to the current publishTarget. Every response's
// notifications are dispatched in order before its ack is folded into a
// later request.
func (sub *Subscription) run(ctx context.Context) {
	outstanding := 0
	var pendingAcks []*ua.SubscriptionAcknowledgement

	results := make(chan publishResult)
	sub.publishResultsCh = results

	fill := func() {
		for outstanding < sub.currentTarget() {
			outstanding++
			sub.s.metrics.adjustPublishOutstanding(1)
			acks := pendingAcks
			if len(acks) > maxAcksPerPublish {
				acks = pendingAcks[:maxAcksPerPublish]
				pendingAcks = pendingAcks[maxAcksPerPublish:]
			} else {
				pendingAcks = nil
			}
			go sub.publishOnce(ctx, acks)
		}
	}
	fill()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.stopch:
			return
		case <-sub.pausech:
			select {
			case <-sub.resumech:
				if sub.pumpState() == pumpPublishing {
					fill()
				}
			case <-sub.stopch:
				return
			case <-ctx.Done():
				return
			}
		case res := <-results:
			outstanding--
			sub.s.metrics.adjustPublishOutstanding(-1)
			switch {
			case res.err != nil && tooManyPublishRequests(res.err):
				sub.decreaseTarget()
				sub.log.Debug().Msg("too many publish requests, reducing outstanding target")
			case res.err != nil && publishExpired(res.err):
				sub.log.Debug().Msg("publish deadline expired, reissuing")
			case res.err != nil:
				sub.handleError(ctx, res.err)
			default:
				pendingAcks = sub.admit(ctx, res.response, pendingAcks)
			}
			if sub.pumpState() == pumpPublishing {
				fill()
			}
		}
	}
}

// admit processes one Publish response: acknowledging its sequence
// number (unless it is a bare keep-alive, which per protocol is never
// acknowledged and does not consume a sequence number) and dispatching
// its notifications. Because more than one Publish request can be
// outstanding at once, responses can arrive out of send order; admit
// buffers anything ahead of nextExpectedSeq and drains the buffer as
// the gap closes, so every MonitoredItem still only ever sees strictly
// ascending sequence numbers regardless of network or server
// reordering.
func (sub *Subscription) admit(ctx context.Context, res *ua.PublishResponse, acks []*ua.SubscriptionAcknowledgement) []*ua.SubscriptionAcknowledgement {
	if res.NotificationMessage == nil {
		return acks
	}
	if len(res.NotificationMessage.NotificationData) == 0 {
		// Keep-alive: its SequenceNumber is the next one the server
		// will use, not a consumed slot. Only note the activity.
		atomic.StoreUint32(&sub.lastActivity, uint32(time.Now().Unix()))
		return acks
	}
	seq := res.NotificationMessage.SequenceNumber
	if seq < sub.nextExpectedSeq {
		// retransmitted duplicate of something already delivered
		return acks
	}
	if seq != sub.nextExpectedSeq {
		if sub.pendingOutOfOrder == nil {
			sub.pendingOutOfOrder = make(map[uint32]*ua.PublishResponse)
		}
		sub.pendingOutOfOrder[seq] = res
		return acks
	}

	acks = sub.admitOne(ctx, res, acks)
	sub.nextExpectedSeq++
	for {
		next, ok := sub.pendingOutOfOrder[sub.nextExpectedSeq]
		if !ok {
			break
		}
		delete(sub.pendingOutOfOrder, sub.nextExpectedSeq)
		acks = sub.admitOne(ctx, next, acks)
		sub.nextExpectedSeq++
	}
	return acks
}

func (sub *Subscription) admitOne(ctx context.Context, res *ua.PublishResponse, acks []*ua.SubscriptionAcknowledgement) []*ua.SubscriptionAcknowledgement {
	seq := res.NotificationMessage.SequenceNumber
	acks = append(acks, &ua.SubscriptionAcknowledgement{
		SubscriptionID: sub.SubscriptionID,
		SequenceNumber: seq,
	})
	atomic.StoreUint32(&sub.lastSequenceNumber, seq)
	atomic.StoreUint32(&sub.lastActivity, uint32(time.Now().Unix()))
	sub.dispatch(ctx, res)
	return acks
}

type publishResult struct {
	response *ua.PublishResponse
	err      error
}

func (sub *Subscription) pumpState() pumpState {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.state
}

func (sub *Subscription) publishOnce(ctx context.Context, acks []*ua.SubscriptionAcknowledgement) {
	req := &ua.PublishRequest{SubscriptionAcknowledgements: acks}
	v, err := sub.s.Send(ctx, req)
	if err != nil {
		select {
		case sub.publishResultsCh <- publishResult{err: err}:
		case <-ctx.Done():
		case <-sub.stopch:
		}
		return
	}
	var res *ua.PublishResponse
	if err := safeAssign(v, &res); err != nil {
		err = wrapError(KindProtocol, err, "publish")
	}
	select {
	case sub.publishResultsCh <- publishResult{response: res, err: err}:
	case <-ctx.Done():
	case <-sub.stopch:
	}
}

// handleError broadcasts a StatusChange to every MonitoredItem this
// subscription currently owns (a Publish failure invalidates the whole
// notification stream, not just one item), then routes the failure to
// the repair it needs: a stale subscription id is recreated in place
// through the registry, session-invalid and transport failures
// propagate to Recovery.
func (sub *Subscription) handleError(ctx context.Context, err error) {
	sub.log.Warn().Err(err).Uint32("subscription_id", sub.SubscriptionID).Msg("publish failed")

	status := statusCodeOf(err)
	if status == ua.StatusOK {
		status = ua.StatusBad
	}
	sub.broadcastStatusChange(status)
	if sub.s.metrics != nil {
		sub.s.metrics.notificationDropped()
	}

	opcErr, ok := err.(*Error)
	switch {
	case status == ua.StatusBadSubscriptionIDInvalid:
		sub.requestRecreate()
	case ok && opcErr.IsRecoverable():
		sub.s.triggerRecovery()
	}
}

// requestRecreate asks the registry to rebuild this subscription under
// its existing key after the server reported the id invalid. Repeated
// Publish failures collapse into a single recreate.
func (sub *Subscription) requestRecreate() {
	if !atomic.CompareAndSwapInt32(&sub.recreating, 0, 1) {
		return
	}
	go func() {
		defer atomic.StoreInt32(&sub.recreating, 0)
		if err := sub.s.registry.recover(context.Background(), sub.key); err != nil {
			sub.log.Warn().Err(err).Str("key", string(sub.key)).Msg("subscription recreate failed")
		}
	}()
}

func (sub *Subscription) broadcastStatusChange(status ua.StatusCode) {
	sub.mu.Lock()
	items := make([]*MonitoredItem, 0, len(sub.items))
	for _, mi := range sub.items {
		items = append(items, mi)
	}
	sub.mu.Unlock()
	for _, mi := range items {
		mi.deliverStatusChange(status)
	}
}

// dispatch decodes a PublishResponse's NotificationData and routes each
// entry to the MonitoredItem it names by ClientHandle, preserving the
// order every entry arrived in. Handler
// invocation itself is offloaded onto the dispatch pool by
// MonitoredItem.deliverDataChange/deliverEvent/deliverStatusChange;
// this method never blocks on a handler.
func (sub *Subscription) dispatch(ctx context.Context, res *ua.PublishResponse) {
	if res.NotificationMessage == nil {
		return
	}
	for _, data := range res.NotificationMessage.NotificationData {
		if data == nil || data.Value == nil {
			continue
		}
		switch v := data.Value.(type) {
		case *ua.DataChangeNotification:
			sub.dispatchDataChange(v)
		case *ua.EventNotificationList:
			sub.dispatchEvents(v)
		case *ua.StatusChangeNotification:
			sub.broadcastStatusChange(v.Status)
		default:
			sub.log.Warn().Msgf("unknown notification data parameter: %T", v)
		}
	}
}

func (sub *Subscription) dispatchDataChange(n *ua.DataChangeNotification) {
	for _, item := range n.MonitoredItems {
		sub.mu.Lock()
		mi, ok := sub.items[item.ClientHandle]
		sub.mu.Unlock()
		if !ok {
			continue
		}
		var value *ua.Variant
		if item.Value != nil {
			value = item.Value.Value
		}
		mi.deliverDataChange(value, item.Value)
		if sub.s.metrics != nil {
			sub.s.metrics.notificationDelivered()
		}
	}
}

func (sub *Subscription) dispatchEvents(n *ua.EventNotificationList) {
	for _, ev := range n.Events {
		sub.mu.Lock()
		mi, ok := sub.items[ev.ClientHandle]
		sub.mu.Unlock()
		if !ok {
			continue
		}
		mi.deliverEvent(ev.EventFields)
		if sub.s.metrics != nil {
			sub.s.metrics.notificationDelivered()
		}
	}
}

// pause suspends the Publish pump without losing the pending ack
// queue; called by Recovery before it tears down or rebuilds the
// channel/session.
func (sub *Subscription) pause(ctx context.Context) {
	sub.mu.Lock()
	if sub.state == pumpDeleted {
		sub.mu.Unlock()
		return
	}
	sub.state = pumpPaused
	sub.mu.Unlock()

	select {
	case sub.pausech <- struct{}{}:
	case <-ctx.Done():
	case <-sub.stopch:
	}
}

// resume restarts the Publish pump after Recovery has restored the
// session or subscription identity.
func (sub *Subscription) resume(ctx context.Context) {
	sub.mu.Lock()
	if sub.state == pumpDeleted {
		sub.mu.Unlock()
		return
	}
	sub.state = pumpPublishing
	sub.mu.Unlock()

	select {
	case sub.resumech <- struct{}{}:
	case <-ctx.Done():
	case <-sub.stopch:
	}
}

func (sub *Subscription) stopPump() {
	sub.mu.Lock()
	sub.state = pumpDeleted
	sub.mu.Unlock()
	sub.stopOnce.Do(func() { close(sub.stopch) })
}

// delete deletes the subscription server-side and stops its pump.
func (sub *Subscription) delete(ctx context.Context) error {
	sub.stopPump()
	req := &ua.DeleteSubscriptionsRequest{SubscriptionIDs: []uint32{sub.SubscriptionID}}
	_, err := sub.s.Send(ctx, req)
	return err
}

// ModifyResult reports the outcome of a ModifySubscription call.
type ModifyResult struct {
	Revised             RevisedParameters
	ServerRefusedModify bool
}

// modify sends ModifySubscription and updates the revised parameters.
// If the server responds BadServiceUnsupported, the local requested
// parameters are still updated but revised is left untouched and
// ServerRefusedModify is set: the client keeps operating against the
// server's existing, previously-revised defaults.
func (sub *Subscription) modify(ctx context.Context, params SubscriptionParameters) (ModifyResult, error) {
	params.setDefaults()
	req := &ua.ModifySubscriptionRequest{
		SubscriptionID:              sub.SubscriptionID,
		RequestedPublishingInterval: float64(params.Interval / time.Millisecond),
		RequestedLifetimeCount:      params.LifetimeCount,
		RequestedMaxKeepAliveCount:  params.MaxKeepAliveCount,
		MaxNotificationsPerPublish:  params.MaxNotificationsPerPublish,
		Priority:                    params.Priority,
	}
	v, err := sub.s.Send(ctx, req)
	if err != nil {
		if statusCodeOf(err) == ua.StatusBadServiceUnsupported {
			sub.mu.Lock()
			sub.params = params
			sub.mu.Unlock()
			sub.log.Warn().Msg("server does not support ModifySubscription, retaining requested parameters locally")
			return ModifyResult{Revised: sub.revised(), ServerRefusedModify: true}, nil
		}
		return ModifyResult{}, err
	}
	var res *ua.ModifySubscriptionResponse
	if err := safeAssign(v, &res); err != nil {
		return ModifyResult{}, wrapError(KindProtocol, err, "modify subscription")
	}

	sub.mu.Lock()
	sub.params = params
	sub.RevisedPublishingInterval = time.Duration(res.RevisedPublishingInterval) * time.Millisecond
	sub.RevisedLifetimeCount = res.RevisedLifetimeCount
	sub.RevisedMaxKeepAliveCount = res.RevisedMaxKeepAliveCount
	if sub.RevisedLifetimeCount < 3*sub.RevisedMaxKeepAliveCount {
		sub.log.Warn().
			Uint32("lifetime_count", sub.RevisedLifetimeCount).
			Uint32("max_keep_alive_count", sub.RevisedMaxKeepAliveCount).
			Msg("server revised lifetime_count below 3x max_keep_alive_count, accepting anyway")
	}
	sub.publishTarget = targetOutstanding(sub.RevisedPublishingInterval)
	sub.mu.Unlock()
	return ModifyResult{Revised: sub.revised()}, nil
}

// setPublishingMode toggles whether the server delivers notifications
// for this subscription. The Publish pump keeps running either way: the
// server still returns keep-alives and consumes acks while publishing
// is disabled.
func (sub *Subscription) setPublishingMode(ctx context.Context, enabled bool) error {
	req := &ua.SetPublishingModeRequest{
		PublishingEnabled: enabled,
		SubscriptionIDs:   []uint32{sub.SubscriptionID},
	}
	if _, err := sub.s.Send(ctx, req); err != nil {
		return err
	}
	sub.mu.Lock()
	sub.publishingEnabled = enabled
	sub.mu.Unlock()
	return nil
}

func (sub *Subscription) nextClientHandle() uint32 {
	return atomic.AddUint32(&sub.handleCounter, 1)
}

// addMonitoredItem creates one MonitoredItem and registers it under a
// freshly issued client handle, returning that handle.
func (sub *Subscription) addMonitoredItem(ctx context.Context, spec MonitoredItemSpec) (uint32, error) {
	handle := sub.nextClientHandle()
	mi := newMonitoredItem(handle, spec, sub.pool)

	req := &ua.CreateMonitoredItemsRequest{
		SubscriptionID:     sub.SubscriptionID,
		TimestampsToReturn: ua.TimestampsToReturnBoth,
		ItemsToCreate:      []*ua.MonitoredItemCreateRequest{mi.createRequest()},
	}
	v, err := sub.s.Send(ctx, req)
	if err != nil {
		return 0, err
	}
	var res *ua.CreateMonitoredItemsResponse
	if err := safeAssign(v, &res); err != nil {
		return 0, wrapError(KindProtocol, err, "create monitored item")
	}
	if len(res.Results) != 1 {
		return 0, newError(KindProtocol, "create monitored item: unexpected result count")
	}
	result := res.Results[0]
	if result.StatusCode.IsBad() {
		return 0, wrapError(classifyStatus(result.StatusCode), result.StatusCode, "create monitored item")
	}
	mi.bind(result)

	sub.mu.Lock()
	sub.items[handle] = mi
	sub.mu.Unlock()
	if sub.s.metrics != nil {
		sub.s.metrics.setMonitoredItems(sub.itemCount())
	}
	return handle, nil
}

func (sub *Subscription) removeMonitoredItem(ctx context.Context, clientHandle uint32) error {
	sub.mu.Lock()
	mi, ok := sub.items[clientHandle]
	if !ok {
		sub.mu.Unlock()
		return ErrUnknownClientHandle
	}
	delete(sub.items, clientHandle)
	sub.mu.Unlock()

	req := &ua.DeleteMonitoredItemsRequest{
		SubscriptionID:   sub.SubscriptionID,
		MonitoredItemIDs: []uint32{mi.serverHandle},
	}
	_, err := sub.s.Send(ctx, req)
	if sub.s.metrics != nil {
		sub.s.metrics.setMonitoredItems(sub.itemCount())
	}
	return err
}

func (sub *Subscription) modifyMonitoredItem(ctx context.Context, clientHandle uint32, samplingMS float64, queueSize uint32, filter FilterChange) error {
	sub.mu.Lock()
	mi, ok := sub.items[clientHandle]
	sub.mu.Unlock()
	if !ok {
		return ErrUnknownClientHandle
	}

	params := ua.MonitoringParameters{
		ClientHandle:     clientHandle,
		SamplingInterval: samplingMS,
		QueueSize:        queueSize,
		DiscardOldest:    mi.discardOldest,
	}
	filter.apply(&params)

	req := &ua.ModifyMonitoredItemsRequest{
		SubscriptionID:     sub.SubscriptionID,
		TimestampsToReturn: ua.TimestampsToReturnBoth,
		ItemsToModify: []*ua.MonitoredItemModifyRequest{{
			MonitoredItemID:     mi.serverHandle,
			RequestedParameters: params,
		}},
	}
	v, err := sub.s.Send(ctx, req)
	if err != nil {
		return err
	}
	var res *ua.ModifyMonitoredItemsResponse
	if err := safeAssign(v, &res); err != nil {
		return wrapError(KindProtocol, err, "modify monitored item")
	}
	if len(res.Results) != 1 || res.Results[0].StatusCode.IsBad() {
		return newError(KindDomain, "modify monitored item rejected")
	}

	sub.mu.Lock()
	mi.samplingInterval = res.Results[0].RevisedSamplingInterval
	mi.queueSize = res.Results[0].RevisedQueueSize
	sub.mu.Unlock()
	return nil
}

func (sub *Subscription) setMonitoringMode(ctx context.Context, handles []uint32, mode ua.MonitoringMode) error {
	sub.mu.Lock()
	serverHandles := make([]uint32, 0, len(handles))
	for _, h := range handles {
		if mi, ok := sub.items[h]; ok {
			serverHandles = append(serverHandles, mi.serverHandle)
		}
	}
	sub.mu.Unlock()

	req := &ua.SetMonitoringModeRequest{
		SubscriptionID:   sub.SubscriptionID,
		MonitoringMode:   mode,
		MonitoredItemIDs: serverHandles,
	}
	if _, err := sub.s.Send(ctx, req); err != nil {
		return err
	}

	// Record the mode on each item so a recreate re-applies it.
	sub.mu.Lock()
	for _, h := range handles {
		if mi, ok := sub.items[h]; ok {
			mi.spec.MonitoringMode = mode
		}
	}
	sub.mu.Unlock()
	return nil
}

// sendRepublishRequests drains the server's retransmission queue for
// this subscription starting just after the last sequence number the
// pump observed, stopping at BadMessageNotAvailable (no more messages
// to restore).
func (sub *Subscription) sendRepublishRequests(ctx context.Context) error {
	seq := atomic.LoadUint32(&sub.lastSequenceNumber)

	for {
		if sub.s.sessionClosed() {
			return newError(KindSessionInvalidated, "republish aborted: session closed")
		}

		req := &ua.RepublishRequest{
			SubscriptionID:           sub.SubscriptionID,
			RetransmitSequenceNumber: seq + 1,
		}
		v, err := sub.s.Send(ctx, req)
		if err != nil {
			if messageNotAvailable(err) {
				// Everything restorable has been drained. Republished
				// messages count as consumed, not replayed: the live
				// stream resumes just past the last one. The pump is
				// paused while Recovery runs, so the watermark can be
				// moved here without racing it.
				atomic.StoreUint32(&sub.lastSequenceNumber, seq)
				sub.nextExpectedSeq = seq + 1
				sub.pendingOutOfOrder = nil
				return nil
			}
			return err
		}
		var res *ua.RepublishResponse
		if err := safeAssign(v, &res); err != nil {
			return wrapError(KindProtocol, err, "republish")
		}
		seq++
		if res.NotificationMessage != nil {
			seq = res.NotificationMessage.SequenceNumber
		}
	}
}

// recreate rebuilds this subscription and every MonitoredItem it held,
// in insertion order, under a new server-assigned SubscriptionID while
// keeping the same SubscriptionKey and every item's ClientHandle. Items
// whose node no longer exists are surfaced via StatusChange and
// dropped; the subscription still comes up live with the rest.
func (sub *Subscription) recreate(ctx context.Context) error {
	sub.mu.Lock()
	params := sub.params
	enabled := sub.publishingEnabled
	oldItems := make([]*MonitoredItem, 0, len(sub.items))
	for _, mi := range sub.items {
		oldItems = append(oldItems, mi)
	}
	sub.mu.Unlock()
	// client handles are issued monotonically, so ordering by handle
	// recreates the items in their original insertion order
	sort.Slice(oldItems, func(i, j int) bool {
		return oldItems[i].clientHandle < oldItems[j].clientHandle
	})

	fresh, err := newSubscription(ctx, sub.s, params, sub.pool)
	if err != nil {
		return err
	}

	sub.mu.Lock()
	sub.SubscriptionID = fresh.SubscriptionID
	sub.RevisedPublishingInterval = fresh.RevisedPublishingInterval
	sub.RevisedLifetimeCount = fresh.RevisedLifetimeCount
	sub.RevisedMaxKeepAliveCount = fresh.RevisedMaxKeepAliveCount
	sub.publishTarget = fresh.publishTarget
	sub.items = make(map[uint32]*MonitoredItem)
	sub.nextExpectedSeq = 1
	sub.pendingOutOfOrder = nil
	sub.mu.Unlock()

	sub.restoreMonitoredItems(ctx, oldItems)

	if !enabled {
		if err := sub.setPublishingMode(ctx, false); err != nil {
			sub.log.Warn().Err(err).Msg("could not re-disable publishing on recreated subscription")
		}
	}
	return nil
}

// restoreMonitoredItems re-issues CreateMonitoredItems for items in a
// single batch, preserving each item's ClientHandle exactly (it is
// never regenerated — only the server-assigned ServerHandle changes).
// An item whose node has disappeared receives a StatusChange and is
// not re-added to the subscription's registry.
func (sub *Subscription) restoreMonitoredItems(ctx context.Context, items []*MonitoredItem) {
	if len(items) == 0 {
		return
	}
	create := make([]*ua.MonitoredItemCreateRequest, len(items))
	for i, mi := range items {
		create[i] = mi.createRequest()
	}
	req := &ua.CreateMonitoredItemsRequest{
		SubscriptionID:     sub.SubscriptionID,
		TimestampsToReturn: ua.TimestampsToReturnBoth,
		ItemsToCreate:      create,
	}
	v, err := sub.s.Send(ctx, req)
	if err != nil {
		sub.log.Warn().Err(err).Msg("failed to restore monitored items")
		for _, mi := range items {
			mi.deliverStatusChange(ua.StatusBadNodeIDUnknown)
		}
		return
	}
	var res *ua.CreateMonitoredItemsResponse
	if err := safeAssign(v, &res); err != nil || len(res.Results) != len(items) {
		sub.log.Warn().Msg("restore monitored items: malformed response")
		for _, mi := range items {
			mi.deliverStatusChange(ua.StatusBadNodeIDUnknown)
		}
		return
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	for i, mi := range items {
		result := res.Results[i]
		if result.StatusCode.IsBad() {
			sub.log.Warn().Err(wrapError(classifyStatus(result.StatusCode), result.StatusCode, "restore monitored item")).
				Uint32("client_handle", mi.clientHandle).Msg("monitored item not restored, removing")
			mi.deliverStatusChange(result.StatusCode)
			continue
		}
		mi.bind(result)
		sub.items[mi.clientHandle] = mi
	}
}
