// Copyright 2025 Apex Metrology GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dispatch owns the single worker that mutates the state machine and
// the thread-safe submission and response surface around it. Every envelope
// moves through Queued, possibly Deferred, then Processing, and terminates as
// Responded or Abandoned on timeout.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
	"go.uber.org/zap"

	"github.com/apexmetrology/trackerd/pkg/actions"
	"github.com/apexmetrology/trackerd/pkg/config"
	"github.com/apexmetrology/trackerd/pkg/constants"
	"github.com/apexmetrology/trackerd/pkg/hsm"
	"github.com/apexmetrology/trackerd/pkg/messages"
	"github.com/apexmetrology/trackerd/pkg/metrics"
	"github.com/apexmetrology/trackerd/pkg/models"
)

var (
	// ErrNotRunning is returned by submission calls while the engine is stopped.
	ErrNotRunning = errors.New("dispatch engine is not running")

	// ErrDuplicateID is returned when a wire envelope reuses an id that is
	// still outstanding.
	ErrDuplicateID = errors.New("duplicate request id")
)

// Engine serializes all state mutation onto one worker goroutine while
// accepting envelopes from arbitrary goroutines. Synchronous callers block on
// a per-request oneshot channel; asynchronous callers poll the response queue.
type Engine struct {
	machine *hsm.Machine
	runner  *actions.Runner
	log     *zap.SugaredLogger

	instanceID   uuid.UUID
	pollInterval time.Duration

	// defaultTimeoutMs is stamped on wire envelopes that request a reply but
	// carry no timeout. 0 leaves them unbounded.
	defaultTimeoutMs uint32

	queue     *Queue[*models.Envelope]
	responses *Queue[*models.Response]

	// stateName is the text snapshot external readers see. The machine itself
	// is touched only by the worker.
	stateMu   sync.RWMutex
	stateName string

	promiseMu sync.Mutex
	promises  map[uint64]chan *models.Response

	// inflight tracks outstanding wire request ids so a caller cannot reuse
	// one while its first request is still live. Entries age out on TTL.
	inflight *expiremap.ExpireMap[uint64, time.Time]

	running    atomic.Bool
	terminated atomic.Bool
	nextID     atomic.Uint64

	// Worker-local. Never touched outside the worker goroutine.
	deferred       []*models.Envelope
	syncInProgress bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine builds a stopped engine around a device backend. The state machine
// is constructed immediately, so entry diagnostics for Off fire here, not at
// Start.
func NewEngine(cfg config.EngineConfig, dev actions.Device, log *zap.SugaredLogger) *Engine {
	pollInterval := cfg.PollInterval()
	if pollInterval <= 0 {
		pollInterval = constants.WorkerPollInterval
	}

	instanceID := uuid.New()
	machine := hsm.NewMachine(log)

	e := &Engine{
		machine:          machine,
		runner:           actions.NewRunner(dev, instanceID, log),
		log:              log,
		instanceID:       instanceID,
		pollInterval:     pollInterval,
		defaultTimeoutMs: cfg.DefaultTimeoutMs,
		queue:            NewQueue[*models.Envelope](),
		responses:        NewQueue[*models.Response](),
		stateName:        machine.StateName(),
		promises:         make(map[uint64]chan *models.Response),
		inflight:         expiremap.NewEx[uint64, time.Time](constants.InflightCullInterval, constants.InflightTTL),
	}

	return e
}

// InstanceID identifies this engine instance in status reports.
func (e *Engine) InstanceID() uuid.UUID {
	return e.instanceID
}

// Start launches the worker goroutine. Starting a running or already-stopped
// engine is a no-op; engines are single-use.
func (e *Engine) Start() {
	if e.terminated.Load() {
		return
	}
	if !e.running.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(1)
	go e.worker(ctx)

	e.log.Info("dispatch engine started")
}

// Stop signals the worker, unblocks any queue wait and joins the worker.
// Envelopes still queued are left unprocessed. Idempotent.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	e.terminated.Store(true)

	e.queue.Stop()
	e.cancel()
	e.wg.Wait()

	e.log.Info("dispatch engine stopped")
}

// IsRunning reports whether the worker is live.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// CurrentStateName returns the fully-qualified state path snapshot, e.g.
// "Operational::Tracking::Locked".
func (e *Engine) CurrentStateName() string {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	return e.stateName
}

// SendAsync enqueues a message by name and returns the generated id
// immediately. The eventual response lands on the pollable response queue.
func (e *Engine) SendAsync(name string, params map[string]any, sync bool) (uint64, error) {
	env := models.NewEnvelope(e.nextID.Add(1), name, params, sync, true, 0)

	if err := e.enqueue(env); err != nil {
		return 0, err
	}

	return env.ID, nil
}

// Send enqueues a message by name and blocks until its response arrives or
// the timeout elapses. On timeout the promise registration is removed and a
// synthetic failure response is returned; the work itself may still complete
// later with no observer.
func (e *Engine) Send(name string, params map[string]any, sync bool, timeout time.Duration) *models.Response {
	env := models.NewEnvelope(e.nextID.Add(1), name, params, sync, true, timeoutToMs(timeout))

	ch := e.registerPromise(env.ID)

	if err := e.enqueue(env); err != nil {
		e.dropPromise(env.ID)

		return models.NewResponse(env, false, nil, err.Error())
	}

	return e.await(env, ch, timeout)
}

// SendMessageAsync enqueues an already-constructed message value. The sync
// flag comes from the message's registered descriptor.
func (e *Engine) SendMessageAsync(msg messages.Message) (uint64, error) {
	d, ok := messages.DescriptorOf(msg)
	if !ok {
		return 0, fmt.Errorf("%w: %s", messages.ErrUnknownMessage, msg.MessageName())
	}

	return e.SendAsync(d.Name, msg.Params(), d.Sync)
}

// SendMessage enqueues an already-constructed message value and blocks for its
// response like Send.
func (e *Engine) SendMessage(msg messages.Message, timeout time.Duration) *models.Response {
	d, ok := messages.DescriptorOf(msg)
	if !ok {
		return &models.Response{
			Name:    msg.MessageName(),
			Success: false,
			Error:   fmt.Sprintf("unknown message: %s", msg.MessageName()),
		}
	}

	return e.Send(d.Name, msg.Params(), d.Sync, timeout)
}

// SendWire parses protocol text and enqueues the resulting envelope. Malformed
// text is rejected without being enqueued; reusing an outstanding id is
// rejected as a duplicate.
func (e *Engine) SendWire(text []byte) (uint64, error) {
	env, err := models.ParseEnvelope(text)
	if err != nil {
		return 0, err
	}

	if env.ID == 0 {
		env.ID = e.nextID.Add(1)
	} else if _, live := e.inflight.Load(env.ID); live {
		return 0, fmt.Errorf("%w: %d", ErrDuplicateID, env.ID)
	}

	if env.NeedsReply && env.TimeoutMs == 0 {
		env.TimeoutMs = e.defaultTimeoutMs
	}

	if err := e.enqueue(env); err != nil {
		return 0, err
	}

	return env.ID, nil
}

// TryGetResponse pops the oldest unclaimed response, if any.
func (e *Engine) TryGetResponse() *models.Response {
	resp, ok := e.responses.TryPop()
	if !ok {
		return nil
	}

	return resp
}

// WaitForResponse polls the response queue for a specific id until the timeout
// elapses. A non-matching response is put back at the head unconsumed, so
// responses must be claimed in the order they were produced; waiting for an id
// buried behind an unclaimed one times out.
func (e *Engine) WaitForResponse(id uint64, timeout time.Duration) *models.Response {
	if timeout <= 0 {
		timeout = constants.DefaultResponseWait
	}
	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}

		resp, ok := e.responses.WaitPopFor(remaining)
		if !ok {
			return nil
		}
		if resp.ID == id {
			return resp
		}

		// Not ours. Put it back where it was for whoever is polling for it.
		e.responses.PushFront(resp)
		time.Sleep(time.Millisecond)
	}
}

func (e *Engine) enqueue(env *models.Envelope) error {
	if !e.queue.Push(env) {
		return ErrNotRunning
	}

	if env.NeedsReply {
		e.inflight.Set(env.ID, env.CreatedAt)
		metrics.SetInflightRequests(e.inflight.Length())
	}
	metrics.SetQueueLength(e.queue.Len())

	return nil
}

func (e *Engine) registerPromise(id uint64) chan *models.Response {
	ch := make(chan *models.Response, 1)

	e.promiseMu.Lock()
	e.promises[id] = ch
	e.promiseMu.Unlock()

	return ch
}

func (e *Engine) dropPromise(id uint64) {
	e.promiseMu.Lock()
	delete(e.promises, id)
	e.promiseMu.Unlock()
}

// abandonPromise replaces a registered channel with a tombstone after a caller
// timeout. The key survives so the worker knows the request had a waiting
// caller and must drop the late result silently rather than park it on the
// response queue.
func (e *Engine) abandonPromise(id uint64) {
	e.promiseMu.Lock()
	if _, ok := e.promises[id]; ok {
		e.promises[id] = nil
	}
	e.promiseMu.Unlock()
}

// takePromise removes and returns the registered channel, if any. Removal and
// fulfillment are one step so a promise is fulfilled at most once.
func (e *Engine) takePromise(id uint64) (chan *models.Response, bool) {
	e.promiseMu.Lock()
	defer e.promiseMu.Unlock()

	ch, ok := e.promises[id]
	if ok {
		delete(e.promises, id)
	}

	return ch, ok
}

func (e *Engine) await(env *models.Envelope, ch chan *models.Response, timeout time.Duration) *models.Response {
	if timeout <= 0 {
		resp := <-ch

		return resp
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp
	case <-timer.C:
		e.abandonPromise(env.ID)
		metrics.IncCallerTimeout()
		e.log.Warnf("caller timed out waiting for %s (id %d) after %s", env.Name, env.ID, timeout)

		return models.NewTimeoutResponse(env.ID, env.Name)
	}
}

// worker is the only goroutine that touches the state machine.
func (e *Engine) worker(ctx context.Context) {
	defer e.wg.Done()

	for e.running.Load() {
		env, ok := e.queue.WaitPopFor(e.pollInterval)
		if !ok {
			continue
		}

		metrics.SetQueueLength(e.queue.Len())
		e.process(ctx, env)
	}
}

func (e *Engine) process(ctx context.Context, env *models.Envelope) {
	// A request whose caller has already given up is not worth processing.
	if env.NeedsReply && env.TimedOut() {
		e.abandon(env)

		return
	}

	// Strict non-interleaving of sync envelopes: while one is in progress,
	// later sync envelopes park in the deferral buffer and re-enter the queue
	// ahead of newly arriving work once the blocker completes.
	if env.Sync && e.syncInProgress {
		e.deferred = append(e.deferred, env)
		metrics.IncDeferred()
		e.log.Debugf("deferred sync envelope %s (id %d)", env.Name, env.ID)

		return
	}

	if env.Sync {
		e.syncInProgress = true
	}

	e.execute(ctx, env)

	if env.Sync {
		e.syncInProgress = false
		e.refeedDeferred()
	}
}

func (e *Engine) execute(ctx context.Context, env *models.Envelope) {
	started := time.Now()

	msg, err := messages.Build(env.Name, env.Params)
	if err != nil {
		metrics.IncProcessed("unknown", metrics.OutcomeFailure)
		e.deliver(env, models.NewResponse(env, false, nil, fmt.Sprintf("unknown message: %s", env.Name)))

		return
	}

	d, _ := messages.DescriptorOf(msg)
	kind := d.Kind.String()

	var resp *models.Response
	switch d.Kind {
	case messages.KindActionCommand:
		resp = e.runAction(ctx, env, msg)
	default:
		resp = e.runStateMessage(env, msg, kind)
	}

	metrics.ObserveProcessingTime(kind, time.Since(started))
	e.deliver(env, resp)
}

func (e *Engine) runStateMessage(env *models.Envelope, msg messages.Message, kind string) *models.Response {
	handled := e.machine.Handle(msg)
	e.snapshotState()

	if !handled {
		metrics.IncProcessed(kind, metrics.OutcomeNotHandled)

		return models.NewResponse(env, false, nil,
			fmt.Sprintf("message %s not handled in state %s", env.Name, e.CurrentStateName()))
	}

	metrics.IncProcessed(kind, metrics.OutcomeSuccess)

	return models.NewResponse(env, true, map[string]any{
		"handled": true,
		"state":   e.CurrentStateName(),
	}, "")
}

func (e *Engine) runAction(ctx context.Context, env *models.Envelope, msg messages.Message) *models.Response {
	if env.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, env.Remaining())
		defer cancel()
	}

	result, err := e.runner.Run(ctx, msg, e.CurrentStateName())
	if err != nil {
		metrics.IncProcessed(messages.KindActionCommand.String(), metrics.OutcomeFailure)

		return models.NewResponse(env, false, nil, err.Error())
	}

	metrics.IncProcessed(messages.KindActionCommand.String(), metrics.OutcomeSuccess)

	return models.NewResponse(env, true, result, "")
}

// deliver fulfills the waiting promise if one is registered, else parks the
// response on the pollable queue. A promise abandoned by a timed-out caller
// swallows the late result; envelopes without needsReply produce no response
// at all.
func (e *Engine) deliver(env *models.Envelope, resp *models.Response) {
	if !env.NeedsReply {
		return
	}

	ch, registered := e.takePromise(env.ID)
	if registered {
		if ch != nil {
			ch <- resp
		}

		return
	}

	e.responses.Push(resp)
}

// abandon discards a stale envelope unprocessed and cleans up its promise.
func (e *Engine) abandon(env *models.Envelope) {
	metrics.IncStaleDropped()
	e.log.Debugf("dropping stale envelope %s (id %d, age %s)", env.Name, env.ID, env.Age())

	if ch, registered := e.takePromise(env.ID); registered && ch != nil {
		ch <- models.NewTimeoutResponse(env.ID, env.Name)
	}
}

// refeedDeferred puts every deferred envelope back at the head of the queue in
// its original relative order, ahead of anything that arrived meanwhile.
// Envelopes that timed out while parked are abandoned instead.
func (e *Engine) refeedDeferred() {
	if len(e.deferred) == 0 {
		return
	}

	parked := e.deferred
	e.deferred = nil

	for i := len(parked) - 1; i >= 0; i-- {
		env := parked[i]
		if env.NeedsReply && env.TimedOut() {
			e.abandon(env)

			continue
		}
		e.queue.PushFront(env)
	}
}

func (e *Engine) snapshotState() {
	name := e.machine.StateName()

	e.stateMu.Lock()
	e.stateName = name
	e.stateMu.Unlock()
}

func timeoutToMs(timeout time.Duration) uint32 {
	if timeout <= 0 {
		return 0
	}

	ms := timeout.Milliseconds()
	if ms <= 0 {
		ms = 1
	}

	return uint32(ms)
}
