// Package engineer runs the race engineer: one loop that reads telemetry,
// advances the session state machine, listens for the driver and hands at
// most one announcement per tick to the pipeline.
package engineer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sjawhar/pit-radio/internal/announce"
	"github.com/sjawhar/pit-radio/internal/audio"
	"github.com/sjawhar/pit-radio/internal/detect"
	"github.com/sjawhar/pit-radio/internal/session"
	"github.com/sjawhar/pit-radio/internal/storage"
	"github.com/sjawhar/pit-radio/internal/telemetry"
	"github.com/sjawhar/pit-radio/internal/transcribe"
	"github.com/sjawhar/pit-radio/internal/trigger"
	"github.com/sjawhar/pit-radio/internal/voice"
)

const (
	DefaultTickInterval  = time.Second
	DefaultCaptureWindow = 5 * time.Second

	pendingCap       = 3
	watchdogInterval = 200 * time.Millisecond
)

type Engineer struct {
	source    telemetry.Source
	transport voice.Transport
	announcer Announcer
	gate      *Gate

	composer  Composer
	listener  transcribe.Transcriber
	trigger   *trigger.Handler
	detectors []detect.Detector
	races     *Races
	events    EventBroadcaster
	ack       audio.Buffer

	tick       time.Duration
	capture    time.Duration
	watchEvery time.Duration
	logger     *slog.Logger
	now        func() time.Time

	machine *session.Machine
	memory  session.Memory
	pending []announce.Request
}

type Option func(*Engineer)

func WithComposer(c Composer) Option {
	return func(e *Engineer) { e.composer = c }
}

// WithListener enables driver questions: each live tick captures the
// radio for the capture window and passes the transcript to handler.
func WithListener(listener transcribe.Transcriber, handler *trigger.Handler) Option {
	return func(e *Engineer) {
		e.listener = listener
		e.trigger = handler
	}
}

func WithDetectors(detectors ...detect.Detector) Option {
	return func(e *Engineer) { e.detectors = detectors }
}

func WithRaces(r *Races) Option {
	return func(e *Engineer) { e.races = r }
}

func WithEvents(b EventBroadcaster) Option {
	return func(e *Engineer) { e.events = b }
}

// WithAck sets the chirp played when the driver's call is picked up.
func WithAck(clip audio.Buffer) Option {
	return func(e *Engineer) { e.ack = clip }
}

func WithTickInterval(d time.Duration) Option {
	return func(e *Engineer) {
		if d > 0 {
			e.tick = d
		}
	}
}

// WithCaptureWindow sets how long each live tick listens; 0 disables
// listening.
func WithCaptureWindow(d time.Duration) Option {
	return func(e *Engineer) {
		if d >= 0 {
			e.capture = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engineer) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func New(source telemetry.Source, transport voice.Transport, announcer Announcer, gate *Gate, opts ...Option) *Engineer {
	if gate == nil {
		gate = NewGate()
	}
	e := &Engineer{
		source:     source,
		transport:  transport,
		announcer:  announcer,
		gate:       gate,
		detectors:  detect.Standard(detect.DefaultOvertakeCooldown, detect.DefaultFuelThresholds),
		tick:       DefaultTickInterval,
		capture:    DefaultCaptureWindow,
		watchEvery: watchdogInterval,
		logger:     slog.Default(),
		now:        time.Now,
		machine:    session.NewMachine(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engineer")
	e.gate.set(e.machine.State())
	return e
}

// Run drives ticks from the telemetry source until ctx is cancelled, then
// closes any race still open.
func (e *Engineer) Run(ctx context.Context) error {
	if e.source == nil {
		return errors.New("engineer: no telemetry source")
	}
	e.logger.Info("engineer on the radio", "tick", e.tick, "capture", e.capture)

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	for {
		snap, ok := e.source.Latest()
		e.AdvanceTick(ctx, snap, ok)

		select {
		case <-ctx.Done():
			e.shutdown()
			return nil
		case <-ticker.C:
		}
	}
}

// AdvanceTick runs exactly one iteration of the loop for snap.
func (e *Engineer) AdvanceTick(ctx context.Context, snap telemetry.Snapshot, ok bool) {
	now := e.now()
	step := e.machine.Advance(snap, ok, &e.memory)
	e.gate.set(step.State)

	if step.Changed() {
		e.logger.Info("session state changed", "from", step.Previous, "to", step.State, "events", step.Events)
		if e.events != nil {
			e.events.BroadcastStateChanged(step.State.String(), step.Previous.String())
		}
	}
	if step.State != session.Live && len(e.pending) > 0 {
		e.logger.Debug("dropping queued announcements", "count", len(e.pending))
		e.pending = nil
	}
	if step.Has(session.EnteredPaused) && e.transport.IsPlaying() {
		if err := e.transport.Stop(); err != nil {
			e.logger.Debug("stop playback", "err", err)
		}
	}

	if step.Finished {
		e.dispatch(ctx, signOffRequest(now), snap, ok)
		if e.races != nil {
			if err := e.races.Finish(ctx, storage.RaceFinished); err != nil && !errors.Is(err, ErrNoActiveRace) {
				e.logger.Warn("finish race", "err", err)
			}
		}
		return
	}
	if step.State != session.Live {
		return
	}

	if e.races != nil {
		if step.Intro || step.NewSession {
			if _, err := e.races.Begin(ctx); err != nil {
				e.logger.Warn("begin race", "err", err)
			}
		}
		e.races.Progress(snap)
	}

	if step.Intro {
		e.dispatch(ctx, introRequest(now), snap, ok)
		return
	}

	if e.capturing() {
		if e.listen(ctx, snap, ok, now) {
			return
		}
		// The capture window lasts seconds; act on where the car is now.
		snap, ok = e.latest(snap, ok)
		if session.PauseCondition(snap, ok, e.memory.Lap.PreviousLap) {
			return
		}
	}

	for _, req := range detect.Run(e.detectors, snap, step.State, &e.memory, now) {
		e.enqueue(req)
	}
	if len(e.pending) == 0 {
		return
	}
	req := e.pending[0]
	e.pending = e.pending[1:]
	e.dispatch(ctx, req, snap, ok)
}

func (e *Engineer) enqueue(req announce.Request) {
	if len(e.pending) >= pendingCap {
		e.logger.Debug("announcement queue full, dropping oldest", "tag", e.pending[0].Tag)
		e.pending = e.pending[1:]
	}
	e.pending = append(e.pending, req)
}

// listen captures the driver and answers a triggered call. It reports
// whether the tick was taken by the driver.
func (e *Engineer) listen(ctx context.Context, snap telemetry.Snapshot, ok bool, now time.Time) bool {
	if !e.capturing() {
		return false
	}

	clip, err := e.transport.RecordFor(ctx, e.capture)
	if err != nil {
		e.logger.Debug("capture failed", "err", err)
		return false
	}
	text, err := e.listener.Transcribe(ctx, clip)
	if err != nil || text == "" {
		return false
	}
	if e.races != nil {
		e.races.Heard(text, clip)
	}
	if _, matched := e.trigger.Match(text); !matched {
		return false
	}

	e.acknowledge(ctx)
	snap, ok = e.latest(snap, ok)
	req, _, err := e.trigger.Handle(ctx, text, snap, ok, now)
	if err != nil {
		e.logger.Warn("dropping reply", "err", err)
		return true
	}
	e.dispatch(ctx, req, snap, ok)
	return true
}

func (e *Engineer) capturing() bool {
	return e.listener != nil && e.trigger != nil && e.capture > 0
}

// latest returns the source's newest snapshot, or the given one when the
// engineer is driven without a source.
func (e *Engineer) latest(snap telemetry.Snapshot, ok bool) (telemetry.Snapshot, bool) {
	if e.source == nil {
		return snap, ok
	}
	return e.source.Latest()
}

func (e *Engineer) acknowledge(ctx context.Context) {
	if e.ack.Len() == 0 || !e.transport.IsConnected() {
		return
	}
	if err := e.transport.PlayAndWait(ctx, e.ack); err != nil {
		e.logger.Debug("ack chirp", "err", err)
	}
}

// dispatch fills in the line for req and plays it. Generation is tried
// once; a failure drops the announcement.
func (e *Engineer) dispatch(ctx context.Context, req announce.Request, snap telemetry.Snapshot, ok bool) {
	if req.Prompt != "" && e.composer != nil && e.transport.IsConnected() {
		text, err := e.composer.Compose(ctx, req, snap, ok)
		if err != nil {
			e.logger.Warn("dropping announcement", "tag", req.Tag, "err", err)
			return
		}
		req.Text = text
	}
	req.Prompt = ""

	stop := func() {}
	if !req.SignOff {
		stop = e.watch(ctx)
	}
	err := e.announcer.Announce(ctx, req)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, announce.ErrGated), errors.Is(err, announce.ErrDisconnected), errors.Is(err, voice.ErrStopped):
		e.logger.Debug("announcement not played", "tag", req.Tag, "reason", err)
	default:
		e.logger.Warn("announcement failed", "tag", req.Tag, "err", err)
	}
}

// watch polls telemetry while the loop is blocked in Announce and cuts
// playback as soon as a pause condition appears.
func (e *Engineer) watch(ctx context.Context) func() {
	if e.source == nil {
		return func() {}
	}
	var previousLap *int
	if e.memory.Lap.PreviousLap != nil {
		previousLap = session.IntPtr(*e.memory.Lap.PreviousLap)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(e.watchEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			snap, ok := e.source.Latest()
			if !session.PauseCondition(snap, ok, previousLap) || !e.transport.IsPlaying() {
				continue
			}
			e.logger.Info("pause during playback, cutting radio")
			if err := e.transport.Stop(); err != nil {
				e.logger.Debug("stop playback", "err", err)
			}
			return
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (e *Engineer) shutdown() {
	e.pending = nil
	if e.races == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.races.Finish(ctx, storage.RaceAbandoned); err != nil && !errors.Is(err, ErrNoActiveRace) {
		e.logger.Warn("close race on shutdown", "err", err)
	}
}
