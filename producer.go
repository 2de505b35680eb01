package mediasoupclient

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/qdgx/mediasoup-client-go/engine"
	"github.com/qdgx/mediasoup-client-go/ortc"
)

// MediaState is the state of a producer or consumer.
type MediaState string

const (
	MediaStateOpen   MediaState = "open"
	MediaStatePaused MediaState = "paused"
	MediaStateClosed MediaState = "closed"
)

const defaultStatsInterval = time.Second

// Producer sends a local track to the room through a sending transport.
//
// - @emits close - (originator Originator, appData interface{})
// - @emits pause - (originator Originator, appData interface{})
// - @emits resume - (originator Originator, appData interface{})
// - @emits handled
// - @emits unhandled
// - @emits stats - (stats Stats)
// - @emits @close
type Producer struct {
	IEventEmitter
	locker         sync.Mutex
	logger         logr.Logger
	id             string
	kind           ortc.MediaKind
	track          engine.Track
	options        ProducerOptions
	appData        interface{}
	rtpParameters  *ortc.RtpParameters
	transport      *Transport
	sending        bool
	closed         bool
	locallyPaused  bool
	remotelyPaused bool
	statsEnabled   bool
	statsInterval  time.Duration
	observer       IEventEmitter
}

func newProducer(track engine.Track, options ProducerOptions, appData interface{}) *Producer {
	logger := NewLogger("Producer")

	logger.V(1).Info("constructor()", "kind", track.Kind(), "track", track.ID())

	if appData == nil {
		appData = H{}
	}

	return &Producer{
		IEventEmitter: NewEventEmitter(),
		logger:        logger,
		id:            generateId(),
		kind:          ortc.MediaKind(track.Kind()),
		track:         track,
		options:       options,
		appData:       appData,
		observer:      NewEventEmitter(),
	}
}

// Id returns producer id
func (producer *Producer) Id() string {
	return producer.id
}

func (producer *Producer) Kind() ortc.MediaKind {
	return producer.kind
}

// Track returns the track being sent.
func (producer *Producer) Track() engine.Track {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	return producer.track
}

func (producer *Producer) AppData() interface{} {
	return producer.appData
}

func (producer *Producer) Closed() bool {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	return producer.closed
}

func (producer *Producer) State() MediaState {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	switch {
	case producer.closed:
		return MediaStateClosed
	case producer.locallyPaused || producer.remotelyPaused:
		return MediaStatePaused
	}
	return MediaStateOpen
}

// Paused returns whether the producer is paused locally or by the server.
func (producer *Producer) Paused() bool {
	return producer.State() == MediaStatePaused
}

func (producer *Producer) LocallyPaused() bool {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	return producer.locallyPaused
}

func (producer *Producer) RemotelyPaused() bool {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	return producer.remotelyPaused
}

// RtpParameters returns the sending parameters, nil unless handled.
func (producer *Producer) RtpParameters() *ortc.RtpParameters {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	return producer.rtpParameters.Clone()
}

// Transport returns the transport sending the producer, if any.
func (producer *Producer) Transport() *Transport {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	return producer.transport
}

// Handled returns whether the producer is being sent by a transport.
func (producer *Producer) Handled() bool {
	return producer.Transport() != nil
}

func (producer *Producer) StatsEnabled() bool {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	return producer.statsEnabled
}

// Observer.
//
// - @emits close - (originator Originator, appData interface{})
// - @emits pause - (originator Originator, appData interface{})
// - @emits resume - (originator Originator, appData interface{})
// - @emits handled
// - @emits unhandled
func (producer *Producer) Observer() IEventEmitter {
	return producer.observer
}

func (producer *Producer) OnClose(handler func(originator Originator, appData interface{})) {
	producer.On("close", handler)
}

func (producer *Producer) OnPause(handler func(originator Originator, appData interface{})) {
	producer.On("pause", handler)
}

func (producer *Producer) OnResume(handler func(originator Originator, appData interface{})) {
	producer.On("resume", handler)
}

func (producer *Producer) OnHandled(handler func()) {
	producer.On("handled", handler)
}

func (producer *Producer) OnUnhandled(handler func()) {
	producer.On("unhandled", handler)
}

func (producer *Producer) OnStats(handler func(stats Stats)) {
	producer.On("stats", handler)
}

// Send negotiates the producer on transport and creates it on the server. If the
// transport closes meanwhile the producer is closed too.
func (producer *Producer) Send(ctx context.Context, transport *Transport) error {
	if transport == nil {
		return NewTypeError("missing transport")
	}

	producer.logger.V(1).Info("send()", "transportId", transport.Id())

	producer.locker.Lock()
	if producer.closed {
		producer.locker.Unlock()
		return NewInvalidStateError("producer closed")
	}
	if producer.transport != nil || producer.sending {
		producer.locker.Unlock()
		return NewInvalidStateError("producer already handled by a transport")
	}
	producer.sending = true
	producer.locker.Unlock()

	rtpParameters, err := transport.addProducer(ctx, producer)
	if err == nil {
		err = transport.attachProducer(producer, rtpParameters)
	}

	producer.locker.Lock()
	producer.sending = false
	producer.locker.Unlock()

	if err != nil {
		if transport.Closed() {
			producer.close(OriginatorLocal, nil)
		}
		return err
	}

	producer.SafeEmit("handled")
	producer.observer.SafeEmit("handled")

	return nil
}

// attach is called by transport once the producer is created on the server. It reports
// false if the producer was closed meanwhile, and the stats interval to enable if stats
// were enabled before the producer was sent.
func (producer *Producer) attach(transport *Transport, rtpParameters *ortc.RtpParameters) (bool, time.Duration) {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	if producer.closed {
		return false, 0
	}
	producer.transport = transport
	producer.rtpParameters = rtpParameters

	if producer.statsEnabled {
		return true, producer.statsInterval
	}
	return true, 0
}

// Close the producer and its track.
func (producer *Producer) Close() {
	producer.close(OriginatorLocal, nil)
}

func (producer *Producer) remoteClose(appData interface{}) {
	producer.close(OriginatorRemote, appData)
}

func (producer *Producer) close(originator Originator, appData interface{}) {
	producer.locker.Lock()
	if producer.closed {
		producer.locker.Unlock()
		return
	}
	producer.logger.V(1).Info("close()", "originator", originator)

	producer.closed = true
	transport := producer.transport
	producer.transport = nil
	track := producer.track
	producer.locker.Unlock()

	if transport != nil {
		transport.removeProducer(producer, originator, appData)
	}
	track.Stop()

	producer.Emit("@close")
	producer.SafeEmit("close", originator, appData)
	producer.RemoveAllListeners()

	// Emit observer event.
	producer.observer.SafeEmit("close", originator, appData)
	producer.observer.RemoveAllListeners()
}

// transportClosed is called when transport was closed.
func (producer *Producer) transportClosed() {
	producer.locker.Lock()
	if producer.transport == nil {
		producer.locker.Unlock()
		return
	}
	producer.logger.V(1).Info("transportClosed()")

	producer.transport = nil
	producer.rtpParameters = nil
	producer.statsEnabled = false
	producer.locker.Unlock()

	producer.SafeEmit("unhandled")
	producer.observer.SafeEmit("unhandled")
}

// Pause stops sending media. The track stays disabled while any side keeps the producer
// paused.
func (producer *Producer) Pause(appData interface{}) error {
	producer.locker.Lock()
	if producer.closed {
		producer.locker.Unlock()
		return NewInvalidStateError("producer closed")
	}
	if producer.locallyPaused {
		producer.locker.Unlock()
		return nil
	}
	producer.logger.V(1).Info("pause()")

	producer.locallyPaused = true
	producer.track.SetEnabled(false)
	transport := producer.transport
	producer.locker.Unlock()

	if transport != nil {
		transport.pauseProducer(producer, appData)
	}

	producer.SafeEmit("pause", OriginatorLocal, appData)
	producer.observer.SafeEmit("pause", OriginatorLocal, appData)

	return nil
}

// Resume the producer. Media flows again once the server has resumed it too.
func (producer *Producer) Resume(appData interface{}) error {
	producer.locker.Lock()
	if producer.closed {
		producer.locker.Unlock()
		return NewInvalidStateError("producer closed")
	}
	if !producer.locallyPaused {
		producer.locker.Unlock()
		return nil
	}
	producer.logger.V(1).Info("resume()")

	producer.locallyPaused = false
	if !producer.remotelyPaused {
		producer.track.SetEnabled(true)
	}
	transport := producer.transport
	producer.locker.Unlock()

	if transport != nil {
		transport.resumeProducer(producer, appData)
	}

	producer.SafeEmit("resume", OriginatorLocal, appData)
	producer.observer.SafeEmit("resume", OriginatorLocal, appData)

	return nil
}

func (producer *Producer) remotePause(appData interface{}) {
	producer.locker.Lock()
	if producer.closed || producer.remotelyPaused {
		producer.locker.Unlock()
		return
	}
	producer.logger.V(1).Info("remotePause()")

	producer.remotelyPaused = true
	producer.track.SetEnabled(false)
	producer.locker.Unlock()

	producer.SafeEmit("pause", OriginatorRemote, appData)
	producer.observer.SafeEmit("pause", OriginatorRemote, appData)
}

func (producer *Producer) remoteResume(appData interface{}) {
	producer.locker.Lock()
	if producer.closed || !producer.remotelyPaused {
		producer.locker.Unlock()
		return
	}
	producer.logger.V(1).Info("remoteResume()")

	producer.remotelyPaused = false
	if !producer.locallyPaused {
		producer.track.SetEnabled(true)
	}
	producer.locker.Unlock()

	producer.SafeEmit("resume", OriginatorRemote, appData)
	producer.observer.SafeEmit("resume", OriginatorRemote, appData)
}

// ReplaceTrack sends track instead of the current one, which is stopped. The new track
// inherits the paused state.
func (producer *Producer) ReplaceTrack(ctx context.Context, track engine.Track) error {
	if track == nil {
		return NewTypeError("missing track")
	}

	producer.locker.Lock()
	if producer.closed {
		producer.locker.Unlock()
		return NewInvalidStateError("producer closed")
	}
	oldTrack := producer.track
	transport := producer.transport
	paused := producer.locallyPaused || producer.remotelyPaused
	producer.locker.Unlock()

	producer.logger.V(1).Info("replaceTrack()", "track", track.ID())

	if track.ID() == oldTrack.ID() {
		return nil
	}
	if track.Kind() != string(producer.kind) {
		return NewTypeError("cannot replace a %s track with a %s one", producer.kind, track.Kind())
	}

	track.SetEnabled(!paused)

	if transport != nil {
		if err := transport.replaceProducerTrack(ctx, oldTrack, track); err != nil {
			return err
		}
	}

	producer.locker.Lock()
	if producer.closed {
		producer.locker.Unlock()
		track.Stop()
		return NewInvalidStateError("producer closed")
	}
	producer.track = track
	producer.locker.Unlock()

	oldTrack.Stop()

	return nil
}

// EnableStats asks the server for periodic "stats" events, every second if interval is 0.
func (producer *Producer) EnableStats(interval time.Duration) error {
	producer.locker.Lock()
	if producer.closed {
		producer.locker.Unlock()
		return NewInvalidStateError("producer closed")
	}
	producer.logger.V(1).Info("enableStats()", "interval", interval)

	if interval <= 0 {
		interval = defaultStatsInterval
	}
	producer.statsEnabled = true
	producer.statsInterval = interval
	transport := producer.transport
	producer.locker.Unlock()

	if transport != nil {
		transport.enableProducerStats(producer, interval)
	}

	return nil
}

func (producer *Producer) DisableStats() error {
	producer.locker.Lock()
	if producer.closed {
		producer.locker.Unlock()
		return NewInvalidStateError("producer closed")
	}
	if !producer.statsEnabled {
		producer.locker.Unlock()
		return nil
	}
	producer.logger.V(1).Info("disableStats()")

	producer.statsEnabled = false
	transport := producer.transport
	producer.locker.Unlock()

	if transport != nil {
		transport.disableProducerStats(producer)
	}

	return nil
}

func (producer *Producer) remoteStats(stats Stats) {
	if producer.Closed() {
		return
	}
	producer.SafeEmit("stats", stats)
}
