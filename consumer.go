package mediasoupclient

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/qdgx/mediasoup-client-go/engine"
	"github.com/qdgx/mediasoup-client-go/ortc"
)

// Consumer receives the media of a remote producer. It is owned by the peer sending it.
//
// - @emits close - (originator Originator, appData interface{})
// - @emits pause - (originator Originator, appData interface{})
// - @emits resume - (originator Originator, appData interface{})
// - @emits effectiveprofilechange - (profile ConsumerProfile)
// - @emits handled
// - @emits unhandled
// - @emits stats - (stats Stats)
// - @emits @close
type Consumer struct {
	IEventEmitter
	locker           sync.Mutex
	logger           logr.Logger
	id               string
	kind             ortc.MediaKind
	rtpParameters    *ortc.RtpParameters
	peer             *Peer
	appData          interface{}
	supported        bool
	transport        *Transport
	track            engine.Track
	receiving        bool
	closed           bool
	locallyPaused    bool
	remotelyPaused   bool
	statsEnabled     bool
	statsInterval    time.Duration
	preferredProfile ConsumerProfile
	effectiveProfile ConsumerProfile
	observer         IEventEmitter
}

func newConsumer(data ConsumerData, peer *Peer, supported bool) *Consumer {
	logger := NewLogger("Consumer")

	logger.V(1).Info("constructor()", "id", data.Id, "kind", data.Kind, "supported", supported)

	appData := data.AppData
	if appData == nil {
		appData = H{}
	}
	preferredProfile := data.PreferredProfile
	if len(preferredProfile) == 0 {
		preferredProfile = ConsumerProfileDefault
	}

	return &Consumer{
		IEventEmitter:    NewEventEmitter(),
		logger:           logger,
		id:               data.Id,
		kind:             data.Kind,
		rtpParameters:    data.RtpParameters,
		peer:             peer,
		appData:          appData,
		supported:        supported,
		remotelyPaused:   data.Paused,
		preferredProfile: preferredProfile,
		effectiveProfile: data.EffectiveProfile,
		observer:         NewEventEmitter(),
	}
}

// Id returns consumer id
func (consumer *Consumer) Id() string {
	return consumer.id
}

func (consumer *Consumer) Kind() ortc.MediaKind {
	return consumer.kind
}

func (consumer *Consumer) RtpParameters() *ortc.RtpParameters {
	return consumer.rtpParameters.Clone()
}

// Peer returns the peer sending the media.
func (consumer *Consumer) Peer() *Peer {
	return consumer.peer
}

func (consumer *Consumer) AppData() interface{} {
	return consumer.appData
}

// Supported returns whether the local engine can decode the consumer.
func (consumer *Consumer) Supported() bool {
	return consumer.supported
}

func (consumer *Consumer) Closed() bool {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	return consumer.closed
}

func (consumer *Consumer) State() MediaState {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	switch {
	case consumer.closed:
		return MediaStateClosed
	case consumer.locallyPaused || consumer.remotelyPaused:
		return MediaStatePaused
	}
	return MediaStateOpen
}

func (consumer *Consumer) Paused() bool {
	return consumer.State() == MediaStatePaused
}

func (consumer *Consumer) LocallyPaused() bool {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	return consumer.locallyPaused
}

func (consumer *Consumer) RemotelyPaused() bool {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	return consumer.remotelyPaused
}

// Track returns the receiving track, nil unless handled.
func (consumer *Consumer) Track() engine.Track {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	return consumer.track
}

func (consumer *Consumer) Transport() *Transport {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	return consumer.transport
}

func (consumer *Consumer) Handled() bool {
	return consumer.Transport() != nil
}

func (consumer *Consumer) PreferredProfile() ConsumerProfile {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	return consumer.preferredProfile
}

func (consumer *Consumer) EffectiveProfile() ConsumerProfile {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	return consumer.effectiveProfile
}

func (consumer *Consumer) StatsEnabled() bool {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	return consumer.statsEnabled
}

// Observer.
//
// - @emits close - (originator Originator, appData interface{})
// - @emits pause - (originator Originator, appData interface{})
// - @emits resume - (originator Originator, appData interface{})
// - @emits effectiveprofilechange - (profile ConsumerProfile)
// - @emits handled
// - @emits unhandled
func (consumer *Consumer) Observer() IEventEmitter {
	return consumer.observer
}

func (consumer *Consumer) OnClose(handler func(originator Originator, appData interface{})) {
	consumer.On("close", handler)
}

func (consumer *Consumer) OnPause(handler func(originator Originator, appData interface{})) {
	consumer.On("pause", handler)
}

func (consumer *Consumer) OnResume(handler func(originator Originator, appData interface{})) {
	consumer.On("resume", handler)
}

func (consumer *Consumer) OnEffectiveProfileChange(handler func(profile ConsumerProfile)) {
	consumer.On("effectiveprofilechange", handler)
}

func (consumer *Consumer) OnHandled(handler func()) {
	consumer.On("handled", handler)
}

func (consumer *Consumer) OnUnhandled(handler func()) {
	consumer.On("unhandled", handler)
}

func (consumer *Consumer) OnStats(handler func(stats Stats)) {
	consumer.On("stats", handler)
}

// Receive negotiates the consumer on a receiving transport, enables it on the server and
// returns the track carrying its media.
func (consumer *Consumer) Receive(ctx context.Context, transport *Transport) (engine.Track, error) {
	if transport == nil {
		return nil, NewTypeError("missing transport")
	}

	consumer.logger.V(1).Info("receive()", "transportId", transport.Id())

	consumer.locker.Lock()
	if consumer.closed {
		consumer.locker.Unlock()
		return nil, NewInvalidStateError("consumer closed")
	}
	if !consumer.supported {
		consumer.locker.Unlock()
		return nil, NewUnsupportedError("unsupported codecs")
	}
	if consumer.transport != nil || consumer.receiving {
		consumer.locker.Unlock()
		return nil, NewInvalidStateError("consumer already handled by a transport")
	}
	consumer.receiving = true
	consumer.locker.Unlock()

	track, response, err := transport.addConsumer(ctx, consumer)
	if err == nil {
		err = transport.attachConsumer(consumer, track)
	}

	consumer.locker.Lock()
	consumer.receiving = false
	consumer.locker.Unlock()

	if err != nil {
		return nil, err
	}

	if response.Paused {
		consumer.remotePause(nil)
	}
	if len(response.PreferredProfile) > 0 {
		consumer.remoteSetPreferredProfile(response.PreferredProfile)
	}
	if len(response.EffectiveProfile) > 0 {
		consumer.remoteEffectiveProfileChanged(response.EffectiveProfile)
	}

	consumer.SafeEmit("handled")
	consumer.observer.SafeEmit("handled")

	return track, nil
}

// attach reports false if the consumer was closed meanwhile, and the stats interval to
// enable if stats were enabled before the consumer was received.
func (consumer *Consumer) attach(transport *Transport, track engine.Track) (bool, time.Duration) {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	if consumer.closed {
		return false, 0
	}
	consumer.transport = transport
	consumer.track = track
	track.SetEnabled(!consumer.locallyPaused && !consumer.remotelyPaused)

	if consumer.statsEnabled {
		return true, consumer.statsInterval
	}
	return true, 0
}

// Close stops receiving the consumer. The server is not told, the consumer only goes away
// there when its producer does.
func (consumer *Consumer) Close() {
	consumer.close(OriginatorLocal, nil)
}

func (consumer *Consumer) remoteClose(appData interface{}) {
	consumer.close(OriginatorRemote, appData)
}

func (consumer *Consumer) close(originator Originator, appData interface{}) {
	consumer.locker.Lock()
	if consumer.closed {
		consumer.locker.Unlock()
		return
	}
	consumer.logger.V(1).Info("close()", "originator", originator)

	consumer.closed = true
	transport := consumer.transport
	track := consumer.track
	consumer.transport = nil
	consumer.track = nil
	consumer.locker.Unlock()

	if transport != nil {
		transport.removeConsumer(consumer)
	}
	if track != nil {
		track.Stop()
	}

	consumer.Emit("@close")
	consumer.SafeEmit("close", originator, appData)
	consumer.RemoveAllListeners()

	// Emit observer event.
	consumer.observer.SafeEmit("close", originator, appData)
	consumer.observer.RemoveAllListeners()
}

// transportClosed is called when transport was closed.
func (consumer *Consumer) transportClosed() {
	consumer.locker.Lock()
	if consumer.transport == nil {
		consumer.locker.Unlock()
		return
	}
	consumer.logger.V(1).Info("transportClosed()")

	track := consumer.track
	consumer.transport = nil
	consumer.track = nil
	consumer.statsEnabled = false
	consumer.locker.Unlock()

	if track != nil {
		track.Stop()
	}

	consumer.SafeEmit("unhandled")
	consumer.observer.SafeEmit("unhandled")
}

func (consumer *Consumer) Pause(appData interface{}) error {
	consumer.locker.Lock()
	if consumer.closed {
		consumer.locker.Unlock()
		return NewInvalidStateError("consumer closed")
	}
	if consumer.locallyPaused {
		consumer.locker.Unlock()
		return nil
	}
	consumer.logger.V(1).Info("pause()")

	consumer.locallyPaused = true
	if consumer.track != nil {
		consumer.track.SetEnabled(false)
	}
	transport := consumer.transport
	consumer.locker.Unlock()

	if transport != nil {
		transport.pauseConsumer(consumer, appData)
	}

	consumer.SafeEmit("pause", OriginatorLocal, appData)
	consumer.observer.SafeEmit("pause", OriginatorLocal, appData)

	return nil
}

func (consumer *Consumer) Resume(appData interface{}) error {
	consumer.locker.Lock()
	if consumer.closed {
		consumer.locker.Unlock()
		return NewInvalidStateError("consumer closed")
	}
	if !consumer.locallyPaused {
		consumer.locker.Unlock()
		return nil
	}
	consumer.logger.V(1).Info("resume()")

	consumer.locallyPaused = false
	if consumer.track != nil && !consumer.remotelyPaused {
		consumer.track.SetEnabled(true)
	}
	transport := consumer.transport
	consumer.locker.Unlock()

	if transport != nil {
		transport.resumeConsumer(consumer, appData)
	}

	consumer.SafeEmit("resume", OriginatorLocal, appData)
	consumer.observer.SafeEmit("resume", OriginatorLocal, appData)

	return nil
}

func (consumer *Consumer) remotePause(appData interface{}) {
	consumer.locker.Lock()
	if consumer.closed || consumer.remotelyPaused {
		consumer.locker.Unlock()
		return
	}
	consumer.logger.V(1).Info("remotePause()")

	consumer.remotelyPaused = true
	if consumer.track != nil {
		consumer.track.SetEnabled(false)
	}
	consumer.locker.Unlock()

	consumer.SafeEmit("pause", OriginatorRemote, appData)
	consumer.observer.SafeEmit("pause", OriginatorRemote, appData)
}

func (consumer *Consumer) remoteResume(appData interface{}) {
	consumer.locker.Lock()
	if consumer.closed || !consumer.remotelyPaused {
		consumer.locker.Unlock()
		return
	}
	consumer.logger.V(1).Info("remoteResume()")

	consumer.remotelyPaused = false
	if consumer.track != nil && !consumer.locallyPaused {
		consumer.track.SetEnabled(true)
	}
	consumer.locker.Unlock()

	consumer.SafeEmit("resume", OriginatorRemote, appData)
	consumer.observer.SafeEmit("resume", OriginatorRemote, appData)
}

// SetPreferredProfile asks the server for a simulcast tier.
func (consumer *Consumer) SetPreferredProfile(profile ConsumerProfile) error {
	if !profile.valid() {
		return NewTypeError("invalid profile %q", profile)
	}

	consumer.locker.Lock()
	if consumer.closed {
		consumer.locker.Unlock()
		return NewInvalidStateError("consumer closed")
	}
	if profile == consumer.preferredProfile {
		consumer.locker.Unlock()
		return nil
	}
	consumer.logger.V(1).Info("setPreferredProfile()", "profile", profile)

	consumer.preferredProfile = profile
	transport := consumer.transport
	consumer.locker.Unlock()

	if transport != nil {
		transport.setConsumerPreferredProfile(consumer, profile)
	}

	return nil
}

func (consumer *Consumer) remoteSetPreferredProfile(profile ConsumerProfile) {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	if consumer.closed || profile == consumer.preferredProfile {
		return
	}
	consumer.logger.V(1).Info("remoteSetPreferredProfile()", "profile", profile)

	consumer.preferredProfile = profile
}

func (consumer *Consumer) remoteEffectiveProfileChanged(profile ConsumerProfile) {
	consumer.locker.Lock()
	if consumer.closed || profile == consumer.effectiveProfile {
		consumer.locker.Unlock()
		return
	}
	consumer.logger.V(1).Info("remoteEffectiveProfileChanged()", "profile", profile)

	consumer.effectiveProfile = profile
	consumer.locker.Unlock()

	consumer.SafeEmit("effectiveprofilechange", profile)
	consumer.observer.SafeEmit("effectiveprofilechange", profile)
}

// EnableStats asks the server for periodic "stats" events, every second if interval is 0.
func (consumer *Consumer) EnableStats(interval time.Duration) error {
	consumer.locker.Lock()
	if consumer.closed {
		consumer.locker.Unlock()
		return NewInvalidStateError("consumer closed")
	}
	consumer.logger.V(1).Info("enableStats()", "interval", interval)

	if interval <= 0 {
		interval = defaultStatsInterval
	}
	consumer.statsEnabled = true
	consumer.statsInterval = interval
	transport := consumer.transport
	consumer.locker.Unlock()

	if transport != nil {
		transport.enableConsumerStats(consumer, interval)
	}

	return nil
}

func (consumer *Consumer) DisableStats() error {
	consumer.locker.Lock()
	if consumer.closed {
		consumer.locker.Unlock()
		return NewInvalidStateError("consumer closed")
	}
	if !consumer.statsEnabled {
		consumer.locker.Unlock()
		return nil
	}
	consumer.logger.V(1).Info("disableStats()")

	consumer.statsEnabled = false
	transport := consumer.transport
	consumer.locker.Unlock()

	if transport != nil {
		transport.disableConsumerStats(consumer)
	}

	return nil
}

func (consumer *Consumer) remoteStats(stats Stats) {
	if consumer.Closed() {
		return
	}
	consumer.SafeEmit("stats", stats)
}
