// Package handler drives one engine peer connection per transport direction: it runs the
// offer/answer exchange between the engine and the synthesized remote descriptions.
package handler

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/qdgx/mediasoup-client-go/engine"
	"github.com/qdgx/mediasoup-client-go/internal/errs"
	"github.com/qdgx/mediasoup-client-go/ortc"
	"github.com/qdgx/mediasoup-client-go/remotesdp"
)

// State is the transport setup progress of a handler.
type State int

const (
	// StateIdle is the state before the first negotiation.
	StateIdle State = iota
	// StateAwaitingRemoteParameters waits for the server transport parameters.
	StateAwaitingRemoteParameters
	// StateCreated is the receiving handler state once the server transport exists but the
	// local DTLS parameters have not been sent yet.
	StateCreated
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingRemoteParameters:
		return "awaiting-remote-parameters"
	case StateCreated:
		return "created"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Listener receives the events of a handler. It is implemented by the transport owning
// the handler, which relays them to the server.
type Listener interface {
	// OnNeedCreateTransport asks the server to create the transport. Sending handlers pass
	// their local parameters, receiving handlers pass nil.
	OnNeedCreateTransport(ctx context.Context, local *remotesdp.TransportLocalParameters) (*remotesdp.TransportRemoteParameters, error)
	// OnNeedUpdateTransport sends the local parameters of a receiving handler.
	OnNeedUpdateTransport(local *remotesdp.TransportLocalParameters)
	OnConnectionStateChanged(state engine.ConnectionState)
}

type Options struct {
	Factory engine.Factory

	// Configuration of the peer connection. SdpSemantics selects the strategy.
	Configuration engine.Configuration

	ExtendedRtpCapabilities *ortc.ExtendedRtpCapabilities

	Listener Listener

	Logger logr.Logger
}

// Handler is implemented by both handler directions.
type Handler interface {
	State() State
	RestartIce(ctx context.Context, iceParameters *remotesdp.IceParameters) error
	Close()
}

// base holds the peer connection and setup state shared by both directions.
type base struct {
	mu       sync.Mutex
	pc       engine.PeerConnection
	planB    bool
	state    State
	listener Listener
	logger   logr.Logger
}

func newBase(options Options, name string) (*base, error) {
	if options.Factory == nil {
		return nil, errs.NewTypeError("missing engine factory")
	}
	if options.Listener == nil {
		return nil, errs.NewTypeError("missing handler listener")
	}
	if options.ExtendedRtpCapabilities == nil {
		return nil, errs.NewTypeError("missing extended RTP capabilities")
	}

	logger := options.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	logger = logger.WithName(name)

	config := options.Configuration
	if len(config.SdpSemantics) == 0 {
		config.SdpSemantics = engine.SdpSemanticsUnifiedPlan
	}

	pc, err := options.Factory.NewPeerConnection(config)
	if err != nil {
		return nil, err
	}

	b := &base{
		pc:       pc,
		planB:    config.SdpSemantics == engine.SdpSemanticsPlanB,
		listener: options.Listener,
		logger:   logger,
	}

	pc.OnConnectionStateChange(func(state engine.ConnectionState) {
		b.logger.V(1).Info("connection state changed", "state", state)
		b.listener.OnConnectionStateChanged(state)
	})

	return b, nil
}

func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// setState moves to state unless the handler was closed meanwhile.
func (b *base) setState(state State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateClosed {
		b.state = state
	}
}

func (b *base) checkOpen() error {
	if b.State() == StateClosed {
		return errs.NewInvalidStateError("handler closed")
	}
	return nil
}

// Close closes the peer connection. It is idempotent.
func (b *base) Close() {
	b.mu.Lock()
	if b.state == StateClosed {
		b.mu.Unlock()
		return
	}
	b.state = StateClosed
	b.mu.Unlock()

	b.logger.V(1).Info("close()")

	if err := b.pc.Close(); err != nil {
		b.logger.Error(err, "peer connection close failed")
	}
}

// localParameters extracts the DTLS parameters of the local description.
func (b *base) localParameters() (*remotesdp.TransportLocalParameters, error) {
	desc := b.pc.LocalDescription()
	if desc == nil {
		return nil, errs.NewInvalidStateError("no local description")
	}
	session, err := remotesdp.Parse(desc.SDP)
	if err != nil {
		return nil, err
	}
	dtlsParameters, err := remotesdp.ExtractDtlsParameters(session)
	if err != nil {
		return nil, err
	}
	return &remotesdp.TransportLocalParameters{DtlsParameters: dtlsParameters}, nil
}

func (b *base) setRemoteDescription(ctx context.Context, typ engine.SdpType, sdp string) error {
	return b.pc.SetRemoteDescription(ctx, engine.SessionDescription{Type: typ, SDP: sdp})
}
