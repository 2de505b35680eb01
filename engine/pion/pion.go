// Package pionengine runs the client on top of pion/webrtc.
package pionengine

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/pion/webrtc/v4"
	"github.com/qdgx/mediasoup-client-go/engine"
	"github.com/qdgx/mediasoup-client-go/internal/errs"
)

const modulePath = "github.com/pion/webrtc/v4"

type Factory struct {
	api    *webrtc.API
	logger logr.Logger
}

// NewFactory creates a factory whose peer connections support the default pion codecs.
func NewFactory(logger logr.Logger) (*Factory, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	settingEngine := webrtc.SettingEngine{
		LoggerFactory: loggerFactory{logger: logger},
	}

	return &Factory{
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithSettingEngine(settingEngine)),
		logger: logger,
	}, nil
}

func (f *Factory) Info() engine.Info {
	info := engine.Info{Name: "pion", Version: "4.0.0"}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range buildInfo.Deps {
			if dep.Path == modulePath {
				info.Version = strings.TrimPrefix(dep.Version, "v")
			}
		}
	}

	return info
}

func (f *Factory) NewPeerConnection(config engine.Configuration) (engine.PeerConnection, error) {
	if config.SdpSemantics == engine.SdpSemanticsPlanB {
		return nil, errs.NewUnsupportedError("pion only supports unified plan")
	}

	pcConfig := webrtc.Configuration{}
	for _, server := range config.IceServers {
		pcConfig.ICEServers = append(pcConfig.ICEServers, webrtc.ICEServer{
			URLs:       server.URLs,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	if config.IceTransportPolicy == engine.IceTransportPolicyRelay {
		pcConfig.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	}

	pc, err := f.api.NewPeerConnection(pcConfig)
	if err != nil {
		return nil, err
	}

	return &PeerConnection{
		pc:           pc,
		localTracks:  map[webrtc.TrackLocal]*LocalTrack{},
		remoteTracks: map[*webrtc.TrackRemote]*RemoteTrack{},
	}, nil
}

// PeerConnection adapts a pion peer connection.
type PeerConnection struct {
	pc *webrtc.PeerConnection

	mu           sync.Mutex
	localTracks  map[webrtc.TrackLocal]*LocalTrack
	remoteTracks map[*webrtc.TrackRemote]*RemoteTrack
}

// Native returns the underlying pion peer connection.
func (p *PeerConnection) Native() *webrtc.PeerConnection {
	return p.pc
}

func (p *PeerConnection) CreateOffer(ctx context.Context, options *engine.OfferOptions) (engine.SessionDescription, error) {
	var opts *webrtc.OfferOptions
	if options != nil {
		opts = &webrtc.OfferOptions{ICERestart: options.ICERestart}
	}
	desc, err := p.pc.CreateOffer(opts)
	if err != nil {
		return engine.SessionDescription{}, err
	}
	return fromPion(desc), nil
}

func (p *PeerConnection) CreateAnswer(ctx context.Context) (engine.SessionDescription, error) {
	desc, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return engine.SessionDescription{}, err
	}
	return fromPion(desc), nil
}

func (p *PeerConnection) SetLocalDescription(ctx context.Context, desc engine.SessionDescription) error {
	return p.pc.SetLocalDescription(toPion(desc))
}

func (p *PeerConnection) SetRemoteDescription(ctx context.Context, desc engine.SessionDescription) error {
	return p.pc.SetRemoteDescription(toPion(desc))
}

func (p *PeerConnection) LocalDescription() *engine.SessionDescription {
	if desc := p.pc.LocalDescription(); desc != nil {
		d := fromPion(*desc)
		return &d
	}
	return nil
}

func (p *PeerConnection) RemoteDescription() *engine.SessionDescription {
	if desc := p.pc.RemoteDescription(); desc != nil {
		d := fromPion(*desc)
		return &d
	}
	return nil
}

func (p *PeerConnection) SignalingState() engine.SignalingState {
	return engine.SignalingState(p.pc.SignalingState().String())
}

func (p *PeerConnection) AddTrack(track engine.Track, streamID string) (engine.Transceiver, error) {
	localTrack, ok := track.(*LocalTrack)
	if !ok {
		return nil, errs.NewTypeError("track %s is not a pion local track", track.ID())
	}

	sender, err := p.pc.AddTrack(localTrack.TrackLocalStaticRTP)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.localTracks[localTrack.TrackLocalStaticRTP] = localTrack
	p.mu.Unlock()

	for _, t := range p.pc.GetTransceivers() {
		if t.Sender() == sender {
			return &transceiver{pc: p, t: t}, nil
		}
	}
	return nil, errs.NewNotFoundError("no transceiver for track %s", track.ID())
}

func (p *PeerConnection) AddTransceiver(kind string, direction engine.TransceiverDirection) (engine.Transceiver, error) {
	t, err := p.pc.AddTransceiverFromKind(webrtc.NewRTPCodecType(kind), webrtc.RTPTransceiverInit{
		Direction: webrtc.NewRTPTransceiverDirection(string(direction)),
	})
	if err != nil {
		return nil, err
	}
	return &transceiver{pc: p, t: t}, nil
}

func (p *PeerConnection) RemoveTrack(s engine.Sender) error {
	pionSender, ok := s.(*sender)
	if !ok {
		return errs.NewTypeError("not a pion sender")
	}
	return p.pc.RemoveTrack(pionSender.s)
}

func (p *PeerConnection) Transceivers() []engine.Transceiver {
	var transceivers []engine.Transceiver
	for _, t := range p.pc.GetTransceivers() {
		transceivers = append(transceivers, &transceiver{pc: p, t: t})
	}
	return transceivers
}

func (p *PeerConnection) Senders() []engine.Sender {
	var senders []engine.Sender
	for _, s := range p.pc.GetSenders() {
		senders = append(senders, &sender{pc: p, s: s})
	}
	return senders
}

func (p *PeerConnection) Receivers() []engine.Receiver {
	var receivers []engine.Receiver
	for _, r := range p.pc.GetReceivers() {
		if r.Track() != nil {
			receivers = append(receivers, &receiver{pc: p, r: r})
		}
	}
	return receivers
}

func (p *PeerConnection) OnConnectionStateChange(handler func(state engine.ConnectionState)) {
	p.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		handler(engine.ConnectionState(state.String()))
	})
}

func (p *PeerConnection) Close() error {
	return p.pc.Close()
}

func (p *PeerConnection) localTrack(track webrtc.TrackLocal) engine.Track {
	if track == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if localTrack, ok := p.localTracks[track]; ok {
		return localTrack
	}
	return nil
}

func (p *PeerConnection) remoteTrack(track *webrtc.TrackRemote) engine.Track {
	if track == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	remoteTrack, ok := p.remoteTracks[track]
	if !ok {
		remoteTrack = newRemoteTrack(track)
		p.remoteTracks[track] = remoteTrack
	}
	return remoteTrack
}

type transceiver struct {
	pc *PeerConnection
	t  *webrtc.RTPTransceiver
}

func (t *transceiver) Mid() string  { return t.t.Mid() }
func (t *transceiver) Kind() string { return t.t.Kind().String() }
func (t *transceiver) Stop() error  { return t.t.Stop() }

func (t *transceiver) Sender() engine.Sender {
	if s := t.t.Sender(); s != nil {
		return &sender{pc: t.pc, s: s}
	}
	return nil
}

func (t *transceiver) Receiver() engine.Receiver {
	if r := t.t.Receiver(); r != nil {
		return &receiver{pc: t.pc, r: r}
	}
	return nil
}

type sender struct {
	pc *PeerConnection
	s  *webrtc.RTPSender
}

func (s *sender) Track() engine.Track {
	return s.pc.localTrack(s.s.Track())
}

func (s *sender) ReplaceTrack(track engine.Track) error {
	if track == nil {
		return s.s.ReplaceTrack(nil)
	}
	localTrack, ok := track.(*LocalTrack)
	if !ok {
		return errs.NewTypeError("track %s is not a pion local track", track.ID())
	}

	s.pc.mu.Lock()
	s.pc.localTracks[localTrack.TrackLocalStaticRTP] = localTrack
	s.pc.mu.Unlock()

	return s.s.ReplaceTrack(localTrack.TrackLocalStaticRTP)
}

type receiver struct {
	pc *PeerConnection
	r  *webrtc.RTPReceiver
}

func (r *receiver) Track() engine.Track {
	return r.pc.remoteTrack(r.r.Track())
}

func fromPion(desc webrtc.SessionDescription) engine.SessionDescription {
	return engine.SessionDescription{Type: engine.SdpType(desc.Type.String()), SDP: desc.SDP}
}

func toPion(desc engine.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(string(desc.Type)), SDP: desc.SDP}
}
