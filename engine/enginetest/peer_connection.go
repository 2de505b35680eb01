package enginetest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	mrand "math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/sdp/v3"
	"github.com/qdgx/mediasoup-client-go/engine"
)

// Op names a peer connection operation whose next call can be made to fail.
type Op string

const (
	OpCreateOffer          Op = "CreateOffer"
	OpCreateAnswer         Op = "CreateAnswer"
	OpSetLocalDescription  Op = "SetLocalDescription"
	OpSetRemoteDescription Op = "SetRemoteDescription"
	OpAddTrack             Op = "AddTrack"
)

var ErrClosed = errors.New("peer connection closed")

type sender struct {
	pc    *PeerConnection
	kind  string
	track engine.Track
}

func (s *sender) Track() engine.Track {
	s.pc.mu.Lock()
	defer s.pc.mu.Unlock()
	return s.track
}

func (s *sender) ReplaceTrack(track engine.Track) error {
	s.pc.mu.Lock()
	defer s.pc.mu.Unlock()

	if s.pc.closed {
		return ErrClosed
	}
	if track != nil && track.Kind() != s.kind {
		return fmt.Errorf("cannot replace a %s track with a %s one", s.kind, track.Kind())
	}
	s.track = track
	return nil
}

type receiver struct {
	pc    *PeerConnection
	track engine.Track
}

func (r *receiver) Track() engine.Track {
	r.pc.mu.Lock()
	defer r.pc.mu.Unlock()
	return r.track
}

type transceiver struct {
	pc        *PeerConnection
	mid       string
	kind      string
	direction engine.TransceiverDirection
	sender    *sender
	receiver  *receiver
	streamID  string
	ssrc      uint32
	rtxSsrc   uint32
	// created by a remote plan-b offer
	remote  bool
	stopped bool
}

func (t *transceiver) Mid() string {
	t.pc.mu.Lock()
	defer t.pc.mu.Unlock()
	return t.mid
}

func (t *transceiver) Kind() string         { return t.kind }
func (t *transceiver) Sender() engine.Sender { return t.sender }

func (t *transceiver) Receiver() engine.Receiver { return t.receiver }

func (t *transceiver) Stop() error {
	t.pc.mu.Lock()
	defer t.pc.mu.Unlock()
	t.stopped = true
	t.direction = engine.TransceiverDirectionInactive
	return nil
}

// PeerConnection is an in-memory peer connection. It negotiates like a real engine,
// creating and applying session descriptions, but never sends media.
type PeerConnection struct {
	mu               sync.Mutex
	config           engine.Configuration
	codecs           []Codec
	headerExtensions []HeaderExtension

	iceUfrag    string
	icePwd      string
	fingerprint string
	cname       string
	sessionId   uint64
	version     uint64
	nextMid     int

	transceivers      []*transceiver
	signalingState    engine.SignalingState
	local             *engine.SessionDescription
	remote            *engine.SessionDescription
	remoteHistory     []engine.SessionDescription
	failures          map[Op]error
	onConnectionState func(engine.ConnectionState)
	closed            bool
}

func newPeerConnection(config engine.Configuration, codecs []Codec, exts []HeaderExtension) *PeerConnection {
	if len(config.SdpSemantics) == 0 {
		config.SdpSemantics = engine.SdpSemanticsUnifiedPlan
	}
	pc := &PeerConnection{
		config:           config,
		codecs:           codecs,
		headerExtensions: exts,
		fingerprint:      randomFingerprint(),
		cname:            randomString(8),
		sessionId:        uint64(mrand.Int63()),
		signalingState:   engine.SignalingStateStable,
		failures:         map[Op]error{},
	}
	pc.iceUfrag, pc.icePwd = randomString(4), randomString(22)
	return pc
}

func (pc *PeerConnection) planB() bool {
	return pc.config.SdpSemantics == engine.SdpSemanticsPlanB
}

// FailNext makes the next call of op return err.
func (pc *PeerConnection) FailNext(op Op, err error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.failures[op] = err
}

func (pc *PeerConnection) failure(op Op) error {
	if pc.closed {
		return ErrClosed
	}
	if err, ok := pc.failures[op]; ok {
		delete(pc.failures, op)
		return err
	}
	return nil
}

// RemoteDescriptions returns every remote description applied so far.
func (pc *PeerConnection) RemoteDescriptions() []engine.SessionDescription {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return append([]engine.SessionDescription(nil), pc.remoteHistory...)
}

func (pc *PeerConnection) Configuration() engine.Configuration {
	return pc.config
}

func (pc *PeerConnection) Closed() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.closed
}

// SimulateConnectionState reports a transport connection state change.
func (pc *PeerConnection) SimulateConnectionState(state engine.ConnectionState) {
	pc.mu.Lock()
	handler := pc.onConnectionState
	pc.mu.Unlock()

	if handler != nil {
		handler(state)
	}
}

func (pc *PeerConnection) OnConnectionStateChange(handler func(state engine.ConnectionState)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onConnectionState = handler
}

func (pc *PeerConnection) CreateOffer(ctx context.Context, options *engine.OfferOptions) (engine.SessionDescription, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if err := pc.failure(OpCreateOffer); err != nil {
		return engine.SessionDescription{}, err
	}
	if options != nil && options.ICERestart {
		pc.iceUfrag, pc.icePwd = randomString(4), randomString(22)
	}

	session := pc.newSession()

	if pc.planB() {
		for _, kind := range pc.kinds() {
			var senders []*transceiver
			direction := engine.TransceiverDirectionInactive

			for _, t := range pc.transceivers {
				if t.kind != kind || t.stopped || t.remote {
					continue
				}
				if t.sender.track != nil {
					senders = append(senders, t)
				} else if t.direction == engine.TransceiverDirectionRecvonly {
					direction = engine.TransceiverDirectionRecvonly
				}
			}
			if len(senders) > 0 {
				direction = engine.TransceiverDirectionSendrecv
			}
			session.WithMedia(pc.newMedia(kind, kind, "actpass", direction, senders))
		}
	} else {
		for _, t := range pc.transceivers {
			if len(t.mid) == 0 {
				if t.stopped {
					continue
				}
				t.mid = strconv.Itoa(pc.nextMid)
				pc.nextMid++
			}
			if t.stopped {
				session.WithMedia(rejectedMedia(t.kind, t.mid))
				continue
			}
			var senders []*transceiver
			if t.sender.track != nil {
				senders = append(senders, t)
			}
			session.WithMedia(pc.newMedia(t.kind, t.mid, "actpass", t.direction, senders))
		}
	}

	bundle(session)

	return pc.marshal(engine.SdpTypeOffer, session)
}

func (pc *PeerConnection) CreateAnswer(ctx context.Context) (engine.SessionDescription, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if err := pc.failure(OpCreateAnswer); err != nil {
		return engine.SessionDescription{}, err
	}
	if pc.signalingState != engine.SignalingStateHaveRemoteOffer {
		return engine.SessionDescription{}, fmt.Errorf("cannot create an answer in signaling state %s", pc.signalingState)
	}

	remote := &sdp.SessionDescription{}
	if err := remote.Unmarshal([]byte(pc.remote.SDP)); err != nil {
		return engine.SessionDescription{}, err
	}

	session := pc.newSession()

	for _, remoteMedia := range remote.MediaDescriptions {
		mid, _ := remoteMedia.Attribute(sdp.AttrKeyMID)

		if remoteMedia.MediaName.Port.Value == 0 {
			session.WithMedia(rejectedMedia(remoteMedia.MediaName.Media, mid))
			continue
		}

		setup := "active"
		if value, _ := remoteMedia.Attribute(sdp.AttrKeyConnectionSetup); value == "active" {
			setup = "passive"
		}

		media := pc.newMedia(remoteMedia.MediaName.Media, mid, setup, answerDirection(remoteMedia), nil)
		pc.answerCodecs(media, remoteMedia)
		session.WithMedia(media)
	}

	bundle(session)

	return pc.marshal(engine.SdpTypeAnswer, session)
}

func (pc *PeerConnection) SetLocalDescription(ctx context.Context, desc engine.SessionDescription) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if err := pc.failure(OpSetLocalDescription); err != nil {
		return err
	}
	if _, err := parse(desc.SDP); err != nil {
		return err
	}

	switch {
	case desc.Type == engine.SdpTypeOffer &&
		(pc.signalingState == engine.SignalingStateStable || pc.signalingState == engine.SignalingStateHaveLocalOffer):
		pc.signalingState = engine.SignalingStateHaveLocalOffer
	case desc.Type == engine.SdpTypeAnswer && pc.signalingState == engine.SignalingStateHaveRemoteOffer:
		pc.signalingState = engine.SignalingStateStable
	default:
		return fmt.Errorf("cannot set local %s in signaling state %s", desc.Type, pc.signalingState)
	}

	pc.local = &desc
	return nil
}

func (pc *PeerConnection) SetRemoteDescription(ctx context.Context, desc engine.SessionDescription) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if err := pc.failure(OpSetRemoteDescription); err != nil {
		return err
	}
	session, err := parse(desc.SDP)
	if err != nil {
		return err
	}

	switch {
	case desc.Type == engine.SdpTypeAnswer && pc.signalingState == engine.SignalingStateHaveLocalOffer:
		if err := pc.checkAnswer(session); err != nil {
			return err
		}
		pc.signalingState = engine.SignalingStateStable
	case desc.Type == engine.SdpTypeOffer && pc.signalingState == engine.SignalingStateStable:
		pc.applyRemoteOffer(session)
		pc.signalingState = engine.SignalingStateHaveRemoteOffer
	default:
		return fmt.Errorf("cannot set remote %s in signaling state %s", desc.Type, pc.signalingState)
	}

	pc.remote = &desc
	pc.remoteHistory = append(pc.remoteHistory, desc)
	return nil
}

func (pc *PeerConnection) LocalDescription() *engine.SessionDescription {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.local
}

func (pc *PeerConnection) RemoteDescription() *engine.SessionDescription {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.remote
}

func (pc *PeerConnection) SignalingState() engine.SignalingState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.signalingState
}

func (pc *PeerConnection) AddTrack(track engine.Track, streamID string) (engine.Transceiver, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if err := pc.failure(OpAddTrack); err != nil {
		return nil, err
	}
	for _, t := range pc.transceivers {
		if !t.stopped && t.sender.track != nil && t.sender.track.ID() == track.ID() {
			return nil, fmt.Errorf("track %s already added", track.ID())
		}
	}

	t := pc.newTransceiver(track.Kind(), engine.TransceiverDirectionSendrecv)
	t.sender.track = track
	t.streamID = streamID
	t.ssrc = mrand.Uint32()
	if pc.hasRtx(t.kind) {
		t.rtxSsrc = mrand.Uint32()
	}
	if pc.planB() {
		t.mid = t.kind
	}

	return t, nil
}

func (pc *PeerConnection) AddTransceiver(kind string, direction engine.TransceiverDirection) (engine.Transceiver, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.closed {
		return nil, ErrClosed
	}
	t := pc.newTransceiver(kind, direction)
	if pc.planB() {
		t.mid = kind
	}
	return t, nil
}

func (pc *PeerConnection) RemoveTrack(s engine.Sender) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.closed {
		return ErrClosed
	}
	for _, t := range pc.transceivers {
		if engine.Sender(t.sender) != s || t.stopped {
			continue
		}
		t.sender.track = nil
		switch {
		case pc.planB():
			t.stopped = true
		case t.direction == engine.TransceiverDirectionSendrecv:
			t.direction = engine.TransceiverDirectionRecvonly
		case t.direction == engine.TransceiverDirectionSendonly:
			t.direction = engine.TransceiverDirectionInactive
		}
		return nil
	}
	return errors.New("sender not found")
}

func (pc *PeerConnection) Transceivers() []engine.Transceiver {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	transceivers := make([]engine.Transceiver, 0, len(pc.transceivers))
	for _, t := range pc.transceivers {
		transceivers = append(transceivers, t)
	}
	return transceivers
}

func (pc *PeerConnection) Senders() []engine.Sender {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	var senders []engine.Sender
	for _, t := range pc.transceivers {
		if !t.stopped && !t.remote {
			senders = append(senders, t.sender)
		}
	}
	return senders
}

func (pc *PeerConnection) Receivers() []engine.Receiver {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	var receivers []engine.Receiver
	for _, t := range pc.transceivers {
		if !t.stopped && t.receiver.track != nil {
			receivers = append(receivers, t.receiver)
		}
	}
	return receivers
}

func (pc *PeerConnection) Close() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.closed {
		return nil
	}
	pc.closed = true
	pc.signalingState = engine.SignalingStateClosed

	for _, t := range pc.transceivers {
		if t.receiver.track != nil {
			t.receiver.track.Stop()
		}
	}
	return nil
}

func (pc *PeerConnection) newTransceiver(kind string, direction engine.TransceiverDirection) *transceiver {
	t := &transceiver{
		pc:        pc,
		kind:      kind,
		direction: direction,
		sender:    &sender{pc: pc, kind: kind},
		receiver:  &receiver{pc: pc},
	}
	pc.transceivers = append(pc.transceivers, t)
	return t
}

// kinds returns the media kinds of the plan-b sections in order of appearance.
func (pc *PeerConnection) kinds() []string {
	var kinds []string
	seen := map[string]bool{}

	for _, t := range pc.transceivers {
		if !seen[t.kind] {
			seen[t.kind] = true
			kinds = append(kinds, t.kind)
		}
	}
	return kinds
}

func (pc *PeerConnection) hasRtx(kind string) bool {
	for _, codec := range pc.codecs {
		if codec.Kind == kind && codec.RtxPayloadType > 0 {
			return true
		}
	}
	return false
}

func (pc *PeerConnection) checkAnswer(answer *sdp.SessionDescription) error {
	local, err := parse(pc.local.SDP)
	if err != nil {
		return err
	}
	if len(answer.MediaDescriptions) != len(local.MediaDescriptions) {
		return fmt.Errorf("answer has %d media sections, offer has %d",
			len(answer.MediaDescriptions), len(local.MediaDescriptions))
	}
	for i, media := range answer.MediaDescriptions {
		localMid, _ := local.MediaDescriptions[i].Attribute(sdp.AttrKeyMID)
		mid, _ := media.Attribute(sdp.AttrKeyMID)
		if mid != localMid {
			return fmt.Errorf("answer media section %d has mid %q, offer has %q", i, mid, localMid)
		}
	}
	return nil
}

func (pc *PeerConnection) applyRemoteOffer(session *sdp.SessionDescription) {
	for _, media := range session.MediaDescriptions {
		kind := media.MediaName.Media
		mid, _ := media.Attribute(sdp.AttrKeyMID)

		if pc.planB() {
			pc.applyPlanBSection(kind, media)
			continue
		}

		var t *transceiver
		for _, candidate := range pc.transceivers {
			if candidate.mid == mid {
				t = candidate
				break
			}
		}
		if t == nil {
			t = pc.newTransceiver(kind, engine.TransceiverDirectionRecvonly)
			t.mid = mid
		}

		if msid, ok := media.Attribute(sdp.AttrKeyMsid); ok {
			fields := strings.Fields(msid)
			if len(fields) == 2 && (t.receiver.track == nil || t.receiver.track.ID() != fields[1]) {
				t.receiver.track = NewTrack(kind, fields[1])
			}
		}
	}
}

func (pc *PeerConnection) applyPlanBSection(kind string, media *sdp.MediaDescription) {
	var trackIds []string
	seen := map[string]bool{}

	for _, attr := range media.Attributes {
		if attr.Key != sdp.AttrKeySSRC {
			continue
		}
		parts := strings.SplitN(attr.Value, " ", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[1], "msid:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(parts[1], "msid:"))
		if len(fields) == 2 && !seen[fields[1]] {
			seen[fields[1]] = true
			trackIds = append(trackIds, fields[1])
		}
	}

	existing := map[string]bool{}

	for _, t := range pc.transceivers {
		if !t.remote || t.kind != kind || t.stopped {
			continue
		}
		if !seen[t.receiver.track.ID()] {
			t.receiver.track.Stop()
			t.stopped = true
			continue
		}
		existing[t.receiver.track.ID()] = true
	}

	for _, trackId := range trackIds {
		if existing[trackId] {
			continue
		}
		t := pc.newTransceiver(kind, engine.TransceiverDirectionRecvonly)
		t.mid = kind
		t.remote = true
		t.receiver.track = NewTrack(kind, trackId)
	}
}

func (pc *PeerConnection) newSession() *sdp.SessionDescription {
	pc.version++

	return &sdp.SessionDescription{
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      pc.sessionId,
			SessionVersion: pc.version,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "127.0.0.1",
		},
		SessionName:      "-",
		TimeDescriptions: []sdp.TimeDescription{{}},
	}
}

func (pc *PeerConnection) newMedia(kind, mid, setup string, direction engine.TransceiverDirection, senders []*transceiver) *sdp.MediaDescription {
	media := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:  kind,
			Port:   sdp.RangedPort{Value: 9},
			Protos: []string{"UDP", "TLS", "RTP", "SAVPF"},
		},
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: "0.0.0.0"},
		},
	}

	media.WithICECredentials(pc.iceUfrag, pc.icePwd)
	media.WithFingerprint("sha-256", pc.fingerprint)
	media.WithValueAttribute(sdp.AttrKeyConnectionSetup, setup)
	media.WithValueAttribute(sdp.AttrKeyMID, mid)
	media.WithPropertyAttribute(string(direction))
	media.WithPropertyAttribute(sdp.AttrKeyRTCPMux)
	media.WithPropertyAttribute(sdp.AttrKeyRTCPRsize)

	// answers fill codecs and extensions from the offer
	if senders == nil && setup != "actpass" {
		return media
	}

	for _, ext := range pc.headerExtensions {
		if ext.Kind == kind {
			media.WithValueAttribute(sdp.AttrKeyExtMap, fmt.Sprintf("%d %s", ext.Id, ext.Uri))
		}
	}

	for _, codec := range pc.codecs {
		if codec.Kind != kind {
			continue
		}
		var channels uint16
		if codec.Channels > 1 {
			channels = uint16(codec.Channels)
		}
		media.WithCodec(codec.PayloadType, codec.Name, codec.ClockRate, channels, codec.Fmtp)
		for _, fb := range codec.RtcpFeedback {
			media.WithValueAttribute("rtcp-fb", fmt.Sprintf("%d %s", codec.PayloadType, fb))
		}
		if codec.RtxPayloadType > 0 {
			media.WithCodec(codec.RtxPayloadType, "rtx", codec.ClockRate, 0, fmt.Sprintf("apt=%d", codec.PayloadType))
		}
	}

	for _, t := range senders {
		track := t.sender.track
		if !pc.planB() {
			media.WithValueAttribute(sdp.AttrKeyMsid, fmt.Sprintf("%s %s", t.streamID, track.ID()))
		}
		if t.rtxSsrc != 0 {
			media.WithValueAttribute(sdp.AttrKeySSRCGroup, fmt.Sprintf("%s %d %d",
				sdp.SemanticTokenFlowIdentification, t.ssrc, t.rtxSsrc))
		}
		for _, ssrc := range []uint32{t.ssrc, t.rtxSsrc} {
			if ssrc == 0 {
				continue
			}
			media.WithValueAttribute(sdp.AttrKeySSRC, fmt.Sprintf("%d cname:%s", ssrc, pc.cname))
			media.WithValueAttribute(sdp.AttrKeySSRC, fmt.Sprintf("%d msid:%s %s", ssrc, t.streamID, track.ID()))
		}
	}

	return media
}

// answerCodecs accepts the offered codecs and header extensions this engine supports.
func (pc *PeerConnection) answerCodecs(media, offered *sdp.MediaDescription) {
	kind := media.MediaName.Media
	supported := map[string]bool{"rtx": true}
	for _, codec := range pc.codecs {
		if codec.Kind == kind {
			supported[strings.ToLower(codec.Name)] = true
		}
	}
	knownExts := map[string]bool{}
	for _, ext := range pc.headerExtensions {
		if ext.Kind == kind {
			knownExts[ext.Uri] = true
		}
	}

	accepted := map[string]bool{}

	for _, attr := range offered.Attributes {
		if attr.Key != "rtpmap" {
			continue
		}
		fields := strings.Fields(attr.Value)
		if len(fields) == 2 && supported[strings.ToLower(strings.Split(fields[1], "/")[0])] {
			accepted[fields[0]] = true
			media.MediaName.Formats = append(media.MediaName.Formats, fields[0])
		}
	}

	for _, attr := range offered.Attributes {
		switch attr.Key {
		case "rtpmap", "fmtp", "rtcp-fb":
			if accepted[strings.SplitN(attr.Value, " ", 2)[0]] {
				media.Attributes = append(media.Attributes, attr)
			}
		case sdp.AttrKeyExtMap:
			fields := strings.Fields(attr.Value)
			if len(fields) >= 2 && knownExts[fields[1]] {
				media.Attributes = append(media.Attributes, attr)
			}
		}
	}
}

func (pc *PeerConnection) marshal(typ engine.SdpType, session *sdp.SessionDescription) (engine.SessionDescription, error) {
	data, err := session.Marshal()
	if err != nil {
		return engine.SessionDescription{}, err
	}
	return engine.SessionDescription{Type: typ, SDP: string(data)}, nil
}

func answerDirection(offered *sdp.MediaDescription) engine.TransceiverDirection {
	for _, attr := range offered.Attributes {
		switch attr.Key {
		case sdp.AttrKeySendOnly, sdp.AttrKeySendRecv:
			return engine.TransceiverDirectionRecvonly
		case sdp.AttrKeyRecvOnly, sdp.AttrKeyInactive:
			return engine.TransceiverDirectionInactive
		}
	}
	return engine.TransceiverDirectionRecvonly
}

func bundle(session *sdp.SessionDescription) {
	var mids []string
	for _, media := range session.MediaDescriptions {
		if media.MediaName.Port.Value == 0 {
			continue
		}
		if mid, ok := media.Attribute(sdp.AttrKeyMID); ok {
			mids = append(mids, mid)
		}
	}
	if len(mids) > 0 {
		session.WithValueAttribute(sdp.AttrKeyGroup, "BUNDLE "+strings.Join(mids, " "))
	}
	session.WithValueAttribute(sdp.AttrKeyMsidSemantic, " WMS")
}

func rejectedMedia(kind, mid string) *sdp.MediaDescription {
	media := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   kind,
			Port:    sdp.RangedPort{Value: 0},
			Protos:  []string{"UDP", "TLS", "RTP", "SAVPF"},
			Formats: []string{"0"},
		},
	}
	media.WithValueAttribute(sdp.AttrKeyMID, mid)
	media.WithPropertyAttribute(sdp.AttrKeyInactive)
	return media
}

func parse(text string) (*sdp.SessionDescription, error) {
	session := &sdp.SessionDescription{}
	if err := session.Unmarshal([]byte(text)); err != nil {
		return nil, err
	}
	return session, nil
}

func randomFingerprint() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)

	parts := make([]string, len(buf))
	for i, b := range buf {
		parts[i] = strings.ToUpper(hex.EncodeToString([]byte{b}))
	}
	return strings.Join(parts, ":")
}

func randomString(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
