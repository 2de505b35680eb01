// Package enginetest provides an in-memory WebRTC engine producing real session
// descriptions, for testing handlers and everything built on them without media.
package enginetest

import (
	"sync"

	"github.com/qdgx/mediasoup-client-go/engine"
)

// Codec is a codec the engine supports. A non zero RtxPayloadType adds a RTX codec.
type Codec struct {
	Kind           string
	Name           string
	PayloadType    uint8
	ClockRate      uint32
	Channels       uint8
	Fmtp           string
	RtcpFeedback   []string
	RtxPayloadType uint8
}

type HeaderExtension struct {
	Kind string
	Id   int
	Uri  string
}

var DefaultCodecs = []Codec{
	{
		Kind:         "audio",
		Name:         "opus",
		PayloadType:  111,
		ClockRate:    48000,
		Channels:     2,
		Fmtp:         "minptime=10;useinbandfec=1",
		RtcpFeedback: []string{"transport-cc"},
	},
	{
		Kind:           "video",
		Name:           "VP8",
		PayloadType:    96,
		ClockRate:      90000,
		RtcpFeedback:   []string{"goog-remb", "transport-cc", "ccm fir", "nack", "nack pli"},
		RtxPayloadType: 97,
	},
	{
		Kind:           "video",
		Name:           "H264",
		PayloadType:    102,
		ClockRate:      90000,
		Fmtp:           "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
		RtcpFeedback:   []string{"goog-remb", "transport-cc", "ccm fir", "nack", "nack pli"},
		RtxPayloadType: 103,
	},
}

var DefaultHeaderExtensions = []HeaderExtension{
	{Kind: "audio", Id: 1, Uri: "urn:ietf:params:rtp-hdrext:ssrc-audio-level"},
	{Kind: "audio", Id: 2, Uri: "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time"},
	{Kind: "audio", Id: 3, Uri: "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01"},
	{Kind: "audio", Id: 4, Uri: "urn:ietf:params:rtp-hdrext:sdes:mid"},
	{Kind: "video", Id: 2, Uri: "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time"},
	{Kind: "video", Id: 3, Uri: "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01"},
	{Kind: "video", Id: 4, Uri: "urn:ietf:params:rtp-hdrext:sdes:mid"},
	{Kind: "video", Id: 13, Uri: "urn:3gpp:video-orientation"},
}

// Factory creates in-memory peer connections and remembers them for inspection. The
// generated descriptions look like the ones of libwebrtc, which Info reports by default.
type Factory struct {
	EngineInfo       engine.Info
	Codecs           []Codec
	HeaderExtensions []HeaderExtension

	mu              sync.Mutex
	peerConnections []*PeerConnection
}

func NewFactory() *Factory {
	return &Factory{
		EngineInfo:       engine.Info{Name: "libwebrtc", Version: "72.0.0"},
		Codecs:           DefaultCodecs,
		HeaderExtensions: DefaultHeaderExtensions,
	}
}

func (f *Factory) Info() engine.Info {
	return f.EngineInfo
}

func (f *Factory) NewPeerConnection(config engine.Configuration) (engine.PeerConnection, error) {
	pc := newPeerConnection(config, f.Codecs, f.HeaderExtensions)

	f.mu.Lock()
	f.peerConnections = append(f.peerConnections, pc)
	f.mu.Unlock()

	return pc, nil
}

// PeerConnections returns every peer connection created so far.
func (f *Factory) PeerConnections() []*PeerConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*PeerConnection(nil), f.peerConnections...)
}

// Last returns the last created peer connection, or nil.
func (f *Factory) Last() *PeerConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.peerConnections) == 0 {
		return nil
	}
	return f.peerConnections[len(f.peerConnections)-1]
}
