package pionengine

import (
	"strings"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// LocalTrack is a track fed by the application with RTP packets. Packets written while
// the track is disabled are dropped.
type LocalTrack struct {
	*webrtc.TrackLocalStaticRTP

	mu      sync.Mutex
	enabled bool
	stopped bool
}

// NewLocalTrack creates a track sending codec, e.g. webrtc.MimeTypeOpus.
func NewLocalTrack(mimeType, id, streamID string) (*LocalTrack, error) {
	capability := webrtc.RTPCodecCapability{MimeType: mimeType}

	switch strings.ToLower(mimeType) {
	case strings.ToLower(webrtc.MimeTypeOpus):
		capability.ClockRate, capability.Channels = 48000, 2
	default:
		capability.ClockRate = 90000
	}

	track, err := webrtc.NewTrackLocalStaticRTP(capability, id, streamID)
	if err != nil {
		return nil, err
	}

	return &LocalTrack{TrackLocalStaticRTP: track, enabled: true}, nil
}

func (t *LocalTrack) Kind() string {
	return t.TrackLocalStaticRTP.Kind().String()
}

func (t *LocalTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *LocalTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *LocalTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *LocalTrack) WriteRTP(packet *rtp.Packet) error {
	t.mu.Lock()
	drop := !t.enabled || t.stopped
	t.mu.Unlock()

	if drop {
		return nil
	}
	return t.TrackLocalStaticRTP.WriteRTP(packet)
}

// RemoteTrack is a track received from the server.
type RemoteTrack struct {
	*webrtc.TrackRemote

	mu      sync.Mutex
	enabled bool
	stopped bool
}

func newRemoteTrack(track *webrtc.TrackRemote) *RemoteTrack {
	return &RemoteTrack{TrackRemote: track, enabled: true}
}

func (t *RemoteTrack) Kind() string {
	return t.TrackRemote.Kind().String()
}

func (t *RemoteTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *RemoteTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *RemoteTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// ReadPacket reads the next RTP packet, skipping packets received while disabled.
func (t *RemoteTrack) ReadPacket() (*rtp.Packet, error) {
	for {
		packet, _, err := t.TrackRemote.ReadRTP()
		if err != nil {
			return nil, err
		}
		if t.Enabled() {
			return packet, nil
		}
	}
}
