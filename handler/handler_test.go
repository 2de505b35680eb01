package handler

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/pion/sdp/v3"
	"github.com/qdgx/mediasoup-client-go/engine"
	"github.com/qdgx/mediasoup-client-go/engine/enginetest"
	"github.com/qdgx/mediasoup-client-go/ortc"
	"github.com/qdgx/mediasoup-client-go/remotesdp"
	"github.com/stretchr/testify/mock"
)

type mockListener struct {
	mock.Mock
}

func (l *mockListener) OnNeedCreateTransport(ctx context.Context, local *remotesdp.TransportLocalParameters) (*remotesdp.TransportRemoteParameters, error) {
	args := l.Called(local)
	remote, _ := args.Get(0).(*remotesdp.TransportRemoteParameters)
	return remote, args.Error(1)
}

func (l *mockListener) OnNeedUpdateTransport(local *remotesdp.TransportLocalParameters) {
	l.Called(local)
}

func (l *mockListener) OnConnectionStateChanged(state engine.ConnectionState) {
	l.Called(state)
}

func roomRtpCapabilities() *ortc.RtpCapabilities {
	return &ortc.RtpCapabilities{
		Codecs: []*ortc.RtpCodecCapability{
			{
				Kind:                 ortc.MediaKindAudio,
				MimeType:             "audio/opus",
				PreferredPayloadType: 100,
				ClockRate:            48000,
				Channels:             2,
				RtcpFeedback:         []ortc.RtcpFeedback{{Type: "transport-cc"}},
			},
			{
				Kind:                 ortc.MediaKindVideo,
				MimeType:             "video/VP8",
				PreferredPayloadType: 101,
				ClockRate:            90000,
				RtcpFeedback: []ortc.RtcpFeedback{
					{Type: "nack"},
					{Type: "nack", Parameter: "pli"},
					{Type: "ccm", Parameter: "fir"},
					{Type: "goog-remb"},
				},
			},
			{
				Kind:                 ortc.MediaKindVideo,
				MimeType:             "video/rtx",
				PreferredPayloadType: 102,
				ClockRate:            90000,
				Parameters:           ortc.RtpCodecSpecificParameters{"apt": 101},
			},
		},
		HeaderExtensions: []*ortc.RtpHeaderExtension{
			{Kind: ortc.MediaKindAudio, Uri: "urn:ietf:params:rtp-hdrext:ssrc-audio-level", PreferredId: 1},
			{Kind: ortc.MediaKindVideo, Uri: "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time", PreferredId: 2},
			{Uri: ortc.MidHeaderExtensionUri, PreferredId: 4},
		},
	}
}

func remoteParameters() *remotesdp.TransportRemoteParameters {
	return &remotesdp.TransportRemoteParameters{
		IceParameters: &remotesdp.IceParameters{
			UsernameFragment: "server-ufrag",
			Password:         "server-pwd",
			IceLite:          true,
		},
		IceCandidates: []remotesdp.IceCandidate{
			{Foundation: "udpcandidate", Priority: 1078862079, Ip: "10.0.0.1", Protocol: remotesdp.TransportProtocolUDP, Port: 40000},
		},
		DtlsParameters: &remotesdp.DtlsParameters{
			Role:         remotesdp.DtlsRoleAuto,
			Fingerprints: []remotesdp.DtlsFingerprint{{Algorithm: "sha-256", Value: "AA:BB:CC"}},
		},
	}
}

func extendedRtpCapabilities(t *testing.T, factory engine.Factory, semantics engine.SdpSemantics) *ortc.ExtendedRtpCapabilities {
	local, err := GetNativeRtpCapabilities(context.Background(), factory, semantics)
	if err != nil {
		t.Fatal(err)
	}
	return ortc.GetExtendedRtpCapabilities(local, roomRtpCapabilities())
}

func handlerOptions(t *testing.T, semantics engine.SdpSemantics, listener Listener) (Options, *enginetest.Factory) {
	factory := enginetest.NewFactory()

	return Options{
		Factory:                 factory,
		Configuration:           engine.Configuration{SdpSemantics: semantics},
		ExtendedRtpCapabilities: extendedRtpCapabilities(t, factory, semantics),
		Listener:                listener,
		Logger:                  logr.Discard(),
	}, factory
}

func parseSdp(t *testing.T, text string) *sdp.SessionDescription {
	session, err := remotesdp.Parse(text)
	if err != nil {
		t.Fatal(err)
	}
	return session
}

func mediaWithMid(session *sdp.SessionDescription, mid string) *sdp.MediaDescription {
	for _, media := range session.MediaDescriptions {
		if remotesdp.Mid(media) == mid {
			return media
		}
	}
	return nil
}
