// Package remotesdp synthesizes the remote session descriptions a WebRTC engine needs
// from mediasoup RTP and transport parameters, and extracts parameters back out of the
// local descriptions the engine produces.
package remotesdp

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/qdgx/mediasoup-client-go/h264"
	"github.com/qdgx/mediasoup-client-go/internal/errs"
	"github.com/qdgx/mediasoup-client-go/ortc"
)

const (
	sdpUsername = "mediasoup-client"

	// remote media is always bundled on the transport, the port is a placeholder
	mediaPort = 7
)

var (
	ErrNoTransportLocalParameters  = errs.NewInvalidStateError("no transport local parameters")
	ErrNoTransportRemoteParameters = errs.NewInvalidStateError("no transport remote parameters")
)

// RemoteSdp holds the state shared by every synthesis strategy of one transport: the
// RTP parameters per kind, the transport parameters and the session id/version.
type RemoteSdp struct {
	rtpParametersByKind map[ortc.MediaKind]*ortc.RtpParameters
	localParameters     *TransportLocalParameters
	remoteParameters    *TransportRemoteParameters
	sessionId           uint64
	sessionVersion      uint64
}

func newRemoteSdp(rtpParametersByKind map[ortc.MediaKind]*ortc.RtpParameters) *RemoteSdp {
	return &RemoteSdp{
		rtpParametersByKind: rtpParametersByKind,
		// keep it within 53 bits so every SDP stack can represent it
		sessionId: uint64(rand.Int63n(1 << 53)),
	}
}

func (r *RemoteSdp) SetTransportLocalParameters(params *TransportLocalParameters) {
	r.localParameters = params
}

func (r *RemoteSdp) SetTransportRemoteParameters(params *TransportRemoteParameters) {
	r.remoteParameters = params
}

// UpdateTransportRemoteIceParameters replaces the remote ICE parameters after an ICE restart.
func (r *RemoteSdp) UpdateTransportRemoteIceParameters(iceParameters *IceParameters) error {
	if r.remoteParameters == nil {
		return ErrNoTransportRemoteParameters
	}
	r.remoteParameters.IceParameters = iceParameters
	return nil
}

func (r *RemoteSdp) SessionId() uint64 {
	return r.sessionId
}

// SessionVersion is the version of the last synthesized description.
func (r *RemoteSdp) SessionVersion() uint64 {
	return r.sessionVersion
}

func (r *RemoteSdp) checkParameters(needLocal bool) error {
	if needLocal && (r.localParameters == nil || r.localParameters.DtlsParameters == nil) {
		return ErrNoTransportLocalParameters
	}
	if r.remoteParameters == nil ||
		r.remoteParameters.IceParameters == nil ||
		r.remoteParameters.DtlsParameters == nil ||
		len(r.remoteParameters.DtlsParameters.Fingerprints) == 0 {
		return ErrNoTransportRemoteParameters
	}
	return nil
}

func (r *RemoteSdp) rtpParameters(kind ortc.MediaKind) (*ortc.RtpParameters, error) {
	params, ok := r.rtpParametersByKind[kind]
	if !ok || params == nil {
		return nil, errs.NewUnsupportedError("no RTP parameters for kind %q", kind)
	}
	return params, nil
}

// newSession bumps the version and returns the session level part of a description.
func (r *RemoteSdp) newSession(mids []string) *sdp.SessionDescription {
	r.sessionVersion++

	session := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       sdpUsername,
			SessionID:      r.sessionId,
			SessionVersion: r.sessionVersion,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "0.0.0.0",
		},
		SessionName: "-",
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
	}

	if r.remoteParameters.IceParameters.IceLite {
		session.WithPropertyAttribute(sdp.AttrKeyICELite)
	}
	session.WithValueAttribute(sdp.AttrKeyMsidSemantic, " WMS *")
	if len(mids) > 0 {
		session.WithValueAttribute(sdp.AttrKeyGroup, "BUNDLE "+strings.Join(mids, " "))
	}

	// use the latest fingerprint
	fingerprints := r.remoteParameters.DtlsParameters.Fingerprints
	fingerprint := fingerprints[len(fingerprints)-1]
	session.WithFingerprint(fingerprint.Algorithm, fingerprint.Value)

	return session
}

func (r *RemoteSdp) newMedia(kind ortc.MediaKind, mid, setup string, direction ortc.MediaDirection) *sdp.MediaDescription {
	iceParameters := r.remoteParameters.IceParameters

	media := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:  string(kind),
			Port:   sdp.RangedPort{Value: mediaPort},
			Protos: []string{"RTP", "SAVPF"},
		},
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: "127.0.0.1"},
		},
	}

	media.WithValueAttribute(sdp.AttrKeyMID, mid)
	media.WithICECredentials(iceParameters.UsernameFragment, iceParameters.Password)

	for _, candidate := range r.remoteParameters.IceCandidates {
		media.WithValueAttribute(sdp.AttrKeyCandidate, candidateValue(candidate))
	}
	media.WithPropertyAttribute(sdp.AttrKeyEndOfCandidates)
	media.WithValueAttribute("ice-options", "renomination")
	media.WithValueAttribute(sdp.AttrKeyConnectionSetup, setup)
	media.WithPropertyAttribute(string(direction))

	return media
}

// answerSetup derives the answerer setup from the remote DTLS role. With role "auto"
// the remote side takes the opposite of the local role.
func (r *RemoteSdp) answerSetup() string {
	switch r.remoteParameters.DtlsParameters.Role {
	case DtlsRoleClient:
		return "active"
	case DtlsRoleServer:
		return "passive"
	}
	if r.localParameters != nil && r.localParameters.DtlsParameters != nil &&
		r.localParameters.DtlsParameters.Role == DtlsRoleClient {
		return "passive"
	}
	return "active"
}

// createAnswer answers every media section of a local offer.
func (r *RemoteSdp) createAnswer(local *sdp.SessionDescription) (string, error) {
	if err := r.checkParameters(true); err != nil {
		return "", err
	}

	var mids []string
	for _, localMedia := range local.MediaDescriptions {
		if mid := Mid(localMedia); len(mid) > 0 {
			mids = append(mids, mid)
		}
	}

	session := r.newSession(mids)
	setup := r.answerSetup()

	for _, localMedia := range local.MediaDescriptions {
		kind := ortc.MediaKind(localMedia.MediaName.Media)

		if kind != ortc.MediaKindAudio && kind != ortc.MediaKindVideo {
			session.WithMedia(rejectedMedia(localMedia))
			continue
		}

		params, err := r.rtpParameters(kind)
		if err != nil {
			return "", err
		}

		direction := answerDirection(Direction(localMedia))
		closed := direction == ortc.MediaDirectionInactive || localMedia.MediaName.Port.Value == 0
		media := r.newMedia(kind, Mid(localMedia), setup, direction)

		addCodecs(media, answerCodecs(params.Codecs, localMedia))

		if !closed {
			offered := offeredExtensions(localMedia)
			for _, ext := range params.HeaderExtensions {
				// don't add a header extension if not present in the offer
				if !offered[ext.Uri] {
					continue
				}
				media.WithValueAttribute(sdp.AttrKeyExtMap, fmt.Sprintf("%d %s", ext.Id, ext.Uri))
			}
		}

		media.WithPropertyAttribute(sdp.AttrKeyRTCPMux)
		media.WithPropertyAttribute(sdp.AttrKeyRTCPRsize)

		// be ready for simulcast
		if kind == ortc.MediaKindVideo {
			media.WithValueAttribute("x-google-flag", "conference")
		}

		session.WithMedia(media)
	}

	return marshal(session)
}

func answerDirection(local ortc.MediaDirection) ortc.MediaDirection {
	switch local {
	case ortc.MediaDirectionSendrecv, ortc.MediaDirectionSendonly:
		return ortc.MediaDirectionRecvonly
	default:
		return ortc.MediaDirectionInactive
	}
}

// answerCodecs narrows the H264 profile-level-id to what both sides accept.
func answerCodecs(codecs []*ortc.RtpCodecParameters, localMedia *sdp.MediaDescription) []*ortc.RtpCodecParameters {
	offeredFmtp := fmtps(localMedia)
	answered := make([]*ortc.RtpCodecParameters, 0, len(codecs))

	for _, codec := range codecs {
		offeredParams, ok := offeredFmtp[codec.PayloadType]
		if !ok || !strings.EqualFold(codec.MimeType, "video/h264") {
			answered = append(answered, codec)
			continue
		}
		profileLevelId, err := h264.GenerateProfileLevelIdForAnswer(
			h264Params(codec.Parameters), h264Params(offeredParams))
		if err != nil || len(profileLevelId) == 0 {
			answered = append(answered, codec)
			continue
		}
		c := *codec
		c.Parameters = codec.Parameters.Clone()
		if c.Parameters == nil {
			c.Parameters = ortc.RtpCodecSpecificParameters{}
		}
		c.Parameters["profile-level-id"] = profileLevelId
		answered = append(answered, &c)
	}

	return answered
}

func h264Params(params ortc.RtpCodecSpecificParameters) h264.Params {
	return h264.Params{
		PacketizationMode:     params.Int("packetization-mode"),
		ProfileLevelId:        params.String("profile-level-id"),
		LevelAsymmetryAllowed: params.Int("level-asymmetry-allowed"),
	}
}

func addCodecs(media *sdp.MediaDescription, codecs []*ortc.RtpCodecParameters) {
	for _, codec := range codecs {
		name := codec.Name
		if len(name) == 0 {
			name = ortc.CodecName(codec.MimeType)
		}
		media.MediaName.Formats = append(media.MediaName.Formats, fmt.Sprint(codec.PayloadType))

		rtpmap := fmt.Sprintf("%d %s/%d", codec.PayloadType, name, codec.ClockRate)
		if codec.Channels > 1 {
			rtpmap += fmt.Sprintf("/%d", codec.Channels)
		}
		media.WithValueAttribute("rtpmap", rtpmap)

		if len(codec.Parameters) > 0 {
			config := make([]string, 0, len(codec.Parameters))
			for _, key := range codec.Parameters.Keys() {
				config = append(config, key+"="+codec.Parameters.String(key))
			}
			media.WithValueAttribute("fmtp", fmt.Sprintf("%d %s", codec.PayloadType, strings.Join(config, ";")))
		}

		for _, fb := range codec.RtcpFeedback {
			value := fmt.Sprintf("%d %s", codec.PayloadType, fb.Type)
			if len(fb.Parameter) > 0 {
				value += " " + fb.Parameter
			}
			media.WithValueAttribute("rtcp-fb", value)
		}
	}
}

func addReceiveExtensions(media *sdp.MediaDescription, exts []*ortc.RtpHeaderExtensionParameters) {
	for _, ext := range exts {
		// the MID extension is never offered for receiving media
		if ext.Uri == ortc.MidHeaderExtensionUri {
			continue
		}
		media.WithValueAttribute(sdp.AttrKeyExtMap, fmt.Sprintf("%d %s", ext.Id, ext.Uri))
	}
}

func addConsumerSsrcs(media *sdp.MediaDescription, info *ConsumerInfo) {
	media.WithMediaSource(info.Ssrc, info.Cname, info.StreamId, info.TrackId)

	if info.RtxSsrc != 0 {
		media.WithMediaSource(info.RtxSsrc, info.Cname, info.StreamId, info.TrackId)
		// associate original and retransmission SSRC
		media.WithValueAttribute(sdp.AttrKeySSRCGroup, fmt.Sprintf("%s %d %d",
			sdp.SemanticTokenFlowIdentification, info.Ssrc, info.RtxSsrc))
	}
}

func rejectedMedia(localMedia *sdp.MediaDescription) *sdp.MediaDescription {
	media := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   localMedia.MediaName.Media,
			Port:    sdp.RangedPort{Value: 0},
			Protos:  localMedia.MediaName.Protos,
			Formats: localMedia.MediaName.Formats,
		},
	}
	if mid := Mid(localMedia); len(mid) > 0 {
		media.WithValueAttribute(sdp.AttrKeyMID, mid)
	}
	return media
}

func candidateValue(candidate IceCandidate) string {
	typ := candidate.Type
	if len(typ) == 0 {
		typ = "host"
	}
	// RTCP is always muxed so the component is always RTP (1)
	value := fmt.Sprintf("%s 1 %s %d %s %d typ %s",
		candidate.Foundation, candidate.Protocol, candidate.Priority, candidate.Ip, candidate.Port, typ)
	if len(candidate.TcpType) > 0 {
		value += " tcptype " + candidate.TcpType
	}
	return value
}

func marshal(session *sdp.SessionDescription) (string, error) {
	data, err := session.Marshal()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
