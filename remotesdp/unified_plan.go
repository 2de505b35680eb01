package remotesdp

import (
	"fmt"

	"github.com/pion/sdp/v3"
	"github.com/qdgx/mediasoup-client-go/ortc"
)

// UnifiedPlanSendSdp answers local offers of a sending transport, one media section
// per local transceiver.
type UnifiedPlanSendSdp struct {
	*RemoteSdp
}

func NewUnifiedPlanSendSdp(rtpParametersByKind map[ortc.MediaKind]*ortc.RtpParameters) *UnifiedPlanSendSdp {
	return &UnifiedPlanSendSdp{RemoteSdp: newRemoteSdp(rtpParametersByKind)}
}

func (s *UnifiedPlanSendSdp) CreateAnswerSdp(local *sdp.SessionDescription) (string, error) {
	return s.createAnswer(local)
}

// UnifiedPlanRecvSdp offers one media section per consumer to a receiving transport.
// Closed consumers keep their (inactive) section so mids are never reused.
type UnifiedPlanRecvSdp struct {
	*RemoteSdp
}

func NewUnifiedPlanRecvSdp(rtpParametersByKind map[ortc.MediaKind]*ortc.RtpParameters) *UnifiedPlanRecvSdp {
	return &UnifiedPlanRecvSdp{RemoteSdp: newRemoteSdp(rtpParametersByKind)}
}

func (s *UnifiedPlanRecvSdp) CreateOfferSdp(consumerInfos []*ConsumerInfo) (string, error) {
	if err := s.checkParameters(false); err != nil {
		return "", err
	}

	mids := make([]string, 0, len(consumerInfos))
	for _, info := range consumerInfos {
		mids = append(mids, info.Mid)
	}

	session := s.newSession(mids)

	for _, info := range consumerInfos {
		params, err := s.rtpParameters(info.Kind)
		if err != nil {
			return "", err
		}

		direction := ortc.MediaDirectionSendonly
		if info.Closed {
			direction = ortc.MediaDirectionInactive
		}

		media := s.newMedia(info.Kind, info.Mid, "actpass", direction)

		addCodecs(media, params.Codecs)

		// engines reject extensions on inactive sections
		if !info.Closed {
			addReceiveExtensions(media, params.HeaderExtensions)
		}

		media.WithPropertyAttribute(sdp.AttrKeyRTCPMux)
		media.WithPropertyAttribute(sdp.AttrKeyRTCPRsize)

		if !info.Closed {
			media.WithValueAttribute(sdp.AttrKeyMsid, fmt.Sprintf("%s %s", info.StreamId, info.TrackId))
			addConsumerSsrcs(media, info)
		}

		session.WithMedia(media)
	}

	return marshal(session)
}
