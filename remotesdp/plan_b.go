package remotesdp

import (
	"github.com/pion/sdp/v3"
	"github.com/qdgx/mediasoup-client-go/internal/errs"
	"github.com/qdgx/mediasoup-client-go/ortc"
)

// PlanBSendSdp answers local offers carrying at most one audio and one video section,
// each of them bundling every track of its kind.
type PlanBSendSdp struct {
	*RemoteSdp
}

func NewPlanBSendSdp(rtpParametersByKind map[ortc.MediaKind]*ortc.RtpParameters) *PlanBSendSdp {
	return &PlanBSendSdp{RemoteSdp: newRemoteSdp(rtpParametersByKind)}
}

func (s *PlanBSendSdp) CreateAnswerSdp(local *sdp.SessionDescription) (string, error) {
	seen := map[string]bool{}
	for _, media := range local.MediaDescriptions {
		if seen[media.MediaName.Media] {
			return "", errs.NewUnsupportedError("more than one %s section in a plan-b offer", media.MediaName.Media)
		}
		seen[media.MediaName.Media] = true
	}
	return s.createAnswer(local)
}

// PlanBRecvSdp offers one media section per kind, its mid being the kind itself.
type PlanBRecvSdp struct {
	*RemoteSdp
}

func NewPlanBRecvSdp(rtpParametersByKind map[ortc.MediaKind]*ortc.RtpParameters) *PlanBRecvSdp {
	return &PlanBRecvSdp{RemoteSdp: newRemoteSdp(rtpParametersByKind)}
}

func (s *PlanBRecvSdp) CreateOfferSdp(kinds []ortc.MediaKind, consumerInfos []*ConsumerInfo) (string, error) {
	if err := s.checkParameters(false); err != nil {
		return "", err
	}

	mids := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		mids = append(mids, string(kind))
	}

	session := s.newSession(mids)

	for _, kind := range kinds {
		params, err := s.rtpParameters(kind)
		if err != nil {
			return "", err
		}

		var infos []*ConsumerInfo
		for _, info := range consumerInfos {
			if info.Kind == kind && !info.Closed {
				infos = append(infos, info)
			}
		}

		direction := ortc.MediaDirectionSendonly
		if len(infos) == 0 {
			direction = ortc.MediaDirectionInactive
		}

		media := s.newMedia(kind, string(kind), "actpass", direction)

		addCodecs(media, params.Codecs)

		if direction != ortc.MediaDirectionInactive {
			addReceiveExtensions(media, params.HeaderExtensions)
		}

		media.WithPropertyAttribute(sdp.AttrKeyRTCPMux)
		media.WithPropertyAttribute(sdp.AttrKeyRTCPRsize)

		for _, info := range infos {
			addConsumerSsrcs(media, info)
		}

		session.WithMedia(media)
	}

	return marshal(session)
}
