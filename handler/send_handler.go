package handler

import (
	"context"

	"github.com/google/uuid"
	"github.com/pion/sdp/v3"
	"github.com/qdgx/mediasoup-client-go/engine"
	"github.com/qdgx/mediasoup-client-go/internal/errs"
	"github.com/qdgx/mediasoup-client-go/ortc"
	"github.com/qdgx/mediasoup-client-go/remotesdp"
)

var simulcastProfiles = []string{"low", "medium", "high"}

// ProducerInfo describes a track to send.
type ProducerInfo struct {
	ID    string
	Kind  ortc.MediaKind
	Track engine.Track
	// Simulcast is the number of simulcast streams for video, 0 or 1 disables it.
	Simulcast int
}

type sendRemoteSdp interface {
	SetTransportLocalParameters(params *remotesdp.TransportLocalParameters)
	SetTransportRemoteParameters(params *remotesdp.TransportRemoteParameters)
	UpdateTransportRemoteIceParameters(iceParameters *remotesdp.IceParameters) error
	CreateAnswerSdp(local *sdp.SessionDescription) (string, error)
}

// SendHandler sends local tracks over one peer connection.
type SendHandler struct {
	*base

	rtpParametersByKind map[ortc.MediaKind]*ortc.RtpParameters
	remoteSdp           sendRemoteSdp
	streamId            string
	// ids of the tracks being sent
	trackIds map[string]bool
}

func NewSendHandler(options Options) (*SendHandler, error) {
	b, err := newBase(options, "SendHandler")
	if err != nil {
		return nil, err
	}

	rtpParametersByKind := map[ortc.MediaKind]*ortc.RtpParameters{}

	for _, kind := range []ortc.MediaKind{ortc.MediaKindAudio, ortc.MediaKindVideo} {
		if ortc.CanSend(kind, options.ExtendedRtpCapabilities) {
			rtpParametersByKind[kind] = ortc.GetSendingRtpParameters(kind, options.ExtendedRtpCapabilities)
		}
	}

	handler := &SendHandler{
		base:                b,
		rtpParametersByKind: rtpParametersByKind,
		streamId:            uuid.NewString(),
		trackIds:            map[string]bool{},
	}

	if b.planB {
		handler.remoteSdp = remotesdp.NewPlanBSendSdp(rtpParametersByKind)
	} else {
		handler.remoteSdp = remotesdp.NewUnifiedPlanSendSdp(rtpParametersByKind)
	}

	b.logger.V(1).Info("constructor()", "planB", b.planB)

	return handler, nil
}

// AddProducer attaches the track, negotiates it and returns its sending parameters.
func (h *SendHandler) AddProducer(ctx context.Context, info ProducerInfo) (rtpParameters *ortc.RtpParameters, err error) {
	h.logger.V(1).Info("addProducer()", "id", info.ID, "kind", info.Kind, "track", info.Track.ID())

	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	if h.trackIds[info.Track.ID()] {
		return nil, errs.NewInvalidStateError("track %q already added", info.Track.ID())
	}
	params, ok := h.rtpParametersByKind[info.Kind]
	if !ok {
		return nil, errs.NewUnsupportedError("cannot send %s", info.Kind)
	}

	transceiver, err := h.pc.AddTrack(info.Track, h.streamId)
	if err != nil {
		return nil, err
	}
	h.trackIds[info.Track.ID()] = true

	defer func() {
		if err == nil {
			return
		}
		// undo the attach so the track can be sent again
		delete(h.trackIds, info.Track.ID())
		if sender := transceiver.Sender(); sender != nil {
			if err := h.pc.RemoveTrack(sender); err != nil {
				h.logger.Error(err, "addProducer() | removing track failed")
			}
		}
	}()

	offer, err := h.pc.CreateOffer(ctx, nil)
	if err != nil {
		return nil, err
	}

	selector := h.trackSelector(info, transceiver)

	if info.Kind == ortc.MediaKindVideo && info.Simulcast > 1 {
		session, err := remotesdp.Parse(offer.SDP)
		if err != nil {
			return nil, err
		}
		if err := remotesdp.AddSimulcastForTrack(session, selector, info.Simulcast); err != nil {
			return nil, err
		}
		data, err := session.Marshal()
		if err != nil {
			return nil, err
		}
		offer.SDP = string(data)
	}

	if err = h.pc.SetLocalDescription(ctx, offer); err != nil {
		return nil, err
	}

	if h.State() != StateReady {
		if err = h.setupTransport(ctx); err != nil {
			return nil, err
		}
	}

	local, err := remotesdp.Parse(h.pc.LocalDescription().SDP)
	if err != nil {
		return nil, err
	}
	answer, err := h.remoteSdp.CreateAnswerSdp(local)
	if err != nil {
		return nil, err
	}
	if err = h.setRemoteDescription(ctx, engine.SdpTypeAnswer, answer); err != nil {
		return nil, err
	}

	// the mid is known once the offer is applied
	selector = h.trackSelector(info, transceiver)

	rtpParameters = params.Clone()
	if err = remotesdp.FillRtpParametersForTrack(rtpParameters, local, selector); err != nil {
		return nil, err
	}

	if len(rtpParameters.Encodings) > 1 {
		for i := range rtpParameters.Encodings {
			if i < len(simulcastProfiles) {
				rtpParameters.Encodings[i].Profile = simulcastProfiles[i]
			}
		}
	}

	return rtpParameters, nil
}

// RemoveProducer detaches the track and renegotiates.
func (h *SendHandler) RemoveProducer(ctx context.Context, track engine.Track) error {
	h.logger.V(1).Info("removeProducer()", "track", track.ID())

	if err := h.checkOpen(); err != nil {
		return err
	}

	sender := h.findSender(track.ID())
	if sender == nil {
		return errs.NewNotFoundError("sender for track %q not found", track.ID())
	}
	if err := h.pc.RemoveTrack(sender); err != nil {
		return err
	}
	delete(h.trackIds, track.ID())

	offer, err := h.pc.CreateOffer(ctx, nil)
	if err == nil {
		err = h.pc.SetLocalDescription(ctx, offer)
	}
	if err != nil {
		// engines may refuse to offer without any sending track
		if len(h.trackIds) == 0 {
			h.logger.Info("removeProducer() | ignoring expected error due to no sending tracks", "err", err)
			return nil
		}
		return err
	}

	if h.pc.SignalingState() == engine.SignalingStateStable {
		return nil
	}

	return h.completeAnswer(ctx)
}

// ReplaceProducerTrack swaps the track of a sender without renegotiation.
func (h *SendHandler) ReplaceProducerTrack(ctx context.Context, oldTrack, newTrack engine.Track) error {
	h.logger.V(1).Info("replaceProducerTrack()", "old", oldTrack.ID(), "new", newTrack.ID())

	if err := h.checkOpen(); err != nil {
		return err
	}
	if oldTrack.ID() != newTrack.ID() && h.trackIds[newTrack.ID()] {
		return errs.NewInvalidStateError("track %q already added", newTrack.ID())
	}

	sender := h.findSender(oldTrack.ID())
	if sender == nil {
		return errs.NewNotFoundError("sender for track %q not found", oldTrack.ID())
	}
	if err := sender.ReplaceTrack(newTrack); err != nil {
		return err
	}

	delete(h.trackIds, oldTrack.ID())
	h.trackIds[newTrack.ID()] = true

	return nil
}

// RestartIce applies new remote ICE parameters and renegotiates with an ICE restart.
func (h *SendHandler) RestartIce(ctx context.Context, iceParameters *remotesdp.IceParameters) error {
	h.logger.V(1).Info("restartIce()")

	if err := h.checkOpen(); err != nil {
		return err
	}
	if err := h.remoteSdp.UpdateTransportRemoteIceParameters(iceParameters); err != nil {
		return err
	}
	if h.State() != StateReady {
		return nil
	}

	offer, err := h.pc.CreateOffer(ctx, &engine.OfferOptions{ICERestart: true})
	if err != nil {
		return err
	}
	if err := h.pc.SetLocalDescription(ctx, offer); err != nil {
		return err
	}

	return h.completeAnswer(ctx)
}

func (h *SendHandler) completeAnswer(ctx context.Context) error {
	local, err := remotesdp.Parse(h.pc.LocalDescription().SDP)
	if err != nil {
		return err
	}
	answer, err := h.remoteSdp.CreateAnswerSdp(local)
	if err != nil {
		return err
	}
	return h.setRemoteDescription(ctx, engine.SdpTypeAnswer, answer)
}

// setupTransport sends the local DTLS parameters and waits for the server ones.
func (h *SendHandler) setupTransport(ctx context.Context) error {
	h.setState(StateAwaitingRemoteParameters)

	local, err := h.localParameters()
	if err != nil {
		h.setState(StateIdle)
		return err
	}
	// the server always takes the DTLS client role
	local.DtlsParameters.Role = remotesdp.DtlsRoleServer

	h.remoteSdp.SetTransportLocalParameters(local)

	remote, err := h.listener.OnNeedCreateTransport(ctx, local)
	if err != nil {
		h.setState(StateIdle)
		return err
	}
	if remote == nil {
		h.setState(StateIdle)
		return errs.NewTypeError("missing transport remote parameters")
	}

	h.remoteSdp.SetTransportRemoteParameters(remote)

	h.setState(StateReady)

	return nil
}

func (h *SendHandler) trackSelector(info ProducerInfo, transceiver engine.Transceiver) remotesdp.TrackSelector {
	if h.planB {
		return remotesdp.TrackSelector{Kind: info.Kind, TrackId: info.Track.ID()}
	}
	return remotesdp.TrackSelector{Mid: transceiver.Mid()}
}

func (h *SendHandler) findSender(trackId string) engine.Sender {
	for _, sender := range h.pc.Senders() {
		if track := sender.Track(); track != nil && track.ID() == trackId {
			return sender
		}
	}
	return nil
}
