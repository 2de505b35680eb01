package handler

import (
	"context"
	"fmt"

	"github.com/qdgx/mediasoup-client-go/engine"
	"github.com/qdgx/mediasoup-client-go/internal/errs"
	"github.com/qdgx/mediasoup-client-go/ortc"
	"github.com/qdgx/mediasoup-client-go/remotesdp"
)

// ConsumerInfo describes a remote stream to receive.
type ConsumerInfo struct {
	ID            string
	Kind          ortc.MediaKind
	RtpParameters *ortc.RtpParameters
}

type recvRemoteSdp interface {
	SetTransportLocalParameters(params *remotesdp.TransportLocalParameters)
	SetTransportRemoteParameters(params *remotesdp.TransportRemoteParameters)
	UpdateTransportRemoteIceParameters(iceParameters *remotesdp.IceParameters) error
}

// RecvHandler receives remote streams over one peer connection. The remote description
// is an offer listing every consumer, answered by the engine.
type RecvHandler struct {
	*base

	remoteSdp   recvRemoteSdp
	createOffer func(infos []*remotesdp.ConsumerInfo) (string, error)
	// ordered by arrival, unified plan keeps closed entries so mids stay in place
	consumerInfos []*remotesdp.ConsumerInfo
	infoById      map[string]*remotesdp.ConsumerInfo
	// plan-b sections, in order of appearance
	kinds []ortc.MediaKind
}

func NewRecvHandler(options Options) (*RecvHandler, error) {
	b, err := newBase(options, "RecvHandler")
	if err != nil {
		return nil, err
	}

	rtpParametersByKind := map[ortc.MediaKind]*ortc.RtpParameters{
		ortc.MediaKindAudio: ortc.GetReceivingFullRtpParameters(ortc.MediaKindAudio, options.ExtendedRtpCapabilities),
		ortc.MediaKindVideo: ortc.GetReceivingFullRtpParameters(ortc.MediaKindVideo, options.ExtendedRtpCapabilities),
	}

	handler := &RecvHandler{
		base:     b,
		infoById: map[string]*remotesdp.ConsumerInfo{},
	}

	if b.planB {
		remoteSdp := remotesdp.NewPlanBRecvSdp(rtpParametersByKind)
		handler.remoteSdp = remoteSdp
		handler.createOffer = func(infos []*remotesdp.ConsumerInfo) (string, error) {
			return remoteSdp.CreateOfferSdp(handler.kinds, infos)
		}
	} else {
		remoteSdp := remotesdp.NewUnifiedPlanRecvSdp(rtpParametersByKind)
		handler.remoteSdp = remoteSdp
		handler.createOffer = remoteSdp.CreateOfferSdp
	}

	b.logger.V(1).Info("constructor()", "planB", b.planB)

	return handler, nil
}

// AddConsumer negotiates a new remote stream and returns the track receiving it.
func (h *RecvHandler) AddConsumer(ctx context.Context, consumer ConsumerInfo) (track engine.Track, err error) {
	h.logger.V(1).Info("addConsumer()", "id", consumer.ID, "kind", consumer.Kind)

	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	if _, ok := h.infoById[consumer.ID]; ok {
		return nil, errs.NewInvalidStateError("consumer %q already added", consumer.ID)
	}
	if consumer.RtpParameters == nil || len(consumer.RtpParameters.Encodings) == 0 {
		return nil, errs.NewTypeError("consumer %q has no encodings", consumer.ID)
	}

	encoding := consumer.RtpParameters.Encodings[0]

	info := &remotesdp.ConsumerInfo{
		Kind:     consumer.Kind,
		Mid:      string(consumer.Kind),
		StreamId: "recv-stream-" + consumer.ID,
		TrackId:  fmt.Sprintf("consumer-%s-%s", consumer.Kind, consumer.ID),
		Ssrc:     encoding.Ssrc,
		Cname:    consumer.RtpParameters.Rtcp.Cname,
	}
	if !h.planB {
		info.Mid = string(consumer.Kind[0]) + consumer.ID
	}
	if encoding.Rtx != nil {
		info.RtxSsrc = encoding.Rtx.Ssrc
	}

	h.consumerInfos = append(h.consumerInfos, info)
	h.infoById[consumer.ID] = info
	h.addKind(consumer.Kind)

	negotiated := false

	defer func() {
		if err != nil {
			h.dropConsumer(consumer.ID, negotiated)
		}
	}()

	if h.State() == StateIdle {
		if err = h.setupTransport(ctx); err != nil {
			return nil, err
		}
	}

	offer, err := h.createOffer(h.consumerInfos)
	if err != nil {
		return nil, err
	}
	if err = h.setRemoteDescription(ctx, engine.SdpTypeOffer, offer); err != nil {
		return nil, err
	}
	negotiated = true

	answer, err := h.pc.CreateAnswer(ctx)
	if err != nil {
		return nil, err
	}
	if err = h.pc.SetLocalDescription(ctx, answer); err != nil {
		return nil, err
	}

	if h.State() == StateCreated {
		if err = h.updateTransport(); err != nil {
			return nil, err
		}
	}

	for _, receiver := range h.pc.Receivers() {
		if t := receiver.Track(); t != nil && t.ID() == info.TrackId {
			return t, nil
		}
	}

	return nil, errs.NewNotFoundError("remote track %q not found", info.TrackId)
}

// RemoveConsumer renegotiates without the consumer.
func (h *RecvHandler) RemoveConsumer(ctx context.Context, id string) error {
	h.logger.V(1).Info("removeConsumer()", "id", id)

	if err := h.checkOpen(); err != nil {
		return err
	}
	if _, ok := h.infoById[id]; !ok {
		return errs.NewNotFoundError("consumer %q not found", id)
	}

	h.dropConsumer(id, true)

	return h.renegotiate(ctx)
}

// RestartIce applies new remote ICE parameters and renegotiates.
func (h *RecvHandler) RestartIce(ctx context.Context, iceParameters *remotesdp.IceParameters) error {
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

	return h.renegotiate(ctx)
}

func (h *RecvHandler) renegotiate(ctx context.Context) error {
	offer, err := h.createOffer(h.consumerInfos)
	if err != nil {
		return err
	}
	if err := h.setRemoteDescription(ctx, engine.SdpTypeOffer, offer); err != nil {
		return err
	}
	answer, err := h.pc.CreateAnswer(ctx)
	if err != nil {
		return err
	}
	return h.pc.SetLocalDescription(ctx, answer)
}

// dropConsumer forgets a consumer. A unified plan section already negotiated stays in
// the offer as inactive.
func (h *RecvHandler) dropConsumer(id string, negotiated bool) {
	info, ok := h.infoById[id]
	if !ok {
		return
	}
	delete(h.infoById, id)

	if negotiated && !h.planB {
		info.Closed = true
		return
	}

	for i, item := range h.consumerInfos {
		if item == info {
			h.consumerInfos = append(h.consumerInfos[:i], h.consumerInfos[i+1:]...)
			break
		}
	}
}

func (h *RecvHandler) addKind(kind ortc.MediaKind) {
	for _, k := range h.kinds {
		if k == kind {
			return
		}
	}
	h.kinds = append(h.kinds, kind)
}

// setupTransport asks the server for its transport parameters.
func (h *RecvHandler) setupTransport(ctx context.Context) error {
	h.setState(StateAwaitingRemoteParameters)

	remote, err := h.listener.OnNeedCreateTransport(ctx, nil)
	if err != nil {
		h.setState(StateIdle)
		return err
	}
	if remote == nil {
		h.setState(StateIdle)
		return errs.NewTypeError("missing transport remote parameters")
	}

	h.remoteSdp.SetTransportRemoteParameters(remote)

	h.setState(StateCreated)

	return nil
}

// updateTransport sends the local DTLS parameters taken from the local answer.
func (h *RecvHandler) updateTransport() error {
	local, err := h.localParameters()
	if err != nil {
		return err
	}

	h.remoteSdp.SetTransportLocalParameters(local)
	h.listener.OnNeedUpdateTransport(local)

	h.setState(StateReady)

	return nil
}
