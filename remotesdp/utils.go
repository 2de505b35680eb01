package remotesdp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/qdgx/mediasoup-client-go/internal/errs"
	"github.com/qdgx/mediasoup-client-go/ortc"
)

// Parse parses a session description produced by the engine.
func Parse(text string) (*sdp.SessionDescription, error) {
	session := &sdp.SessionDescription{}
	if err := session.Unmarshal([]byte(text)); err != nil {
		return nil, errs.NewTypeError("invalid session description: %s", err)
	}
	return session, nil
}

func Mid(media *sdp.MediaDescription) string {
	mid, _ := media.Attribute(sdp.AttrKeyMID)
	return mid
}

// Direction returns the direction attribute of a media section, sendrecv if absent.
func Direction(media *sdp.MediaDescription) ortc.MediaDirection {
	for _, attr := range media.Attributes {
		switch attr.Key {
		case sdp.AttrKeySendRecv, sdp.AttrKeySendOnly, sdp.AttrKeyRecvOnly, sdp.AttrKeyInactive:
			return ortc.MediaDirection(attr.Key)
		}
	}
	return ortc.MediaDirectionSendrecv
}

// ParseFmtpConfig parses "a=1;b=x" into parameters, keeping integers as int.
func ParseFmtpConfig(config string) ortc.RtpCodecSpecificParameters {
	params := ortc.RtpCodecSpecificParameters{}

	for _, pair := range strings.Split(config, ";") {
		pair = strings.TrimSpace(pair)
		if len(pair) == 0 {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, value := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		if i, err := strconv.Atoi(value); err == nil && strconv.Itoa(i) == value {
			params[key] = i
		} else {
			params[key] = value
		}
	}

	return params
}

type rtpmap struct {
	payloadType uint8
	name        string
	clockRate   uint32
	channels    uint8
}

func rtpmaps(media *sdp.MediaDescription) []rtpmap {
	var maps []rtpmap

	for _, attr := range media.Attributes {
		if attr.Key != "rtpmap" {
			continue
		}
		fields := strings.Fields(attr.Value)
		if len(fields) != 2 {
			continue
		}
		pt, err := strconv.ParseUint(fields[0], 10, 8)
		if err != nil {
			continue
		}
		parts := strings.Split(fields[1], "/")
		m := rtpmap{payloadType: uint8(pt), name: parts[0]}
		if len(parts) > 1 {
			rate, _ := strconv.ParseUint(parts[1], 10, 32)
			m.clockRate = uint32(rate)
		}
		if len(parts) > 2 {
			channels, _ := strconv.ParseUint(parts[2], 10, 8)
			m.channels = uint8(channels)
		}
		maps = append(maps, m)
	}

	return maps
}

func fmtps(media *sdp.MediaDescription) map[uint8]ortc.RtpCodecSpecificParameters {
	result := map[uint8]ortc.RtpCodecSpecificParameters{}

	for _, attr := range media.Attributes {
		if attr.Key != "fmtp" {
			continue
		}
		parts := strings.SplitN(attr.Value, " ", 2)
		if len(parts) != 2 {
			continue
		}
		pt, err := strconv.ParseUint(parts[0], 10, 8)
		if err != nil {
			continue
		}
		result[uint8(pt)] = ParseFmtpConfig(parts[1])
	}

	return result
}

func rtcpFeedbacks(media *sdp.MediaDescription) map[uint8][]ortc.RtcpFeedback {
	result := map[uint8][]ortc.RtcpFeedback{}

	for _, attr := range media.Attributes {
		if attr.Key != "rtcp-fb" {
			continue
		}
		fields := strings.Fields(attr.Value)
		if len(fields) < 2 {
			continue
		}
		// wildcard feedback is not attached to any codec
		pt, err := strconv.ParseUint(fields[0], 10, 8)
		if err != nil {
			continue
		}
		fb := ortc.RtcpFeedback{Type: fields[1]}
		if len(fields) > 2 {
			fb.Parameter = fields[2]
		}
		result[uint8(pt)] = append(result[uint8(pt)], fb)
	}

	return result
}

type extmap struct {
	id  int
	uri string
}

func extmaps(media *sdp.MediaDescription) []extmap {
	var exts []extmap

	for _, attr := range media.Attributes {
		if attr.Key != sdp.AttrKeyExtMap {
			continue
		}
		fields := strings.Fields(attr.Value)
		if len(fields) < 2 {
			continue
		}
		// "1/sendonly uri"
		id, err := strconv.Atoi(strings.SplitN(fields[0], "/", 2)[0])
		if err != nil {
			continue
		}
		exts = append(exts, extmap{id: id, uri: fields[1]})
	}

	return exts
}

func offeredExtensions(media *sdp.MediaDescription) map[string]bool {
	offered := map[string]bool{}
	for _, ext := range extmaps(media) {
		offered[ext.uri] = true
	}
	return offered
}

type ssrcLine struct {
	id        uint32
	attribute string
	value     string
}

func ssrcLines(media *sdp.MediaDescription) []ssrcLine {
	var lines []ssrcLine

	for _, attr := range media.Attributes {
		if attr.Key != sdp.AttrKeySSRC {
			continue
		}
		parts := strings.SplitN(attr.Value, " ", 2)
		id, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			continue
		}
		line := ssrcLine{id: uint32(id)}
		if len(parts) == 2 {
			kv := strings.SplitN(parts[1], ":", 2)
			line.attribute = kv[0]
			if len(kv) == 2 {
				line.value = kv[1]
			}
		}
		lines = append(lines, line)
	}

	return lines
}

type ssrcGroup struct {
	semantics string
	ssrcs     []uint32
}

func ssrcGroups(media *sdp.MediaDescription) []ssrcGroup {
	var groups []ssrcGroup

	for _, attr := range media.Attributes {
		if attr.Key != sdp.AttrKeySSRCGroup {
			continue
		}
		fields := strings.Fields(attr.Value)
		if len(fields) < 2 {
			continue
		}
		group := ssrcGroup{semantics: fields[0]}
		for _, field := range fields[1:] {
			ssrc, err := strconv.ParseUint(field, 10, 32)
			if err != nil {
				continue
			}
			group.ssrcs = append(group.ssrcs, uint32(ssrc))
		}
		groups = append(groups, group)
	}

	return groups
}

// ExtractRtpCapabilities builds the local capabilities from the first audio and the first
// video section of a description.
func ExtractRtpCapabilities(session *sdp.SessionDescription) *ortc.RtpCapabilities {
	caps := &ortc.RtpCapabilities{
		Codecs:           []*ortc.RtpCodecCapability{},
		HeaderExtensions: []*ortc.RtpHeaderExtension{},
	}
	seenKinds := map[ortc.MediaKind]bool{}

	for _, media := range session.MediaDescriptions {
		kind := ortc.MediaKind(media.MediaName.Media)
		if kind != ortc.MediaKindAudio && kind != ortc.MediaKindVideo {
			continue
		}
		if seenKinds[kind] {
			continue
		}
		seenKinds[kind] = true

		params := fmtps(media)
		feedbacks := rtcpFeedbacks(media)

		for _, m := range rtpmaps(media) {
			codec := &ortc.RtpCodecCapability{
				Kind:                 kind,
				Name:                 m.name,
				MimeType:             fmt.Sprintf("%s/%s", kind, m.name),
				PreferredPayloadType: m.payloadType,
				ClockRate:            m.clockRate,
				Parameters:           params[m.payloadType],
				RtcpFeedback:         feedbacks[m.payloadType],
			}
			if kind == ortc.MediaKindAudio {
				codec.Channels = m.channels
				if codec.Channels == 0 {
					codec.Channels = 1
				}
			}
			if codec.Parameters == nil {
				codec.Parameters = ortc.RtpCodecSpecificParameters{}
			}
			caps.Codecs = append(caps.Codecs, codec)
		}

		for _, ext := range extmaps(media) {
			caps.HeaderExtensions = append(caps.HeaderExtensions, &ortc.RtpHeaderExtension{
				Kind:        kind,
				Uri:         ext.uri,
				PreferredId: ext.id,
			})
		}
	}

	return caps
}

// ExtractDtlsParameters reads the fingerprint and DTLS role of the first active section.
func ExtractDtlsParameters(session *sdp.SessionDescription) (*DtlsParameters, error) {
	var media *sdp.MediaDescription

	for _, m := range session.MediaDescriptions {
		if _, ok := m.Attribute("ice-ufrag"); ok && m.MediaName.Port.Value != 0 {
			media = m
			break
		}
	}
	if media == nil {
		return nil, errs.NewTypeError("no active media section found")
	}

	fingerprint, ok := media.Attribute("fingerprint")
	if !ok {
		if fingerprint, ok = session.Attribute("fingerprint"); !ok {
			return nil, errs.NewTypeError("no fingerprint found")
		}
	}
	fields := strings.Fields(fingerprint)
	if len(fields) != 2 {
		return nil, errs.NewTypeError("invalid fingerprint %q", fingerprint)
	}

	var role DtlsRole

	setup, _ := media.Attribute(sdp.AttrKeyConnectionSetup)
	switch setup {
	case "active":
		role = DtlsRoleClient
	case "passive":
		role = DtlsRoleServer
	case "actpass":
		role = DtlsRoleAuto
	}

	return &DtlsParameters{
		Role:         role,
		Fingerprints: []DtlsFingerprint{{Algorithm: fields[0], Value: fields[1]}},
	}, nil
}

// TrackSelector finds the media section and primary ssrc of a local track. Mid is used
// with unified plan descriptions, TrackId with plan-b ones.
type TrackSelector struct {
	Kind    ortc.MediaKind
	Mid     string
	TrackId string
}

func (t TrackSelector) String() string {
	if len(t.Mid) > 0 {
		return "mid " + t.Mid
	}
	return "track " + t.TrackId
}

// findTrack returns the media section of the track and its primary ssrc.
func findTrack(session *sdp.SessionDescription, selector TrackSelector) (*sdp.MediaDescription, uint32, error) {
	for _, media := range session.MediaDescriptions {
		if len(selector.Kind) > 0 && media.MediaName.Media != string(selector.Kind) {
			continue
		}
		if len(selector.Mid) > 0 && Mid(media) != selector.Mid {
			continue
		}
		for _, line := range ssrcLines(media) {
			if line.attribute != "msid" {
				continue
			}
			if len(selector.TrackId) > 0 {
				fields := strings.Fields(line.value)
				if len(fields) != 2 || fields[1] != selector.TrackId {
					continue
				}
			}
			return media, line.id, nil
		}
		if len(selector.Mid) > 0 {
			// unified plan sections may lack msid ssrc lines; take the first ssrc
			if lines := ssrcLines(media); len(lines) > 0 {
				return media, lines[0].id, nil
			}
		}
	}
	return nil, 0, errs.NewNotFoundError("no ssrc found for %s", selector)
}

func rtxSsrc(groups []ssrcGroup, ssrc uint32) uint32 {
	for _, group := range groups {
		if group.semantics == sdp.SemanticTokenFlowIdentification && len(group.ssrcs) == 2 && group.ssrcs[0] == ssrc {
			return group.ssrcs[1]
		}
	}
	return 0
}

// FillRtpParametersForTrack completes sending parameters with the mid, ssrcs and cname
// the engine assigned to the track in the local description.
func FillRtpParametersForTrack(params *ortc.RtpParameters, session *sdp.SessionDescription, selector TrackSelector) error {
	media, firstSsrc, err := findTrack(session, selector)
	if err != nil {
		return err
	}

	if mid := Mid(media); len(mid) > 0 {
		params.Mid = mid
	}

	groups := ssrcGroups(media)
	ssrcs := []uint32{firstSsrc}

	for _, group := range groups {
		if group.semantics == "SIM" && len(group.ssrcs) > 0 && group.ssrcs[0] == firstSsrc {
			ssrcs = group.ssrcs
			break
		}
	}

	var cname string
	for _, line := range ssrcLines(media) {
		if line.id == firstSsrc && line.attribute == "cname" {
			cname = line.value
			break
		}
	}
	if len(cname) == 0 {
		return errs.NewNotFoundError("no cname found for %s", selector)
	}

	params.Encodings = make([]ortc.RtpEncodingParameters, 0, len(ssrcs))
	for _, ssrc := range ssrcs {
		encoding := ortc.RtpEncodingParameters{Ssrc: ssrc}
		if rtx := rtxSsrc(groups, ssrc); rtx != 0 {
			encoding.Rtx = &ortc.RtpEncodingRtx{Ssrc: rtx}
		}
		params.Encodings = append(params.Encodings, encoding)
	}

	reducedSize, mux := true, true
	params.Rtcp = ortc.RtcpParameters{
		Cname:       cname,
		ReducedSize: &reducedSize,
		Mux:         &mux,
	}

	return nil
}

// AddSimulcastForTrack rewrites the ssrc lines of a track so the engine sends numStreams
// simulcast streams, each with its own RTX stream when RTX is in use.
func AddSimulcastForTrack(session *sdp.SessionDescription, selector TrackSelector, numStreams int) error {
	if numStreams < 2 {
		return nil
	}

	media, firstSsrc, err := findTrack(session, selector)
	if err != nil {
		return err
	}

	groups := ssrcGroups(media)
	for _, group := range groups {
		if group.semantics == "SIM" {
			return nil
		}
	}

	var cname, msid string
	for _, line := range ssrcLines(media) {
		if line.id != firstSsrc {
			continue
		}
		switch line.attribute {
		case "cname":
			cname = line.value
		case "msid":
			msid = line.value
		}
	}
	if len(cname) == 0 || len(msid) == 0 {
		return errs.NewNotFoundError("no cname/msid found for %s", selector)
	}

	firstRtxSsrc := rtxSsrc(groups, firstSsrc)

	ssrcs := make([]uint32, 0, numStreams)
	rtxSsrcs := make([]uint32, 0, numStreams)
	for i := 0; i < numStreams; i++ {
		ssrcs = append(ssrcs, firstSsrc+uint32(i))
		if firstRtxSsrc != 0 {
			rtxSsrcs = append(rtxSsrcs, firstRtxSsrc+uint32(i))
		}
	}

	// drop the current lines of the track, they are rewritten below
	attributes := media.Attributes[:0]
	for _, attr := range media.Attributes {
		switch attr.Key {
		case sdp.AttrKeySSRC:
			id, _ := strconv.ParseUint(strings.SplitN(attr.Value, " ", 2)[0], 10, 32)
			if uint32(id) == firstSsrc || (firstRtxSsrc != 0 && uint32(id) == firstRtxSsrc) {
				continue
			}
		case sdp.AttrKeySSRCGroup:
			if strings.HasPrefix(attr.Value, fmt.Sprintf("%s %d ", sdp.SemanticTokenFlowIdentification, firstSsrc)) {
				continue
			}
		}
		attributes = append(attributes, attr)
	}
	media.Attributes = attributes

	addLines := func(ssrc uint32) {
		media.WithValueAttribute(sdp.AttrKeySSRC, fmt.Sprintf("%d cname:%s", ssrc, cname))
		media.WithValueAttribute(sdp.AttrKeySSRC, fmt.Sprintf("%d msid:%s", ssrc, msid))
	}

	for i, ssrc := range ssrcs {
		addLines(ssrc)
		if len(rtxSsrcs) > 0 {
			addLines(rtxSsrcs[i])
		}
	}

	sim := make([]string, 0, len(ssrcs))
	for _, ssrc := range ssrcs {
		sim = append(sim, strconv.FormatUint(uint64(ssrc), 10))
	}
	media.WithValueAttribute(sdp.AttrKeySSRCGroup, "SIM "+strings.Join(sim, " "))

	for i, ssrc := range ssrcs {
		if len(rtxSsrcs) == 0 {
			break
		}
		media.WithValueAttribute(sdp.AttrKeySSRCGroup, fmt.Sprintf("%s %d %d",
			sdp.SemanticTokenFlowIdentification, ssrc, rtxSsrcs[i]))
	}

	return nil
}
