package mediasoupclient

import (
	"testing"
	"time"

	"github.com/qdgx/mediasoup-client-go/ortc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ConsumerTestingSuite struct {
	roomTestingSuite
	transport *Transport
	peer      *Peer
}

func TestConsumerTestingSuite(t *testing.T) {
	suite.Run(t, new(ConsumerTestingSuite))
}

func (suite *ConsumerTestingSuite) SetupTest() {
	suite.roomTestingSuite.SetupTest()
	suite.peer = suite.join(PeerData{Name: "bob"})[0]
	suite.transport = suite.createTransport(TransportDirectionRecv)
}

func (suite *ConsumerTestingSuite) TestReceive() {
	consumer := suite.newConsumer("bob", consumerData("c1", ortc.MediaKindVideo, 2222))

	suite.Equal(ortc.MediaKindVideo, consumer.Kind())
	suite.True(consumer.Supported())
	suite.False(consumer.Handled())
	suite.Equal(ConsumerProfileDefault, consumer.PreferredProfile())

	onHandled := suite.Fn()
	consumer.On("handled", onHandled.Fn())
	onProfile := suite.Fn()
	consumer.On("effectiveprofilechange", onProfile.Fn())

	track := suite.receiveConsumer(suite.transport, consumer, enableConsumerResponse{
		EffectiveProfile: ConsumerProfileHigh,
	})

	suite.True(consumer.Handled())
	suite.Same(suite.transport, consumer.Transport())
	suite.Equal("video", track.Kind())
	suite.True(track.Enabled())
	suite.Equal(ConsumerProfileHigh, consumer.EffectiveProfile())
	onHandled.ExpectCalledTimes(1)
	onProfile.ExpectCalledWith(ConsumerProfileHigh)

	// the DTLS parameters of a receiving transport follow its creation
	suite.signaler.AssertCalled(suite.T(), "Request", mock.Anything, "createTransport", mock.MatchedBy(func(req createTransportRequest) bool {
		return req.Direction == TransportDirectionRecv && req.DtlsParameters == nil
	}))
	suite.NotNil(suite.findNotification("updateTransport"))

	suite.signaler.AssertCalled(suite.T(), "Request", mock.Anything, "enableConsumer", enableConsumerRequest{
		Id:               "c1",
		TransportId:      suite.transport.Id(),
		PreferredProfile: ConsumerProfileDefault,
	})

	_, err := consumer.Receive(suite.ctx, suite.transport)
	suite.IsType(InvalidStateError{}, err)
}

func (suite *ConsumerTestingSuite) TestReceiveUnsupported() {
	data := consumerData("c1", ortc.MediaKindAudio, 1111)
	data.RtpParameters.Codecs[0] = &ortc.RtpCodecParameters{MimeType: "audio/PCMU", PayloadType: 0, ClockRate: 8000}
	consumer := suite.newConsumer("bob", data)

	_, err := consumer.Receive(suite.ctx, suite.transport)
	suite.IsType(UnsupportedError{}, err)
	suite.signaler.AssertNotCalled(suite.T(), "Request", mock.Anything, "createTransport", mock.Anything)
}

func (suite *ConsumerTestingSuite) TestReceiveOnSendingTransport() {
	consumer := suite.newConsumer("bob", consumerData("c1", ortc.MediaKindAudio, 1111))

	_, err := consumer.Receive(suite.ctx, suite.createTransport(TransportDirectionSend))
	suite.IsType(TypeError{}, err)
}

func (suite *ConsumerTestingSuite) TestReceivePausedByServer() {
	data := consumerData("c1", ortc.MediaKindAudio, 1111)
	data.Paused = true
	consumer := suite.newConsumer("bob", data)

	suite.True(consumer.RemotelyPaused())

	track := suite.receiveConsumer(suite.transport, consumer, enableConsumerResponse{Paused: true})
	suite.False(track.Enabled())

	suite.NoError(suite.room.ReceiveNotification(notification("consumerResumed", entityNotification{Id: "c1", PeerName: "bob"})))
	suite.False(consumer.Paused())
	suite.True(track.Enabled())
}

func (suite *ConsumerTestingSuite) TestPauseResume() {
	consumer := suite.newConsumer("bob", consumerData("c1", ortc.MediaKindAudio, 1111))
	track := suite.receiveConsumer(suite.transport, consumer, enableConsumerResponse{})

	onPause := suite.Fn()
	consumer.On("pause", onPause.Fn())

	suite.NoError(consumer.Pause(nil))
	suite.Equal(MediaStatePaused, consumer.State())
	suite.False(track.Enabled())
	onPause.ExpectCalledWith(OriginatorLocal, nil)
	suite.waitNotification("pauseConsumer")

	suite.NoError(suite.room.ReceiveNotification(notification("consumerPaused", entityNotification{Id: "c1", PeerName: "bob"})))
	suite.True(consumer.RemotelyPaused())
	onPause.ExpectCalledWith(OriginatorRemote, nil)

	suite.NoError(consumer.Resume(nil))
	suite.False(track.Enabled())
	suite.waitNotification("resumeConsumer")

	suite.NoError(suite.room.ReceiveNotification(notification("consumerResumed", entityNotification{Id: "c1", PeerName: "bob"})))
	suite.True(track.Enabled())
}

func (suite *ConsumerTestingSuite) TestPausedBeforeReceive() {
	consumer := suite.newConsumer("bob", consumerData("c1", ortc.MediaKindAudio, 1111))
	suite.NoError(consumer.Pause(nil))

	track := suite.receiveConsumer(suite.transport, consumer, enableConsumerResponse{})
	suite.False(track.Enabled())

	suite.signaler.AssertCalled(suite.T(), "Request", mock.Anything, "enableConsumer", mock.MatchedBy(func(req enableConsumerRequest) bool {
		return req.Paused
	}))
}

func (suite *ConsumerTestingSuite) TestPreferredProfile() {
	consumer := suite.newConsumer("bob", consumerData("c1", ortc.MediaKindVideo, 2222))

	suite.IsType(TypeError{}, consumer.SetPreferredProfile(ConsumerProfileNone))
	suite.IsType(TypeError{}, consumer.SetPreferredProfile("foo"))

	// remembered until the consumer is enabled
	suite.NoError(consumer.SetPreferredProfile(ConsumerProfileLow))
	suite.receiveConsumer(suite.transport, consumer, enableConsumerResponse{PreferredProfile: ConsumerProfileLow})
	suite.signaler.AssertCalled(suite.T(), "Request", mock.Anything, "enableConsumer", mock.MatchedBy(func(req enableConsumerRequest) bool {
		return req.PreferredProfile == ConsumerProfileLow
	}))

	suite.NoError(consumer.SetPreferredProfile(ConsumerProfileHigh))
	suite.Equal(ConsumerProfileHigh, consumer.PreferredProfile())
	suite.waitNotification("setConsumerPreferredProfile")
	suite.JSONEq(`{"id":"c1","profile":"high"}`, string(suite.findNotification("setConsumerPreferredProfile").Data))

	suite.NoError(suite.room.ReceiveNotification(notification("consumerPreferredProfileSet", profileNotification{Id: "c1", PeerName: "bob", Profile: ConsumerProfileMedium})))
	suite.Equal(ConsumerProfileMedium, consumer.PreferredProfile())

	onProfile := suite.Fn()
	consumer.On("effectiveprofilechange", onProfile.Fn())
	suite.NoError(suite.room.ReceiveNotification(notification("consumerEffectiveProfileChanged", profileNotification{Id: "c1", PeerName: "bob", Profile: ConsumerProfileNone})))
	suite.Equal(ConsumerProfileNone, consumer.EffectiveProfile())
	onProfile.ExpectCalledWith(ConsumerProfileNone)
}

func (suite *ConsumerTestingSuite) TestClose() {
	consumer := suite.newConsumer("bob", consumerData("c1", ortc.MediaKindAudio, 1111))
	track := suite.receiveConsumer(suite.transport, consumer, enableConsumerResponse{})

	onClose := suite.Fn()
	consumer.On("close", onClose.Fn())

	consumer.Close()

	suite.True(consumer.Closed())
	suite.True(track.Stopped())
	suite.Nil(consumer.Track())
	suite.Nil(suite.peer.Consumer("c1"))
	onClose.ExpectCalledWith(OriginatorLocal, nil)

	// nothing is sent, the server closes it along with its producer
	for _, method := range suite.signaler.NotificationMethods() {
		suite.NotEqual("closeConsumer", method)
	}
	suite.Eventually(func() bool { return suite.transport.queue.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func (suite *ConsumerTestingSuite) TestClosedByServer() {
	consumer := suite.newConsumer("bob", consumerData("c1", ortc.MediaKindAudio, 1111))
	track := suite.receiveConsumer(suite.transport, consumer, enableConsumerResponse{})

	onClose := suite.Fn()
	consumer.On("close", onClose.Fn())

	suite.NoError(suite.room.ReceiveNotification(notification("consumerClosed", entityNotification{Id: "c1", PeerName: "bob", AppData: "x"})))

	suite.True(consumer.Closed())
	suite.True(track.Stopped())
	onClose.ExpectCalledWith(OriginatorRemote, "x")
}

func (suite *ConsumerTestingSuite) TestStats() {
	consumer := suite.newConsumer("bob", consumerData("c1", ortc.MediaKindAudio, 1111))
	suite.receiveConsumer(suite.transport, consumer, enableConsumerResponse{})

	onStats := suite.Fn()
	consumer.On("stats", onStats.Fn())

	suite.NoError(consumer.EnableStats(0))
	suite.waitNotification("enableConsumerStats")

	suite.NoError(suite.room.ReceiveNotification(notification("consumerStats", statsNotification{Id: "c1", PeerName: "bob", Stats: Stats{H{"type": "inbound-rtp"}}})))
	onStats.ExpectCalledTimes(1)

	suite.NoError(consumer.DisableStats())
	suite.waitNotification("disableConsumerStats")
}

func (suite *ConsumerTestingSuite) TestStatsEnabledBeforeReceive() {
	consumer := suite.newConsumer("bob", consumerData("c1", ortc.MediaKindAudio, 1111))

	suite.NoError(consumer.EnableStats(0))
	suite.True(consumer.StatsEnabled())
	suite.Nil(suite.findNotification("enableConsumerStats"))

	suite.receiveConsumer(suite.transport, consumer, enableConsumerResponse{})

	suite.waitNotification("enableConsumerStats")
	suite.JSONEq(`{"id":"c1","interval":1000}`, string(suite.findNotification("enableConsumerStats").Data))
}

func (suite *ConsumerTestingSuite) TestTransportClosed() {
	consumer := suite.newConsumer("bob", consumerData("c1", ortc.MediaKindAudio, 1111))
	track := suite.receiveConsumer(suite.transport, consumer, enableConsumerResponse{})

	onUnhandled := suite.Fn()
	consumer.On("unhandled", onUnhandled.Fn())

	suite.NoError(suite.room.ReceiveNotification(notification("transportClosed", entityNotification{Id: suite.transport.Id()})))

	suite.True(suite.transport.Closed())
	suite.Nil(suite.room.Transport(suite.transport.Id()))
	suite.False(consumer.Closed())
	suite.False(consumer.Handled())
	suite.True(track.Stopped())
	onUnhandled.ExpectCalledTimes(1)
	suite.Nil(suite.findNotification("closeTransport"))

	// it can be received again on another transport
	suite.receiveConsumer(suite.createTransport(TransportDirectionRecv), consumer, enableConsumerResponse{})
	suite.True(consumer.Handled())
}
