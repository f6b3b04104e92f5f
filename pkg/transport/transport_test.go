package transport

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/config"
	"github.com/livekit/tutor-room/pkg/rtc/types"
	"github.com/livekit/tutor-room/pkg/rtc/types/typesfakes"
)

type eventRecorder struct {
	lock   sync.Mutex
	events []string
}

func (r *eventRecorder) record(e string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) Events() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]string(nil), r.events...)
}

func (r *eventRecorder) OnParticipantConnected(p types.RemoteParticipantInfo) {
	r.record("connected:" + p.Identity)
}

func (r *eventRecorder) OnParticipantDisconnected(identity string) {
	r.record("disconnected:" + identity)
}

func (r *eventRecorder) OnTrackPublished(identity string, kind types.MediaKind) {
	r.record("published:" + identity + ":" + kind.String())
}

func (r *eventRecorder) OnTrackUnpublished(identity string, kind types.MediaKind) {
	r.record("unpublished:" + identity + ":" + kind.String())
}

func (r *eventRecorder) OnTrackSubscribed(identity string, track types.MediaTrack) {
	r.record("subscribed:" + identity + ":" + track.ID())
}

func (r *eventRecorder) OnTrackUnsubscribed(identity string, track types.MediaTrack) {
	r.record("unsubscribed:" + identity + ":" + track.ID())
}

func (r *eventRecorder) OnDataReceived(identity string, payload []byte) {
	r.record("data:" + identity + ":" + string(payload))
}

func (r *eventRecorder) OnReconnecting() {
	r.record("reconnecting")
}

func (r *eventRecorder) OnReconnected() {
	r.record("reconnected")
}

func (r *eventRecorder) OnDisconnected(reason string) {
	r.record("room-disconnected:" + reason)
}

func TestMediaKind(t *testing.T) {
	cases := []struct {
		kind   lksdk.TrackKind
		source livekit.TrackSource
		want   types.MediaKind
		ok     bool
	}{
		{lksdk.TrackKindVideo, livekit.TrackSource_CAMERA, types.MediaKindCamera, true},
		{lksdk.TrackKindAudio, livekit.TrackSource_MICROPHONE, types.MediaKindMicrophone, true},
		{lksdk.TrackKindVideo, livekit.TrackSource_UNKNOWN, types.MediaKindCamera, true},
		{lksdk.TrackKindAudio, livekit.TrackSource_UNKNOWN, types.MediaKindMicrophone, true},
		{lksdk.TrackKindVideo, livekit.TrackSource_SCREEN_SHARE, 0, false},
		{lksdk.TrackKindAudio, livekit.TrackSource_SCREEN_SHARE_AUDIO, 0, false},
	}
	for _, tc := range cases {
		kind, ok := mediaKind(tc.kind, tc.source)
		require.Equal(t, tc.ok, ok, "%s/%s", tc.kind, tc.source)
		if ok {
			require.Equal(t, tc.want, kind)
		}
	}
	require.Equal(t, livekit.TrackSource_CAMERA, trackSource(types.MediaKindCamera))
	require.Equal(t, livekit.TrackSource_MICROPHONE, trackSource(types.MediaKindMicrophone))
}

func TestConnectionBuffersUntilListen(t *testing.T) {
	c := newRoomConnection(logger.GetLogger())

	c.onDataPacket(&lksdk.UserDataPacket{Payload: []byte("hi")}, lksdk.DataReceiveParams{SenderIdentity: "bob", Topic: ChatTopic})
	c.onDataPacket(&lksdk.UserDataPacket{Payload: []byte("ignored")}, lksdk.DataReceiveParams{SenderIdentity: "bob", Topic: "lk-transcription"})
	c.onReconnecting()

	r := &eventRecorder{}
	c.Listen(r)
	require.Equal(t, []string{"data:bob:hi", "reconnecting"}, r.Events())

	c.onReconnected()
	require.Equal(t, []string{"data:bob:hi", "reconnecting", "reconnected"}, r.Events())
}

func TestConnectionClosing(t *testing.T) {
	c := newRoomConnection(logger.GetLogger())
	r := &eventRecorder{}
	c.Listen(r)

	track, err := NewSampleTrack(types.MediaKindCamera, "", nil)
	require.NoError(t, err)
	c.published = append(c.published, track)

	c.Disconnect(true)
	require.True(t, track.IsStopped())

	// a client initiated disconnect is not reported
	c.onDisconnected("client initiated")
	require.Empty(t, r.Events())

	require.ErrorIs(t, c.SendData(context.Background(), []byte("hi")), types.ErrNotConnected)
	_, err = c.PublishTrack(track)
	require.ErrorIs(t, err, types.ErrNotConnected)
	_, err = c.PublishTrack(&typesfakes.FakeLocalTrack{})
	require.ErrorIs(t, err, ErrUnsupportedTrack)
}

func TestConnectRequiresServerURL(t *testing.T) {
	_, err := NewLiveKitTransport(nil).Connect(context.Background(), types.Credential{Token: "t"})
	require.ErrorIs(t, err, ErrMissingServerURL)
}

func TestFileDevices(t *testing.T) {
	ctx := context.Background()

	t.Run("no source", func(t *testing.T) {
		d := NewFileDevices(config.MediaConfig{}, nil)
		_, err := d.Acquire(ctx, types.MediaKindCamera)
		require.ErrorIs(t, err, ErrNoSource)
	})

	t.Run("synthetic", func(t *testing.T) {
		d := NewFileDevices(config.MediaConfig{Synthetic: true}, nil)
		track, err := d.Acquire(ctx, types.MediaKindMicrophone)
		require.NoError(t, err)
		require.Equal(t, types.MediaKindMicrophone, track.Kind())
		require.NotEmpty(t, track.ID())
		require.NoError(t, track.Stop())
		require.NoError(t, track.Stop())
	})

	t.Run("wrong file type", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "camera.ogg")
		require.NoError(t, os.WriteFile(path, []byte("OggS"), 0o600))
		d := NewFileDevices(config.MediaConfig{CameraFile: path}, nil)
		_, err := d.Acquire(ctx, types.MediaKindCamera)
		require.ErrorIs(t, err, ErrUnsupportedFile)
	})

	t.Run("missing file", func(t *testing.T) {
		d := NewFileDevices(config.MediaConfig{CameraFile: filepath.Join(t.TempDir(), "camera.ivf")}, nil)
		_, err := d.Acquire(ctx, types.MediaKindCamera)
		require.True(t, os.IsNotExist(err))
	})
}
