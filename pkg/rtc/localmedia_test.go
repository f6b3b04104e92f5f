package rtc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/tutor-room/pkg/rtc/types"
	"github.com/livekit/tutor-room/pkg/rtc/types/typesfakes"
)

func TestLocalMedia_RequiresConnection(t *testing.T) {
	m := NewLocalMedia(&typesfakes.FakeDevices{}, nil)
	require.ErrorIs(t, m.SetEnabled(context.Background(), types.MediaKindCamera, true), types.ErrNotConnected)
}

func TestLocalMedia_Toggle(t *testing.T) {
	devices := &typesfakes.FakeDevices{}
	conn := &typesfakes.FakeConnection{}
	m := NewLocalMedia(devices, nil)
	m.Bind(conn)
	ctx := context.Background()

	res := m.EnableCameraAndMicrophone(ctx)
	require.NoError(t, res.Err())
	require.Len(t, conn.Published(), 2)
	require.ElementsMatch(t, types.MediaKinds, m.EnabledKinds())

	require.NoError(t, m.SetEnabled(ctx, types.MediaKindCamera, false))
	require.False(t, m.IsEnabled(types.MediaKindCamera))
	require.True(t, conn.Publications()[0].IsMuted())

	// re-enable unmutes the existing publication
	require.NoError(t, m.SetEnabled(ctx, types.MediaKindCamera, true))
	require.True(t, m.IsEnabled(types.MediaKindCamera))
	require.False(t, conn.Publications()[0].IsMuted())
	require.Len(t, devices.Acquired(), 2)
	require.Len(t, conn.Published(), 2)
}

func TestLocalMedia_PermissionDenied(t *testing.T) {
	devices := &typesfakes.FakeDevices{
		Errs: map[types.MediaKind]error{
			types.MediaKindCamera: types.ErrPermissionDenied,
		},
	}
	conn := &typesfakes.FakeConnection{}
	m := NewLocalMedia(devices, nil)
	m.Bind(conn)

	res := m.EnableCameraAndMicrophone(context.Background())
	require.Equal(t, types.ErrorKindMediaUnavailable, types.KindOf(res.Camera))
	require.ErrorIs(t, res.Camera, types.ErrPermissionDenied)
	require.NoError(t, res.Microphone)
	require.Equal(t, []types.MediaKind{types.MediaKindMicrophone}, m.EnabledKinds())
}

func TestLocalMedia_PreviewAndRelease(t *testing.T) {
	devices := &typesfakes.FakeDevices{}
	conn := &typesfakes.FakeConnection{}
	m := NewLocalMedia(devices, nil)
	m.Bind(conn)

	preview := typesfakes.NewFakeRenderTarget("preview")
	m.SetPreview(types.MediaKindCamera, preview)
	require.NoError(t, m.SetEnabled(context.Background(), types.MediaKindCamera, true))
	require.True(t, preview.IsAttached("local-camera"))

	require.NoError(t, m.DisableAll())
	require.NoError(t, m.Release())
	require.False(t, preview.IsAttached("local-camera"))
	require.Equal(t, 1, devices.Acquired()[0].StopCallCount())
	require.Empty(t, m.EnabledKinds())

	require.ErrorIs(t, m.SetEnabled(context.Background(), types.MediaKindCamera, true), types.ErrNotConnected)
}
