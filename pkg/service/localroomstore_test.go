package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/tutor-room/pkg/service"
)

func TestLocalRoomStore(t *testing.T) {
	ctx := context.Background()
	s := service.NewLocalRoomStore()

	_, err := s.LoadRoom(ctx, "physics")
	require.ErrorIs(t, err, service.ErrRoomNotFound)
	require.True(t, service.IsNotFound(err))

	room := &livekit.Room{Sid: "RM_physics", Name: "physics", MaxParticipants: 2}
	require.NoError(t, s.StoreRoom(ctx, room))
	require.NotZero(t, room.CreationTime)

	loaded, err := s.LoadRoom(ctx, "physics")
	require.NoError(t, err)
	require.Equal(t, "RM_physics", loaded.Sid)

	t.Run("returned rooms are copies", func(t *testing.T) {
		loaded.MaxParticipants = 10
		again, err := s.LoadRoom(ctx, "physics")
		require.NoError(t, err)
		require.EqualValues(t, 2, again.MaxParticipants)
	})

	rooms, err := s.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	require.NoError(t, s.DeleteRoom(ctx, "physics"))
	require.ErrorIs(t, s.DeleteRoom(ctx, "physics"), service.ErrRoomNotFound)

	rooms, err = s.ListRooms(ctx)
	require.NoError(t, err)
	require.Empty(t, rooms)
}

func TestStoreRoomProvider(t *testing.T) {
	ctx := context.Background()
	p := service.NewStoreRoomProvider(service.NewLocalRoomStore())
	require.Equal(t, service.ProviderKindLocal, p.Kind())

	room, err := p.CreateRoom(ctx, &livekit.CreateRoomRequest{Name: "chem", MaxParticipants: 2, EmptyTimeout: 300, Metadata: `{"subject":"chemistry"}`})
	require.NoError(t, err)
	require.NotEmpty(t, room.Sid)
	require.EqualValues(t, 300, room.EmptyTimeout)

	t.Run("create is idempotent", func(t *testing.T) {
		again, err := p.CreateRoom(ctx, &livekit.CreateRoomRequest{Name: "chem", MaxParticipants: 1})
		require.NoError(t, err)
		require.Equal(t, room.Sid, again.Sid)
		require.EqualValues(t, 2, again.MaxParticipants)
	})

	require.NoError(t, p.DeleteRoom(ctx, "chem"))
	_, err = p.GetRoom(ctx, "chem")
	require.True(t, service.IsNotFound(err))
}
