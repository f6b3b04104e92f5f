package service_test

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/tutor-room/pkg/service"
)

func redisClient(t *testing.T) redis.UniversalClient {
	if testing.Short() {
		t.SkipNow()
	}
	rc := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	if err := rc.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() {
		_ = rc.Close()
	})
	return rc
}

func TestRedisRoomStore(t *testing.T) {
	ctx := context.Background()
	rc := redisClient(t)
	s := service.NewRedisRoomStore(rc)

	roomName := "redis-room"
	_ = s.DeleteRoom(ctx, roomName)

	room := &livekit.Room{Sid: "RM_redis", Name: roomName, MaxParticipants: 2, Metadata: `{"tutorName":"Dr. Smith"}`}
	require.NoError(t, s.StoreRoom(ctx, room))

	loaded, err := s.LoadRoom(ctx, roomName)
	require.NoError(t, err)
	require.Equal(t, room.Sid, loaded.Sid)
	require.Equal(t, room.Metadata, loaded.Metadata)
	require.NotZero(t, loaded.CreationTime)

	rooms, err := s.ListRooms(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, rooms)

	require.NoError(t, s.DeleteRoom(ctx, roomName))
	require.ErrorIs(t, s.DeleteRoom(ctx, roomName), service.ErrRoomNotFound)

	_, err = s.LoadRoom(ctx, roomName)
	require.ErrorIs(t, err, service.ErrRoomNotFound)
}
