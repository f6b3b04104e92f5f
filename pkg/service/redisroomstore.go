// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/protobuf/proto"

	"github.com/livekit/protocol/livekit"
)

const (
	// hash of room_name => Room proto
	RoomsKey = "tutor_room_rooms"
)

type RedisRoomStore struct {
	rc redis.UniversalClient
}

func NewRedisRoomStore(rc redis.UniversalClient) *RedisRoomStore {
	return &RedisRoomStore{
		rc: rc,
	}
}

func (s *RedisRoomStore) StoreRoom(ctx context.Context, room *livekit.Room) error {
	if room.CreationTime == 0 {
		room.CreationTime = time.Now().Unix()
	}

	data, err := proto.Marshal(room)
	if err != nil {
		return err
	}
	if err := s.rc.HSet(ctx, RoomsKey, room.Name, data).Err(); err != nil {
		return errors.Wrap(err, "could not store room")
	}
	return nil
}

func (s *RedisRoomStore) LoadRoom(ctx context.Context, name string) (*livekit.Room, error) {
	data, err := s.rc.HGet(ctx, RoomsKey, name).Result()
	if err != nil {
		if err == redis.Nil {
			err = ErrRoomNotFound
		}
		return nil, err
	}

	room := &livekit.Room{}
	if err = proto.Unmarshal([]byte(data), room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *RedisRoomStore) ListRooms(ctx context.Context) ([]*livekit.Room, error) {
	items, err := s.rc.HVals(ctx, RoomsKey).Result()
	if err != nil && err != redis.Nil {
		return nil, errors.Wrap(err, "could not get rooms")
	}

	rooms := make([]*livekit.Room, 0, len(items))
	for _, item := range items {
		room := &livekit.Room{}
		if err := proto.Unmarshal([]byte(item), room); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (s *RedisRoomStore) DeleteRoom(ctx context.Context, name string) error {
	deleted, err := s.rc.HDel(ctx, RoomsKey, name).Result()
	if err != nil {
		return errors.Wrap(err, "could not delete room")
	}
	if deleted == 0 {
		return ErrRoomNotFound
	}
	return nil
}
