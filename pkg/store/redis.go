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

package store

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/rtc/types"
)

// SessionsKey is hash of room_id => StoredSessionRecord json
const SessionsKey = "tutor_room_sessions"

type RedisStore struct {
	rc redis.UniversalClient
}

func NewRedisStore(rc redis.UniversalClient) *RedisStore {
	return &RedisStore{rc: rc}
}

func (s *RedisStore) List(ctx context.Context) ([]types.StoredSessionRecord, error) {
	items, err := s.rc.HVals(ctx, SessionsKey).Result()
	if err != nil && err != redis.Nil {
		return nil, errors.Wrap(err, "could not list sessions")
	}

	records := make([]types.StoredSessionRecord, 0, len(items))
	for _, item := range items {
		var r types.StoredSessionRecord
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			logger.Warnw("skipping unreadable session record", err)
			continue
		}
		records = append(records, r)
	}
	sortRecords(records)
	return records, nil
}

func (s *RedisStore) Upsert(ctx context.Context, record types.StoredSessionRecord) error {
	if record.RoomID == "" {
		return ErrRoomIDRequired
	}
	data, err := json.Marshal(&record)
	if err != nil {
		return err
	}
	if err := s.rc.HSet(ctx, SessionsKey, record.RoomID, data).Err(); err != nil {
		return errors.Wrap(err, "could not store session")
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, roomID string) error {
	if err := s.rc.HDel(ctx, SessionsKey, roomID).Err(); err != nil {
		return errors.Wrap(err, "could not remove session")
	}
	return nil
}
