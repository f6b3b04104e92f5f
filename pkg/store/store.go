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
	"errors"
	"sort"

	"github.com/livekit/protocol/logger"
	redisLiveKit "github.com/livekit/protocol/redis"

	"github.com/livekit/tutor-room/pkg/config"
	"github.com/livekit/tutor-room/pkg/rtc/types"
)

var (
	ErrRoomIDRequired = errors.New("session record has no room id")
	ErrUnknownKind    = errors.New("unknown session store kind")
)

// NewSessionStore builds the session store selected by conf.Store.Kind.
func NewSessionStore(conf *config.Config) (types.SessionStore, error) {
	switch conf.Store.Kind {
	case config.StoreKindMemory, "":
		logger.Debugw("using in-memory session store")
		return NewMemoryStore(), nil
	case config.StoreKindFile:
		logger.Debugw("using file session store", "file", conf.Store.File)
		return NewFileStore(conf.Store.File), nil
	case config.StoreKindRedis:
		rc, err := redisLiveKit.GetRedisClient(&conf.Redis)
		if err != nil {
			return nil, err
		}
		if rc == nil {
			return nil, config.ErrRedisNotConfigured
		}
		logger.Debugw("using redis session store", "address", conf.Redis.Address)
		return NewRedisStore(rc), nil
	default:
		return nil, ErrUnknownKind
	}
}

// sortRecords orders records newest first, then by room.
func sortRecords(records []types.StoredSessionRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}
		return records[i].RoomID < records[j].RoomID
	})
}
