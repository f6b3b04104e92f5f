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
	"sync"
	"time"

	"google.golang.org/protobuf/proto"

	"github.com/livekit/protocol/livekit"
)

// encapsulates CRUD operations for room settings
type LocalRoomStore struct {
	// map of roomName => room
	rooms map[string]*livekit.Room
	lock  sync.RWMutex
}

func NewLocalRoomStore() *LocalRoomStore {
	return &LocalRoomStore{
		rooms: make(map[string]*livekit.Room),
	}
}

func (p *LocalRoomStore) StoreRoom(_ context.Context, room *livekit.Room) error {
	if room.CreationTime == 0 {
		room.CreationTime = time.Now().Unix()
	}
	p.lock.Lock()
	p.rooms[room.Name] = proto.Clone(room).(*livekit.Room)
	p.lock.Unlock()
	return nil
}

func (p *LocalRoomStore) LoadRoom(_ context.Context, name string) (*livekit.Room, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	room := p.rooms[name]
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return proto.Clone(room).(*livekit.Room), nil
}

func (p *LocalRoomStore) ListRooms(_ context.Context) ([]*livekit.Room, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	rooms := make([]*livekit.Room, 0, len(p.rooms))
	for _, r := range p.rooms {
		rooms = append(rooms, proto.Clone(r).(*livekit.Room))
	}
	return rooms, nil
}

func (p *LocalRoomStore) DeleteRoom(_ context.Context, name string) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if _, ok := p.rooms[name]; !ok {
		return ErrRoomNotFound
	}
	delete(p.rooms, name)
	return nil
}
