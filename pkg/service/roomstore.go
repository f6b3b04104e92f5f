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

	"github.com/livekit/protocol/livekit"
)

// RoomStore persists rooms created while no LiveKit server is configured.
type RoomStore interface {
	StoreRoom(ctx context.Context, room *livekit.Room) error
	LoadRoom(ctx context.Context, name string) (*livekit.Room, error)
	ListRooms(ctx context.Context) ([]*livekit.Room, error)
	DeleteRoom(ctx context.Context, name string) error
}

// RoomProvider backs the room endpoints of the admission API.
// GetRoom and DeleteRoom return ErrRoomNotFound, or a twirp not_found, for unknown rooms.
type RoomProvider interface {
	Kind() string
	CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error)
	GetRoom(ctx context.Context, name string) (*livekit.Room, error)
	ListRooms(ctx context.Context) ([]*livekit.Room, error)
	DeleteRoom(ctx context.Context, name string) error
}
