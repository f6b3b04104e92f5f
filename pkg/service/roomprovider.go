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

	"github.com/redis/go-redis/v9"
	"github.com/twitchtv/twirp"

	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/logger"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/livekit/tutor-room/pkg/config"
	"github.com/livekit/tutor-room/pkg/utils"
)

const (
	ProviderKindLiveKit = "livekit"
	ProviderKindLocal   = "local"
)

// NewRoomProvider talks to the configured LiveKit server, and otherwise keeps rooms in
// redis when available or in memory.
func NewRoomProvider(conf *config.Config, rc redis.UniversalClient) RoomProvider {
	if conf.LiveKit.IsConfigured() {
		logger.Infow("using LiveKit room service", "url", conf.LiveKit.URL)
		return NewLiveKitRoomProvider(conf.LiveKit)
	}
	if rc != nil {
		logger.Infow("LiveKit not configured, storing rooms in redis")
		return NewStoreRoomProvider(NewRedisRoomStore(rc))
	}
	logger.Infow("LiveKit not configured, storing rooms in memory")
	return NewStoreRoomProvider(NewLocalRoomStore())
}

// LiveKitRoomProvider manages rooms through a LiveKit server's RoomService.
type LiveKitRoomProvider struct {
	client *lksdk.RoomServiceClient
}

func NewLiveKitRoomProvider(conf config.LiveKitConfig) *LiveKitRoomProvider {
	return &LiveKitRoomProvider{
		client: lksdk.NewRoomServiceClient(conf.URL, conf.APIKey, conf.APISecret),
	}
}

func (p *LiveKitRoomProvider) Kind() string {
	return ProviderKindLiveKit
}

func (p *LiveKitRoomProvider) CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error) {
	return p.client.CreateRoom(ctx, req)
}

func (p *LiveKitRoomProvider) GetRoom(ctx context.Context, name string) (*livekit.Room, error) {
	res, err := p.client.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{name}})
	if err != nil {
		return nil, err
	}
	for _, room := range res.Rooms {
		if room.Name == name {
			return room, nil
		}
	}
	return nil, ErrRoomNotFound
}

func (p *LiveKitRoomProvider) ListRooms(ctx context.Context) ([]*livekit.Room, error) {
	res, err := p.client.ListRooms(ctx, &livekit.ListRoomsRequest{})
	if err != nil {
		return nil, err
	}
	return res.Rooms, nil
}

func (p *LiveKitRoomProvider) DeleteRoom(ctx context.Context, name string) error {
	_, err := p.client.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: name})
	if err != nil && !IsNotFound(err) {
		return twirp.WrapError(ErrOperationFailed, err)
	}
	return err
}

// StoreRoomProvider keeps room records only. Nobody is ever connected to these rooms, so
// participant counts stay at zero.
type StoreRoomProvider struct {
	store RoomStore
	lock  sync.Mutex
}

func NewStoreRoomProvider(store RoomStore) *StoreRoomProvider {
	return &StoreRoomProvider{store: store}
}

func (p *StoreRoomProvider) Kind() string {
	return ProviderKindLocal
}

// CreateRoom returns the existing room when one with the same name exists.
func (p *StoreRoomProvider) CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	room, err := p.store.LoadRoom(ctx, req.Name)
	if err == nil {
		return room, nil
	}
	if err != ErrRoomNotFound {
		return nil, err
	}

	room = &livekit.Room{
		Sid:             utils.NewGuid(utils.RoomPrefix),
		Name:            req.Name,
		EmptyTimeout:    req.EmptyTimeout,
		MaxParticipants: req.MaxParticipants,
		Metadata:        req.Metadata,
	}
	if err := p.store.StoreRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func (p *StoreRoomProvider) GetRoom(ctx context.Context, name string) (*livekit.Room, error) {
	return p.store.LoadRoom(ctx, name)
}

func (p *StoreRoomProvider) ListRooms(ctx context.Context) ([]*livekit.Room, error) {
	return p.store.ListRooms(ctx)
}

func (p *StoreRoomProvider) DeleteRoom(ctx context.Context, name string) error {
	return p.store.DeleteRoom(ctx, name)
}
