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

package types

import (
	"context"
)

// MediaTrack is a transport track handle, local or remote.
type MediaTrack interface {
	ID() string
	Kind() MediaKind
}

// LocalTrack is a captured camera or microphone track owned by the local participant.
type LocalTrack interface {
	MediaTrack
	Stop() error
}

// RenderTarget is a UI surface tracks are attached to. The UI owns it; the session only
// records attach/detach intent against it.
type RenderTarget interface {
	Attach(track MediaTrack) error
	Detach(track MediaTrack)
}

// TransportEvents receives events of one room connection in delivery order.
type TransportEvents interface {
	OnParticipantConnected(p RemoteParticipantInfo)
	OnParticipantDisconnected(identity string)
	OnTrackPublished(identity string, kind MediaKind)
	OnTrackUnpublished(identity string, kind MediaKind)
	OnTrackSubscribed(identity string, track MediaTrack)
	OnTrackUnsubscribed(identity string, track MediaTrack)
	OnDataReceived(identity string, payload []byte)
	OnReconnecting()
	OnReconnected()
	OnDisconnected(reason string)
}

// Transport opens room connections.
type Transport interface {
	Connect(ctx context.Context, cred Credential) (Connection, error)
}

// Connection is one open room connection. Events are buffered until Listen is called.
type Connection interface {
	// RemoteParticipants returns the participants already present when the connection was opened.
	RemoteParticipants() []RemoteParticipantInfo
	Listen(events TransportEvents)
	PublishTrack(track LocalTrack) (LocalPublication, error)
	SendData(ctx context.Context, payload []byte) error
	// Disconnect closes the connection. When stopTracks is set, published local tracks are stopped too.
	Disconnect(stopTracks bool)
}

type LocalPublication interface {
	SetMuted(muted bool) error
	Unpublish() error
}

// MediaDevices grants access to local capture devices.
type MediaDevices interface {
	Acquire(ctx context.Context, kind MediaKind) (LocalTrack, error)
}

// TokenSource is the admission side of a join.
type TokenSource interface {
	FetchAccessToken(ctx context.Context, roomID string, identity string, displayName string, metadata ParticipantMetadata) (Credential, error)
}

// CapacityChecker is optionally implemented by a TokenSource.
type CapacityChecker interface {
	CheckCapacity(ctx context.Context, roomID string) (bool, error)
}

type RoomAdmin interface {
	CreateRoom(ctx context.Context, roomID string, maxParticipants int, metadata RoomMetadata) error
	DeleteRoom(ctx context.Context, roomID string) error
}

// SessionStore persists past and current session records, one per room.
type SessionStore interface {
	List(ctx context.Context) ([]StoredSessionRecord, error)
	Upsert(ctx context.Context, record StoredSessionRecord) error
	Remove(ctx context.Context, roomID string) error
}

type IdentityResolver interface {
	ResolveIdentity(identity string, displayName string) (LocalIdentity, error)
}
