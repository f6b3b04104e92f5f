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
	"fmt"
	"time"
)

type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnected
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}

// IsTerminal reports whether a new join is required to leave the state.
func (s ConnectionState) IsTerminal() bool {
	return s == StateDisconnected || s == StateFailed
}

type Role int

const (
	RoleStudent Role = iota
	RoleTutor
	RoleAITutor
)

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleTutor:
		return "tutor"
	case RoleAITutor:
		return "ai_tutor"
	default:
		return fmt.Sprintf("%d", int(r))
	}
}

type MediaKind int

const (
	MediaKindCamera MediaKind = iota
	MediaKindMicrophone
)

var MediaKinds = []MediaKind{MediaKindCamera, MediaKindMicrophone}

func (k MediaKind) String() string {
	switch k {
	case MediaKindCamera:
		return "camera"
	case MediaKindMicrophone:
		return "microphone"
	default:
		return fmt.Sprintf("%d", int(k))
	}
}

// TrackState is the publish/subscribe/attachment bookkeeping of one remote media kind.
// AttachedTo is only set while Subscribed is true.
type TrackState struct {
	TrackID    string
	Published  bool
	Subscribed bool
	AttachedTo RenderTarget
}

func (t TrackState) IsAttached() bool {
	return t.AttachedTo != nil
}

// Participant is a snapshot of one remote party as seen by the UI.
type Participant struct {
	Identity    string
	DisplayName string
	Role        Role
	Tracks      map[MediaKind]TrackState
}

type ChatMessage struct {
	Sender         string    `json:"sender"`
	SenderIdentity string    `json:"senderIdentity,omitempty"`
	Message        string    `json:"message"`
	ReceivedAt     time.Time `json:"receivedAt"`
}

// Credential authorizes one identity to join one room.
type Credential struct {
	Token     string
	ServerURL string
	RoomID    string
	Identity  string
}

// ParticipantMetadata is the JSON blob attached to a participant by the admission API.
type ParticipantMetadata struct {
	IsAITutor    bool   `json:"isAITutor,omitempty"`
	IsTutor      bool   `json:"isTutor,omitempty"`
	OriginalName string `json:"originalName,omitempty"`
}

// RoomMetadata is attached to a room when it is created.
type RoomMetadata struct {
	TutorName       string `json:"tutorName,omitempty"`
	Subject         string `json:"subject,omitempty"`
	ParticipantName string `json:"participantName,omitempty"`
}

type StoredSessionRecord struct {
	RoomID          string    `json:"roomId" yaml:"room_id"`
	TutorName       string    `json:"tutorName" yaml:"tutor_name"`
	Subject         string    `json:"subject" yaml:"subject"`
	ParticipantName string    `json:"participantName" yaml:"participant_name"`
	Timestamp       time.Time `json:"timestamp" yaml:"timestamp"`
}

// RemoteTrackInfo describes a track that is already known when a participant is enumerated.
type RemoteTrackInfo struct {
	Kind       MediaKind
	Track      MediaTrack
	Subscribed bool
}

// RemoteParticipantInfo is what the transport reports about a remote participant.
type RemoteParticipantInfo struct {
	Identity string
	Name     string
	Metadata string
	Tracks   []RemoteTrackInfo
}

type LocalIdentity struct {
	Identity    string
	DisplayName string
}
