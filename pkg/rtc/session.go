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

package rtc

import (
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/rtc/types"
	"github.com/livekit/tutor-room/pkg/utils"
)

type JoinRequest struct {
	RoomID string
	// optional, a persisted identity is used when empty
	Identity    string
	DisplayName string
	TutorName   string
	Subject     string
	IsAITutor   bool
	// join without publishing camera and microphone
	SkipMedia bool
}

// RoomSession is one join of one room, from Connecting until it is left or fails.
type RoomSession struct {
	RoomID      string
	Identity    string
	DisplayName string
	Role        types.Role
	TutorName   string
	Subject     string

	logger logger.Logger
	// transport events, serialized
	events *utils.OpsQueue

	lock          sync.RWMutex
	state         types.ConnectionState
	retryCount    int
	credential    types.Credential
	conn          types.Connection
	connectedAt   time.Time
	reconnectUsed bool

	leaving atomic.Bool
	closed  core.Fuse
}

func newRoomSession(req JoinRequest, id types.LocalIdentity, eventQueueSize int, log logger.Logger) *RoomSession {
	role := DeriveLocalRole(id.DisplayName, req.TutorName, req.IsAITutor)
	log = log.WithValues("room", req.RoomID, "identity", id.Identity)
	s := &RoomSession{
		RoomID:      req.RoomID,
		Identity:    id.Identity,
		DisplayName: id.DisplayName,
		Role:        role,
		TutorName:   req.TutorName,
		Subject:     req.Subject,
		logger:      log,
		events:      utils.NewOpsQueue(log, "session-events", eventQueueSize),
	}
	s.events.Start()
	return s
}

func (s *RoomSession) State() types.ConnectionState {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state
}

func (s *RoomSession) setState(state types.ConnectionState) {
	s.lock.Lock()
	s.state = state
	s.lock.Unlock()
}

func (s *RoomSession) RetryCount() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.retryCount
}

func (s *RoomSession) incRetryCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.retryCount++
	return s.retryCount
}

func (s *RoomSession) Credential() types.Credential {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.credential
}

func (s *RoomSession) setCredential(cred types.Credential) {
	s.lock.Lock()
	s.credential = cred
	s.lock.Unlock()
}

func (s *RoomSession) Connection() types.Connection {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.conn
}

func (s *RoomSession) setConnection(conn types.Connection) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.conn = conn
	if conn != nil && s.connectedAt.IsZero() {
		s.connectedAt = time.Now()
	}
}

// ConnectedAt is when the session first reached Connected, zero if it never did.
func (s *RoomSession) ConnectedAt() time.Time {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.connectedAt
}

// tryUseReconnect reports whether the single automatic reconnect is still available,
// consuming it.
func (s *RoomSession) tryUseReconnect() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.reconnectUsed {
		return false
	}
	s.reconnectUsed = true
	return true
}

func (s *RoomSession) IsClosed() bool {
	return s.closed.IsBroken()
}

func (s *RoomSession) record() types.StoredSessionRecord {
	participantName := s.DisplayName
	if s.Role != types.RoleStudent {
		participantName = ""
	}
	return types.StoredSessionRecord{
		RoomID:          s.RoomID,
		TutorName:       s.TutorName,
		Subject:         s.Subject,
		ParticipantName: participantName,
		Timestamp:       time.Now(),
	}
}

func (s *RoomSession) close() {
	s.closed.Break()
	s.events.Stop()
}
