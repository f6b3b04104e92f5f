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
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/livekit/tutor-room/pkg/rtc/types"
	"github.com/livekit/tutor-room/pkg/telemetry/prometheus"
)

// Leave tears down the current session and returns the manager to Idle. It cancels a join
// in progress, never fails, and is a no-op when idle. Step failures are logged and reported
// once through OnError as TeardownPartialFailure.
func (m *SessionManager) Leave(ctx context.Context) {
	m.CancelJoin()

	m.joinLock.Lock()
	defer m.joinLock.Unlock()

	m.leaveLocked(ctx)
}

func (m *SessionManager) leaveLocked(ctx context.Context) {
	s := m.Session()
	if s == nil {
		if m.State() != types.StateIdle {
			m.transition(nil, types.StateIdle)
		}
		return
	}
	if !s.leaving.CompareAndSwap(false, true) {
		return
	}

	var report error
	if !s.events.Do(func() {
		report = m.teardown(ctx, s)
	}) {
		report = m.teardown(ctx, s)
	}
	s.close()
	m.registry.Remove(s)

	m.lock.Lock()
	if m.session == s {
		m.session = nil
	}
	m.lock.Unlock()

	if !s.ConnectedAt().IsZero() {
		prometheus.SessionEnded()
	}
	if report != nil {
		s.logger.Warnw("teardown partially failed", report)
		prometheus.RecordTeardownFailure()
		m.callbacks.error(types.ErrorKindTeardownPartialFailure, report.Error())
	}
	m.transition(nil, types.StateIdle)
	m.callbacks.participantsChanged([]types.Participant{})
	s.logger.Infow("left room")
}

// teardown unwinds a session in order: local media off, local tracks stopped, remote
// tracks detached, disconnect, then room deletion when nobody else is left.
func (m *SessionManager) teardown(ctx context.Context, s *RoomSession) (report error) {
	defer func() {
		if r := recover(); r != nil {
			report = multierr.Append(report, fmt.Errorf("%w: panic: %v", types.ErrTeardownPartialFailure, r))
		}
		m.reconciler.Reset()
	}()

	remoteCount := m.reconciler.RemoteCount()
	conn := s.Connection()

	if err := m.media.DisableAll(); err != nil {
		report = multierr.Append(report, err)
	}
	if err := m.media.Release(); err != nil {
		report = multierr.Append(report, err)
	}
	m.reconciler.DetachAll()

	if conn == nil {
		return
	}
	conn.Disconnect(true)
	s.setConnection(nil)

	if remoteCount == 0 {
		m.deleteRoom(ctx, s)
	} else {
		s.logger.Debugw("keeping room", "remoteParticipants", remoteCount)
	}
	return
}

// deleteRoom is best effort; its failure is only logged.
func (m *SessionManager) deleteRoom(ctx context.Context, s *RoomSession) {
	if m.params.Admin == nil {
		return
	}
	if err := m.params.Admin.DeleteRoom(ctx, s.RoomID); err != nil {
		s.logger.Warnw("could not delete room", err)
		return
	}
	s.logger.Infow("deleted room")
	m.removeRecord(s.RoomID)
}
