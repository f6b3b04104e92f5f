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
	"errors"
	"fmt"
	"time"

	"github.com/livekit/tutor-room/pkg/rtc/types"
	"github.com/livekit/tutor-room/pkg/telemetry/prometheus"
)

// Join connects to req.RoomID, tearing down any existing session first.
//
// Credential fetch and transport connect share one retry budget of
// MaxRetryAttempts attempts, waiting RetryDelay * retryCount between attempts.
// Already-present participants are reconciled before transport events are delivered,
// and a room that is already at capacity fails with RoomFull before any local media
// is published. On success the session is Connected; local media failures are
// reported through OnError and do not fail the join.
func (m *SessionManager) Join(ctx context.Context, req JoinRequest) (*RoomSession, error) {
	m.CancelJoin()

	m.joinLock.Lock()
	defer m.joinLock.Unlock()

	m.leaveLocked(ctx)

	if req.RoomID == "" {
		return nil, ErrRoomIDRequired
	}

	id, err := m.params.Identity.ResolveIdentity(req.Identity, req.DisplayName)
	if err != nil {
		m.logger.Warnw("could not resolve identity", err, "room", req.RoomID)
		m.callbacks.error(types.KindOf(err), err.Error())
		return nil, err
	}

	joinCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := newRoomSession(req, id, m.params.Config.EventQueueSize, m.logger)

	m.lock.Lock()
	m.joinSeq++
	seq := m.joinSeq
	m.cancelJoin = cancel
	m.session = s
	m.lock.Unlock()
	defer m.clearCancelJoin(seq)

	m.registry.Add(s)
	m.transition(s, types.StateConnecting)
	s.logger.Infow("joining room", "name", s.DisplayName, "role", s.Role)

	startedAt := time.Now()
	conn, err := m.connectWithRetry(joinCtx, s)
	if err != nil {
		if joinCtx.Err() != nil {
			m.abortJoin(s)
			return nil, joinCtx.Err()
		}
		m.failJoin(s, err)
		return nil, err
	}

	if err := m.admit(joinCtx, s, conn); err != nil {
		conn.Disconnect(true)
		m.reconciler.ClearParticipants()
		if joinCtx.Err() != nil {
			m.abortJoin(s)
			return nil, joinCtx.Err()
		}
		m.failJoin(s, err)
		return nil, err
	}

	prometheus.RecordJoinAttempt("success")
	prometheus.RecordJoinTime(startedAt)
	prometheus.SessionStarted()
	s.logger.Infow("joined room",
		"attempts", s.RetryCount()+1,
		"remoteParticipants", m.reconciler.RemoteCount(),
		"duration", time.Since(startedAt),
	)
	m.upsertRecord(s.record())

	if !req.SkipMedia {
		m.EnableCameraAndMicrophone(ctx)
	}
	return s, nil
}

func (m *SessionManager) connectWithRetry(ctx context.Context, s *RoomSession) (types.Connection, error) {
	if err := m.checkCapacity(ctx, s); err != nil {
		return nil, err
	}

	for {
		conn, err := m.connectOnce(ctx, s)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !types.IsRetryable(err) {
			prometheus.RecordJoinAttempt("failed")
			return nil, err
		}

		retryCount := s.incRetryCount()
		if retryCount >= m.params.Config.MaxRetryAttempts {
			prometheus.RecordJoinAttempt("failed")
			s.logger.Warnw("giving up joining room", err, "attempts", retryCount)
			return nil, err
		}

		prometheus.RecordJoinAttempt("retry")
		delay := m.params.Config.RetryDelay * time.Duration(retryCount)
		s.logger.Infow("retrying join", "error", err, "attempt", retryCount, "delay", delay)
		if err := m.params.Wait(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (m *SessionManager) checkCapacity(ctx context.Context, s *RoomSession) error {
	if !m.params.Config.CheckCapacity {
		return nil
	}
	checker, ok := m.params.Tokens.(types.CapacityChecker)
	if !ok {
		return nil
	}
	canJoin, err := checker.CheckCapacity(ctx, s.RoomID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warnw("capacity check failed, continuing", err)
		return nil
	}
	if !canJoin {
		return types.NewError(types.ErrorKindRoomFull, "room %s is at capacity", s.RoomID)
	}
	return nil
}

func (m *SessionManager) connectOnce(ctx context.Context, s *RoomSession) (types.Connection, error) {
	cred, err := m.params.Tokens.FetchAccessToken(ctx, s.RoomID, s.Identity, s.DisplayName, LocalMetadata(s.DisplayName, s.Role))
	if err != nil {
		return nil, err
	}
	if cred.ServerURL == "" {
		cred.ServerURL = m.params.LiveKitURL
	}
	if cred.RoomID == "" {
		cred.RoomID = s.RoomID
	}
	s.setCredential(cred)

	connectCtx, cancel := context.WithTimeout(ctx, m.params.Config.ConnectTimeout)
	defer cancel()

	conn, err := m.params.Transport.Connect(connectCtx, cred)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("connect timed out after %s: %w", m.params.Config.ConnectTimeout, err)
		}
		return nil, err
	}
	if ctx.Err() != nil {
		conn.Disconnect(true)
		return nil, ctx.Err()
	}
	return conn, nil
}

// admit reconciles the participants already in the room, enforces the participant cap
// and starts delivering transport events.
func (m *SessionManager) admit(ctx context.Context, s *RoomSession, conn types.Connection) error {
	if err := m.enumerate(s, conn); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.setConnection(conn)
	m.media.Bind(conn)
	m.transition(s, types.StateConnected)
	conn.Listen(&sessionEvents{m: m, s: s, conn: conn})
	go m.attachWorker(s)
	return nil
}

func (m *SessionManager) enumerate(s *RoomSession, conn types.Connection) error {
	for _, rp := range conn.RemoteParticipants() {
		if rp.Identity == s.Identity {
			continue
		}
		m.reconciler.ParticipantConnected(rp)
	}

	if total := m.reconciler.RemoteCount() + 1; total > m.params.Config.MaxParticipants {
		s.logger.Infow("room is full", "participants", total-1, "max", m.params.Config.MaxParticipants)
		return types.NewError(types.ErrorKindRoomFull, "room %s already has %d participants", s.RoomID, total-1)
	}
	return nil
}

func (m *SessionManager) abortJoin(s *RoomSession) {
	s.logger.Infow("join canceled")
	m.releaseSession(s)
	m.transition(nil, types.StateIdle)
}

func (m *SessionManager) failJoin(s *RoomSession, err error) {
	kind := types.KindOf(err)
	s.logger.Warnw("could not join room", err, "kind", kind, "attempts", s.RetryCount()+1)
	m.transition(s, types.StateFailed)
	m.releaseSession(s)
	m.callbacks.error(kind, err.Error())
}

// releaseSession forgets a session that never got to Connected.
func (m *SessionManager) releaseSession(s *RoomSession) {
	if err := m.media.Release(); err != nil {
		s.logger.Warnw("could not release local media", err)
	}
	m.reconciler.Reset()
	s.close()
	m.registry.Remove(s)

	m.lock.Lock()
	if m.session == s {
		m.session = nil
	}
	m.lock.Unlock()
}

func (m *SessionManager) clearCancelJoin(seq uint64) {
	m.lock.Lock()
	if m.joinSeq == seq {
		m.cancelJoin = nil
	}
	m.lock.Unlock()
}

// transition moves the manager to state. A non-nil s must still be the current session.
func (m *SessionManager) transition(s *RoomSession, state types.ConnectionState) bool {
	m.lock.Lock()
	if s != nil && m.session != s {
		m.lock.Unlock()
		return false
	}
	prev := m.state
	m.state = state
	if s != nil {
		s.setState(state)
	}
	m.lock.Unlock()

	if prev == state {
		return true
	}
	m.logger.Infow("session state changed", "from", prev, "to", state)
	prometheus.RecordStateTransition(state.String())
	m.callbacks.stateChanged(state)
	return true
}

// handleDisconnected runs on the session's event queue.
func (m *SessionManager) handleDisconnected(s *RoomSession, conn types.Connection, reason string) {
	if s.leaving.Load() || s.IsClosed() || s.Connection() != conn {
		return
	}

	kinds := m.media.EnabledKinds()
	s.logger.Warnw("connection lost", types.ErrConnectionLost, "reason", reason)
	prometheus.RecordConnectionLost()

	m.reconciler.ClearParticipants()
	if err := m.media.Release(); err != nil {
		s.logger.Warnw("could not release local media", err)
	}
	s.setConnection(nil)
	m.callbacks.error(types.ErrorKindConnectionLost, reason)

	if !m.params.Config.AutoReconnect || !s.tryUseReconnect() {
		m.transition(s, types.StateDisconnected)
		return
	}
	m.transition(s, types.StateReconnecting)
	go m.reconnect(s, kinds)
}

// reconnect makes the single automatic reconnect attempt with the session's credential.
func (m *SessionManager) reconnect(s *RoomSession, kinds []types.MediaKind) {
	ctx, cancel := context.WithTimeout(context.Background(), m.params.Config.ConnectTimeout)
	defer cancel()
	go func() {
		select {
		case <-s.closed.Watch():
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Infow("reconnecting")
	conn, err := m.params.Transport.Connect(ctx, s.Credential())
	if !s.events.EnqueueReliable(func() {
		m.finishReconnect(s, conn, err, kinds)
	}) && conn != nil {
		conn.Disconnect(true)
	}
}

func (m *SessionManager) finishReconnect(s *RoomSession, conn types.Connection, err error, kinds []types.MediaKind) {
	if s.leaving.Load() || s.IsClosed() {
		if conn != nil {
			conn.Disconnect(true)
		}
		return
	}
	if err != nil {
		s.logger.Warnw("reconnect failed", err)
		m.transition(s, types.StateDisconnected)
		return
	}

	if err := m.enumerate(s, conn); err != nil {
		conn.Disconnect(true)
		m.reconciler.ClearParticipants()
		m.transition(s, types.StateDisconnected)
		m.callbacks.error(types.KindOf(err), err.Error())
		return
	}

	s.setConnection(conn)
	m.media.Bind(conn)
	m.transition(s, types.StateConnected)
	conn.Listen(&sessionEvents{m: m, s: s, conn: conn})
	s.logger.Infow("reconnected")

	ctx, cancel := context.WithTimeout(context.Background(), m.params.Config.ConnectTimeout)
	defer cancel()
	for _, kind := range kinds {
		m.reportMediaError(kind, m.media.SetEnabled(ctx, kind, true))
	}
}

func (m *SessionManager) handleTransportReconnecting(s *RoomSession, conn types.Connection) {
	if s.Connection() != conn || s.State() != types.StateConnected {
		return
	}
	m.transition(s, types.StateReconnecting)
}

func (m *SessionManager) handleTransportReconnected(s *RoomSession, conn types.Connection) {
	if s.Connection() != conn || s.State() != types.StateReconnecting {
		return
	}
	m.transition(s, types.StateConnected)
}

// attachWorker is the polling fallback for remote tracks waiting on a render target.
func (m *SessionManager) attachWorker(s *RoomSession) {
	interval := m.params.Config.AttachInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed.Watch():
			return
		case <-ticker.C:
			if m.reconciler.HasPendingAttachments() {
				s.events.Enqueue(func() {
					m.reconciler.RetryPendingAttachments()
				})
			}
		}
	}
}
