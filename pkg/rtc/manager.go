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
	"strings"
	"sync"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/config"
	"github.com/livekit/tutor-room/pkg/rtc/types"
	"github.com/livekit/tutor-room/pkg/telemetry/prometheus"
)

const storeTimeout = 5 * time.Second

type SessionManagerParams struct {
	Config config.SessionConfig
	// used when the admission API does not return a server url
	LiveKitURL string

	Identity  types.IdentityResolver
	Tokens    types.TokenSource
	Admin     types.RoomAdmin
	Transport types.Transport
	Devices   types.MediaDevices
	Store     types.SessionStore
	Registry  *Registry
	Logger    logger.Logger
	Callback  *SessionCallback

	// Wait blocks for the retry backoff. Defaults to a timer.
	Wait func(ctx context.Context, d time.Duration) error
}

// SessionManager owns at most one live room session and drives it through the connection
// state machine on behalf of the UI.
type SessionManager struct {
	params      SessionManagerParams
	logger      logger.Logger
	callbacks   *callbackDispatcher
	reconciler  *Reconciler
	media       *LocalMedia
	registry    *Registry
	storeWorker *workerpool.WorkerPool

	// serializes Join and Leave
	joinLock sync.Mutex

	lock       sync.RWMutex
	state      types.ConnectionState
	session    *RoomSession
	cancelJoin context.CancelFunc
	joinSeq    uint64
}

func NewSessionManager(params SessionManagerParams) *SessionManager {
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	if params.Wait == nil {
		params.Wait = waitFor
	}
	if params.Registry == nil {
		params.Registry = NewRegistry()
	}
	if params.Config.MaxRetryAttempts <= 0 {
		params.Config.MaxRetryAttempts = config.DefaultConfig.Session.MaxRetryAttempts
	}
	if params.Config.MaxParticipants <= 0 {
		params.Config.MaxParticipants = config.DefaultConfig.Session.MaxParticipants
	}
	if params.Config.ConnectTimeout <= 0 {
		params.Config.ConnectTimeout = config.DefaultConfig.Session.ConnectTimeout
	}
	if params.Config.EventQueueSize <= 0 {
		params.Config.EventQueueSize = config.DefaultConfig.Session.EventQueueSize
	}

	callbacks := newCallbackDispatcher(params.Callback)
	m := &SessionManager{
		params:    params,
		logger:    params.Logger,
		callbacks: callbacks,
		reconciler: newReconciler(ReconcilerParams{
			AttachQueueSize: params.Config.AttachQueueSize,
			AttachAttempts:  params.Config.AttachAttempts,
			ChatHistory:     params.Config.ChatHistory,
			Logger:          params.Logger,
		}, callbacks),
		media:       NewLocalMedia(params.Devices, params.Logger),
		registry:    params.Registry,
		storeWorker: workerpool.New(1),
	}
	return m
}

func (m *SessionManager) State() types.ConnectionState {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.state
}

// Session returns the current session, nil when idle.
func (m *SessionManager) Session() *RoomSession {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.session
}

func (m *SessionManager) Registry() *Registry {
	return m.registry
}

func (m *SessionManager) Participants() []types.Participant {
	return m.reconciler.Participants()
}

func (m *SessionManager) ChatLog() []types.ChatMessage {
	return m.reconciler.ChatLog()
}

func (m *SessionManager) RegisterRenderTarget(identity string, kind types.MediaKind, target types.RenderTarget) {
	m.reconciler.RegisterRenderTarget(identity, kind, target)
}

func (m *SessionManager) UnregisterRenderTarget(identity string, kind types.MediaKind) {
	m.reconciler.UnregisterRenderTarget(identity, kind)
}

func (m *SessionManager) SetLocalPreview(kind types.MediaKind, target types.RenderTarget) {
	m.media.SetPreview(kind, target)
}

// CancelJoin aborts a join in progress. It is a no-op when no join is running.
func (m *SessionManager) CancelJoin() {
	m.lock.Lock()
	cancel := m.cancelJoin
	m.cancelJoin = nil
	m.lock.Unlock()

	if cancel != nil {
		m.logger.Infow("canceling join")
		cancel()
	}
}

func (m *SessionManager) EnableCameraAndMicrophone(ctx context.Context) MediaResult {
	if m.State() != types.StateConnected {
		return MediaResult{Camera: types.ErrNotConnected, Microphone: types.ErrNotConnected}
	}
	res := m.media.EnableCameraAndMicrophone(ctx)
	m.reportMediaError(types.MediaKindCamera, res.Camera)
	m.reportMediaError(types.MediaKindMicrophone, res.Microphone)
	return res
}

func (m *SessionManager) SetCameraEnabled(ctx context.Context, enabled bool) error {
	return m.setMediaEnabled(ctx, types.MediaKindCamera, enabled)
}

func (m *SessionManager) SetMicrophoneEnabled(ctx context.Context, enabled bool) error {
	return m.setMediaEnabled(ctx, types.MediaKindMicrophone, enabled)
}

func (m *SessionManager) IsMediaEnabled(kind types.MediaKind) bool {
	return m.media.IsEnabled(kind)
}

func (m *SessionManager) setMediaEnabled(ctx context.Context, kind types.MediaKind, enabled bool) error {
	if m.State() != types.StateConnected {
		return types.ErrNotConnected
	}
	err := m.media.SetEnabled(ctx, kind, enabled)
	m.reportMediaError(kind, err)
	return err
}

func (m *SessionManager) reportMediaError(kind types.MediaKind, err error) {
	if err == nil || types.KindOf(err) != types.ErrorKindMediaUnavailable {
		return
	}
	m.logger.Warnw("media unavailable", err, "kind", kind)
	m.callbacks.error(types.ErrorKindMediaUnavailable, err.Error())
}

// SendChat publishes a chat message to the room and adds it to the local chat log.
func (m *SessionManager) SendChat(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	s := m.Session()
	if s == nil || m.State() != types.StateConnected {
		return types.ErrNotConnected
	}
	conn := s.Connection()
	if conn == nil {
		return types.ErrNotConnected
	}
	if err := conn.SendData(ctx, []byte(message)); err != nil {
		s.logger.Warnw("could not send chat message", err)
		return err
	}
	m.reconciler.AppendLocalChat(s.Identity, s.DisplayName, message)
	prometheus.RecordChatMessage(true)
	return nil
}

// CreateRoom asks the admission API for a room capped at the configured participant count
// and records it in the session store.
func (m *SessionManager) CreateRoom(ctx context.Context, roomID string, metadata types.RoomMetadata) error {
	if roomID == "" {
		return ErrRoomIDRequired
	}
	if m.params.Admin == nil {
		return types.NewError(types.ErrorKindAdmissionUnreachable, "no room admin configured")
	}
	if err := m.params.Admin.CreateRoom(ctx, roomID, m.params.Config.MaxParticipants, metadata); err != nil {
		return err
	}
	m.logger.Infow("created room", "room", roomID, "subject", metadata.Subject)
	m.upsertRecord(types.StoredSessionRecord{
		RoomID:          roomID,
		TutorName:       metadata.TutorName,
		Subject:         metadata.Subject,
		ParticipantName: metadata.ParticipantName,
		Timestamp:       time.Now(),
	})
	return nil
}

// Close leaves the current session and releases the manager's workers.
func (m *SessionManager) Close() {
	m.Leave(context.Background())
	m.storeWorker.StopWait()
	m.callbacks.stop()
}

// Flush waits for callbacks and session store writes issued so far.
func (m *SessionManager) Flush() {
	if !m.storeWorker.Stopped() {
		m.storeWorker.SubmitWait(func() {})
	}
	m.callbacks.flush()
}

func (m *SessionManager) upsertRecord(rec types.StoredSessionRecord) {
	store := m.params.Store
	if store == nil {
		return
	}
	m.storeWorker.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := store.Upsert(ctx, rec); err != nil {
			m.logger.Warnw("could not store session", err, "room", rec.RoomID)
		}
	})
}

func (m *SessionManager) removeRecord(roomID string) {
	store := m.params.Store
	if store == nil {
		return
	}
	m.storeWorker.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := store.Remove(ctx, roomID); err != nil {
			m.logger.Warnw("could not remove stored session", err, "room", roomID)
		}
	})
}

func waitFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
