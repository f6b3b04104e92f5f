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
	"strings"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/thoas/go-funk"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/rtc/types"
	"github.com/livekit/tutor-room/pkg/telemetry/prometheus"
)

const unknownSender = "Unknown"

type ReconcilerParams struct {
	AttachQueueSize int
	AttachAttempts  int
	ChatHistory     int
	Logger          logger.Logger
}

type remoteParticipant struct {
	types.Participant
	// handles of subscribed tracks
	subscribed map[types.MediaKind]types.MediaTrack
}

// Reconciler keeps the remote participant list and their track attachments consistent
// with transport events that may arrive in any order.
//
// RenderTarget Attach and Detach are invoked while the reconciler lock is held and must
// not call back into the reconciler.
type Reconciler struct {
	params    ReconcilerParams
	callbacks *callbackDispatcher

	lock         sync.Mutex
	participants map[string]*remoteParticipant
	// track state of identities not announced yet, promoted by ParticipantConnected
	early map[string]*remoteParticipant
	// identities that left; their late track events are dropped
	departed map[string]struct{}
	// identities in join order
	order   []string
	targets renderTargets
	pending *attachQueue
	chatLog deque.Deque[types.ChatMessage]
}

func NewReconciler(params ReconcilerParams, callbacks *SessionCallback) *Reconciler {
	return newReconciler(params, newCallbackDispatcher(callbacks))
}

func newReconciler(params ReconcilerParams, callbacks *callbackDispatcher) *Reconciler {
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	if params.ChatHistory <= 0 {
		params.ChatHistory = 1
	}
	return &Reconciler{
		params:       params,
		callbacks:    callbacks,
		participants: make(map[string]*remoteParticipant),
		early:        make(map[string]*remoteParticipant),
		departed:     make(map[string]struct{}),
		targets:      make(renderTargets),
		pending:      newAttachQueue(params.AttachQueueSize, params.AttachAttempts),
	}
}

// ParticipantConnected adds a remote participant. Repeated calls for a known identity are
// no-ops; track state reported before the participant was announced is taken over.
// Returns true when the participant list changed.
func (r *Reconciler) ParticipantConnected(info types.RemoteParticipantInfo) bool {
	r.lock.Lock()
	if _, ok := r.participants[info.Identity]; ok {
		r.lock.Unlock()
		r.params.Logger.Debugw("participant already known", "participant", info.Identity)
		return false
	}

	p, ok := r.early[info.Identity]
	if !ok {
		p = newRemoteParticipant(info.Identity)
	}
	delete(r.early, info.Identity)
	delete(r.departed, info.Identity)
	r.participants[info.Identity] = p
	r.order = append(r.order, info.Identity)

	role, name := DeriveRemoteParticipant(info.Identity, info.Name, info.Metadata)
	p.Role = role
	p.DisplayName = name

	subscribed := p.subscribed
	p.subscribed = make(map[types.MediaKind]types.MediaTrack)
	for _, ti := range info.Tracks {
		state := p.Tracks[ti.Kind]
		state.Published = true
		p.Tracks[ti.Kind] = state
		if ti.Subscribed && ti.Track != nil {
			subscribed[ti.Kind] = ti.Track
		}
	}
	for _, kind := range types.MediaKinds {
		if track := subscribed[kind]; track != nil {
			r.subscribeLocked(p, track)
		}
	}
	snapshot := r.snapshotLocked()
	r.lock.Unlock()

	r.params.Logger.Infow("participant connected",
		"participant", info.Identity,
		"name", name,
		"role", role,
	)
	r.callbacks.participantsChanged(snapshot)
	return true
}

// ParticipantDisconnected detaches every track of the participant, then removes it.
func (r *Reconciler) ParticipantDisconnected(identity string) {
	r.lock.Lock()
	delete(r.early, identity)
	r.departed[identity] = struct{}{}
	p, ok := r.participants[identity]
	if !ok {
		r.lock.Unlock()
		return
	}

	for _, kind := range types.MediaKinds {
		r.detachLocked(p, kind)
	}
	r.pending.takeParticipant(identity)

	delete(r.participants, identity)
	r.order = funk.FilterString(r.order, func(id string) bool {
		return id != identity
	})
	snapshot := r.snapshotLocked()
	r.lock.Unlock()

	r.params.Logger.Infow("participant disconnected", "participant", identity)
	r.callbacks.participantsChanged(snapshot)
}

func (r *Reconciler) TrackPublished(identity string, kind types.MediaKind) {
	r.lock.Lock()
	p, announced := r.lookupLocked(identity)
	if p == nil {
		r.lock.Unlock()
		r.params.Logger.Debugw("ignoring track of departed participant", "participant", identity, "kind", kind)
		return
	}
	state := p.Tracks[kind]
	state.Published = true
	p.Tracks[kind] = state
	if !announced {
		r.lock.Unlock()
		return
	}
	snapshot := r.snapshotLocked()
	r.lock.Unlock()

	r.callbacks.participantsChanged(snapshot)
}

func (r *Reconciler) TrackUnpublished(identity string, kind types.MediaKind) {
	r.lock.Lock()
	p, ok := r.participants[identity]
	if !ok {
		if e := r.early[identity]; e != nil {
			delete(e.subscribed, kind)
			delete(e.Tracks, kind)
		}
		r.lock.Unlock()
		return
	}
	r.unsubscribeLocked(p, kind)
	delete(p.Tracks, kind)
	snapshot := r.snapshotLocked()
	r.lock.Unlock()

	r.callbacks.participantsChanged(snapshot)
}

// TrackSubscribed attaches the track if a render target is registered for it, otherwise
// queues it for a lazy attach.
func (r *Reconciler) TrackSubscribed(identity string, track types.MediaTrack) {
	r.lock.Lock()
	p, announced := r.lookupLocked(identity)
	if p == nil {
		r.lock.Unlock()
		r.params.Logger.Debugw("ignoring track of departed participant", "participant", identity, "kind", track.Kind())
		return
	}
	if !announced {
		// attached once the participant is announced
		p.subscribed[track.Kind()] = track
		state := p.Tracks[track.Kind()]
		state.TrackID = track.ID()
		state.Published = true
		state.Subscribed = true
		p.Tracks[track.Kind()] = state
		r.lock.Unlock()
		return
	}
	r.subscribeLocked(p, track)
	snapshot := r.snapshotLocked()
	r.lock.Unlock()

	r.callbacks.participantsChanged(snapshot)
}

func (r *Reconciler) TrackUnsubscribed(identity string, track types.MediaTrack) {
	r.lock.Lock()
	p, ok := r.participants[identity]
	if !ok {
		if e := r.early[identity]; e != nil {
			delete(e.subscribed, track.Kind())
			if state, ok := e.Tracks[track.Kind()]; ok {
				state.Subscribed = false
				state.TrackID = ""
				e.Tracks[track.Kind()] = state
			}
		}
		r.lock.Unlock()
		return
	}
	r.unsubscribeLocked(p, track.Kind())
	snapshot := r.snapshotLocked()
	r.lock.Unlock()

	r.callbacks.participantsChanged(snapshot)
}

// DataReceived turns a data packet into a chat entry.
func (r *Reconciler) DataReceived(identity string, payload []byte) types.ChatMessage {
	r.lock.Lock()
	sender := unknownSender
	if p, ok := r.participants[identity]; ok && p.DisplayName != "" {
		sender = p.DisplayName
	}
	msg := types.ChatMessage{
		Sender:         sender,
		SenderIdentity: identity,
		Message:        strings.ToValidUTF8(string(payload), "\uFFFD"),
		ReceivedAt:     time.Now(),
	}
	r.appendChatLocked(msg)
	r.lock.Unlock()

	r.callbacks.chatMessage(msg)
	return msg
}

// AppendLocalChat records a message sent by the local participant.
func (r *Reconciler) AppendLocalChat(identity string, displayName string, message string) types.ChatMessage {
	msg := types.ChatMessage{
		Sender:         displayName,
		SenderIdentity: identity,
		Message:        message,
		ReceivedAt:     time.Now(),
	}
	r.lock.Lock()
	r.appendChatLocked(msg)
	r.lock.Unlock()

	r.callbacks.chatMessage(msg)
	return msg
}

// RegisterRenderTarget is the UI's signal that a surface for (identity, kind) exists.
// A subscribed track waiting for it is attached right away.
func (r *Reconciler) RegisterRenderTarget(identity string, kind types.MediaKind, target types.RenderTarget) {
	r.lock.Lock()
	key := trackKey{identity, kind}
	if prev := r.targets[key]; prev != nil && prev != target {
		if p, ok := r.participants[identity]; ok {
			r.detachLocked(p, kind)
			if track := p.subscribed[kind]; track != nil {
				r.queueLocked(&pendingAttach{trackKey: key, track: track})
			}
		}
	}
	r.targets[key] = target

	changed := false
	if pa := r.pending.take(identity, kind); pa != nil {
		if r.attachLocked(pa) {
			changed = true
		} else {
			r.queueLocked(pa)
		}
	}
	var snapshot []types.Participant
	if changed {
		snapshot = r.snapshotLocked()
	}
	r.lock.Unlock()

	if changed {
		r.callbacks.participantsChanged(snapshot)
	}
}

// UnregisterRenderTarget detaches whatever is attached to the target before it goes away.
func (r *Reconciler) UnregisterRenderTarget(identity string, kind types.MediaKind) {
	r.lock.Lock()
	key := trackKey{identity, kind}
	if _, ok := r.targets[key]; !ok {
		r.lock.Unlock()
		return
	}
	var snapshot []types.Participant
	if p, ok := r.participants[identity]; ok && p.Tracks[kind].IsAttached() {
		r.detachLocked(p, kind)
		snapshot = r.snapshotLocked()
	}
	delete(r.targets, key)
	r.lock.Unlock()

	if snapshot != nil {
		r.callbacks.participantsChanged(snapshot)
	}
}

// RetryPendingAttachments is the polling fallback for lazy attach. It returns the number of
// tracks still waiting.
func (r *Reconciler) RetryPendingAttachments() int {
	r.lock.Lock()
	if r.pending.len() == 0 {
		r.lock.Unlock()
		return 0
	}
	attached := false
	expired := r.pending.sweep(func(pa *pendingAttach) bool {
		if r.attachLocked(pa) {
			attached = true
			return true
		}
		return false
	})
	remaining := r.pending.len()
	var snapshot []types.Participant
	if attached {
		snapshot = r.snapshotLocked()
	}
	r.lock.Unlock()

	if attached {
		r.callbacks.participantsChanged(snapshot)
	}
	for _, pa := range expired {
		r.trackUnavailable(pa)
	}
	return remaining
}

// HasPendingAttachments reports whether any subscribed track waits for a render target.
func (r *Reconciler) HasPendingAttachments() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.pending.len() > 0
}

// DetachAll detaches every remote track from its render target. Participants are kept.
func (r *Reconciler) DetachAll() {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, p := range r.participants {
		for _, kind := range types.MediaKinds {
			r.detachLocked(p, kind)
		}
	}
	r.pending.clear()
}

// ClearParticipants detaches and forgets every remote participant.
func (r *Reconciler) ClearParticipants() {
	r.lock.Lock()
	hadParticipants := len(r.participants) > 0
	r.clearLocked()
	r.lock.Unlock()

	if hadParticipants {
		r.callbacks.participantsChanged([]types.Participant{})
	}
}

// Reset returns the reconciler to its initial state for a new session. Registered render
// targets are kept.
func (r *Reconciler) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.clearLocked()
	r.chatLog.Clear()
}

// Participants returns a snapshot of the remote participants in join order.
func (r *Reconciler) Participants() []types.Participant {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.snapshotLocked()
}

func (r *Reconciler) GetParticipant(identity string) (types.Participant, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	p, ok := r.participants[identity]
	if !ok {
		return types.Participant{}, false
	}
	return copyParticipant(p), true
}

func (r *Reconciler) RemoteCount() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.participants)
}

func (r *Reconciler) ChatLog() []types.ChatMessage {
	r.lock.Lock()
	defer r.lock.Unlock()

	msgs := make([]types.ChatMessage, 0, r.chatLog.Len())
	for i := 0; i < r.chatLog.Len(); i++ {
		msgs = append(msgs, r.chatLog.At(i))
	}
	return msgs
}

// lookupLocked returns the participant a track event belongs to and whether it has been
// announced. Events of unannounced identities collect in the early map; a nil participant
// means the identity already left.
func (r *Reconciler) lookupLocked(identity string) (*remoteParticipant, bool) {
	if p, ok := r.participants[identity]; ok {
		return p, true
	}
	if _, ok := r.departed[identity]; ok {
		return nil, false
	}
	p, ok := r.early[identity]
	if !ok {
		p = newRemoteParticipant(identity)
		r.early[identity] = p
	}
	return p, false
}

func (r *Reconciler) subscribeLocked(p *remoteParticipant, track types.MediaTrack) {
	kind := track.Kind()
	if prev := p.subscribed[kind]; prev != nil && prev.ID() != track.ID() {
		r.detachLocked(p, kind)
	}
	p.subscribed[kind] = track

	state := p.Tracks[kind]
	state.TrackID = track.ID()
	state.Published = true
	state.Subscribed = true
	p.Tracks[kind] = state

	if state.IsAttached() {
		return
	}
	pa := &pendingAttach{trackKey: trackKey{p.Identity, kind}, track: track}
	if r.attachLocked(pa) {
		return
	}
	// the first try counts as an attempt
	pa.attempts = 1
	r.queueLocked(pa)
}

func (r *Reconciler) unsubscribeLocked(p *remoteParticipant, kind types.MediaKind) {
	r.detachLocked(p, kind)
	r.pending.take(p.Identity, kind)
	delete(p.subscribed, kind)

	if state, ok := p.Tracks[kind]; ok {
		state.Subscribed = false
		state.TrackID = ""
		p.Tracks[kind] = state
	}
}

func (r *Reconciler) queueLocked(pa *pendingAttach) {
	if pa.attempts >= r.pending.maxAttempts {
		r.trackUnavailable(pa)
		return
	}
	if evicted := r.pending.push(pa); evicted != nil {
		r.trackUnavailable(evicted)
	}
	r.params.Logger.Debugw("track waiting for render target",
		"participant", pa.identity,
		"kind", pa.kind,
		"attempts", pa.attempts,
	)
}

func (r *Reconciler) attachLocked(pa *pendingAttach) bool {
	p, ok := r.participants[pa.identity]
	if !ok || p.subscribed[pa.kind] != pa.track {
		// stale entry, nothing to attach anymore
		return true
	}
	target := r.targets.lookup(pa.identity, pa.kind)
	if target == nil {
		return false
	}
	if err := target.Attach(pa.track); err != nil {
		r.params.Logger.Debugw("could not attach track", "error", err,
			"participant", pa.identity,
			"kind", pa.kind,
		)
		return false
	}
	state := p.Tracks[pa.kind]
	state.AttachedTo = target
	p.Tracks[pa.kind] = state
	r.params.Logger.Debugw("track attached", "participant", pa.identity, "kind", pa.kind)
	return true
}

func (r *Reconciler) detachLocked(p *remoteParticipant, kind types.MediaKind) {
	state, ok := p.Tracks[kind]
	if !ok || state.AttachedTo == nil {
		return
	}
	if track := p.subscribed[kind]; track != nil {
		state.AttachedTo.Detach(track)
	}
	state.AttachedTo = nil
	p.Tracks[kind] = state
}

func (r *Reconciler) clearLocked() {
	for _, p := range r.participants {
		for _, kind := range types.MediaKinds {
			r.detachLocked(p, kind)
		}
	}
	r.pending.clear()
	r.participants = make(map[string]*remoteParticipant)
	r.early = make(map[string]*remoteParticipant)
	r.departed = make(map[string]struct{})
	r.order = nil
}

func (r *Reconciler) appendChatLocked(msg types.ChatMessage) {
	for r.chatLog.Len() >= r.params.ChatHistory {
		r.chatLog.PopFront()
	}
	r.chatLog.PushBack(msg)
}

func (r *Reconciler) trackUnavailable(pa *pendingAttach) {
	r.params.Logger.Warnw("track unavailable", types.ErrTrackUnavailable,
		"participant", pa.identity,
		"kind", pa.kind,
		"attempts", pa.attempts,
	)
	prometheus.RecordTrackUnavailable(pa.kind.String())
	r.callbacks.trackUnavailable(pa.identity, pa.kind)
	r.callbacks.error(types.ErrorKindTrackUnavailable, pa.identity+" "+pa.kind.String())
}

func (r *Reconciler) snapshotLocked() []types.Participant {
	snapshot := make([]types.Participant, 0, len(r.order))
	for _, identity := range r.order {
		if p, ok := r.participants[identity]; ok {
			snapshot = append(snapshot, copyParticipant(p))
		}
	}
	return snapshot
}

func newRemoteParticipant(identity string) *remoteParticipant {
	return &remoteParticipant{
		Participant: types.Participant{
			Identity: identity,
			Role:     types.RoleStudent,
			Tracks:   make(map[types.MediaKind]types.TrackState),
		},
		subscribed: make(map[types.MediaKind]types.MediaTrack),
	}
}

func copyParticipant(p *remoteParticipant) types.Participant {
	c := p.Participant
	c.Tracks = make(map[types.MediaKind]types.TrackState, len(p.Tracks))
	for k, v := range p.Tracks {
		c.Tracks[k] = v
	}
	return c
}
