package rtc

import (
	"github.com/livekit/tutor-room/pkg/rtc/types"
	"github.com/livekit/tutor-room/pkg/telemetry/prometheus"
)

// sessionEvents feeds the events of one connection into the session's queue.
type sessionEvents struct {
	m    *SessionManager
	s    *RoomSession
	conn types.Connection
}

// enqueue queues a presence, track or connection event. These are never dropped; a full
// queue parks them until the queue catches up.
func (e *sessionEvents) enqueue(op func()) {
	e.s.events.EnqueueReliable(e.guard(op))
}

// enqueueDroppable queues an event that may be lost when the queue is full.
func (e *sessionEvents) enqueueDroppable(event string, op func()) {
	if !e.s.events.Enqueue(e.guard(op)) && !e.s.IsClosed() {
		e.s.logger.Warnw("dropped transport event", nil, "event", event)
	}
}

func (e *sessionEvents) guard(op func()) func() {
	return func() {
		if e.s.IsClosed() || e.s.Connection() != e.conn {
			return
		}
		op()
	}
}

func (e *sessionEvents) OnParticipantConnected(p types.RemoteParticipantInfo) {
	if p.Identity == e.s.Identity {
		return
	}
	e.enqueue(func() {
		e.m.reconciler.ParticipantConnected(p)
	})
}

func (e *sessionEvents) OnParticipantDisconnected(identity string) {
	e.enqueue(func() {
		e.m.reconciler.ParticipantDisconnected(identity)
	})
}

func (e *sessionEvents) OnTrackPublished(identity string, kind types.MediaKind) {
	e.enqueue(func() {
		e.m.reconciler.TrackPublished(identity, kind)
	})
}

func (e *sessionEvents) OnTrackUnpublished(identity string, kind types.MediaKind) {
	e.enqueue(func() {
		e.m.reconciler.TrackUnpublished(identity, kind)
	})
}

func (e *sessionEvents) OnTrackSubscribed(identity string, track types.MediaTrack) {
	e.enqueue(func() {
		e.m.reconciler.TrackSubscribed(identity, track)
	})
}

func (e *sessionEvents) OnTrackUnsubscribed(identity string, track types.MediaTrack) {
	e.enqueue(func() {
		e.m.reconciler.TrackUnsubscribed(identity, track)
	})
}

func (e *sessionEvents) OnDataReceived(identity string, payload []byte) {
	e.enqueueDroppable("data", func() {
		e.m.reconciler.DataReceived(identity, payload)
		prometheus.RecordChatMessage(false)
	})
}

func (e *sessionEvents) OnReconnecting() {
	e.enqueue(func() {
		e.m.handleTransportReconnecting(e.s, e.conn)
	})
}

func (e *sessionEvents) OnReconnected() {
	e.enqueue(func() {
		e.m.handleTransportReconnected(e.s, e.conn)
	})
}

func (e *sessionEvents) OnDisconnected(reason string) {
	e.enqueue(func() {
		e.m.handleDisconnected(e.s, e.conn, reason)
	})
}
