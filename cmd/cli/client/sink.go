package client

import (
	"sync"

	"github.com/frostbyte73/core"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/rtc/types"
	"github.com/livekit/tutor-room/pkg/transport"
)

const maxPacketSize = 1500

var _ types.RenderTarget = (*TrackSink)(nil)

// TrackSink stands in for a video element or audio output in the terminal. Remote tracks
// attached to it are drained and counted.
type TrackSink struct {
	name   string
	logger logger.Logger

	lock     sync.Mutex
	track    types.MediaTrack
	detached *core.Fuse

	bytes   atomic.Uint64
	packets atomic.Uint64
}

func NewTrackSink(name string, log logger.Logger) *TrackSink {
	return &TrackSink{
		name:   name,
		logger: log,
	}
}

func (s *TrackSink) Attach(track types.MediaTrack) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.track != nil && s.track.ID() == track.ID() {
		return nil
	}
	s.detachLocked()

	s.track = track
	s.detached = &core.Fuse{}
	s.bytes.Store(0)
	s.packets.Store(0)
	s.logger.Debugw("attached track", "sink", s.name, "trackID", track.ID())

	if rt, ok := track.(*transport.RemoteTrack); ok && rt.Remote() != nil {
		go s.drain(rt, s.detached)
	}
	return nil
}

func (s *TrackSink) Detach(track types.MediaTrack) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.track == nil || s.track.ID() != track.ID() {
		return
	}
	s.detachLocked()
}

func (s *TrackSink) detachLocked() {
	if s.track == nil {
		return
	}
	s.logger.Debugw("detached track", "sink", s.name, "trackID", s.track.ID())
	s.detached.Break()
	s.track = nil
	s.detached = nil
}

// Stats returns the attached track and what has been received from it.
func (s *TrackSink) Stats() (trackID string, bytes uint64, packets uint64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.track == nil {
		return "", 0, 0
	}
	return s.track.ID(), s.bytes.Load(), s.packets.Load()
}

func (s *TrackSink) drain(rt *transport.RemoteTrack, detached *core.Fuse) {
	buf := make([]byte, maxPacketSize)
	for !detached.IsBroken() {
		n, _, err := rt.Remote().Read(buf)
		if err != nil {
			s.logger.Debugw("track ended", "sink", s.name, "trackID", rt.ID(), "error", err)
			return
		}
		if detached.IsBroken() {
			return
		}
		s.bytes.Add(uint64(n))
		s.packets.Inc()
	}
}
