package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/deque"
	"github.com/pion/webrtc/v4"
	"go.uber.org/atomic"

	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/rtc/types"
)

// RemoteTrack is a subscribed LiveKit track. UIs render it through Remote.
type RemoteTrack struct {
	sid   string
	kind  types.MediaKind
	track *webrtc.TrackRemote
}

func (t *RemoteTrack) ID() string {
	return t.sid
}

func (t *RemoteTrack) Kind() types.MediaKind {
	return t.kind
}

func (t *RemoteTrack) Remote() *webrtc.TrackRemote {
	return t.track
}

type roomConnection struct {
	logger  logger.Logger
	room    *lksdk.Room
	closing atomic.Bool

	lock      sync.Mutex
	events    types.TransportEvents
	pending   deque.Deque[func(types.TransportEvents)]
	published []*SampleTrack
}

func newRoomConnection(log logger.Logger) *roomConnection {
	return &roomConnection{logger: log}
}

func (c *roomConnection) roomCallback() *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackPublished:    c.onTrackPublished,
			OnTrackUnpublished:  c.onTrackUnpublished,
			OnTrackSubscribed:   c.onTrackSubscribed,
			OnTrackUnsubscribed: c.onTrackUnsubscribed,
			OnDataPacket:        c.onDataPacket,
		},
		OnParticipantConnected:    c.onParticipantConnected,
		OnParticipantDisconnected: c.onParticipantDisconnected,
		OnDisconnectedWithReason:  c.onDisconnected,
		OnReconnecting:            c.onReconnecting,
		OnReconnected:             c.onReconnected,
	}
}

func (c *roomConnection) RemoteParticipants() []types.RemoteParticipantInfo {
	if c.room == nil {
		return nil
	}
	rps := c.room.GetRemoteParticipants()
	infos := make([]types.RemoteParticipantInfo, 0, len(rps))
	for _, rp := range rps {
		infos = append(infos, participantInfo(rp))
	}
	return infos
}

// Listen delivers the events buffered since the connection opened, then live events.
func (c *roomConnection) Listen(events types.TransportEvents) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for c.pending.Len() > 0 {
		c.pending.PopFront()(events)
	}
	c.events = events
}

func (c *roomConnection) dispatch(fn func(types.TransportEvents)) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.events == nil {
		c.pending.PushBack(fn)
		return
	}
	fn(c.events)
}

func (c *roomConnection) PublishTrack(track types.LocalTrack) (types.LocalPublication, error) {
	st, ok := track.(*SampleTrack)
	if !ok {
		return nil, ErrUnsupportedTrack
	}
	if c.closing.Load() || c.room == nil {
		return nil, types.ErrNotConnected
	}

	pub, err := c.room.LocalParticipant.PublishTrack(st.TrackLocal(), &lksdk.TrackPublicationOptions{
		Name:   st.Kind().String(),
		Source: trackSource(st.Kind()),
	})
	if err != nil {
		return nil, err
	}

	c.lock.Lock()
	c.published = append(c.published, st)
	c.lock.Unlock()

	c.logger.Debugw("published track", "kind", st.Kind(), "sid", pub.SID())
	return &localPublication{conn: c, pub: pub}, nil
}

func (c *roomConnection) SendData(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.closing.Load() || c.room == nil {
		return types.ErrNotConnected
	}
	return c.room.LocalParticipant.PublishDataPacket(
		&lksdk.UserDataPacket{Payload: payload, Topic: ChatTopic},
		lksdk.WithDataPublishReliable(true),
	)
}

func (c *roomConnection) Disconnect(stopTracks bool) {
	if !c.closing.CompareAndSwap(false, true) {
		return
	}
	if c.room != nil {
		c.room.Disconnect()
	}

	c.lock.Lock()
	published := c.published
	c.published = nil
	c.pending.Clear()
	c.lock.Unlock()

	if stopTracks {
		for _, st := range published {
			_ = st.Stop()
		}
	}
	c.logger.Debugw("room disconnected", "stopTracks", stopTracks)
}

func (c *roomConnection) onParticipantConnected(rp *lksdk.RemoteParticipant) {
	info := participantInfo(rp)
	c.dispatch(func(e types.TransportEvents) {
		e.OnParticipantConnected(info)
	})
}

func (c *roomConnection) onParticipantDisconnected(rp *lksdk.RemoteParticipant) {
	identity := rp.Identity()
	c.dispatch(func(e types.TransportEvents) {
		e.OnParticipantDisconnected(identity)
	})
}

func (c *roomConnection) onTrackPublished(pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	kind, ok := mediaKind(pub.Kind(), pub.Source())
	if !ok {
		return
	}
	identity := rp.Identity()
	c.dispatch(func(e types.TransportEvents) {
		e.OnTrackPublished(identity, kind)
	})
}

func (c *roomConnection) onTrackUnpublished(pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	kind, ok := mediaKind(pub.Kind(), pub.Source())
	if !ok {
		return
	}
	identity := rp.Identity()
	c.dispatch(func(e types.TransportEvents) {
		e.OnTrackUnpublished(identity, kind)
	})
}

func (c *roomConnection) onTrackSubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	kind, ok := mediaKind(pub.Kind(), pub.Source())
	if !ok {
		return
	}
	identity := rp.Identity()
	rt := &RemoteTrack{sid: pub.SID(), kind: kind, track: track}
	c.dispatch(func(e types.TransportEvents) {
		e.OnTrackSubscribed(identity, rt)
	})
}

func (c *roomConnection) onTrackUnsubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	kind, ok := mediaKind(pub.Kind(), pub.Source())
	if !ok {
		return
	}
	identity := rp.Identity()
	rt := &RemoteTrack{sid: pub.SID(), kind: kind, track: track}
	c.dispatch(func(e types.TransportEvents) {
		e.OnTrackUnsubscribed(identity, rt)
	})
}

func (c *roomConnection) onDataPacket(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
	packet, ok := data.(*lksdk.UserDataPacket)
	if !ok {
		return
	}
	if params.Topic != "" && params.Topic != ChatTopic {
		c.logger.Debugw("ignoring data packet", "topic", params.Topic, "sender", params.SenderIdentity)
		return
	}
	identity := params.SenderIdentity
	payload := append([]byte(nil), packet.Payload...)
	c.dispatch(func(e types.TransportEvents) {
		e.OnDataReceived(identity, payload)
	})
}

func (c *roomConnection) onReconnecting() {
	c.dispatch(func(e types.TransportEvents) {
		e.OnReconnecting()
	})
}

func (c *roomConnection) onReconnected() {
	c.dispatch(func(e types.TransportEvents) {
		e.OnReconnected()
	})
}

func (c *roomConnection) onDisconnected(reason lksdk.DisconnectionReason) {
	if c.closing.Load() {
		return
	}
	msg := fmt.Sprint(reason)
	c.logger.Infow("room disconnected by server", "reason", msg)
	c.dispatch(func(e types.TransportEvents) {
		e.OnDisconnected(msg)
	})
}

type localPublication struct {
	conn *roomConnection
	pub  *lksdk.LocalTrackPublication
}

func (p *localPublication) SetMuted(muted bool) error {
	if p.conn.closing.Load() {
		return types.ErrNotConnected
	}
	p.pub.SetMuted(muted)
	return nil
}

func (p *localPublication) Unpublish() error {
	if p.conn.closing.Load() {
		return nil
	}
	return p.conn.room.LocalParticipant.UnpublishTrack(p.pub.SID())
}

func participantInfo(rp *lksdk.RemoteParticipant) types.RemoteParticipantInfo {
	info := types.RemoteParticipantInfo{
		Identity: rp.Identity(),
		Name:     rp.Name(),
		Metadata: rp.Metadata(),
	}
	for _, tp := range rp.TrackPublications() {
		pub, ok := tp.(*lksdk.RemoteTrackPublication)
		if !ok {
			continue
		}
		kind, ok := mediaKind(pub.Kind(), pub.Source())
		if !ok {
			continue
		}
		ti := types.RemoteTrackInfo{Kind: kind}
		if remote := pub.TrackRemote(); remote != nil && pub.IsSubscribed() {
			ti.Track = &RemoteTrack{sid: pub.SID(), kind: kind, track: remote}
			ti.Subscribed = true
		}
		info.Tracks = append(info.Tracks, ti)
	}
	return info
}
