package typesfakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/livekit/tutor-room/pkg/rtc/types"
)

type FakeMediaTrack struct {
	TrackID   string
	TrackKind types.MediaKind
}

func NewFakeMediaTrack(id string, kind types.MediaKind) *FakeMediaTrack {
	return &FakeMediaTrack{TrackID: id, TrackKind: kind}
}

func (t *FakeMediaTrack) ID() string {
	return t.TrackID
}

func (t *FakeMediaTrack) Kind() types.MediaKind {
	return t.TrackKind
}

type FakeLocalTrack struct {
	FakeMediaTrack
	StopErr error

	lock    sync.Mutex
	stopped int
}

func (t *FakeLocalTrack) Stop() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.stopped++
	return t.StopErr
}

func (t *FakeLocalTrack) StopCallCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.stopped
}

type FakeLocalPublication struct {
	SetMutedErr error

	lock        sync.Mutex
	muted       bool
	unpublished bool
}

func (p *FakeLocalPublication) SetMuted(muted bool) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.SetMutedErr != nil {
		return p.SetMutedErr
	}
	p.muted = muted
	return nil
}

func (p *FakeLocalPublication) Unpublish() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.unpublished = true
	return nil
}

func (p *FakeLocalPublication) IsMuted() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.muted
}

// FakeConnection records what the session does with a room connection. Tests drive
// transport events through Events once the session has called Listen.
type FakeConnection struct {
	Remotes    []types.RemoteParticipantInfo
	PublishErr error
	SendErr    error

	lock         sync.Mutex
	events       types.TransportEvents
	published    []types.LocalTrack
	publications []*FakeLocalPublication
	sent         [][]byte
	disconnects  int
	stopTracks   bool
	// ordered record of calls, shared with other fakes through OnCall
	OnCall func(call string)
}

func (c *FakeConnection) RemoteParticipants() []types.RemoteParticipantInfo {
	c.record("remoteParticipants")
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]types.RemoteParticipantInfo(nil), c.Remotes...)
}

func (c *FakeConnection) Listen(events types.TransportEvents) {
	c.record("listen")
	c.lock.Lock()
	defer c.lock.Unlock()
	c.events = events
}

func (c *FakeConnection) Events() types.TransportEvents {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.events
}

func (c *FakeConnection) IsListening() bool {
	return c.Events() != nil
}

func (c *FakeConnection) PublishTrack(track types.LocalTrack) (types.LocalPublication, error) {
	c.record("publish:" + track.Kind().String())
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.PublishErr != nil {
		return nil, c.PublishErr
	}
	pub := &FakeLocalPublication{}
	c.published = append(c.published, track)
	c.publications = append(c.publications, pub)
	return pub, nil
}

func (c *FakeConnection) Published() []types.LocalTrack {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]types.LocalTrack(nil), c.published...)
}

func (c *FakeConnection) Publications() []*FakeLocalPublication {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]*FakeLocalPublication(nil), c.publications...)
}

func (c *FakeConnection) SendData(_ context.Context, payload []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.SendErr != nil {
		return c.SendErr
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *FakeConnection) Sent() [][]byte {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([][]byte(nil), c.sent...)
}

func (c *FakeConnection) Disconnect(stopTracks bool) {
	c.record(fmt.Sprintf("disconnect:%t", stopTracks))
	c.lock.Lock()
	defer c.lock.Unlock()
	c.disconnects++
	c.stopTracks = stopTracks
}

func (c *FakeConnection) DisconnectCallCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.disconnects
}

func (c *FakeConnection) DisconnectedWithStopTracks() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.disconnects > 0 && c.stopTracks
}

func (c *FakeConnection) record(call string) {
	if c.OnCall != nil {
		c.OnCall(call)
	}
}

// FakeTransport hands out FakeConnections. ConnectStub, when set, replaces the default.
type FakeTransport struct {
	// remote participants of the next connections
	Remotes     []types.RemoteParticipantInfo
	ConnectStub func(ctx context.Context, cred types.Credential) (types.Connection, error)
	OnCall      func(call string)

	lock  sync.Mutex
	creds []types.Credential
	conns []*FakeConnection
}

func (t *FakeTransport) Connect(ctx context.Context, cred types.Credential) (types.Connection, error) {
	t.lock.Lock()
	t.creds = append(t.creds, cred)
	stub := t.ConnectStub
	t.lock.Unlock()

	if stub != nil {
		conn, err := stub(ctx, cred)
		if fc, ok := conn.(*FakeConnection); ok && err == nil {
			t.lock.Lock()
			t.conns = append(t.conns, fc)
			t.lock.Unlock()
		}
		return conn, err
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	conn := &FakeConnection{
		Remotes: append([]types.RemoteParticipantInfo(nil), t.Remotes...),
		OnCall:  t.OnCall,
	}
	t.conns = append(t.conns, conn)
	return conn, nil
}

func (t *FakeTransport) ConnectCallCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.creds)
}

func (t *FakeTransport) Credentials() []types.Credential {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]types.Credential(nil), t.creds...)
}

func (t *FakeTransport) Connections() []*FakeConnection {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]*FakeConnection(nil), t.conns...)
}

// LastConnection returns the most recent connection, nil if none.
func (t *FakeTransport) LastConnection() *FakeConnection {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}
