package typesfakes

import (
	"context"
	"sort"
	"sync"

	"github.com/livekit/tutor-room/pkg/rtc/types"
)

// FakeRenderTarget records attach and detach calls.
type FakeRenderTarget struct {
	Name      string
	AttachErr error
	OnCall    func(call string)

	lock     sync.Mutex
	attached map[string]bool
	attaches int
	detaches int
}

func NewFakeRenderTarget(name string) *FakeRenderTarget {
	return &FakeRenderTarget{Name: name}
}

func (r *FakeRenderTarget) Attach(track types.MediaTrack) error {
	r.lock.Lock()
	r.attaches++
	err := r.AttachErr
	if err == nil {
		if r.attached == nil {
			r.attached = make(map[string]bool)
		}
		r.attached[track.ID()] = true
	}
	r.lock.Unlock()

	if err == nil && r.OnCall != nil {
		r.OnCall("attach:" + r.Name + ":" + track.ID())
	}
	return err
}

func (r *FakeRenderTarget) Detach(track types.MediaTrack) {
	r.lock.Lock()
	r.detaches++
	delete(r.attached, track.ID())
	r.lock.Unlock()

	if r.OnCall != nil {
		r.OnCall("detach:" + r.Name + ":" + track.ID())
	}
}

func (r *FakeRenderTarget) SetAttachErr(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.AttachErr = err
}

func (r *FakeRenderTarget) IsAttached(trackID string) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.attached[trackID]
}

func (r *FakeRenderTarget) AttachCallCount() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.attaches
}

func (r *FakeRenderTarget) DetachCallCount() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.detaches
}

// FakeDevices hands out FakeLocalTracks, or the configured error per kind.
type FakeDevices struct {
	Errs map[types.MediaKind]error
	// returned by Stop of every acquired track
	StopErr error

	lock     sync.Mutex
	acquired []*FakeLocalTrack
}

func (d *FakeDevices) Acquire(_ context.Context, kind types.MediaKind) (types.LocalTrack, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.Errs[kind]; err != nil {
		return nil, err
	}
	track := &FakeLocalTrack{FakeMediaTrack: FakeMediaTrack{
		TrackID:   "local-" + kind.String(),
		TrackKind: kind,
	}, StopErr: d.StopErr}
	d.acquired = append(d.acquired, track)
	return track, nil
}

func (d *FakeDevices) Acquired() []*FakeLocalTrack {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]*FakeLocalTrack(nil), d.acquired...)
}

type FetchAccessTokenArgs struct {
	RoomID      string
	Identity    string
	DisplayName string
	Metadata    types.ParticipantMetadata
}

// FakeTokenSource returns queued errors first, then credentials for ServerURL.
type FakeTokenSource struct {
	ServerURL string
	// returned by successive calls; nil entries succeed
	Errs []error
	// when set, every call fails with it
	Err error

	CanJoin     bool
	CapacityErr error

	lock          sync.Mutex
	calls         []FetchAccessTokenArgs
	capacityCalls int
}

func (f *FakeTokenSource) FetchAccessToken(
	ctx context.Context,
	roomID string,
	identity string,
	displayName string,
	metadata types.ParticipantMetadata,
) (types.Credential, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls = append(f.calls, FetchAccessTokenArgs{
		RoomID:      roomID,
		Identity:    identity,
		DisplayName: displayName,
		Metadata:    metadata,
	})
	if err := ctx.Err(); err != nil {
		return types.Credential{}, err
	}
	if f.Err != nil {
		return types.Credential{}, f.Err
	}
	if len(f.Errs) > 0 {
		err := f.Errs[0]
		f.Errs = f.Errs[1:]
		if err != nil {
			return types.Credential{}, err
		}
	}
	return types.Credential{
		Token:     "token-" + identity,
		ServerURL: f.ServerURL,
		RoomID:    roomID,
		Identity:  identity,
	}, nil
}

func (f *FakeTokenSource) CheckCapacity(_ context.Context, _ string) (bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.capacityCalls++
	return f.CanJoin, f.CapacityErr
}

func (f *FakeTokenSource) FetchAccessTokenCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.calls)
}

func (f *FakeTokenSource) FetchAccessTokenArgsForCall(i int) FetchAccessTokenArgs {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls[i]
}

func (f *FakeTokenSource) CheckCapacityCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.capacityCalls
}

type FakeRoomAdmin struct {
	CreateErr error
	DeleteErr error
	OnCall    func(call string)

	lock    sync.Mutex
	created []string
	deleted []string
}

func (a *FakeRoomAdmin) CreateRoom(_ context.Context, roomID string, _ int, _ types.RoomMetadata) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.created = append(a.created, roomID)
	return a.CreateErr
}

func (a *FakeRoomAdmin) DeleteRoom(_ context.Context, roomID string) error {
	if a.OnCall != nil {
		a.OnCall("delete:" + roomID)
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	a.deleted = append(a.deleted, roomID)
	return a.DeleteErr
}

func (a *FakeRoomAdmin) Created() []string {
	a.lock.Lock()
	defer a.lock.Unlock()
	return append([]string(nil), a.created...)
}

func (a *FakeRoomAdmin) Deleted() []string {
	a.lock.Lock()
	defer a.lock.Unlock()
	return append([]string(nil), a.deleted...)
}

type FakeSessionStore struct {
	UpsertErr error
	RemoveErr error

	lock    sync.Mutex
	records map[string]types.StoredSessionRecord
}

func (s *FakeSessionStore) List(_ context.Context) ([]types.StoredSessionRecord, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	records := make([]types.StoredSessionRecord, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RoomID < records[j].RoomID
	})
	return records, nil
}

func (s *FakeSessionStore) Upsert(_ context.Context, record types.StoredSessionRecord) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	if s.records == nil {
		s.records = make(map[string]types.StoredSessionRecord)
	}
	s.records[record.RoomID] = record
	return nil
}

func (s *FakeSessionStore) Remove(_ context.Context, roomID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.RemoveErr != nil {
		return s.RemoveErr
	}
	delete(s.records, roomID)
	return nil
}

func (s *FakeSessionStore) Get(roomID string) (types.StoredSessionRecord, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	r, ok := s.records[roomID]
	return r, ok
}
