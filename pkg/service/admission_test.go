package service_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"

	"github.com/livekit/tutor-room/pkg/admission"
	"github.com/livekit/tutor-room/pkg/config"
	"github.com/livekit/tutor-room/pkg/rtc/types"
	"github.com/livekit/tutor-room/pkg/service"
	"github.com/livekit/tutor-room/pkg/testutils"
)

type brokenProvider struct {
	service.RoomProvider
	err error
}

func (p *brokenProvider) ListRooms(context.Context) ([]*livekit.Room, error) {
	return nil, p.err
}

func (p *brokenProvider) DeleteRoom(context.Context, string) error {
	return p.err
}

type panickingProvider struct {
	service.RoomProvider
}

func (p *panickingProvider) GetRoom(context.Context, string) (*livekit.Room, error) {
	panic("lost the room")
}

type admissionTest struct {
	conf   *config.Config
	store  *service.LocalRoomStore
	server *service.AdmissionServer
	client *admission.Client
	url    string
}

func newAdmissionTest(t *testing.T, wrap func(service.RoomProvider) service.RoomProvider) *admissionTest {
	conf := config.DefaultConfig
	conf.Server.CORSOrigins = []string{"https://tutor.example.com"}

	store := service.NewLocalRoomStore()
	var provider service.RoomProvider = service.NewStoreRoomProvider(store)
	if wrap != nil {
		provider = wrap(provider)
	}
	s := service.NewAdmissionServer(&conf, provider, service.NewTokenIssuer(&conf))

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return &admissionTest{
		conf:   &conf,
		store:  store,
		server: s,
		client: admission.NewClient(config.AdmissionConfig{URL: ts.URL, Timeout: 5 * time.Second}, nil),
		url:    ts.URL,
	}
}

func TestIssueToken(t *testing.T) {
	ctx := context.Background()
	at := newAdmissionTest(t, nil)

	md := types.ParticipantMetadata{IsTutor: true, OriginalName: "Dr. Smith"}
	cred, err := at.client.FetchAccessToken(ctx, "physics", "Dr. Smith#a1b2", "Dr. Smith", md)
	require.NoError(t, err)
	require.Equal(t, "physics", cred.RoomID)
	require.Equal(t, at.conf.LiveKit.URL, cred.ServerURL)

	v, err := auth.ParseAPIToken(cred.Token)
	require.NoError(t, err)
	require.Equal(t, at.conf.Server.DevAPIKey, v.APIKey())

	grants, err := v.Verify(at.conf.Server.DevAPISecret)
	require.NoError(t, err)
	require.Equal(t, "Dr. Smith#a1b2", grants.Identity)
	require.Equal(t, "Dr. Smith", grants.Name)
	require.Equal(t, "physics", grants.Video.Room)
	require.True(t, grants.Video.RoomJoin)
	require.Contains(t, grants.Metadata, `"isTutor":true`)

	t.Run("identity required", func(t *testing.T) {
		_, err := at.client.FetchAccessToken(ctx, "physics", "", "Anon", types.ParticipantMetadata{})
		require.ErrorIs(t, err, types.ErrAdmissionDenied)
		require.Contains(t, err.Error(), "identity")
	})

	t.Run("room required", func(t *testing.T) {
		_, err := at.client.FetchAccessToken(ctx, "", "alice", "Alice", types.ParticipantMetadata{})
		require.ErrorIs(t, err, types.ErrAdmissionDenied)
	})

	t.Run("malformed body", func(t *testing.T) {
		res, err := http.Post(at.url+"/tokens", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestRoomLifecycle(t *testing.T) {
	ctx := context.Background()
	at := newAdmissionTest(t, nil)

	require.NoError(t, at.client.CreateRoom(ctx, "physics", 5, types.RoomMetadata{TutorName: "Dr. Smith", Subject: "physics"}))

	rooms, err := at.client.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, "physics", rooms[0].RoomID)
	require.Equal(t, 2, rooms[0].MaxParticipants)
	require.Contains(t, rooms[0].Metadata, "Dr. Smith")

	stored, err := at.store.LoadRoom(ctx, "physics")
	require.NoError(t, err)
	require.EqualValues(t, 300, stored.EmptyTimeout)

	canJoin, err := at.client.CheckCapacity(ctx, "physics")
	require.NoError(t, err)
	require.True(t, canJoin)

	require.NoError(t, at.client.DeleteRoom(ctx, "physics"))
	rooms, err = at.client.ListRooms(ctx)
	require.NoError(t, err)
	require.Empty(t, rooms)

	t.Run("deleting an unknown room succeeds", func(t *testing.T) {
		require.NoError(t, at.client.DeleteRoom(ctx, "physics"))
	})

	t.Run("room id required", func(t *testing.T) {
		err := at.client.CreateRoom(ctx, "", 2, types.RoomMetadata{})
		require.ErrorIs(t, err, types.ErrAdmissionDenied)
	})

	t.Run("concurrent creates", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- at.client.CreateRoom(ctx, "chem", 2, types.RoomMetadata{Subject: "chemistry"})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		rooms, err := at.client.ListRooms(ctx)
		require.NoError(t, err)
		require.Len(t, rooms, 1)
	})
}

func TestCapacity(t *testing.T) {
	ctx := context.Background()
	at := newAdmissionTest(t, nil)

	canJoin, err := at.client.CheckCapacity(ctx, "not-created-yet")
	require.NoError(t, err)
	require.True(t, canJoin)

	require.NoError(t, at.store.StoreRoom(ctx, &livekit.Room{Name: "busy", MaxParticipants: 2, NumParticipants: 1}))
	canJoin, err = at.client.CheckCapacity(ctx, "busy")
	require.NoError(t, err)
	require.True(t, canJoin)

	require.NoError(t, at.store.StoreRoom(ctx, &livekit.Room{Name: "full", MaxParticipants: 2, NumParticipants: 2}))
	canJoin, err = at.client.CheckCapacity(ctx, "full")
	require.NoError(t, err)
	require.False(t, canJoin)
}

func TestProviderFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("server errors are unreachable", func(t *testing.T) {
		at := newAdmissionTest(t, func(p service.RoomProvider) service.RoomProvider {
			return &brokenProvider{RoomProvider: p, err: errors.New("redis down")}
		})

		err := at.client.DeleteRoom(ctx, "physics")
		require.ErrorIs(t, err, types.ErrAdmissionUnreachable)

		_, err = at.client.Health(ctx)
		require.ErrorIs(t, err, types.ErrAdmissionUnreachable)
	})

	t.Run("panics are recovered", func(t *testing.T) {
		at := newAdmissionTest(t, func(p service.RoomProvider) service.RoomProvider {
			return &panickingProvider{RoomProvider: p}
		})

		_, err := at.client.CheckCapacity(ctx, "physics")
		require.ErrorIs(t, err, types.ErrAdmissionUnreachable)

		// the server keeps serving
		_, err = at.client.ListRooms(ctx)
		require.NoError(t, err)
	})
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	at := newAdmissionTest(t, nil)
	require.NoError(t, at.client.CreateRoom(ctx, "physics", 2, types.RoomMetadata{}))

	res, err := at.client.Health(ctx)
	require.NoError(t, err)
	require.Equal(t, admission.StatusHealthy, res.Status)
	require.Equal(t, service.ProviderKindLocal, res.ServiceType)
	require.False(t, res.LiveKitConfigured)
	require.Equal(t, 1, res.RoomsCount)
}

func TestCORS(t *testing.T) {
	at := newAdmissionTest(t, nil)

	req, err := http.NewRequest(http.MethodOptions, at.url+"/tokens", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://tutor.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, "https://tutor.example.com", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestAdmissionServerStartStop(t *testing.T) {
	conf := config.DefaultConfig
	conf.Server.Port = 0
	conf.Server.BindAddresses = []string{"127.0.0.1"}
	s := service.NewAdmissionServer(&conf, service.NewStoreRoomProvider(service.NewLocalRoomStore()), service.NewTokenIssuer(&conf))

	done := make(chan error, 1)
	go func() {
		done <- s.Start()
	}()
	testutils.WithTimeout(t, func() string {
		if !s.IsRunning() {
			return "server not running"
		}
		return ""
	})
	require.Error(t, s.Start())

	s.Stop(false)
	require.False(t, s.IsRunning())
	require.NoError(t, <-done)
}
