package admission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/tutor-room/pkg/config"
	"github.com/livekit/tutor-room/pkg/rtc/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(config.AdmissionConfig{URL: srv.URL + "/", Timeout: time.Second}, nil), &calls
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestFetchAccessToken(t *testing.T) {
	var got TokenRequest
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tokens", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, &TokenResponse{Credential: "jwt", URL: "ws://lk.local"})
	})

	cred, err := c.FetchAccessToken(context.Background(), "physics-demo", "alice", "Alice", types.ParticipantMetadata{
		IsTutor:      true,
		OriginalName: "Alice",
	})
	require.NoError(t, err)
	require.Equal(t, "jwt", cred.Token)
	require.Equal(t, "ws://lk.local", cred.ServerURL)
	require.Equal(t, "physics-demo", cred.RoomID)
	require.Equal(t, int32(1), calls.Load())

	require.Equal(t, "physics-demo", got.RoomID)
	require.Equal(t, "alice", got.Identity)
	require.Equal(t, "Alice", got.DisplayName)
	require.JSONEq(t, `{"isTutor":true,"originalName":"Alice"}`, got.Metadata)
}

func TestFetchAccessToken_Errors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		kind    types.ErrorKind
	}{
		{
			name: "rejected",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusForbidden, &StatusResponse{Status: StatusError, Error: "not allowed"})
			},
			kind: types.ErrorKindAdmissionDenied,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusInternalServerError, &StatusResponse{Status: StatusError, Error: "boom"})
			},
			kind: types.ErrorKindAdmissionUnreachable,
		},
		{
			name: "throttled",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusTooManyRequests, &StatusResponse{Status: StatusError, Error: "slow down"})
			},
			kind: types.ErrorKindAdmissionUnreachable,
		},
		{
			name: "request timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusRequestTimeout)
			},
			kind: types.ErrorKindAdmissionUnreachable,
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest, &StatusResponse{Status: StatusError, Error: "identity is required"})
			},
			kind: types.ErrorKindAdmissionDenied,
		},
		{
			name: "missing credential",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
			},
			kind: types.ErrorKindMalformedResponse,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			kind: types.ErrorKindMalformedResponse,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, calls := newTestClient(t, tc.handler)
			_, err := c.FetchAccessToken(context.Background(), "room", "alice", "Alice", types.ParticipantMetadata{})
			require.Error(t, err)
			require.Equal(t, tc.kind, types.KindOf(err))
			// never retried internally
			require.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestFetchAccessToken_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(config.AdmissionConfig{URL: srv.URL}, nil)
	_, err := c.FetchAccessToken(context.Background(), "room", "alice", "Alice", types.ParticipantMetadata{})
	require.ErrorIs(t, err, types.ErrAdmissionUnreachable)
	require.True(t, types.IsRetryable(err))
}

func TestFetchAccessToken_Canceled(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchAccessToken(ctx, "room", "alice", "Alice", types.ParticipantMetadata{})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, types.IsRetryable(err))
}

func TestRoomCalls(t *testing.T) {
	var deleted, created string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/rooms":
			var req CreateRoomRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			created = req.RoomID
			require.Equal(t, 2, req.MaxParticipants)
			require.JSONEq(t, `{"tutorName":"Bob Tutor","subject":"physics","participantName":"Alice"}`, req.Metadata)
			writeJSON(w, http.StatusOK, &CreateRoomResponse{Status: StatusSuccess})
		case r.Method == http.MethodDelete && r.URL.Path == "/rooms/physics-demo":
			deleted = "physics-demo"
			writeJSON(w, http.StatusOK, &StatusResponse{Status: StatusSuccess})
		case r.Method == http.MethodGet && r.URL.Path == "/rooms/physics-demo/capacity":
			writeJSON(w, http.StatusOK, &CapacityResponse{CanJoin: false, Participants: 2, MaxParticipants: 2})
		case r.Method == http.MethodGet && r.URL.Path == "/rooms":
			writeJSON(w, http.StatusOK, &ListRoomsResponse{Status: StatusSuccess, Rooms: []RoomInfo{{RoomID: "physics-demo"}}})
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	require.NoError(t, c.CreateRoom(ctx, "physics-demo", 2, types.RoomMetadata{
		TutorName:       "Bob Tutor",
		Subject:         "physics",
		ParticipantName: "Alice",
	}))
	require.Equal(t, "physics-demo", created)

	canJoin, err := c.CheckCapacity(ctx, "physics-demo")
	require.NoError(t, err)
	require.False(t, canJoin)

	rooms, err := c.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	require.NoError(t, c.DeleteRoom(ctx, "physics-demo"))
	require.Equal(t, "physics-demo", deleted)

	err = c.DeleteRoom(ctx, "unknown")
	require.ErrorIs(t, err, types.ErrAdmissionDenied)
}
