package service

import (
	"cmp"
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/admission"
	"github.com/livekit/tutor-room/pkg/rtc"
	"github.com/livekit/tutor-room/pkg/telemetry/prometheus"
)

const maxRequestBody = 64 << 10

func (s *AdmissionServer) handleToken(w http.ResponseWriter, r *http.Request) {
	var req admission.TokenRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, ErrInvalidRequestBody)
		return
	}

	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = req.Identity
	}
	token, err := s.tokens.Issue(req.RoomID, req.Identity, name, req.Metadata)
	prometheus.RecordServiceOperation("token", err)
	if err != nil {
		logger.Infow("could not issue token", "error", err, "room", req.RoomID, "identity", req.Identity)
		writeError(w, err)
		return
	}

	role, _ := rtc.DeriveRemoteParticipant(req.Identity, name, req.Metadata)
	prometheus.RecordTokenIssued(role.String())
	logger.Debugw("issued token", "room", req.RoomID, "identity", req.Identity, "role", role)

	writeJSON(w, http.StatusOK, &admission.TokenResponse{
		Credential: token,
		URL:        s.conf.LiveKit.URL,
		RoomID:     req.RoomID,
		Identity:   req.Identity,
		Status:     admission.StatusSuccess,
	})
}

// handleCreateRoom creates the room, or returns it when it already exists. The participant
// cap never exceeds the configured maximum.
func (s *AdmissionServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req admission.CreateRoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, ErrInvalidRequestBody)
		return
	}
	if req.RoomID == "" {
		writeError(w, ErrNoRoomName)
		return
	}

	maxParticipants := s.conf.Session.MaxParticipants
	if req.MaxParticipants > 0 && req.MaxParticipants < maxParticipants {
		maxParticipants = req.MaxParticipants
	}

	// concurrent creates of one room share a single upstream call
	ctx := context.WithoutCancel(r.Context())
	res, err, shared := s.creates.Do(req.RoomID, func() (interface{}, error) {
		return s.provider.CreateRoom(ctx, &livekit.CreateRoomRequest{
			Name:            req.RoomID,
			EmptyTimeout:    s.conf.LiveKit.EmptyTimeout,
			MaxParticipants: uint32(maxParticipants),
			Metadata:        req.Metadata,
		})
	})
	prometheus.RecordRoomOperation("create", err)
	if err != nil {
		logger.Warnw("could not create room", err, "room", req.RoomID)
		writeError(w, err)
		return
	}

	room := res.(*livekit.Room)
	logger.Infow("room created", "room", room.Name, "sid", room.Sid, "maxParticipants", room.MaxParticipants, "shared", shared)
	writeJSON(w, http.StatusCreated, &admission.CreateRoomResponse{
		Status: admission.StatusSuccess,
		Room:   s.roomInfo(room),
	})
}

// handleDeleteRoom treats an unknown room as already deleted.
func (s *AdmissionServer) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	if roomID == "" {
		writeError(w, ErrNoRoomName)
		return
	}

	err := s.provider.DeleteRoom(r.Context(), roomID)
	if IsNotFound(err) {
		logger.Debugw("room already deleted", "room", roomID)
		err = nil
	}
	prometheus.RecordRoomOperation("delete", err)
	if err != nil {
		logger.Warnw("could not delete room", err, "room", roomID)
		writeError(w, err)
		return
	}

	logger.Infow("room deleted", "room", roomID)
	writeJSON(w, http.StatusOK, &admission.StatusResponse{Status: admission.StatusSuccess})
}

// handleCapacity reports whether one more participant fits. Rooms that do not exist yet
// are created empty on first join.
func (s *AdmissionServer) handleCapacity(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")

	res := &admission.CapacityResponse{
		CanJoin:         true,
		MaxParticipants: s.conf.Session.MaxParticipants,
	}
	room, err := s.provider.GetRoom(r.Context(), roomID)
	switch {
	case IsNotFound(err):
	case err != nil:
		logger.Warnw("could not load room", err, "room", roomID)
		writeError(w, err)
		return
	default:
		info := s.roomInfo(room)
		res.Participants = info.NumParticipants
		res.MaxParticipants = info.MaxParticipants
		res.CanJoin = info.NumParticipants < info.MaxParticipants
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *AdmissionServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.provider.ListRooms(r.Context())
	prometheus.RecordRoomOperation("list", err)
	if err != nil {
		logger.Warnw("could not list rooms", err)
		writeError(w, err)
		return
	}

	slices.SortFunc(rooms, func(a, b *livekit.Room) int {
		if c := cmp.Compare(b.CreationTime, a.CreationTime); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	res := &admission.ListRoomsResponse{
		Status: admission.StatusSuccess,
		Rooms:  make([]admission.RoomInfo, 0, len(rooms)),
	}
	for _, room := range rooms {
		res.Rooms = append(res.Rooms, *s.roomInfo(room))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *AdmissionServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	res := &admission.HealthResponse{
		Status:            admission.StatusHealthy,
		ServiceType:       s.provider.Kind(),
		LiveKitConfigured: s.provider.Kind() == ProviderKindLiveKit,
		Timestamp:         time.Now().Unix(),
	}
	rooms, err := s.provider.ListRooms(r.Context())
	if err != nil {
		res.Status = admission.StatusUnhealthy
		res.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, res)
		return
	}
	res.RoomsCount = len(rooms)
	writeJSON(w, http.StatusOK, res)
}

func (s *AdmissionServer) roomInfo(room *livekit.Room) *admission.RoomInfo {
	maxParticipants := int(room.MaxParticipants)
	if maxParticipants == 0 {
		maxParticipants = s.conf.Session.MaxParticipants
	}
	return &admission.RoomInfo{
		RoomID:          room.Name,
		Metadata:        room.Metadata,
		NumParticipants: int(room.NumParticipants),
		MaxParticipants: maxParticipants,
		CreatedAt:       room.CreationTime,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debugw("could not write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := httpStatus(err)
	writeJSON(w, status, &admission.StatusResponse{
		Status: admission.StatusError,
		Error:  msg,
	})
}
