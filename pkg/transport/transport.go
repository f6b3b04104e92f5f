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

package transport

import (
	"context"
	"errors"

	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/rtc/types"
)

// ChatTopic is the data channel topic chat messages are published on.
const ChatTopic = "chat"

var (
	ErrMissingServerURL = errors.New("credential has no server url")
	ErrUnsupportedTrack = errors.New("track was not created by this transport")
)

// LiveKitTransport opens room connections with the LiveKit Go SDK.
type LiveKitTransport struct {
	logger logger.Logger
}

func NewLiveKitTransport(log logger.Logger) *LiveKitTransport {
	if log == nil {
		log = logger.GetLogger()
	}
	return &LiveKitTransport{logger: log}
}

// Connect joins the room named by cred. The SDK join is not cancellable, so a join that
// completes after ctx is done is disconnected in the background.
func (t *LiveKitTransport) Connect(ctx context.Context, cred types.Credential) (types.Connection, error) {
	if cred.ServerURL == "" {
		return nil, ErrMissingServerURL
	}

	c := newRoomConnection(t.logger.WithValues("room", cred.RoomID, "identity", cred.Identity))
	room := lksdk.NewRoom(c.roomCallback())
	room.SetLogger(c.logger)
	c.room = room

	done := make(chan error, 1)
	go func() {
		done <- room.JoinWithToken(cred.ServerURL, cred.Token)
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
		c.logger.Debugw("room connected", "url", cred.ServerURL, "sid", room.Name())
		return c, nil
	case <-ctx.Done():
		go func() {
			if err := <-done; err == nil {
				c.logger.Debugw("disconnecting abandoned connection")
				c.Disconnect(true)
			}
		}()
		return nil, ctx.Err()
	}
}

// mediaKind maps a LiveKit track onto camera or microphone. Screen shares are not tracked.
func mediaKind(kind lksdk.TrackKind, source livekit.TrackSource) (types.MediaKind, bool) {
	switch source {
	case livekit.TrackSource_CAMERA:
		return types.MediaKindCamera, true
	case livekit.TrackSource_MICROPHONE:
		return types.MediaKindMicrophone, true
	case livekit.TrackSource_UNKNOWN:
		switch kind {
		case lksdk.TrackKindVideo:
			return types.MediaKindCamera, true
		case lksdk.TrackKindAudio:
			return types.MediaKindMicrophone, true
		}
	}
	return 0, false
}

func trackSource(kind types.MediaKind) livekit.TrackSource {
	if kind == types.MediaKindCamera {
		return livekit.TrackSource_CAMERA
	}
	return livekit.TrackSource_MICROPHONE
}
