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
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/rtc/types"
)

// MediaResult reports per device outcome of enabling camera and microphone.
type MediaResult struct {
	Camera     error
	Microphone error
}

func (m MediaResult) Err() error {
	return multierr.Combine(m.Camera, m.Microphone)
}

type localTrack struct {
	track   types.LocalTrack
	pub     types.LocalPublication
	enabled bool
}

// LocalMedia owns the local camera and microphone tracks of a session.
type LocalMedia struct {
	devices types.MediaDevices
	logger  logger.Logger

	lock     sync.Mutex
	conn     types.Connection
	tracks   map[types.MediaKind]*localTrack
	previews map[types.MediaKind]types.RenderTarget
}

func NewLocalMedia(devices types.MediaDevices, log logger.Logger) *LocalMedia {
	if log == nil {
		log = logger.GetLogger()
	}
	return &LocalMedia{
		devices:  devices,
		logger:   log,
		tracks:   make(map[types.MediaKind]*localTrack),
		previews: make(map[types.MediaKind]types.RenderTarget),
	}
}

// Bind sets the connection tracks are published on.
func (m *LocalMedia) Bind(conn types.Connection) {
	m.lock.Lock()
	m.conn = conn
	m.lock.Unlock()
}

func (m *LocalMedia) EnableCameraAndMicrophone(ctx context.Context) MediaResult {
	return MediaResult{
		Camera:     m.SetEnabled(ctx, types.MediaKindCamera, true),
		Microphone: m.SetEnabled(ctx, types.MediaKindMicrophone, true),
	}
}

// SetEnabled publishes the device on first enable and mutes/unmutes afterwards.
func (m *LocalMedia) SetEnabled(ctx context.Context, kind types.MediaKind, enabled bool) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.conn == nil {
		return types.ErrNotConnected
	}

	lt := m.tracks[kind]
	if !enabled {
		if lt == nil || !lt.enabled {
			return nil
		}
		if err := lt.pub.SetMuted(true); err != nil {
			return err
		}
		lt.enabled = false
		if preview := m.previews[kind]; preview != nil {
			preview.Detach(lt.track)
		}
		m.logger.Debugw("local track disabled", "kind", kind)
		return nil
	}

	if lt != nil {
		if lt.enabled {
			return nil
		}
		if err := lt.pub.SetMuted(false); err != nil {
			return err
		}
		lt.enabled = true
		m.attachPreviewLocked(kind, lt)
		m.logger.Debugw("local track enabled", "kind", kind)
		return nil
	}

	if m.devices == nil {
		return fmt.Errorf("%w: no %s device", types.ErrMediaUnavailable, kind)
	}
	track, err := m.devices.Acquire(ctx, kind)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", types.ErrMediaUnavailable, kind, err)
	}
	pub, err := m.conn.PublishTrack(track)
	if err != nil {
		_ = track.Stop()
		return fmt.Errorf("%w: could not publish %s: %w", types.ErrMediaUnavailable, kind, err)
	}

	lt = &localTrack{
		track:   track,
		pub:     pub,
		enabled: true,
	}
	m.tracks[kind] = lt
	m.attachPreviewLocked(kind, lt)
	m.logger.Infow("published local track", "kind", kind, "track", track.ID())
	return nil
}

func (m *LocalMedia) IsEnabled(kind types.MediaKind) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	lt := m.tracks[kind]
	return lt != nil && lt.enabled
}

func (m *LocalMedia) EnabledKinds() []types.MediaKind {
	m.lock.Lock()
	defer m.lock.Unlock()

	var kinds []types.MediaKind
	for _, kind := range types.MediaKinds {
		if lt := m.tracks[kind]; lt != nil && lt.enabled {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// SetPreview attaches the local track of kind to target, now or once it is published.
// A nil target removes the preview.
func (m *LocalMedia) SetPreview(kind types.MediaKind, target types.RenderTarget) {
	m.lock.Lock()
	defer m.lock.Unlock()

	lt := m.tracks[kind]
	if prev := m.previews[kind]; prev != nil && lt != nil {
		prev.Detach(lt.track)
	}
	if target == nil {
		delete(m.previews, kind)
		return
	}
	m.previews[kind] = target
	if lt != nil && lt.enabled {
		m.attachPreviewLocked(kind, lt)
	}
}

// DisableAll mutes every published device.
func (m *LocalMedia) DisableAll() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	var errs error
	for _, kind := range types.MediaKinds {
		lt := m.tracks[kind]
		if lt == nil || !lt.enabled {
			continue
		}
		if err := lt.pub.SetMuted(true); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("could not disable %s: %w", kind, err))
			continue
		}
		lt.enabled = false
	}
	return errs
}

// Release detaches previews, stops every local track and unbinds the connection.
func (m *LocalMedia) Release() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	var errs error
	for _, kind := range types.MediaKinds {
		lt := m.tracks[kind]
		if lt == nil {
			continue
		}
		if preview := m.previews[kind]; preview != nil {
			preview.Detach(lt.track)
		}
		if err := lt.track.Stop(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("could not stop %s: %w", kind, err))
		}
		delete(m.tracks, kind)
	}
	m.conn = nil
	return errs
}

func (m *LocalMedia) attachPreviewLocked(kind types.MediaKind, lt *localTrack) {
	preview := m.previews[kind]
	if preview == nil {
		return
	}
	if err := preview.Attach(lt.track); err != nil {
		m.logger.Debugw("could not attach local preview", "error", err, "kind", kind)
	}
}
