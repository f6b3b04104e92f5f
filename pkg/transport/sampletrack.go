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
	"io"
	"os"
	"time"

	"github.com/frostbyte73/core"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/rtc/types"
	"github.com/livekit/tutor-room/pkg/utils"
)

const trackPrefix = "TR_local_"

// SampleTrack is a local capture track fed from a media file, or from generated frames
// when no file is set. Camera files are IVF (VP8), microphone files are Ogg (Opus).
type SampleTrack struct {
	kind    types.MediaKind
	track   *webrtc.TrackLocalStaticSample
	path    string
	logger  logger.Logger
	stopped core.Fuse

	ogg       *oggreader.OggReader
	ivfheader *ivfreader.IVFFileHeader
	ivf       *ivfreader.IVFReader
}

func NewSampleTrack(kind types.MediaKind, path string, log logger.Logger) (*SampleTrack, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	codec := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}
	if kind == types.MediaKindMicrophone {
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	}
	track, err := webrtc.NewTrackLocalStaticSample(codec, utils.NewGuid(trackPrefix), kind.String())
	if err != nil {
		return nil, err
	}
	return &SampleTrack{
		kind:   kind,
		track:  track,
		path:   path,
		logger: log,
	}, nil
}

func (t *SampleTrack) ID() string {
	return t.track.ID()
}

func (t *SampleTrack) Kind() types.MediaKind {
	return t.kind
}

func (t *SampleTrack) TrackLocal() webrtc.TrackLocal {
	return t.track
}

// Start begins writing samples until Stop is called or the file is exhausted.
func (t *SampleTrack) Start() error {
	if t.path == "" {
		go t.writeNull()
		return nil
	}

	file, err := os.Open(t.path)
	if err != nil {
		return err
	}

	t.logger.Debugw("starting sample writer", "trackID", t.track.ID(), "kind", t.kind, "file", t.path)
	switch t.kind {
	case types.MediaKindMicrophone:
		t.ogg, _, err = oggreader.NewWith(file)
		if err != nil {
			_ = file.Close()
			return err
		}
		go t.writeOgg(file)
	default:
		t.ivf, t.ivfheader, err = ivfreader.NewWith(file)
		if err != nil {
			_ = file.Close()
			return err
		}
		go t.writeVP8(file)
	}
	return nil
}

func (t *SampleTrack) Stop() error {
	t.stopped.Break()
	return nil
}

func (t *SampleTrack) IsStopped() bool {
	return t.stopped.IsBroken()
}

func (t *SampleTrack) writeNull() {
	sample := media.Sample{Data: []byte{0x0, 0xff, 0xff, 0xff, 0xff}, Duration: 30 * time.Millisecond}
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := t.track.WriteSample(sample); err != nil {
				t.logger.Debugw("could not write sample", "error", err)
			}
		case <-t.stopped.Watch():
			return
		}
	}
}

func (t *SampleTrack) writeOgg(file io.Closer) {
	defer file.Close()

	// the granule difference is the amount of samples in the page
	var lastGranule uint64
	for !t.stopped.IsBroken() {
		pageData, pageHeader, err := t.ogg.ParseNextPage()
		if err == io.EOF {
			t.logger.Debugw("all audio samples sent", "trackID", t.track.ID())
			return
		}
		if err != nil {
			t.logger.Errorw("could not parse ogg page", err)
			return
		}

		sampleCount := float64(pageHeader.GranulePosition - lastGranule)
		lastGranule = pageHeader.GranulePosition
		sampleDuration := time.Duration((sampleCount/48000)*1000) * time.Millisecond

		if err = t.track.WriteSample(media.Sample{Data: pageData, Duration: sampleDuration}); err != nil {
			t.logger.Errorw("could not write sample", err)
			return
		}

		select {
		case <-time.After(sampleDuration):
		case <-t.stopped.Watch():
			return
		}
	}
}

func (t *SampleTrack) writeVP8(file io.Closer) {
	defer file.Close()

	// paced at the file's frame rate
	frameDuration := time.Millisecond * time.Duration((float32(t.ivfheader.TimebaseNumerator)/float32(t.ivfheader.TimebaseDenominator))*1000)
	for !t.stopped.IsBroken() {
		frame, _, err := t.ivf.ParseNextFrame()
		if err == io.EOF {
			t.logger.Debugw("all video frames sent", "trackID", t.track.ID())
			return
		}
		if err != nil {
			t.logger.Errorw("could not parse VP8 frame", err)
			return
		}

		select {
		case <-time.After(frameDuration):
		case <-t.stopped.Watch():
			return
		}
		if err = t.track.WriteSample(media.Sample{Data: frame, Duration: frameDuration}); err != nil {
			t.logger.Errorw("could not write sample", err)
			return
		}
	}
}
