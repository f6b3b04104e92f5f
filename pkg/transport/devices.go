package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/config"
	"github.com/livekit/tutor-room/pkg/rtc/types"
)

var (
	ErrNoSource        = errors.New("no media source configured")
	ErrUnsupportedFile = errors.New("unsupported media file")
)

var extKinds = map[string]types.MediaKind{
	".ivf": types.MediaKindCamera,
	".ogg": types.MediaKindMicrophone,
}

// FileDevices stands in for capture devices on headless clients: the camera plays an IVF
// file and the microphone an Ogg file, or generated frames when synthetic media is enabled.
type FileDevices struct {
	conf   config.MediaConfig
	logger logger.Logger
}

func NewFileDevices(conf config.MediaConfig, log logger.Logger) *FileDevices {
	if log == nil {
		log = logger.GetLogger()
	}
	return &FileDevices{conf: conf, logger: log}
}

func (d *FileDevices) Acquire(ctx context.Context, kind types.MediaKind) (types.LocalTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := d.conf.CameraFile
	if kind == types.MediaKindMicrophone {
		path = d.conf.MicrophoneFile
	}
	if path == "" && !d.conf.Synthetic {
		return nil, fmt.Errorf("%w for %s", ErrNoSource, kind)
	}
	if path != "" {
		if err := checkFile(path, kind); err != nil {
			return nil, err
		}
	}

	track, err := NewSampleTrack(kind, path, d.logger)
	if err != nil {
		return nil, err
	}
	if err := track.Start(); err != nil {
		return nil, err
	}
	return track, nil
}

func checkFile(path string, kind types.MediaKind) error {
	if k, ok := extKinds[strings.ToLower(filepath.Ext(path))]; !ok || k != kind {
		return fmt.Errorf("%w: %s cannot be used as %s", ErrUnsupportedFile, filepath.Base(path), kind)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %s", types.ErrPermissionDenied, path)
		}
		return err
	}
	return nil
}
