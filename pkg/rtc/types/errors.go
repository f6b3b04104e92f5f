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

package types

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindAdmissionDenied
	ErrorKindAdmissionUnreachable
	ErrorKindMalformedResponse
	ErrorKindRoomFull
	ErrorKindConnectionLost
	ErrorKindMediaUnavailable
	ErrorKindNotConnected
	ErrorKindMissingIdentity
	ErrorKindTeardownPartialFailure
	ErrorKindTrackUnavailable
	ErrorKindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindAdmissionDenied:
		return "AdmissionDenied"
	case ErrorKindAdmissionUnreachable:
		return "AdmissionUnreachable"
	case ErrorKindMalformedResponse:
		return "MalformedResponse"
	case ErrorKindRoomFull:
		return "RoomFull"
	case ErrorKindConnectionLost:
		return "ConnectionLost"
	case ErrorKindMediaUnavailable:
		return "MediaUnavailable"
	case ErrorKindNotConnected:
		return "NotConnected"
	case ErrorKindMissingIdentity:
		return "MissingIdentity"
	case ErrorKindTeardownPartialFailure:
		return "TeardownPartialFailure"
	case ErrorKindTrackUnavailable:
		return "TrackUnavailable"
	case ErrorKindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

var (
	ErrAdmissionDenied        = errors.New("admission denied")
	ErrAdmissionUnreachable   = errors.New("admission service unreachable")
	ErrMalformedResponse      = errors.New("malformed admission response")
	ErrRoomFull               = errors.New("room is full")
	ErrConnectionLost         = errors.New("connection lost")
	ErrMediaUnavailable       = errors.New("media device unavailable")
	ErrNotConnected           = errors.New("not connected")
	ErrMissingIdentity        = errors.New("display name is required")
	ErrTeardownPartialFailure = errors.New("teardown partially failed")
	ErrTrackUnavailable       = errors.New("track unavailable")
	ErrPermissionDenied       = errors.New("device permission denied")
)

var kindSentinels = []struct {
	kind ErrorKind
	err  error
}{
	{ErrorKindAdmissionDenied, ErrAdmissionDenied},
	{ErrorKindAdmissionUnreachable, ErrAdmissionUnreachable},
	{ErrorKindMalformedResponse, ErrMalformedResponse},
	{ErrorKindRoomFull, ErrRoomFull},
	{ErrorKindConnectionLost, ErrConnectionLost},
	{ErrorKindMediaUnavailable, ErrMediaUnavailable},
	{ErrorKindNotConnected, ErrNotConnected},
	{ErrorKindMissingIdentity, ErrMissingIdentity},
	{ErrorKindTeardownPartialFailure, ErrTeardownPartialFailure},
	{ErrorKindTrackUnavailable, ErrTrackUnavailable},
}

// KindOf classifies err against the session error taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}
	for _, s := range kindSentinels {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	if errors.Is(err, context.Canceled) {
		return ErrorKindCanceled
	}
	return ErrorKindUnknown
}

// IsRetryable reports whether a join attempt that failed with err may be retried.
// Transport connect failures are unclassified and therefore retryable.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case ErrorKindAdmissionUnreachable, ErrorKindUnknown:
		return !errors.Is(err, context.Canceled)
	default:
		return false
	}
}

func NewError(kind ErrorKind, format string, args ...interface{}) error {
	for _, s := range kindSentinels {
		if s.kind == kind {
			return fmt.Errorf("%w: %s", s.err, fmt.Sprintf(format, args...))
		}
	}
	return fmt.Errorf(format, args...)
}
