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
	"github.com/gammazero/workerpool"

	"github.com/livekit/tutor-room/pkg/rtc/types"
)

// SessionCallback is how the UI observes a session. Unset callbacks are ignored.
type SessionCallback struct {
	OnStateChange         func(state types.ConnectionState)
	OnParticipantsChanged func(participants []types.Participant)
	OnChatMessage         func(msg types.ChatMessage)
	OnError               func(kind types.ErrorKind, detail string)
	// a subscribed remote track never found a render target
	OnTrackUnavailable func(identity string, kind types.MediaKind)
}

// callbackDispatcher delivers callbacks in order on a single worker, off the session's locks.
type callbackDispatcher struct {
	cb *SessionCallback
	wp *workerpool.WorkerPool
}

func newCallbackDispatcher(cb *SessionCallback) *callbackDispatcher {
	if cb == nil {
		cb = &SessionCallback{}
	}
	return &callbackDispatcher{
		cb: cb,
		wp: workerpool.New(1),
	}
}

func (d *callbackDispatcher) stateChanged(state types.ConnectionState) {
	if f := d.cb.OnStateChange; f != nil {
		d.wp.Submit(func() { f(state) })
	}
}

func (d *callbackDispatcher) participantsChanged(participants []types.Participant) {
	if f := d.cb.OnParticipantsChanged; f != nil {
		d.wp.Submit(func() { f(participants) })
	}
}

func (d *callbackDispatcher) chatMessage(msg types.ChatMessage) {
	if f := d.cb.OnChatMessage; f != nil {
		d.wp.Submit(func() { f(msg) })
	}
}

func (d *callbackDispatcher) error(kind types.ErrorKind, detail string) {
	if f := d.cb.OnError; f != nil {
		d.wp.Submit(func() { f(kind, detail) })
	}
}

func (d *callbackDispatcher) trackUnavailable(identity string, kind types.MediaKind) {
	if f := d.cb.OnTrackUnavailable; f != nil {
		d.wp.Submit(func() { f(identity, kind) })
	}
}

// flush waits for every callback submitted so far.
func (d *callbackDispatcher) flush() {
	if d.wp.Stopped() {
		return
	}
	d.wp.SubmitWait(func() {})
}

func (d *callbackDispatcher) stop() {
	d.wp.StopWait()
}
