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
	"github.com/gammazero/deque"

	"github.com/livekit/tutor-room/pkg/rtc/types"
)

type trackKey struct {
	identity string
	kind     types.MediaKind
}

// renderTargets maps (participant, media kind) to the surface the UI registered for it.
type renderTargets map[trackKey]types.RenderTarget

func (r renderTargets) lookup(identity string, kind types.MediaKind) types.RenderTarget {
	return r[trackKey{identity, kind}]
}

type pendingAttach struct {
	trackKey
	track    types.MediaTrack
	attempts int
}

// attachQueue holds subscribed tracks waiting for a render target, oldest first.
// It is bounded in size and in attempts per entry. Not safe for concurrent use.
type attachQueue struct {
	maxSize     int
	maxAttempts int
	pending     deque.Deque[*pendingAttach]
}

func newAttachQueue(maxSize int, maxAttempts int) *attachQueue {
	if maxSize < 1 {
		maxSize = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &attachQueue{
		maxSize:     maxSize,
		maxAttempts: maxAttempts,
	}
}

// push queues an entry, replacing any entry for the same key. When the queue is full the
// oldest entry is evicted and returned.
func (q *attachQueue) push(p *pendingAttach) *pendingAttach {
	q.take(p.identity, p.kind)

	var evicted *pendingAttach
	if q.pending.Len() >= q.maxSize {
		evicted = q.pending.PopFront()
	}
	q.pending.PushBack(p)
	return evicted
}

// take removes and returns the entry for key, if any.
func (q *attachQueue) take(identity string, kind types.MediaKind) *pendingAttach {
	var found *pendingAttach
	q.filter(func(p *pendingAttach) bool {
		if p.identity == identity && p.kind == kind {
			found = p
			return false
		}
		return true
	})
	return found
}

func (q *attachQueue) takeParticipant(identity string) []*pendingAttach {
	var removed []*pendingAttach
	q.filter(func(p *pendingAttach) bool {
		if p.identity == identity {
			removed = append(removed, p)
			return false
		}
		return true
	})
	return removed
}

// sweep offers every entry to attach. Entries that attach are dropped, the others are
// charged one attempt; those out of attempts are dropped and returned.
func (q *attachQueue) sweep(attach func(p *pendingAttach) bool) []*pendingAttach {
	var expired []*pendingAttach
	q.filter(func(p *pendingAttach) bool {
		if attach(p) {
			return false
		}
		p.attempts++
		if p.attempts >= q.maxAttempts {
			expired = append(expired, p)
			return false
		}
		return true
	})
	return expired
}

func (q *attachQueue) filter(keep func(p *pendingAttach) bool) {
	n := q.pending.Len()
	for i := 0; i < n; i++ {
		p := q.pending.PopFront()
		if keep(p) {
			q.pending.PushBack(p)
		}
	}
}

func (q *attachQueue) len() int {
	return q.pending.Len()
}

func (q *attachQueue) clear() {
	q.pending.Clear()
}
