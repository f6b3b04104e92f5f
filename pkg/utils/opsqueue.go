package utils

import (
	"sync"

	"github.com/gammazero/deque"

	"github.com/livekit/protocol/logger"
)

// OpsQueue runs queued operations one at a time, in enqueue order, on a single goroutine.
type OpsQueue struct {
	logger logger.Logger
	name   string
	size   int

	lock      sync.Mutex
	ops       chan func()
	overflow  deque.Deque[func()]
	wake      chan struct{}
	isStarted bool
	isStopped bool
	done      chan struct{}
}

func NewOpsQueue(logger logger.Logger, name string, size int) *OpsQueue {
	return &OpsQueue{
		logger: logger,
		name:   name,
		size:   size,
		ops:    make(chan func(), size),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (oq *OpsQueue) Start() {
	oq.lock.Lock()
	defer oq.lock.Unlock()
	if oq.isStarted || oq.isStopped {
		return
	}
	oq.isStarted = true
	go oq.process()
}

// Stop closes the queue. Operations already queued still run.
func (oq *OpsQueue) Stop() {
	oq.lock.Lock()
	if oq.isStopped {
		oq.lock.Unlock()
		return
	}

	oq.isStopped = true
	close(oq.ops)
	started := oq.isStarted
	oq.lock.Unlock()

	if !started {
		close(oq.done)
	}
}

// Done is closed once the queue is stopped and drained.
func (oq *OpsQueue) Done() <-chan struct{} {
	return oq.done
}

// Enqueue queues op. It returns false when the queue is stopped or full; a full queue drops op.
func (oq *OpsQueue) Enqueue(op func()) bool {
	return oq.enqueue(op, false)
}

// EnqueueReliable queues op like Enqueue, but a full queue parks op in an unbounded overflow
// instead of dropping it. Order across both methods is kept.
func (oq *OpsQueue) EnqueueReliable(op func()) bool {
	return oq.enqueue(op, true)
}

func (oq *OpsQueue) enqueue(op func(), reliable bool) bool {
	oq.lock.Lock()
	defer oq.lock.Unlock()
	if oq.isStopped {
		return false
	}

	// nothing may overtake parked operations
	if oq.overflow.Len() == 0 {
		select {
		case oq.ops <- op:
			return true
		default:
		}
	}
	if !reliable {
		oq.logger.Errorw("ops queue full", nil, "name", oq.name, "size", oq.size)
		return false
	}
	if oq.overflow.Len() == 0 {
		oq.logger.Warnw("ops queue full, parking operations", nil, "name", oq.name, "size", oq.size)
	}
	oq.overflow.PushBack(op)
	select {
	case oq.wake <- struct{}{}:
	default:
	}
	return true
}

// Do enqueues op and waits for it to run. It returns false when the queue did not accept op.
func (oq *OpsQueue) Do(op func()) bool {
	ran := make(chan struct{})
	if !oq.Enqueue(func() {
		defer close(ran)
		op()
	}) {
		return false
	}
	<-ran
	return true
}

func (oq *OpsQueue) process() {
	defer close(oq.done)
	for {
		select {
		case op, ok := <-oq.ops:
			if !ok {
				oq.drainOverflow()
				return
			}
			op()
			continue
		default:
		}

		if op := oq.popOverflow(); op != nil {
			op()
			continue
		}

		select {
		case op, ok := <-oq.ops:
			if !ok {
				oq.drainOverflow()
				return
			}
			op()
		case <-oq.wake:
		}
	}
}

func (oq *OpsQueue) popOverflow() func() {
	oq.lock.Lock()
	defer oq.lock.Unlock()
	if oq.overflow.Len() == 0 {
		return nil
	}
	return oq.overflow.PopFront()
}

func (oq *OpsQueue) drainOverflow() {
	for op := oq.popOverflow(); op != nil; op = oq.popOverflow() {
		op()
	}
}
