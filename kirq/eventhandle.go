package kirq

import (
	"time"

	"github.com/joeycumines/kernelcore/ksync"
	"github.com/joeycumines/kernelcore/kwait"
)

// EventHandle is the simplest consumer of the interrupt fabric: bind a
// GSI, then block until it fires (or a timeout elapses). It is how a
// driver waiting on a single interrupt source - as opposed to
// multiplexing several with [kwait.WaitOnList] - gets a blocking Wait
// call out of the fabric's callback-based Bind.
type EventHandle struct {
	binding *BindingHandle
	flag    *kwait.SingleFlag
	sleep   *ksync.SleepObject
}

// NewEventHandle binds gsi on f and returns a handle that can be waited
// on for that GSI's next firing.
func NewEventHandle(f *Fabric, gsi uint32) (*EventHandle, error) {
	sleep := ksync.NewSleepObject()
	flag := kwait.NewSingleFlag()
	flag.Bind(sleep)

	binding, err := f.Bind(gsi, func(uint32) { flag.Set() })
	if err != nil {
		return nil, err
	}
	return &EventHandle{binding: binding, flag: flag, sleep: sleep}, nil
}

// Wait blocks until the bound GSI fires, or timeout elapses (timeout <=
// 0 waits indefinitely). It reports whether the event fired; false means
// the timeout elapsed first.
func (e *EventHandle) Wait(timeout time.Duration) (fired bool) {
	if e.flag.Poll() {
		e.flag.Reset()
		return true
	}

	if timeout <= 0 {
		for !e.flag.Poll() {
			e.sleep.Wait()
		}
		e.flag.Reset()
		return true
	}

	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, e.sleep.Signal)
	defer timer.Stop()
	for !e.flag.Poll() && time.Now().Before(deadline) {
		e.sleep.Wait()
	}

	if e.flag.Poll() {
		e.flag.Reset()
		return true
	}
	return false
}

// Close unbinds this handle's handler from the fabric.
func (e *EventHandle) Close() error {
	e.flag.Unbind()
	return e.binding.Close()
}
