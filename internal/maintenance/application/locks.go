package application

import "sync"

// deviceLocks hands out one mutex per device id and forgets it when unused.
type deviceLocks struct {
	mu    sync.Mutex
	locks map[string]*deviceLock
}

type deviceLock struct {
	mu   sync.Mutex
	refs int
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{locks: make(map[string]*deviceLock)}
}

func (d *deviceLocks) lock(deviceID string) func() {
	d.mu.Lock()
	l, ok := d.locks[deviceID]
	if !ok {
		l = &deviceLock{}
		d.locks[deviceID] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, deviceID)
		}
		d.mu.Unlock()
	}
}

func (d *deviceLocks) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.locks)
}
