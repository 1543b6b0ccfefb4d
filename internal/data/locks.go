package data

import "sync"

// channelLocks hands out one RWMutex per channel
// Entries are never removed; the set of channels a bot serves is small.
type channelLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newChannelLocks() *channelLocks {
	return &channelLocks{locks: make(map[string]*sync.RWMutex)}
}

func (l *channelLocks) get(channelID string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[channelID]
	if !ok {
		lock = &sync.RWMutex{}
		l.locks[channelID] = lock
	}
	return lock
}
