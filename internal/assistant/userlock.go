package assistant

import "sync"

// userLocks serializes processing per user so concurrent webhook deliveries
// from the same sender cannot interleave their memory read-modify-write
// sequences. Different users never contend.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for a user, creating it on first use, and returns
// the unlock function. Lock entries are never removed; the set of users is
// bounded by the set of phone numbers seen this process lifetime.
func (u *userLocks) Lock(userID string) func() {
	u.mu.Lock()
	l, ok := u.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		u.locks[userID] = l
	}
	u.mu.Unlock()

	l.Lock()
	return l.Unlock
}
