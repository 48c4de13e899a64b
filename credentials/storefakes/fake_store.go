package storefakes

import (
	"sync"

	"github.com/jrsteele09/go-console-client/credentials"
)

var _ credentials.Store = (*FakeStore)(nil)

// FakeStore is an in-memory credentials.Store for tests.
type FakeStore struct {
	credential *credentials.Credential
	setCalls   int
	clearCalls int
	lock       sync.RWMutex
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (fs *FakeStore) Get() (*credentials.Credential, bool) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if fs.credential == nil {
		return nil, false
	}
	copied := *fs.credential
	return &copied, true
}

func (fs *FakeStore) Set(credential *credentials.Credential) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	copied := *credential
	fs.credential = &copied
	fs.setCalls++
	return nil
}

func (fs *FakeStore) UpdateUser(user *credentials.UserProfile) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.credential == nil {
		return nil
	}
	copied := *user
	fs.credential.User = &copied
	return nil
}

func (fs *FakeStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.credential = nil
	fs.clearCalls++
	return nil
}

// SetCalls returns how many times Set has been called.
func (fs *FakeStore) SetCalls() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.setCalls
}

// ClearCalls returns how many times Clear has been called.
func (fs *FakeStore) ClearCalls() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.clearCalls
}
