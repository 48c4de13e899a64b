package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileStore persists the credential as a JSON file, surviving process
// restarts. Writes go through a temp file and an atomic rename so a crash
// mid-write never leaves a torn credential on disk.
type FileStore struct {
	path string
	lock sync.Mutex
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Get() (*Credential, bool) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.read()
}

func (fs *FileStore) Set(credential *Credential) error {
	if credential == nil {
		return fmt.Errorf("[FileStore Set] credential is nil")
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.write(credential)
}

func (fs *FileStore) UpdateUser(user *UserProfile) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	credential, ok := fs.read()
	if !ok {
		return nil
	}
	credential.User = user
	return fs.write(credential)
}

func (fs *FileStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("[FileStore Clear] remove credentials file: %w", err)
	}
	return nil
}

// read loads and validates the credential file. Callers hold the lock.
func (fs *FileStore) read() (*Credential, bool) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return nil, false
	}

	var credential Credential
	if err := json.Unmarshal(data, &credential); err != nil {
		return nil, false
	}
	if credential.AccessToken == "" || credential.RefreshToken == "" {
		return nil, false
	}

	// Expiry is recoverable from the token itself when the file predates the
	// expires_at field.
	if credential.ExpiresAt.IsZero() {
		if exp, err := AccessTokenExpiry(credential.AccessToken); err == nil {
			credential.ExpiresAt = exp
		}
	}

	return &credential, true
}

// write persists the credential via temp file + rename. Callers hold the lock.
func (fs *FileStore) write(credential *Credential) error {
	data, err := json.MarshalIndent(credential, "", "  ")
	if err != nil {
		return fmt.Errorf("[FileStore write] marshal credential: %w", err)
	}

	tempFile := fs.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("[FileStore write] write temp file: %w", err)
	}

	if err := os.Rename(tempFile, fs.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf(
				"[FileStore write] rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("[FileStore write] rename temp file: %w", err)
	}

	return nil
}
