package main

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
)

const lockFileName = "review-scout.lock"

// acquireLock takes the exclusive run lock in dir so that two mutating
// commands never share a database.
func acquireLock(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "create lock dir")
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, eris.Wrap(err, "acquire run lock")
	}
	if !ok {
		return nil, eris.Errorf("another review-scout run holds %s", lock.Path())
	}
	return lock, nil
}
