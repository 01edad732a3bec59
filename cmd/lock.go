package main

import (
	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
)

// acquireRunLock takes the process lock that keeps two enrichment commands
// from working the same store at once.
func acquireRunLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, eris.Wrapf(err, "acquire lock %s", path)
	}
	if !ok {
		return nil, eris.Errorf("another enrichment run holds %s", path)
	}
	return lock, nil
}
