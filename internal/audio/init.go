package audio

import (
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	initOnce sync.Once
	termOnce sync.Once
	initErr  error
)

// Initialize starts PortAudio once per process.
func Initialize() error {
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
	})
	return initErr
}

// Terminate balances a successful Initialize. Later calls do nothing.
func Terminate() error {
	if initErr != nil {
		return nil
	}
	var err error
	termOnce.Do(func() {
		err = portaudio.Terminate()
	})
	return err
}
