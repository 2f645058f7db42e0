//go:build !sdl

package render

import "errors"

func newSDLPresenter(width, height int) (Presenter, error) {
	return nil, errors.New("SDL presenter not enabled; rebuild with -tags sdl")
}

// SupportsSDL reports whether the binary was built with the SDL presenter.
func SupportsSDL() bool { return false }
