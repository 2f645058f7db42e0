//go:build sdl

package render

import (
	"fmt"
	"image"
	"runtime"

	"github.com/veandco/go-sdl2/sdl"
)

// SDL event pumping and rendering must stay on the thread that created the
// window.
func init() {
	runtime.LockOSThread()
}

type sdlPresenter struct {
	window      *sdl.Window
	renderer    *sdl.Renderer
	texture     *sdl.Texture
	width       int
	height      int
	windowTitle string
	pending     [2]int
}

func newSDLPresenter(width, height int) (Presenter, error) {
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("sdl init: %w", err)
	}
	p := &sdlPresenter{pending: [2]int{width, height}}
	window, err := sdl.CreateWindow(
		"xyscope",
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(width), int32(height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE,
	)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("sdl window: %w", err)
	}
	p.window = window
	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("sdl renderer: %w", err)
	}
	p.renderer = renderer
	return p, nil
}

// ensureTexture recreates the streaming texture when the surface size changes.
func (p *sdlPresenter) ensureTexture(width, height int) error {
	if p.texture != nil && p.width == width && p.height == height {
		return nil
	}
	if p.texture != nil {
		p.texture.Destroy()
		p.texture = nil
	}
	// ABGR8888 matches image.RGBA byte order on little-endian hosts.
	tex, err := p.renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		int32(width), int32(height),
	)
	if err != nil {
		return err
	}
	_ = tex.SetBlendMode(sdl.BLENDMODE_NONE)
	p.texture = tex
	p.width = width
	p.height = height
	return nil
}

func (p *sdlPresenter) Present(surface *image.RGBA, status Status) error {
	b := surface.Bounds()
	if err := p.ensureTexture(b.Dx(), b.Dy()); err != nil {
		return fmt.Errorf("sdl texture: %w", err)
	}
	title := "xyscope | " + status.String()
	if title != p.windowTitle {
		_ = p.window.SetTitle(title)
		p.windowTitle = title
	}
	if err := p.texture.Update(nil, surface.Pix, surface.Stride); err != nil {
		return err
	}
	if err := p.renderer.SetDrawColor(0, 0, 0, 255); err != nil {
		return err
	}
	if err := p.renderer.Clear(); err != nil {
		return err
	}
	if err := p.renderer.Copy(p.texture, nil, nil); err != nil {
		return err
	}
	p.renderer.Present()
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			return ErrPresenterQuit
		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
				return ErrPresenterQuit
			}
		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				p.pending = [2]int{int(e.Data1), int(e.Data2)}
			}
		}
	}
	return nil
}

// Size reports the current window area so the caller can resize the surface.
func (p *sdlPresenter) Size() (int, int) { return p.pending[0], p.pending[1] }

func (p *sdlPresenter) Close() error {
	if p.texture != nil {
		p.texture.Destroy()
		p.texture = nil
	}
	if p.renderer != nil {
		p.renderer.Destroy()
		p.renderer = nil
	}
	if p.window != nil {
		p.window.Destroy()
		p.window = nil
	}
	sdl.QuitSubSystem(sdl.INIT_VIDEO)
	return nil
}

// SupportsSDL reports whether the binary was built with the SDL presenter.
func SupportsSDL() bool { return true }
