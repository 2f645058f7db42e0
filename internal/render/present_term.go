package render

import (
	"bufio"
	"image"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const upperHalfBlock = "▀"

const resetANSI = "\x1b[0m"

// Terminal previews the surface with 256-color half blocks, two surface
// rows per character cell, plus a styled status line.
type Terminal struct {
	out     *bufio.Writer
	fd      int
	isTerm  bool
	cols    int
	rows    int
	started bool
	status  lipgloss.Style
}

// NewTerminal writes to w, or stdout when w is nil. The preview follows
// the terminal size when w is a terminal and falls back to 80x24.
func NewTerminal(w io.Writer) *Terminal {
	t := &Terminal{
		cols:   80,
		rows:   24,
		fd:     -1,
		status: newStatusStyle(),
	}
	if w == nil {
		w = os.Stdout
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.fd = int(f.Fd())
		t.isTerm = true
	}
	t.out = bufio.NewWriterSize(w, 64*1024)
	return t
}

func newStatusStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#3C1E70"))
}

func (t *Terminal) refreshSize() {
	if !t.isTerm {
		return
	}
	if cols, rows, err := term.GetSize(t.fd); err == nil && cols > 0 && rows > 1 {
		t.cols, t.rows = cols, rows
	}
}

func (t *Terminal) Present(surface *image.RGBA, status Status) error {
	t.refreshSize()
	if !t.started {
		t.out.WriteString("\x1b[2J\x1b[?25l")
		t.started = true
	}
	t.out.WriteString("\x1b[H")

	b := surface.Bounds()
	cols, cells := t.cols, t.rows-1
	if b.Dx() > 0 && b.Dy() > 0 {
		for row := 0; row < cells; row++ {
			topY := b.Min.Y + (2*row)*b.Dy()/(2*cells)
			botY := b.Min.Y + (2*row+1)*b.Dy()/(2*cells)
			lastFG, lastBG := -1, -1
			for col := 0; col < cols; col++ {
				x := b.Min.X + col*b.Dx()/cols
				fg := pixelANSI(surface, x, topY)
				bg := pixelANSI(surface, x, botY)
				if fg != lastFG {
					writeColor(t.out, "\x1b[38;5;", fg)
					lastFG = fg
				}
				if bg != lastBG {
					writeColor(t.out, "\x1b[48;5;", bg)
					lastBG = bg
				}
				t.out.WriteString(upperHalfBlock)
			}
			t.out.WriteString(resetANSI)
			t.out.WriteString("\r\n")
		}
	}
	t.out.WriteString(t.status.Render(fitLine(status.String(), cols)))
	t.out.WriteString(resetANSI)
	return t.out.Flush()
}

func (t *Terminal) Close() error {
	if t.started {
		t.out.WriteString(resetANSI + "\x1b[?25h\r\n")
	}
	return t.out.Flush()
}

// writeColor emits a 256-color SGR sequence; prefix selects fg or bg.
func writeColor(w *bufio.Writer, prefix string, code int) {
	var buf [4]byte
	w.WriteString(prefix)
	w.Write(strconv.AppendInt(buf[:0], int64(code), 10))
	w.WriteByte('m')
}

// fitLine truncates or pads s to exactly cols columns. Status text is ASCII.
func fitLine(s string, cols int) string {
	if len(s) >= cols {
		return s[:cols]
	}
	return s + strings.Repeat(" ", cols-len(s))
}

// pixelANSI reads a premultiplied pixel, which already equals the color
// composited over black.
func pixelANSI(img *image.RGBA, x, y int) int {
	i := img.PixOffset(x, y)
	p := img.Pix[i : i+3 : i+3]
	return rgbToANSI(float64(p[0])/255, float64(p[1])/255, float64(p[2])/255)
}

func rgbToANSI(r, g, b float64) int {
	r = clamp01(r)
	g = clamp01(g)
	b = clamp01(b)

	// Grayscale ramp for near-neutral colors
	if math.Abs(r-g) < 0.02 && math.Abs(g-b) < 0.02 {
		if r < 0.02 {
			return 16
		}
		gray := int(clampFloat(math.Round(r*23), 0, 23))
		return 232 + gray
	}

	ri := int(clampFloat(r*5+0.5, 0, 5))
	gi := int(clampFloat(g*5+0.5, 0, 5))
	bi := int(clampFloat(b*5+0.5, 0, 5))

	return 16 + 36*ri + 6*gi + bi
}
