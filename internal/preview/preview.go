// Package preview keeps the latest live frame of each camera and renders a
// composited thumbnail for the terminal, as Kitty graphics when the terminal
// supports it and as ASCII otherwise.
package preview

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"
	"os"
	"strings"
	"sync"

	"github.com/blacktop/go-termimg"
	"github.com/nfnt/resize"

	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// asciiRamp maps luminance to characters, dark to bright.
const asciiRamp = " .:-=+*#%@"

// Renderer implements the camera renderer collaborator. It is safe for
// concurrent use: frames arrive on the stream goroutine, rendering happens on
// the UI goroutine.
type Renderer struct {
	mu        sync.Mutex
	primary   *image.Gray
	secondary *image.Gray
	layoutA   models.Rect
	layoutB   *models.Rect
	frames    uint64
	imageID   int
}

// New creates a renderer with a full-frame single-camera layout.
func New() *Renderer {
	return &Renderer{layoutA: models.FullFrame, imageID: 2000}
}

func (r *Renderer) RenderPrimary(s models.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary = copyFrame(r.primary, s)
	r.frames++
}

func (r *Renderer) RenderSecondary(s models.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secondary = copyFrame(r.secondary, s)
	r.frames++
}

// PurgeBuffers drops both held frames.
func (r *Renderer) PurgeBuffers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary = nil
	r.secondary = nil
}

// SetCameraLayout places the outputs; secondary is nil in single mode.
func (r *Renderer) SetCameraLayout(primary models.Rect, secondary *models.Rect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layoutA = primary
	if secondary != nil {
		s := *secondary
		r.layoutB = &s
	} else {
		r.layoutB = nil
		r.secondary = nil
	}
}

// Frames returns how many frames were rendered.
func (r *Renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// HasFrame reports whether a primary frame is held.
func (r *Renderer) HasFrame() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.primary != nil
}

// copyFrame reuses dst when the geometry matches. Only 8-bit gray frames are kept.
func copyFrame(dst *image.Gray, s models.Sample) *image.Gray {
	if s.Kind != models.KindVideo || s.Width <= 0 || s.Height <= 0 {
		return dst
	}
	if s.PixelFormat != "" && s.PixelFormat != "gray" {
		return dst
	}
	if len(s.Data) < s.Width*s.Height {
		return dst
	}
	if dst == nil || dst.Rect.Dx() != s.Width || dst.Rect.Dy() != s.Height {
		dst = image.NewGray(image.Rect(0, 0, s.Width, s.Height))
	}
	copy(dst.Pix, s.Data[:s.Width*s.Height])
	return dst
}

// Composite draws the held frames into a width x height image following the layout.
func (r *Renderer) Composite(width, height int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, width, height))
	if width <= 0 || height <= 0 {
		return out
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	place(out, r.primary, r.layoutA)
	if r.layoutB != nil {
		place(out, r.secondary, *r.layoutB)
	}
	return out
}

func place(dst *image.Gray, src *image.Gray, rect models.Rect) {
	if src == nil {
		return
	}
	b := dst.Bounds()
	x0 := int(rect.X * float64(b.Dx()))
	y0 := int(rect.Y * float64(b.Dy()))
	w := int(rect.Width * float64(b.Dx()))
	h := int(rect.Height * float64(b.Dy()))
	if w <= 0 || h <= 0 {
		return
	}
	scaled := resize.Resize(uint(w), uint(h), src, resize.Bilinear)
	draw.Draw(dst, image.Rect(x0, y0, x0+w, y0+h), scaled, scaled.Bounds().Min, draw.Src)
}

// ASCII renders the composite as cols x rows characters.
func (r *Renderer) ASCII(cols, rows int) string {
	img := r.Composite(cols, rows)
	var sb strings.Builder
	sb.Grow((cols + 1) * rows)
	for y := 0; y < rows; y++ {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < cols; x++ {
			v := img.GrayAt(x, y).Y
			sb.WriteByte(asciiRamp[int(v)*(len(asciiRamp)-1)/255])
		}
	}
	return sb.String()
}

// Kitty renders the composite with the Kitty graphics protocol, sized to
// cols x rows terminal cells.
func (r *Renderer) Kitty(cols, rows int) (string, error) {
	// terminal cells are roughly twice as tall as wide
	img := r.Composite(cols*8, rows*16)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	ti, err := termimg.From(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.imageID++
	id := r.imageID
	r.mu.Unlock()

	ti.Protocol(termimg.Kitty).
		Width(cols).
		Height(rows).
		Scale(termimg.ScaleFit).
		ImageNum(id)
	return ti.Render()
}

// KittySupported reports whether the terminal understands Kitty graphics.
func KittySupported() bool {
	if os.Getenv("KITTY_WINDOW_ID") != "" {
		return true
	}
	if strings.Contains(os.Getenv("TERM"), "kitty") || os.Getenv("TERM_PROGRAM") == "kitty" {
		return true
	}
	return termimg.DetectProtocol() == termimg.Kitty
}
