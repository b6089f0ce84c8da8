package texture

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"sync"

	// Registered decoders for covering images.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// placeholderColor is shown while a covering is loading or failed to load.
var placeholderColor = color.NRGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}

// Placeholder returns the 1x1 blank image used before pixel data is ready.
func Placeholder() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, placeholderColor)
	return img
}

// Handle is a reference to image data that may still be loading. A Handle is
// safe for concurrent use and may be shared by any number of materials.
type Handle struct {
	uri  string
	done chan struct{}
	img  image.Image
	err  error
}

// URI returns the image location the handle was requested for.
func (h *Handle) URI() string {
	return h.uri
}

// Ready reports whether loading finished, successfully or not.
func (h *Handle) Ready() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Image returns the decoded image, or the placeholder while loading or after
// a failure. It never blocks.
func (h *Handle) Image() image.Image {
	if !h.Ready() || h.err != nil {
		return Placeholder()
	}
	return h.img
}

// Err returns the load error once Ready reports true.
func (h *Handle) Err() error {
	if !h.Ready() {
		return nil
	}
	return h.err
}

// Wait blocks until loading finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (image.Image, error) {
	select {
	case <-h.done:
		if h.err != nil {
			return nil, h.err
		}
		return h.img, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Loader decodes covering images in the background. Each URI is decoded at
// most once; later requests return the same handle.
type Loader struct {
	fsys fs.FS

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewLoader returns a loader reading image files from fsys.
func NewLoader(fsys fs.FS) *Loader {
	return &Loader{
		fsys:    fsys,
		handles: make(map[string]*Handle),
	}
}

// Request returns the handle for uri, starting the decode if this is the
// first request. It returns immediately.
func (l *Loader) Request(uri string) *Handle {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.handles[uri]; ok {
		return h
	}
	h := &Handle{uri: uri, done: make(chan struct{})}
	l.handles[uri] = h
	go l.load(h)
	return h
}

// Pending returns the number of handles that are still loading.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, h := range l.handles {
		if !h.Ready() {
			n++
		}
	}
	return n
}

func (l *Loader) load(h *Handle) {
	defer close(h.done)

	f, err := l.fsys.Open(h.uri)
	if err != nil {
		h.err = fmt.Errorf("texture: opening %s: %w", h.uri, err)
		return
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		h.err = fmt.Errorf("texture: decoding %s: %w", h.uri, err)
		return
	}
	h.img = img
}
