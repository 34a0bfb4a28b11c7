package cover

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"image"
	"image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Default thumbnail bounds, matching what the reader app displays in its library grid.
const (
	DefaultWidth  = 180
	DefaultHeight = 270
)

// ErrNotImage is returned for cover bytes that are not a supported image.
var ErrNotImage = errors.New("cover is not a supported image")

var supported = []string{"image/jpeg", "image/png", "image/webp"}

// Thumb is a generated thumbnail and its digest.
type Thumb struct {
	// Hash is the hex MD5 of the encoded thumbnail.
	Hash string
	// JPEG is the encoded thumbnail sent to the device.
	JPEG []byte
}

// Thumbnail scales data to fit within maxW x maxH and returns the JPEG bytes.
func Thumbnail(data []byte, maxW, maxH int) ([]byte, error) {
	mtype := mimetype.Detect(data)
	if !mtype.Is(supported[0]) && !mtype.Is(supported[1]) && !mtype.Is(supported[2]) {
		return nil, errors.Wrapf(ErrNotImage, "detected %s", mtype.String())
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	srcBounds := src.Bounds()
	w, h := fitDimensions(srcBounds.Dx(), srcBounds.Dy(), maxW, maxH)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, srcBounds, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 80}); err != nil {
		return nil, errors.WithStack(err)
	}
	return out.Bytes(), nil
}

// fitDimensions keeps the aspect ratio while fitting inside the bounds. Images
// smaller than the bounds are not enlarged.
func fitDimensions(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 1, 1
	}
	if srcW <= maxW && srcH <= maxH {
		return srcW, srcH
	}
	ratio := min(float64(maxW)/float64(srcW), float64(maxH)/float64(srcH))
	w := max(int(float64(srcW)*ratio), 1)
	h := max(int(float64(srcH)*ratio), 1)
	return w, h
}

type cacheKey struct {
	id    int64
	mtime int64
}

// Hasher computes cover thumbnails and caches them per book id and cover mtime.
type Hasher struct {
	mu     sync.Mutex
	cache  map[cacheKey]Thumb
	width  int
	height int
}

// NewHasher returns a Hasher producing thumbnails within width x height.
func NewHasher(width, height int) *Hasher {
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	return &Hasher{cache: make(map[cacheKey]Thumb), width: width, height: height}
}

// Digest returns the thumbnail for a library book's cover. The result is cached
// until the cover's modification time changes.
func (h *Hasher) Digest(id int64, mtime time.Time, data []byte) (Thumb, error) {
	key := cacheKey{id: id, mtime: mtime.UnixNano()}

	h.mu.Lock()
	if t, ok := h.cache[key]; ok {
		h.mu.Unlock()
		return t, nil
	}
	h.mu.Unlock()

	jpg, err := Thumbnail(data, h.width, h.height)
	if err != nil {
		return Thumb{}, err
	}
	sum := md5.Sum(jpg)
	t := Thumb{Hash: hex.EncodeToString(sum[:]), JPEG: jpg}

	h.mu.Lock()
	h.cache[key] = t
	h.mu.Unlock()
	return t, nil
}

// Len returns the number of cached thumbnails.
func (h *Hasher) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cache)
}
