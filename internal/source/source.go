// Package source provides frame sources: a directory of JPEG images, and a
// video file decoded through OpenCV when built with the gocv tag.
package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/draw"

	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

// ErrVideoUnsupported is returned for video files in builds without gocv.
var ErrVideoUnsupported = errors.New("video decoding requires a build with -tags gocv")

// Options controls the frames a source produces.
type Options struct {
	Width  int     // working resolution; 0 keeps the native size
	Height int     //
	MaxFPS float64 // pace reads to at most this rate; 0 reads as fast as possible
}

// Source is a rewindable stream of frames. Next returns io.EOF at the end.
type Source interface {
	Next(ctx context.Context) (types.Frame, error)
	Rewind() error
	Close() error
}

// Open picks a source for path:
//   - a directory is read as a JPEG sequence
//   - a video file with a sibling directory named after its stem is read as
//     that JPEG sequence
//   - any other file is decoded as video
func Open(path string, opts Options) (Source, error) {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return OpenJPEGSequence(path, opts)
	}

	base := filepath.Base(path)
	stemDir := filepath.Join(filepath.Dir(path), strings.TrimSuffix(base, filepath.Ext(base)))
	if st, serr := os.Stat(stemDir); serr == nil && st.IsDir() {
		return OpenJPEGSequence(stemDir, opts)
	}

	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return openVideo(path, opts)
}

// scale resizes img to the working resolution when one is configured.
func scale(img image.Image, opts Options) image.Image {
	if opts.Width <= 0 || opts.Height <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() == opts.Width && b.Dy() == opts.Height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// pacer spaces reads to a maximum rate.
type pacer struct {
	interval time.Duration
	last     time.Time
}

func newPacer(maxFPS float64) pacer {
	if maxFPS <= 0 {
		return pacer{}
	}
	return pacer{interval: time.Duration(float64(time.Second) / maxFPS)}
}

func (p *pacer) wait(ctx context.Context) error {
	if p.interval == 0 {
		return ctx.Err()
	}
	if !p.last.IsZero() {
		if d := p.interval - time.Since(p.last); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		}
	}
	p.last = time.Now()
	return nil
}
