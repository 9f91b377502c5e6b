package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dj-oyu/zone-traffic-monitor/internal/logger"
	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

var errClosed = errors.New("source closed")

// JPEGSequence reads *.jpg / *.jpeg files of a directory in lexical order.
// A file that fails to decode is reported as an error for that frame only.
type JPEGSequence struct {
	dir    string
	files  []string
	pos    int
	opts   Options
	pace   pacer
	closed bool
}

// OpenJPEGSequence lists dir. A directory without images is unavailable input.
func OpenJPEGSequence(dir string, opts Options) (*JPEGSequence, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no JPEG frames in %s", dir)
	}
	sort.Strings(files)

	logger.Info("Source", "JPEG sequence %s: %d frames", dir, len(files))
	return &JPEGSequence{dir: dir, files: files, opts: opts, pace: newPacer(opts.MaxFPS)}, nil
}

// Len returns the number of frames in one pass.
func (s *JPEGSequence) Len() int {
	return len(s.files)
}

// Next decodes the next file.
func (s *JPEGSequence) Next(ctx context.Context) (types.Frame, error) {
	if s.closed {
		return types.Frame{}, errClosed
	}
	if err := s.pace.wait(ctx); err != nil {
		return types.Frame{}, err
	}
	if s.pos >= len(s.files) {
		return types.Frame{}, io.EOF
	}

	num := uint64(s.pos)
	path := s.files[s.pos]
	s.pos++

	f, err := os.Open(path)
	if err != nil {
		return types.Frame{}, fmt.Errorf("frame %d: %w", num, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return types.Frame{}, fmt.Errorf("decode frame %d (%s): %w", num, filepath.Base(path), err)
	}
	img = scale(img, s.opts)
	b := img.Bounds()

	return types.Frame{
		Image:     img,
		Timestamp: time.Now(),
		FrameNum:  num,
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}

// Rewind restarts from the first file.
func (s *JPEGSequence) Rewind() error {
	if s.closed {
		return errClosed
	}
	s.pos = 0
	return nil
}

// Close releases the source. Further reads fail.
func (s *JPEGSequence) Close() error {
	s.closed = true
	return nil
}
