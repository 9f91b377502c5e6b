//go:build gocv

package source

import (
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"gocv.io/x/gocv"

	"github.com/dj-oyu/zone-traffic-monitor/internal/logger"
	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

// VideoFile decodes a video through OpenCV.
type VideoFile struct {
	path    string
	capture *gocv.VideoCapture
	mat     gocv.Mat
	resized gocv.Mat
	opts    Options
	pace    pacer
	frame   uint64
}

func openVideo(path string, opts Options) (Source, error) {
	return OpenVideoFile(path, opts)
}

// OpenVideoFile opens path and checks that a first frame can be read.
func OpenVideoFile(path string, opts Options) (*VideoFile, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("cannot open video %s", path)
	}

	v := &VideoFile{
		path:    path,
		capture: capture,
		mat:     gocv.NewMat(),
		resized: gocv.NewMat(),
		opts:    opts,
		pace:    newPacer(opts.MaxFPS),
	}

	if ok := capture.Read(&v.mat); !ok || v.mat.Empty() {
		v.Close()
		return nil, fmt.Errorf("cannot read from video %s", path)
	}
	capture.Set(gocv.VideoCapturePosFrames, 0)

	logger.Info("Source", "Video %s: %.0fx%.0f @ %.1f fps", path,
		capture.Get(gocv.VideoCaptureFrameWidth),
		capture.Get(gocv.VideoCaptureFrameHeight),
		capture.Get(gocv.VideoCaptureFPS))
	return v, nil
}

// Next reads and converts the next frame.
func (v *VideoFile) Next(ctx context.Context) (types.Frame, error) {
	if err := v.pace.wait(ctx); err != nil {
		return types.Frame{}, err
	}
	if ok := v.capture.Read(&v.mat); !ok || v.mat.Empty() {
		return types.Frame{}, io.EOF
	}

	src := v.mat
	if v.opts.Width > 0 && v.opts.Height > 0 {
		gocv.Resize(v.mat, &v.resized, image.Pt(v.opts.Width, v.opts.Height), 0, 0, gocv.InterpolationLinear)
		src = v.resized
	}

	img, err := src.ToImage()
	if err != nil {
		v.frame++
		return types.Frame{}, fmt.Errorf("convert frame %d: %w", v.frame-1, err)
	}

	num := v.frame
	v.frame++
	b := img.Bounds()
	return types.Frame{
		Image:     img,
		Timestamp: time.Now(),
		FrameNum:  num,
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}

// Rewind seeks back to the first frame.
func (v *VideoFile) Rewind() error {
	if !v.capture.IsOpened() {
		return fmt.Errorf("rewind %s: capture closed", v.path)
	}
	v.capture.Set(gocv.VideoCapturePosFrames, 0)
	v.frame = 0
	return nil
}

// Close releases the capture and its buffers.
func (v *VideoFile) Close() error {
	v.mat.Close()
	v.resized.Close()
	return v.capture.Close()
}
