package types

import (
	"encoding/json"
	"image"
	"time"
)

// Frame represents one decoded input frame with metadata
type Frame struct {
	Image     image.Image // Decoded pixels, already scaled to the working resolution
	Timestamp time.Time   // Acquisition time
	FrameNum  uint64      // Position in the source (0-based, resets on rewind)
	Width     int         // Frame width
	Height    int         // Frame height
}

// BoundingBox is an axis-aligned box in frame pixel coordinates.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Center returns the box centroid.
func (b BoundingBox) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Rect converts the box to integer image coordinates.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// Track is a tracker-assigned identity plus its box for one frame.
type Track struct {
	ID  int         `json:"id"`
	Box BoundingBox `json:"-"`
}

// trackWire is the flat {id,x1,y1,x2,y2} shape produced by trackers.
type trackWire struct {
	ID int     `json:"id"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// MarshalJSON encodes the track in the flat tracker wire shape.
func (t Track) MarshalJSON() ([]byte, error) {
	return json.Marshal(trackWire{ID: t.ID, X1: t.Box.X1, Y1: t.Box.Y1, X2: t.Box.X2, Y2: t.Box.Y2})
}

// UnmarshalJSON decodes the flat tracker wire shape.
func (t *Track) UnmarshalJSON(data []byte) error {
	var w trackWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.ID = w.ID
	t.Box = BoundingBox{X1: w.X1, Y1: w.Y1, X2: w.X2, Y2: w.Y2}
	return nil
}

// Session identifies one counting run over one source.
type Session struct {
	ID      string    // random UUID
	Source  string    // video filename as listed in the catalog
	Stem    string    // filename without extension
	Started time.Time // wall clock at start
}
