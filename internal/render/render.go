// Package render draws zones, tracks and the stats panel onto frames and
// encodes them as JPEG.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/dj-oyu/zone-traffic-monitor/internal/density"
	"github.com/dj-oyu/zone-traffic-monitor/internal/zones"
	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

// DefaultQuality is the JPEG quality used for published frames.
const DefaultQuality = 85

var (
	colorBox   = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	colorText  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorMuted = color.RGBA{R: 180, G: 180, B: 180, A: 255}
	colorPanel = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	colorZone  = color.RGBA{R: 255, G: 255, B: 0, A: 255}

	densityColors = map[density.Tier]color.RGBA{
		density.Low:    {R: 0, G: 255, B: 0, A: 255},
		density.Medium: {R: 255, G: 165, B: 0, A: 255},
		density.High:   {R: 255, G: 0, B: 0, A: 255},
	}
)

const (
	zoneFillAlpha  = 0.25
	panelAlpha     = 0.7
	lineHeight     = 18
	panelWidth     = 220
	panelMargin    = 10
	panelTextInset = 8
)

// Overlay is the per-frame state drawn on top of the image.
type Overlay struct {
	Tracks       []types.Track
	Counts       map[string]int
	Total        int
	ActiveTracks int
	FPS          float64
	Density      density.Tier
}

// Annotator draws one session's zones and per-frame overlay.
type Annotator struct {
	zones   []zones.Zone
	quality int
}

// NewAnnotator creates an annotator for a zone set. quality <= 0 uses
// DefaultQuality.
func NewAnnotator(set *zones.ZoneSet, quality int) *Annotator {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Annotator{zones: set.Zones(), quality: quality}
}

// Encode draws the overlay onto a copy of the frame and returns JPEG bytes.
func (a *Annotator) Encode(frame types.Frame, ov Overlay) ([]byte, error) {
	if frame.Image == nil {
		return nil, fmt.Errorf("frame %d has no image", frame.FrameNum)
	}
	img := a.Draw(frame.Image, ov)
	return EncodeJPEG(img, a.quality)
}

// Draw returns a new opaque RGBA image with zones, tracks and the panel drawn.
func (a *Annotator) Draw(src image.Image, ov Overlay) *image.RGBA {
	b := src.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.Draw(img, img.Bounds(), src, b.Min, draw.Over)

	a.drawZones(img)
	drawTracks(img, ov.Tracks)
	a.drawPanel(img, ov)
	return img
}

func (a *Annotator) drawZones(img *image.RGBA) {
	for _, z := range a.zones {
		c := zoneColor(z.Color)
		r := z.Bounds().Intersect(img.Bounds())
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				if z.Contains(float64(x), float64(y)) {
					blendPixel(img, x, y, c, zoneFillAlpha)
				}
			}
		}
	}

	// Outlines and labels go on after every fill so they stay crisp.
	for _, z := range a.zones {
		c := zoneColor(z.Color)
		n := len(z.Polygon)
		for i := range n {
			p, q := z.Polygon[i], z.Polygon[(i+1)%n]
			drawLine(img, image.Pt(p.X, p.Y), image.Pt(q.X, q.Y), c, 2)
		}
		cx, cy := polygonMean(z.Polygon)
		drawLabel(img, z.Label, image.Pt(cx-len(z.Label)*basicfont.Face7x13.Advance/2, cy), c)
	}
}

func drawTracks(img *image.RGBA, tracks []types.Track) {
	for _, tr := range tracks {
		r := tr.Box.Rect()
		drawRectangle(img, r, colorBox, 2)

		label := fmt.Sprintf("ID:%d", tr.ID)
		w := len(label)*basicfont.Face7x13.Advance + 4
		bg := image.Rect(r.Min.X, r.Min.Y-lineHeight+2, r.Min.X+w, r.Min.Y)
		draw.Draw(img, bg.Intersect(img.Bounds()), image.NewUniform(colorBox), image.Point{}, draw.Src)
		drawLabel(img, label, image.Pt(r.Min.X+2, r.Min.Y-4), colorText)
	}
}

func (a *Annotator) drawPanel(img *image.RGBA, ov Overlay) {
	tierColor, ok := densityColors[ov.Density]
	if !ok {
		tierColor = colorText
	}

	type line struct {
		text string
		c    color.RGBA
	}
	lines := []line{
		{fmt.Sprintf("FPS:       %.1f", ov.FPS), colorText},
		{fmt.Sprintf("Counted:   %d", ov.Total), colorText},
		{fmt.Sprintf("On screen: %d", ov.ActiveTracks), colorText},
		{fmt.Sprintf("Density:   %s", ov.Density), tierColor},
		{"-- Zone Counts --", colorMuted},
	}
	for _, z := range a.zones {
		lines = append(lines, line{fmt.Sprintf("%s: %d", z.Label, ov.Counts[z.Label]), colorText})
	}

	panel := image.Rect(panelMargin, panelMargin,
		panelMargin+panelWidth, panelMargin+panelTextInset*2+len(lines)*lineHeight)
	panel = panel.Intersect(img.Bounds())
	for y := panel.Min.Y; y < panel.Max.Y; y++ {
		for x := panel.Min.X; x < panel.Max.X; x++ {
			blendPixel(img, x, y, colorPanel, panelAlpha)
		}
	}

	y := panelMargin + panelTextInset + lineHeight - 4
	for _, l := range lines {
		drawLabel(img, l.text, image.Pt(panelMargin+panelTextInset, y), l.c)
		y += lineHeight
	}
}

// Placeholder renders the frame served before the first publish.
func Placeholder(width, height int, text string) ([]byte, error) {
	if width <= 0 || height <= 0 {
		width, height = 1280, 720
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	w := font.MeasureString(basicfont.Face7x13, text).Ceil()
	drawLabel(img, text, image.Pt((width-w)/2, height/2), colorText)

	return EncodeJPEG(img, DefaultQuality)
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// zoneColor converts a stored BGR triple to RGBA.
func zoneColor(bgr []int) color.RGBA {
	if len(bgr) != 3 {
		return colorZone
	}
	return color.RGBA{R: clamp8(bgr[2]), G: clamp8(bgr[1]), B: clamp8(bgr[0]), A: 255}
}

func clamp8(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

func blendPixel(img *image.RGBA, x, y int, c color.RGBA, alpha float64) {
	i := img.PixOffset(x, y)
	p := img.Pix[i : i+4 : i+4]
	p[0] = uint8(float64(c.R)*alpha + float64(p[0])*(1-alpha))
	p[1] = uint8(float64(c.G)*alpha + float64(p[1])*(1-alpha))
	p[2] = uint8(float64(c.B)*alpha + float64(p[2])*(1-alpha))
	p[3] = 255
}

func drawLabel(img draw.Image, text string, pt image.Point, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(pt.X), Y: fixed.I(pt.Y)},
	}
	d.DrawString(text)
}

func drawRectangle(img *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	for i := 0; i < thickness; i++ {
		top := image.Rect(r.Min.X, r.Min.Y+i, r.Max.X, r.Min.Y+i+1)
		bottom := image.Rect(r.Min.X, r.Max.Y-i-1, r.Max.X, r.Max.Y-i)
		left := image.Rect(r.Min.X+i, r.Min.Y, r.Min.X+i+1, r.Max.Y)
		right := image.Rect(r.Max.X-i-1, r.Min.Y, r.Max.X-i, r.Max.Y)
		for _, edge := range []image.Rectangle{top, bottom, left, right} {
			draw.Draw(img, edge.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
		}
	}
}

// drawLine is a Bresenham line with a square pen.
func drawLine(img *image.RGBA, p, q image.Point, c color.RGBA, thickness int) {
	dx := int(math.Abs(float64(q.X - p.X)))
	dy := -int(math.Abs(float64(q.Y - p.Y)))
	sx, sy := 1, 1
	if p.X > q.X {
		sx = -1
	}
	if p.Y > q.Y {
		sy = -1
	}
	err := dx + dy
	bounds := img.Bounds()

	for {
		pen := image.Rect(p.X, p.Y, p.X+thickness, p.Y+thickness).Intersect(bounds)
		for y := pen.Min.Y; y < pen.Max.Y; y++ {
			for x := pen.Min.X; x < pen.Max.X; x++ {
				img.SetRGBA(x, y, c)
			}
		}
		if p == q {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			p.X += sx
		}
		if e2 <= dx {
			err += dx
			p.Y += sy
		}
	}
}

func polygonMean(poly []zones.Point) (int, int) {
	if len(poly) == 0 {
		return 0, 0
	}
	var sx, sy int
	for _, p := range poly {
		sx += p.X
		sy += p.Y
	}
	return sx / len(poly), sy / len(poly)
}
