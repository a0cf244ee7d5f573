package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strings"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/roman-kulish/radio-scanner/internal/spectrum"
)

const (
	dpi            = 72.0
	fontSize       = 12.0
	tickMarkHeight = 5
	pixelsPerLabel = 150.0

	// Border sizes in pixels
	topBorder    = 30
	leftBorder   = 70
	bottomBorder = 30
	rightBorder  = 40
)

var plotBackground = color.RGBA{R: 16, G: 16, B: 24, A: 255}

// TraceData describes what the rendered samples cover. The samples hold one
// full-span PSD vector per step, side by side, so the horizontal axis is the
// step sequence rather than a linear frequency axis.
type TraceData struct {
	Centers   []int64 // Center frequency of every rendered step in Hz, in sample order
	StepSpan  float64 // Frequency span of one step's vector in Hz
	PowerMin  float64 // Lowest finite PSD value in dB
	PowerMax  float64 // Highest finite PSD value in dB
	ScanStart time.Time
	ScanEnd   time.Time
}

// TraceRenderer draws the peak-hold trace of a sweep: one filled column per
// pixel, colored by level, framed by frequency and power scales.
type TraceRenderer struct {
	config  TraceConfig
	display *spectrum.Display
	colors  *ColorMapper
	font    *truetype.Font
}

func NewTraceRenderer(config TraceConfig) (*TraceRenderer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	display, err := spectrum.NewDisplay(config.Width, config.Height)
	if err != nil {
		return nil, err
	}

	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	return &TraceRenderer{
		config:  config,
		display: display,
		colors:  NewColorMapper(config.Theme),
		font:    parsedFont,
	}, nil
}

// Render creates an image of the samples with annotations
func (r *TraceRenderer) Render(samples *spectrum.Samples, trace TraceData) (*image.RGBA, error) {
	levels, err := r.display.Refresh(samples)
	if err != nil {
		return nil, err
	}

	width, height := r.display.Size()
	img := image.NewRGBA(image.Rect(0, 0, width+leftBorder+rightBorder, height+topBorder+bottomBorder))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(leftBorder, topBorder, leftBorder+width, topBorder+height)
	draw.Draw(img, area, image.NewUniform(plotBackground), image.Point{}, draw.Src)

	r.renderTrace(img, area, levels)

	ann := newAnnotator(r.font, area)
	defer ann.Close()

	if err = ann.annotate(img, trace); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	return img, nil
}

// Encode writes the image in the configured format
func (r *TraceRenderer) Encode(w io.Writer, img image.Image) error {
	switch r.config.Format {
	case ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	default:
		return png.Encode(w, img)
	}
}

// renderTrace fills every column from the bottom of the plot up to its level
func (r *TraceRenderer) renderTrace(img *image.RGBA, area image.Rectangle, levels []float64) {
	height := area.Dy()
	for x, level := range levels {
		top := min(int(math.Round(level)), height)
		for y := 0; y < top; y++ {
			img.Set(area.Min.X+x, area.Max.Y-1-y, r.colors.Color(float64(y)/float64(max(height-1, 1))))
		}
	}
}

type annotator struct {
	context  *freetype.Context
	fontFace font.Face
	area     image.Rectangle
}

func newAnnotator(parsedFont *truetype.Font, area image.Rectangle) *annotator {
	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(fontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		area:    area,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    fontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}
}

func (a *annotator) Close() error {
	return a.fontFace.Close()
}

func (a *annotator) annotate(img *image.RGBA, trace TraceData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawFrequencyScale(img, trace); err != nil {
		return fmt.Errorf("drawing frequency scale: %w", err)
	}
	if err := a.drawPowerScale(img, trace); err != nil {
		return fmt.Errorf("drawing power scale: %w", err)
	}
	if err := a.drawInfoBar(img, trace); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

// drawFrequencyScale marks the centers of the steps, every step owning an
// equal slice of the plot width.
func (a *annotator) drawFrequencyScale(img *image.RGBA, trace TraceData) error {
	steps := len(trace.Centers)
	if steps == 0 {
		return nil
	}

	stride := calculateStepStride(steps, a.area.Dx())
	stepPixels := float64(a.area.Dx()) / float64(steps)
	textY := a.area.Min.Y - tickMarkHeight - a.fontHeight()/2

	for i := 0; i < steps; i += stride {
		x := a.area.Min.X + int((float64(i)+0.5)*stepPixels)

		for y := a.area.Min.Y - tickMarkHeight; y < a.area.Min.Y; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatFrequency(float64(trace.Centers[i]))
		width := font.MeasureString(a.fontFace, label)
		if _, err := a.context.DrawString(label, freetype.Pt(x-width.Round()/2, textY)); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}

	return nil
}

// drawPowerScale labels the top and the bottom of the plot with the power
// the trace was normalized to.
func (a *annotator) drawPowerScale(img *image.RGBA, trace TraceData) error {
	marks := []struct {
		y     int
		power float64
	}{
		{a.area.Min.Y, trace.PowerMax},
		{a.area.Max.Y - 1, trace.PowerMin},
	}

	descent := a.fontFace.Metrics().Descent.Round()
	for _, mark := range marks {
		for x := a.area.Min.X - tickMarkHeight; x < a.area.Min.X; x++ {
			img.Set(x, mark.y, color.Black)
		}

		label := fmt.Sprintf("%.1f dB", mark.power)
		width := font.MeasureString(a.fontFace, label)
		pt := freetype.Pt(a.area.Min.X-tickMarkHeight-3-width.Round(), mark.y+a.fontHeight()/2-descent)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing power label: %w", err)
		}
	}

	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, trace TraceData) error {
	var sb strings.Builder

	if n := len(trace.Centers); n > 0 {
		sb.WriteString(formatFrequencyRange(float64(trace.Centers[0]), float64(trace.Centers[n-1])))
		sb.WriteString(fmt.Sprintf("; %d steps of %s side by side", n, formatFrequency(trace.StepSpan)))
	}
	if !trace.ScanStart.IsZero() {
		sb.WriteString(fmt.Sprintf("; Time: %s - %s",
			trace.ScanStart.Local().Format(time.DateTime),
			trace.ScanEnd.Local().Format(time.TimeOnly)))
	}

	metrics := a.fontFace.Metrics()
	bottom := img.Bounds().Max.Y - a.area.Max.Y
	textY := img.Bounds().Max.Y - (bottom-a.fontHeight())/2 - metrics.Descent.Round()

	if _, err := a.context.DrawString(sb.String(), freetype.Pt(a.area.Min.X, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}

// calculateStepStride returns how many steps apart the scale labels are, a
// 1, 2 or 5 multiple of a power of ten keeping labels pixelsPerLabel apart.
func calculateStepStride(steps, width int) int {
	labels := max(float64(width)/pixelsPerLabel, 1)
	target := float64(steps) / labels

	for pow := 1; ; pow *= 10 {
		for _, mult := range []int{1, 2, 5} {
			if stride := pow * mult; float64(stride) >= target {
				return stride
			}
		}
	}
}

func formatFrequency(freq float64) string {
	switch {
	case freq >= 1e9:
		return fmt.Sprintf("%.2f GHz", freq/1e9)
	case freq >= 1e6:
		return fmt.Sprintf("%.1f MHz", freq/1e6)
	case freq >= 1e3:
		return fmt.Sprintf("%.1f kHz", freq/1e3)
	default:
		return fmt.Sprintf("%.0f Hz", freq)
	}
}

func formatFrequencyRange(lo, hi float64) string {
	return fmt.Sprintf("Centers: %s - %s", formatFrequency(lo), formatFrequency(hi))
}
