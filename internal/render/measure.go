package render

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chromedp/chromedp"

	"docpad/api/internal/content"
)

// Measurer reports the rendered pixel height of a read-only view page.
type Measurer interface {
	Measure(ctx context.Context, page string, delta content.Delta) (float64, error)
}

// ChromeMeasurer lays the page out in headless Chrome and reads the height
// of the view root.
type ChromeMeasurer struct {
	Timeout time.Duration
	WidthPx int64
}

func (m ChromeMeasurer) Measure(ctx context.Context, page string, _ content.Delta) (float64, error) {
	if !chromeAvailable() {
		return 0, fmt.Errorf("%w: chromium not installed", ErrPDFDependencyMissing)
	}
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	width := m.WidthPx
	if width <= 0 {
		width = DefaultWidthPx
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	taskCtx, cancelChrome := newChrome(ctx)
	defer cancelChrome()

	var height float64
	err := chromedp.Run(taskCtx,
		chromedp.EmulateViewport(width, 800),
		chromedp.Navigate(dataURL(page)),
		chromedp.WaitReady("#docpad-root", chromedp.ByQuery),
		chromedp.Evaluate(`document.getElementById("docpad-root").clientHeight`, &height),
	)
	if err != nil {
		return 0, fmt.Errorf("chrome measure failed: %w", err)
	}
	return height, nil
}

// EstimateMeasurer approximates the height from the delta alone. It is the
// fallback when no browser is available.
type EstimateMeasurer struct {
	CharsPerLine int
	LineHeightPx float64
	ImageHeight  float64
	VideoHeight  float64
}

// DefaultEstimate matches the preview stylesheet at DefaultWidthPx.
func DefaultEstimate() EstimateMeasurer {
	return EstimateMeasurer{CharsPerLine: 100, LineHeightPx: 18.5, ImageHeight: 240, VideoHeight: 350}
}

func (m EstimateMeasurer) Measure(_ context.Context, _ string, delta content.Delta) (float64, error) {
	perLine := m.CharsPerLine
	if perLine <= 0 {
		perLine = 100
	}

	var height float64
	var line strings.Builder
	rows := func() float64 {
		n := utf8.RuneCountInString(line.String())
		line.Reset()
		return math.Max(1, math.Ceil(float64(n)/float64(perLine)))
	}

	for _, op := range delta.Ops {
		switch {
		case op.IsText():
			parts := strings.Split(op.Insert, "\n")
			for i, part := range parts {
				line.WriteString(part)
				if i < len(parts)-1 {
					height += rows() * m.LineHeightPx
				}
			}
		case op.IsEmbed():
			switch op.Embed.Kind {
			case content.EmbedImage:
				height += m.ImageHeight
			case content.EmbedVideo:
				height += m.VideoHeight
			default:
				line.WriteString(op.Embed.Value)
			}
		}
	}
	if line.Len() > 0 {
		height += rows() * m.LineHeightPx
	}
	return height, nil
}

// FallbackMeasurer tries Primary and falls back to Secondary on error.
type FallbackMeasurer struct {
	Primary   Measurer
	Secondary Measurer
}

func (m FallbackMeasurer) Measure(ctx context.Context, page string, delta content.Delta) (float64, error) {
	height, err := m.Primary.Measure(ctx, page, delta)
	if err == nil {
		return height, nil
	}
	return m.Secondary.Measure(ctx, page, delta)
}
