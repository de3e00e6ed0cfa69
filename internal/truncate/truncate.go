// Package truncate decides whether a read-only rendering of a long document is
// clipped behind a "see more" toggle.
package truncate

// Class is the visual class applied to the editing area.
type Class string

const (
	ClassShowAll  Class = "show-all"
	ClassLastLine Class = "last-line"
)

const (
	// LineBudget is the number of line units a read-only view may show before
	// it is clipped.
	LineBudget = 30
	// UnitPixelHeight is the pixel height of one line unit.
	UnitPixelHeight = 16
	// ClippedLines is how many lines a clipped view keeps visible.
	ClippedLines = 10
)

const (
	LabelSeeMore  = "+ See more"
	LabelShowLess = "- Show less"
)

// State is the truncation state of one mounted read-only view.
type State struct {
	MeasuredLines float64 `json:"measuredLines"`
	Expanded      bool    `json:"expanded"`
}

// Engine holds the thresholds. The zero value is not useful; use Default.
type Engine struct {
	LineBudget      float64
	UnitPixelHeight float64
}

func Default() Engine {
	return Engine{LineBudget: LineBudget, UnitPixelHeight: UnitPixelHeight}
}

// MeasureLines converts a rendered pixel height into line units. A missing
// measurement yields zero, which never truncates.
func MeasureLines(renderedPixelHeight, unitPixelHeight float64) float64 {
	if renderedPixelHeight <= 0 || unitPixelHeight <= 0 {
		return 0
	}
	return renderedPixelHeight / unitPixelHeight
}

func (e Engine) MeasureLines(renderedPixelHeight float64) float64 {
	return MeasureLines(renderedPixelHeight, e.UnitPixelHeight)
}

// Overflows reports whether the measured lines exceed the budget.
func (e Engine) Overflows(measuredLines float64) bool {
	return measuredLines > e.LineBudget
}

// DecideVisualClass picks show-all when the caller forces it, the document
// fits the budget, or the reader expanded it; otherwise last-line.
func (e Engine) DecideVisualClass(measuredLines float64, expanded, forceShowAll bool) Class {
	if forceShowAll || !e.Overflows(measuredLines) || expanded {
		return ClassShowAll
	}
	return ClassLastLine
}

// ShowToggle reports whether the see more/show less affordance is rendered.
func (e Engine) ShowToggle(measuredLines float64, forceShowAll bool) bool {
	return !forceShowAll && e.Overflows(measuredLines)
}

// Toggle flips expansion.
func Toggle(expanded bool) bool {
	return !expanded
}

// ToggleLabel is the affordance text for the current expansion.
func ToggleLabel(expanded bool) string {
	if expanded {
		return LabelShowLess
	}
	return LabelSeeMore
}

// Toggle flips the expansion of a state.
func (s State) Toggle() State {
	s.Expanded = Toggle(s.Expanded)
	return s
}

// View is the derived rendering decision for a state.
type View struct {
	Class       Class  `json:"class"`
	ShowToggle  bool   `json:"showToggle"`
	ToggleLabel string `json:"toggleLabel,omitempty"`
}

// Describe derives the rendering decision for a state.
func (e Engine) Describe(state State, forceShowAll bool) View {
	view := View{
		Class:      e.DecideVisualClass(state.MeasuredLines, state.Expanded, forceShowAll),
		ShowToggle: e.ShowToggle(state.MeasuredLines, forceShowAll),
	}
	if view.ShowToggle {
		view.ToggleLabel = ToggleLabel(state.Expanded)
	}
	return view
}
