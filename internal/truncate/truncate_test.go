package truncate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeasureLines(t *testing.T) {
	assert.Equal(t, 30.0, MeasureLines(480, 16))
	assert.Equal(t, 0.0, MeasureLines(0, 16))
	assert.Equal(t, 0.0, MeasureLines(480, 0))
	assert.Equal(t, 0.0, MeasureLines(-10, 16))
	assert.Equal(t, 31.0, Default().MeasureLines(496))
}

func TestDecideVisualClass(t *testing.T) {
	engine := Default()

	tests := []struct {
		name     string
		lines    float64
		expanded bool
		force    bool
		want     Class
	}{
		{name: "exactly at budget", lines: 30, want: ClassShowAll},
		{name: "over budget collapsed", lines: 31, want: ClassLastLine},
		{name: "over budget expanded", lines: 31, expanded: true, want: ClassShowAll},
		{name: "forced", lines: 500, force: true, want: ClassShowAll},
		{name: "forced and expanded", lines: 500, expanded: true, force: true, want: ClassShowAll},
		{name: "expanded below budget", lines: 3, expanded: true, want: ClassShowAll},
		{name: "unmeasured", lines: 0, want: ClassShowAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.DecideVisualClass(tt.lines, tt.expanded, tt.force))
		})
	}
}

func TestToggleCycle(t *testing.T) {
	engine := Default()
	state := State{MeasuredLines: 31}

	assert.Equal(t, ClassLastLine, engine.Describe(state, false).Class)

	state = state.Toggle()
	assert.True(t, state.Expanded)
	assert.Equal(t, ClassShowAll, engine.Describe(state, false).Class)
	assert.Equal(t, LabelShowLess, engine.Describe(state, false).ToggleLabel)

	state = state.Toggle()
	assert.False(t, state.Expanded)
	assert.Equal(t, ClassLastLine, engine.Describe(state, false).Class)
	assert.Equal(t, LabelSeeMore, engine.Describe(state, false).ToggleLabel)
}

func TestShowToggle(t *testing.T) {
	engine := Default()

	assert.False(t, engine.ShowToggle(30, false))
	assert.True(t, engine.ShowToggle(31, false))
	assert.False(t, engine.ShowToggle(31, true))

	view := engine.Describe(State{MeasuredLines: 12}, false)
	assert.Equal(t, View{Class: ClassShowAll}, view)
}
