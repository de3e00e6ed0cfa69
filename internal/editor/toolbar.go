package editor

import "docpad/api/internal/content"

// Control is one toolbar button. Value is empty for plain toggles and for
// pickers whose options come from the theme.
type Control struct {
	Format string `json:"format"`
	Value  string `json:"value,omitempty"`
}

// Toolbar lists the editing controls in display groups.
var Toolbar = [][]Control{
	{{Format: "header", Value: "1"}, {Format: "header", Value: "2"}},
	{{Format: "bold"}, {Format: "italic"}, {Format: "underline"}, {Format: "strike"}},
	{{Format: "blockquote"}, {Format: "code-block"}},
	{{Format: "color"}, {Format: "background"}},
	{{Format: "align"}, {Format: "align", Value: "center"}, {Format: "align", Value: "right"}, {Format: "align", Value: "justify"}},
	{{Format: "indent", Value: "-1"}, {Format: "indent", Value: "+1"}},
	{{Format: "list", Value: "ordered"}, {Format: "list", Value: "bullet"}},
	{{Format: "script", Value: "sub"}, {Format: "script", Value: "super"}},
	{{Format: "link"}, {Format: string(content.EmbedImage)}, {Format: string(content.EmbedVideo)}},
	{{Format: string(content.EmbedFormula)}, {Format: string(content.EmbedGraph)}},
	{{Format: "clean"}},
}

// Formats lists the formats the surface accepts.
var Formats = []string{
	"header",
	"bold",
	"italic",
	"underline",
	"strike",
	"blockquote",
	"code-block",
	"color",
	"background",
	"align",
	"indent",
	"list",
	"bullet",
	"script",
	"link",
	"image",
	"video",
	"formula",
	"graph",
}

// EmbedActions are the toolbar actions that go through an embed handler.
var EmbedActions = []content.EmbedKind{content.EmbedFormula, content.EmbedGraph, content.EmbedImage}

// AllowsFormat reports whether name is in Formats.
func AllowsFormat(name string) bool {
	for _, f := range Formats {
		if f == name {
			return true
		}
	}
	return false
}
