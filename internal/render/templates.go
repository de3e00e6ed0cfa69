package render

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"docpad/api/internal/truncate"
)

const (
	// ClippedHeightEm is the height of a clipped view; it shows
	// truncate.ClippedLines lines of body text.
	ClippedHeightEm = 36
	// DefaultWidthPx is the layout width used when measuring.
	DefaultWidthPx = 720
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	documentTemplate *template.Template
	previewTemplate  *template.Template
)

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},
	}

	documentTemplate = template.Must(template.New("document.html").Funcs(funcMap).ParseFS(templateFS, "templates/document.html"))
	previewTemplate = template.Must(template.New("preview.html").Funcs(funcMap).ParseFS(templateFS, "templates/preview.html"))
}

// TemplateData holds data for document template rendering
type TemplateData struct {
	Title       string
	ContentHTML template.HTML
	Author      string
	UpdatedAt   time.Time
}

// PreviewData holds data for the read-only view
type PreviewData struct {
	Title           string
	Label           string
	ContentHTML     template.HTML
	Class           truncate.Class
	ShowToggle      bool
	ToggleLabel     string
	WidthPx         int
	ClippedHeightEm int
}

// RenderDocumentHTML renders the export template with provided data
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPreviewHTML renders a read-only view page. ContentHTML must already
// be sanitized.
func RenderPreviewHTML(data PreviewData) (string, error) {
	if data.WidthPx <= 0 {
		data.WidthPx = DefaultWidthPx
	}
	if data.ClippedHeightEm <= 0 {
		data.ClippedHeightEm = ClippedHeightEm
	}
	if data.Class == "" {
		data.Class = truncate.ClassShowAll
	}
	var buf bytes.Buffer
	if err := previewTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
