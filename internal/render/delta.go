package render

import (
	"fmt"
	"html"
	"strings"

	"docpad/api/internal/content"
)

// MathRenderer turns a formula or graph expression into inline HTML.
type MathRenderer func(kind content.EmbedKind, expr string) string

// PlainMath shows the expression source as code.
func PlainMath(_ content.EmbedKind, expr string) string {
	return "<code>" + html.EscapeString(expr) + "</code>"
}

// DeltaToHTML converts a delta into editor-compatible HTML. Block formats
// ride on the newline that ends each line; inline formats on the text itself.
func DeltaToHTML(delta content.Delta, math MathRenderer) string {
	if math == nil {
		math = PlainMath
	}
	r := &deltaRenderer{math: math}
	for _, op := range delta.Ops {
		switch {
		case op.IsText():
			r.text(op.Insert, op.Attributes)
		case op.IsEmbed():
			r.line.WriteString(r.embed(*op.Embed, op.Attributes))
			r.pending = true
		}
	}
	if r.pending {
		r.flush(nil)
	}
	r.closeGroup()
	return r.out.String()
}

type deltaRenderer struct {
	math    MathRenderer
	out     strings.Builder
	line    strings.Builder
	pending bool
	group   string // open list or code container tag
}

func (r *deltaRenderer) text(text string, attrs map[string]any) {
	parts := strings.Split(text, "\n")
	for i, part := range parts {
		if part != "" {
			r.line.WriteString(inline(html.EscapeString(part), attrs))
			r.pending = true
		}
		if i < len(parts)-1 {
			r.flush(attrs)
		}
	}
}

// flush ends the current line using the block attributes of its newline.
func (r *deltaRenderer) flush(attrs map[string]any) {
	body := r.line.String()
	r.line.Reset()
	r.pending = false
	if body == "" {
		body = "<br>"
	}

	class := blockClass(attrs)
	switch {
	case attrString(attrs, "list") != "":
		tag := "ul"
		if attrString(attrs, "list") == "ordered" {
			tag = "ol"
		}
		r.openGroup(tag)
		fmt.Fprintf(&r.out, "<li%s>%s</li>", class, body)
	case attrBool(attrs, "code-block"):
		r.openGroup("pre")
		r.out.WriteString(strings.ReplaceAll(body, "<br>", ""))
		r.out.WriteString("\n")
	default:
		r.closeGroup()
		tag := "p"
		if level := attrString(attrs, "header"); level == "1" || level == "2" || level == "3" {
			tag = "h" + level
		} else if attrBool(attrs, "blockquote") {
			tag = "blockquote"
		}
		fmt.Fprintf(&r.out, "<%s%s>%s</%s>", tag, class, body, tag)
	}
}

func (r *deltaRenderer) openGroup(tag string) {
	if r.group == tag {
		return
	}
	r.closeGroup()
	if tag == "pre" {
		r.out.WriteString(`<pre class="ql-syntax" spellcheck="false">`)
	} else {
		r.out.WriteString("<" + tag + ">")
	}
	r.group = tag
}

func (r *deltaRenderer) closeGroup() {
	if r.group == "" {
		return
	}
	r.out.WriteString("</" + r.group + ">")
	r.group = ""
}

func (r *deltaRenderer) embed(e content.Embed, attrs map[string]any) string {
	value := html.EscapeString(e.Value)
	switch e.Kind {
	case content.EmbedFormula, content.EmbedGraph:
		return fmt.Sprintf(`<span class="ql-%s" data-value="%s">%s</span>`, e.Kind, value, r.math(e.Kind, e.Value))
	case content.EmbedImage:
		return inline(fmt.Sprintf(`<img src="%s">`, value), attrs)
	case content.EmbedVideo:
		return fmt.Sprintf(`<iframe class="ql-video" frameborder="0" allowfullscreen="true" src="%s"></iframe>`, value)
	}
	return ""
}

func inline(body string, attrs map[string]any) string {
	if len(attrs) == 0 {
		return body
	}
	if attrBool(attrs, "bold") {
		body = "<strong>" + body + "</strong>"
	}
	if attrBool(attrs, "italic") {
		body = "<em>" + body + "</em>"
	}
	if attrBool(attrs, "underline") {
		body = "<u>" + body + "</u>"
	}
	if attrBool(attrs, "strike") {
		body = "<s>" + body + "</s>"
	}
	switch attrString(attrs, "script") {
	case "sub":
		body = "<sub>" + body + "</sub>"
	case "super":
		body = "<sup>" + body + "</sup>"
	}

	var styles []string
	if color := attrString(attrs, "color"); color != "" {
		styles = append(styles, "color: "+html.EscapeString(color))
	}
	if bg := attrString(attrs, "background"); bg != "" {
		styles = append(styles, "background-color: "+html.EscapeString(bg))
	}
	if len(styles) > 0 {
		body = fmt.Sprintf(`<span style="%s;">%s</span>`, strings.Join(styles, "; "), body)
	}

	if href := attrString(attrs, "link"); href != "" {
		body = fmt.Sprintf(`<a href="%s" rel="noopener noreferrer" target="_blank">%s</a>`, html.EscapeString(href), body)
	}
	return body
}

func blockClass(attrs map[string]any) string {
	var classes []string
	if align := attrString(attrs, "align"); align != "" {
		classes = append(classes, "ql-align-"+html.EscapeString(align))
	}
	if indent := attrString(attrs, "indent"); indent != "" {
		classes = append(classes, "ql-indent-"+html.EscapeString(indent))
	}
	if len(classes) == 0 {
		return ""
	}
	return ` class="` + strings.Join(classes, " ") + `"`
}

func attrBool(attrs map[string]any, key string) bool {
	v, ok := attrs[key].(bool)
	return ok && v
}

// attrString reads string and numeric attributes alike; JSON numbers arrive
// as float64.
func attrString(attrs map[string]any, key string) string {
	switch v := attrs[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	case int:
		return fmt.Sprintf("%d", v)
	}
	return ""
}
