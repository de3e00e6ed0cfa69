package embed

import (
	"fmt"
	"sort"

	"docpad/api/internal/content"
	"docpad/api/internal/upload"
)

// Registry maps embed kinds to their handlers. It is built once and handed to
// the surface that needs it.
type Registry struct {
	handlers map[content.EmbedKind]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[content.EmbedKind]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.Kind()] = h
	}
	return r
}

// DefaultRegistry wires the formula, graph and image handlers.
func DefaultRegistry(prompter Prompter, picker FilePicker, gateway upload.Gateway) *Registry {
	return NewRegistry(
		NewFormulaEmbed(prompter),
		NewGraphEmbed(prompter),
		NewImageEmbed(picker, gateway),
	)
}

func (r *Registry) Lookup(kind content.EmbedKind) (Handler, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return h, nil
}

// Kinds lists the registered kinds in name order.
func (r *Registry) Kinds() []content.EmbedKind {
	kinds := make([]content.EmbedKind, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
