// Package editor hosts one rich-text document: it projects the persisted value
// for the current mode, turns change events back into the persisted string,
// inserts embeds and tracks the read-only truncation state.
//
// A Surface has a two-phase lifecycle. Initialize decodes the configuration;
// OnMountMeasurement receives the rendered height once layout is known.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"docpad/api/internal/content"
	"docpad/api/internal/embed"
	"docpad/api/internal/truncate"
)

var (
	ErrReadOnly       = errors.New("editor: surface is read-only")
	ErrNotInitialized = errors.New("editor: surface has no embed registry")
)

// Config holds the options a host passes to a surface.
type Config struct {
	Label       string
	Placeholder string
	ReadOnly    bool
	OnChange    func(serialized string)
	Value       string
	IsShowAll   bool
}

// InsertResult reports what an embed action did. Inserted is false when the
// user cancelled.
type InsertResult struct {
	Inserted   bool
	Kind       content.EmbedKind
	Value      string
	Serialized string
}

type Option func(*Surface)

// WithRegistry sets the handlers used by InsertEmbed.
func WithRegistry(r *embed.Registry) Option {
	return func(s *Surface) { s.registry = r }
}

// WithSerializer shares embed serialization across surfaces of one document.
func WithSerializer(sz *embed.Serializer, documentID string) Option {
	return func(s *Surface) {
		s.serializer = sz
		s.documentID = documentID
	}
}

func WithEngine(e truncate.Engine) Option {
	return func(s *Surface) { s.engine = e }
}

// WithSnapshot sets how the content snapshot is regenerated after the surface
// itself changes the delta.
func WithSnapshot(fn func(content.Delta) string) Option {
	return func(s *Surface) { s.snapshot = fn }
}

type Surface struct {
	cfg        Config
	registry   *embed.Registry
	serializer *embed.Serializer
	documentID string
	engine     truncate.Engine
	snapshot   func(content.Delta) string

	mu       sync.Mutex
	doc      content.Document
	state    truncate.State
	measured bool
}

// Initialize decodes cfg.Value. A malformed value is returned to the host.
func Initialize(cfg Config, opts ...Option) (*Surface, error) {
	doc, err := content.Decode(cfg.Value)
	if err != nil {
		return nil, err
	}
	s := &Surface{
		cfg:      cfg,
		engine:   truncate.Default(),
		snapshot: func(d content.Delta) string { return d.PlainText() },
		doc:      doc,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.serializer == nil {
		s.serializer = embed.NewSerializer()
	}
	return s, nil
}

// OnMountMeasurement records the rendered height in pixels. Only the first
// call on a read-only surface counts.
func (s *Surface) OnMountMeasurement(heightPx float64) truncate.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.ReadOnly && !s.measured {
		s.state.MeasuredLines = s.engine.MeasureLines(heightPx)
		s.measured = true
	}
	return s.viewLocked()
}

func (s *Surface) Label() string       { return s.cfg.Label }
func (s *Surface) Placeholder() string { return s.cfg.Placeholder }
func (s *Surface) ReadOnly() bool      { return s.cfg.ReadOnly }

// Document returns the current decoded document.
func (s *Surface) Document() content.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Value is the mode projection: the delta when read-only, the content otherwise.
func (s *Surface) Value() content.Value {
	return content.SelectValueForMode(s.Document(), s.cfg.ReadOnly)
}

// HandleChange encodes a change event and reports it to OnChange.
func (s *Surface) HandleChange(text string, delta content.Delta) (string, error) {
	s.mu.Lock()
	serialized, err := s.applyLocked(text, delta)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	s.emit(serialized)
	return serialized, nil
}

// InsertEmbed runs the handler for kind and inserts its value at index.
// Cancellation leaves the document untouched and is not an error.
func (s *Surface) InsertEmbed(ctx context.Context, kind content.EmbedKind, index int, current string) (InsertResult, error) {
	result := InsertResult{Kind: kind}
	if s.cfg.ReadOnly {
		return result, ErrReadOnly
	}
	if s.registry == nil {
		return result, ErrNotInitialized
	}
	h, err := s.registry.Lookup(kind)
	if err != nil {
		return result, err
	}

	err = s.serializer.Do(ctx, s.documentID, func(ctx context.Context) error {
		value, err := embed.Run(ctx, h, current)
		if err != nil {
			return err
		}
		s.mu.Lock()
		delta := s.doc.Delta.InsertAt(index, content.EmbedOp(kind, value))
		serialized, err := s.applyLocked(s.snapshot(delta), delta)
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("apply %s embed: %w", kind, err)
		}
		result.Inserted = true
		result.Value = value
		result.Serialized = serialized
		return nil
	})
	if errors.Is(err, embed.ErrCancelled) {
		return InsertResult{Kind: kind}, nil
	}
	if err != nil {
		return InsertResult{Kind: kind}, err
	}
	s.emit(result.Serialized)
	return result, nil
}

// View describes the truncation state. Editable surfaces always show all.
func (s *Surface) View() truncate.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Surface) VisualClass() truncate.Class { return s.View().Class }
func (s *Surface) ShowToggle() bool            { return s.View().ShowToggle }
func (s *Surface) ToggleLabel() string         { return s.View().ToggleLabel }

// Toggle flips expansion on a read-only surface.
func (s *Surface) Toggle() truncate.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.ReadOnly {
		s.state = s.state.Toggle()
	}
	return s.viewLocked()
}

// State returns the truncation state for persistence.
func (s *Surface) State() truncate.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Restore seeds a previously persisted truncation state and marks the
// surface measured.
func (s *Surface) Restore(state truncate.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.measured = true
}

func (s *Surface) viewLocked() truncate.View {
	if !s.cfg.ReadOnly {
		return truncate.View{Class: truncate.ClassShowAll}
	}
	return s.engine.Describe(s.state, s.cfg.IsShowAll)
}

func (s *Surface) applyLocked(text string, delta content.Delta) (string, error) {
	serialized, err := content.Encode(text, delta)
	if err != nil {
		return "", err
	}
	if delta.Ops == nil {
		delta.Ops = []content.Op{}
	}
	s.doc = content.Document{Content: text, Delta: delta}
	return serialized, nil
}

func (s *Surface) emit(serialized string) {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(serialized)
	}
}
