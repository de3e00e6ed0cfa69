package embed

import (
	"context"
	"errors"
	"fmt"

	"docpad/api/internal/content"
)

const (
	FormulaPrompt = "Enter latex formula"
	GraphPrompt   = "Enter function"
)

// PromptEmbed solicits a text expression. Formula and graph embeds differ only
// in kind and prompt message.
type PromptEmbed struct {
	kind     content.EmbedKind
	message  string
	prompter Prompter
}

func NewFormulaEmbed(p Prompter) *PromptEmbed {
	return &PromptEmbed{kind: content.EmbedFormula, message: FormulaPrompt, prompter: p}
}

func NewGraphEmbed(p Prompter) *PromptEmbed {
	return &PromptEmbed{kind: content.EmbedGraph, message: GraphPrompt, prompter: p}
}

func (e *PromptEmbed) Kind() content.EmbedKind { return e.kind }

// Handle resolves with the entered text, verbatim. An empty submission is
// treated the same as dismissing the prompt.
func (e *PromptEmbed) Handle(ctx context.Context, current string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", cancelled(ctx)
	}
	answer, err := e.prompter.Prompt(ctx, e.message, current)
	if err != nil {
		if errors.Is(err, ErrCancelled) || ctx.Err() != nil {
			return "", cancelled(ctx)
		}
		return "", fmt.Errorf("prompt %s: %w", e.kind, err)
	}
	if answer == "" {
		return "", ErrCancelled
	}
	return answer, nil
}
