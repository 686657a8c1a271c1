// Package journal turns an aggregated workspace day into an AI-written
// narrative. The aggregate is already on disk before this stage runs, so a
// provider failure costs the narrative, never the data.
package journal

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"thornfield.dev/daybook/pkg/activity"
	"thornfield.dev/daybook/pkg/ai"
	"thornfield.dev/daybook/pkg/editor"
	dberrors "thornfield.dev/daybook/pkg/errors"
)

// Generator produces the journal narrative for one aggregate.
type Generator struct {
	provider ai.Provider
	verbose  bool
	writer   io.Writer

	// Sessions is optional editor-session context included in the prompt.
	Sessions []editor.WorkspaceSession
}

// NewGenerator creates a Generator over the given provider.
func NewGenerator(provider ai.Provider, verbose bool) *Generator {
	return &Generator{
		provider: provider,
		verbose:  verbose,
		writer:   os.Stderr,
	}
}

// WithWriter sets the progress output destination for testing.
func (g *Generator) WithWriter(w io.Writer) *Generator {
	g.writer = w
	return g
}

// Generate sends the capped activity prompt to the provider and returns the
// narrative text.
func (g *Generator) Generate(ctx context.Context, doc *activity.WorkspaceActivity) (string, error) {
	if g.provider == nil || !g.provider.IsAvailable() {
		return "", dberrors.NewConfigError("ai.provider", "no AI provider is configured")
	}

	messages := []ai.Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: BuildPrompt(doc, g.Sessions)},
	}

	if g.verbose {
		fmt.Fprintf(g.writer, "Generating journal narrative via %s...\n", g.provider.Name())
	}

	resp, err := g.provider.Chat(ctx, messages)
	if err != nil {
		return "", err
	}

	narrative := strings.TrimSpace(resp.Content)
	if narrative == "" {
		return "", dberrors.NewAIError(g.provider.Name(), "Chat", "provider returned an empty narrative")
	}

	return narrative, nil
}

// Section wraps a narrative in the heading used when appending it to the
// daily summary document.
func Section(narrative string) string {
	return "## Journal\n\n" + narrative + "\n"
}
