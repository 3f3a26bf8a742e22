package generate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/querydex/internal/domain"
)

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = "You are a question-answering assistant. " +
	"Answer using only the provided context fragments and cite fragment ids. " +
	"If the context does not contain the answer, say so."

// buildUserPrompt assembles the retrieval context and the question into
// the user message. Each fragment carries its id and source metadata so
// the model can cite provenance.
func buildUserPrompt(fragments []domain.Fragment, query string) string {
	var b strings.Builder

	if len(fragments) == 0 {
		b.WriteString("No context fragments were retrieved for this question.\n")
	} else {
		b.WriteString("Context fragments:\n")
		for i, f := range fragments {
			fmt.Fprintf(&b, "\n[%d] %s\n%s\n", i+1, provenance(f), f.Text)
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	return b.String()
}

// provenance renders a fragment's id and metadata as a stable one-line tag.
func provenance(f domain.Fragment) string {
	if len(f.Metadata) == 0 {
		return fmt.Sprintf("(id: %s)", f.ID)
	}

	keys := make([]string, 0, len(f.Metadata))
	for k := range f.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, "id: "+f.ID)
	for _, k := range keys {
		parts = append(parts, k+": "+f.Metadata[k])
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
