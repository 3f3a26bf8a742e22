package domain

// Fragment is a retrievable unit of source text with its relevance score
// and provenance metadata. Slices of fragments handed to consumers are
// always ordered by descending score.
type Fragment struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]string
}
