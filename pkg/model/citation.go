package model

// Citation is a retrieved memory record a response may reference.
type Citation struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`

	// Relevance is in [0, 1] when present.
	Relevance *float64 `json:"relevance,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Source    string   `json:"source,omitempty"`
}
