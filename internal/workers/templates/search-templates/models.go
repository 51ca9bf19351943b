// internal/workers/templates/search-templates/models.go
package searchtemplates

import "template-verifier/internal/search"

type Input struct {
	Text    string `json:"text,omitempty"`
	Board   string `json:"board,omitempty"`
	Program string `json:"program,omitempty"`
	From    int    `json:"from,omitempty"`
	Size    int    `json:"size,omitempty"`
}

type Output struct {
	Hits  []search.Hit `json:"hits"`
	Total int          `json:"total"`
	Took  int          `json:"took"`
}
