package catalog

import (
	"strings"

	"github.com/Skotchmaster/nolmart/internal/models"
)

type SearchState string

const (
	// SearchNoQuery means the term was blank; the caller should prompt rather than show "no results".
	SearchNoQuery   SearchState = "no_query"
	SearchNoMatches SearchState = "no_matches"
	SearchMatches   SearchState = "matches"
)

type SearchResult struct {
	Term     string           `json:"term"`
	State    SearchState      `json:"state"`
	Products []models.Product `json:"products"`
}

// Search matches term case-insensitively as a substring of name or description.
func (c *Cache) Search(term string) SearchResult {
	q := strings.ToLower(strings.TrimSpace(term))
	if q == "" {
		return SearchResult{Term: term, State: SearchNoQuery, Products: []models.Product{}}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	found := []models.Product{}
	for _, p := range c.products {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
			found = append(found, p)
		}
	}

	state := SearchMatches
	if len(found) == 0 {
		state = SearchNoMatches
	}
	return SearchResult{Term: term, State: state, Products: found}
}
