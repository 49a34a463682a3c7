// Package mcp exposes findmysh search to AI assistants over the Model
// Context Protocol.
package mcp

import (
	"github.com/davidsparrow/findmysh/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces the MCP server needs.
type Ports struct {
	// Search answers semantic queries.
	Search driving.SearchService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
