// Package mcp describes the static catalog of MCP servers known to the
// cluster. The catalog is fixed at build time and never mutated.
package mcp

// ServerStatus represents the availability of a catalog server.
type ServerStatus string

const (
	ServerStatusActive   ServerStatus = "active"
	ServerStatusInactive ServerStatus = "inactive"
)

// Server is one entry in the catalog.
type Server struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Status ServerStatus `json:"status"`
	Tools  []string     `json:"tools"`
}

var catalog = []Server{
	{ID: "core-dev", Name: "Core Development Tools", Status: ServerStatusActive, Tools: []string{"compiler", "linter", "formatter"}},
	{ID: "web-framework", Name: "Web Framework Server", Status: ServerStatusActive, Tools: []string{"react-tools", "express-tools", "webpack"}},
	{ID: "database-tools", Name: "Database Tools Server", Status: ServerStatusActive, Tools: []string{"postgres-client", "migration-tools", "query-optimizer"}},
}

// Catalog returns a deep copy of the static server catalog.
func Catalog() []Server {
	out := make([]Server, len(catalog))
	for i, s := range catalog {
		s.Tools = append([]string(nil), s.Tools...)
		out[i] = s
	}
	return out
}

// FindTool returns the id of the first catalog server offering tool.
func FindTool(tool string) (string, bool) {
	for _, s := range catalog {
		for _, t := range s.Tools {
			if t == tool {
				return s.ID, true
			}
		}
	}
	return "", false
}
