package intent

// Tool describes one invocation the compiler is able to emit.
type Tool struct {
	Name        string `json:"name"`
	Signature   string `json:"signature"`
	Description string `json:"description"`
}

// Catalog is the tool surface advertised to intent submitters.
var Catalog = []Tool{
	{Name: "create_file", Signature: "create_file(path: str, content: str)", Description: "Creates a new file with specified content."},
	{Name: "read_file", Signature: "read_file(path: str)", Description: "Reads the content of an existing file."},
	{Name: "update_file", Signature: "update_file(path: str, new_content: str)", Description: "Overwrites a file with new content."},
	{Name: "lint_code", Signature: "lint_code(path: str)", Description: "Runs a linter on a specific file to check for errors."},
	{Name: "run_tests", Signature: "run_tests(suite: str)", Description: `Executes a specified test suite (e.g., "unit", "integration").`},
	{Name: "refactor_code", Signature: "refactor_code(path: str, instructions: str)", Description: "Applies refactoring changes based on instructions."},
}

// Tools returns a copy of Catalog.
func Tools() []Tool {
	out := make([]Tool, len(Catalog))
	copy(out, Catalog)
	return out
}
