package retrieval

import (
	"encoding/json"

	"github.com/hpc-help/sccbot/pkg/tools/toolbox"
)

// inputSchema is the JSON Schema for the tool's parameters, in the OpenAI
// function-definition format.
var inputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "The search query to find relevant documents"
		},
		"n_results": {
			"type": "integer",
			"description": "Number of results to return per document kind (default: 2)"
		}
	},
	"required": ["query"]
}`)

// Definition returns the toolbox registration for this tool.
func (t *Tool) Definition() toolbox.Tool {
	return toolbox.Tool{
		Name:        ToolName,
		Description: "Retrieves both Q&A and detailed article documents about the SCC",
		InputSchema: inputSchema,
		Handler:     t.Execute,
	}
}
