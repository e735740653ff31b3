package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// jsonResponse marshals data as the tool result's sole text content
// block (spec has no MCP wire format of its own; this repo follows the
// go-sdk convention of one JSON TextContent per call).
func jsonResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}

// errorResponse reports err inside the result object with IsError set,
// per the MCP SDK spec: tool errors must be visible to the model so it
// can self-correct, not raised as protocol-level errors.
func errorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	response, marshalErr := jsonResponse(map[string]interface{}{
		"success":   false,
		"operation": operation,
		"error":     err.Error(),
	})
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}
