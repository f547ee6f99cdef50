package types

// MCPRequest represents an incoming tool request from a remote task body.
type MCPRequest struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// MCPResponse represents a tool response.
type MCPResponse struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SpawnSubtaskResult returned from bot_spawn_subtask.
type SpawnSubtaskResult struct {
	TaskID    string `json:"task_id"`
	Delegated bool   `json:"delegated"`
}

// MCPToolDefinition describes a tool.
type MCPToolDefinition struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Parameters  map[string]MCPParameterDef `json:"parameters"`
}

// MCPParameterDef describes a tool parameter.
type MCPParameterDef struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
}
