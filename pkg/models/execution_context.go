package models

// ExecutionContext is the per-run view handed to node strategies. Strategies
// read from it; only the orchestrator mutates it, serially between waves.
type ExecutionContext struct {
	ExecutionID string                    `json:"execution_id"`
	WorkflowID  string                    `json:"workflow_id"`
	TriggerData map[string]any            `json:"trigger_data,omitempty"`
	Variables   map[string]any            `json:"variables,omitempty"`
	NodeResults map[string]map[string]any `json:"node_results,omitempty"`
	Metadata    map[string]any            `json:"metadata,omitempty"`
	Wave        int                       `json:"wave"`
}

// Document flattens the context into the map consulted by condition
// references and config templates. Node outputs appear under
// nodes.<id>.output to keep room for future per-node fields.
func (ec *ExecutionContext) Document() map[string]any {
	nodes := make(map[string]any, len(ec.NodeResults))
	for id, output := range ec.NodeResults {
		nodes[id] = map[string]any{"output": output}
	}

	return map[string]any{
		"execution_id": ec.ExecutionID,
		"workflow_id":  ec.WorkflowID,
		"trigger":      ec.TriggerData,
		"variables":    ec.Variables,
		"vars":         ec.Variables,
		"nodes":        nodes,
		"metadata":     ec.Metadata,
		"wave":         ec.Wave,
	}
}
