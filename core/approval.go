package core

// ApprovalRequest is emitted when a gated tool is about to run and no prior
// approval exists. Field names are wire-stable: the calling surface round-
// trips them as-is.
type ApprovalRequest struct {
	ApprovalID        string                 `json:"approval_id"`
	FunctionName      string                 `json:"function_name"`
	FunctionArguments map[string]interface{} `json:"function_arguments"`
	Message           string                 `json:"message,omitempty"`
}

// ApprovalResponse resolves a pending ApprovalRequest. Each request is
// resolved at most once; an unresolved request leaves the tool call pending.
type ApprovalResponse struct {
	ApprovalID string `json:"approval_id"`
	Approved   bool   `json:"approved"`
}
