package models

import "time"

// ExecutionStatus is the run-level lifecycle state.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// NodeStatus is the per-node lifecycle state within a run.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
)

// Terminal reports whether the node result is final.
func (s NodeStatus) Terminal() bool {
	return s == NodeStatusCompleted || s == NodeStatusFailed
}

// NodeResult records one node's outcome within an execution. Terminal
// results are never overwritten. Cascaded marks nodes failed because a
// dependency failed rather than from their own execution.
type NodeResult struct {
	NodeID      string      `json:"nodeId"`
	Status      NodeStatus  `json:"status"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	Output      interface{} `json:"output,omitempty"`
	Error       string      `json:"error,omitempty"`
	RetriesUsed int         `json:"retriesUsed,omitempty"`
	TokensUsed  int         `json:"tokensUsed,omitempty"`
	Cascaded    bool        `json:"cascaded,omitempty"`
}

// ExecutionContext carries caller-supplied correlation ids through a run.
type ExecutionContext struct {
	ProjectID string `json:"projectId,omitempty"`
	StageID   string `json:"stageId,omitempty"`
	UserID    string `json:"userId,omitempty"`
}

// Execution is one run of a recipe version. NodeResults is keyed by node id
// and is append-only per node once terminal. FinalOutput maps each completed
// node's outputKey to its output.
type Execution struct {
	ID            string                 `json:"id"`
	RecipeID      string                 `json:"recipeId"`
	RecipeVersion int                    `json:"recipeVersion"`
	ProjectID     string                 `json:"projectId,omitempty"`
	StageID       string                 `json:"stageId,omitempty"`
	UserID        string                 `json:"userId,omitempty"`
	Status        ExecutionStatus        `json:"status"`
	Input         map[string]interface{} `json:"input,omitempty"`
	NodeResults   map[string]*NodeResult `json:"nodeResults"`
	FinalOutput   map[string]interface{} `json:"finalOutput,omitempty"`
	Error         string                 `json:"error,omitempty"`
	StartedAt     *time.Time             `json:"startedAt,omitempty"`
	CompletedAt   *time.Time             `json:"completedAt,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// Duration returns elapsed wall time, zero when the run has not started.
func (e *Execution) Duration() time.Duration {
	if e.StartedAt == nil {
		return 0
	}
	end := time.Now().UTC()
	if e.CompletedAt != nil {
		end = *e.CompletedAt
	}
	return end.Sub(*e.StartedAt)
}

// TokensUsed sums provider token usage across node results.
func (e *Execution) TokensUsed() int {
	total := 0
	for _, r := range e.NodeResults {
		total += r.TokensUsed
	}
	return total
}

// Summary flattens the execution for listings.
func (e *Execution) Summary() *ExecutionSummary {
	completed, failed := 0, 0
	for _, r := range e.NodeResults {
		switch r.Status {
		case NodeStatusCompleted:
			completed++
		case NodeStatusFailed:
			failed++
		}
	}
	return &ExecutionSummary{
		ID:             e.ID,
		RecipeID:       e.RecipeID,
		RecipeVersion:  e.RecipeVersion,
		ProjectID:      e.ProjectID,
		Status:         e.Status,
		NodesTotal:     len(e.NodeResults),
		NodesCompleted: completed,
		NodesFailed:    failed,
		TokensUsed:     e.TokensUsed(),
		DurationMs:     e.Duration().Milliseconds(),
		FinalOutput:    e.FinalOutput,
		Error:          e.Error,
		StartedAt:      e.StartedAt,
		CompletedAt:    e.CompletedAt,
	}
}

// ExecutionSummary is the listing and status view of a run.
type ExecutionSummary struct {
	ID             string                 `json:"id"`
	RecipeID       string                 `json:"recipeId"`
	RecipeVersion  int                    `json:"recipeVersion"`
	ProjectID      string                 `json:"projectId,omitempty"`
	Status         ExecutionStatus        `json:"status"`
	NodesTotal     int                    `json:"nodesTotal"`
	NodesCompleted int                    `json:"nodesCompleted"`
	NodesFailed    int                    `json:"nodesFailed"`
	TokensUsed     int                    `json:"tokensUsed"`
	DurationMs     int64                  `json:"durationMs"`
	FinalOutput    map[string]interface{} `json:"finalOutput,omitempty"`
	Error          string                 `json:"error,omitempty"`
	StartedAt      *time.Time             `json:"startedAt,omitempty"`
	CompletedAt    *time.Time             `json:"completedAt,omitempty"`
}

// ExecutionFilters narrows execution listings.
type ExecutionFilters struct {
	RecipeID  string
	ProjectID string
	Status    ExecutionStatus
}
