package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ai-task-scheduler/engine/internal/models"
)

// Advisor asks an optional, injectable advisory endpoint whether a task
// should proceed. A non-OK advisory is logged and the task still
// executes — fail-open, the same posture the original AI failure-prediction
// hook took for its ABORT decision, extended to "an advisory never blocks
// execution either" (SPEC_FULL.md §5).
type Advisor struct {
	baseURL string
	http    *http.Client
}

// NewAdvisor returns an Advisor pointed at baseURL. An empty baseURL means
// advisory checks are disabled; AdviseExecution always returns Proceed=true.
func NewAdvisor(baseURL string) *Advisor {
	return &Advisor{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// AdviceRequest is the payload sent to the advisory endpoint.
type AdviceRequest struct {
	TaskID   string                 `json:"task_id"`
	Features map[string]interface{} `json:"features"`
}

// Advice is the advisory endpoint's response.
type Advice struct {
	Decision   string  `json:"decision"` // "PROCEED" or "ABORT"
	Confidence float64 `json:"confidence"`
}

// AdviseExecution queries the advisory endpoint, if configured. It never
// returns an error that should halt execution: callers treat any failure
// as Proceed=true and log the underlying cause.
func (a *Advisor) AdviseExecution(ctx context.Context, task *models.Task, now time.Time) (proceed bool, advice *Advice, err error) {
	if a == nil || a.baseURL == "" {
		return true, nil, nil
	}

	reqBody := AdviceRequest{
		TaskID: task.ID.String(),
		Features: map[string]interface{}{
			"day_of_week": int(now.Weekday()),
			"hour":        now.Hour(),
			"task_type":   string(task.TaskType),
			"retry_count": task.RetryCount,
		},
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return true, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/predict/failure", bytes.NewBuffer(raw))
	if err != nil {
		return true, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return true, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return true, nil, fmt.Errorf("advisory service returned status: %d", resp.StatusCode)
	}

	var result Advice
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return true, nil, err
	}

	return result.Decision != "ABORT", &result, nil
}
