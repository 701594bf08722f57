package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskPipelineHealthCheck = "pipeline.health_check"

// PipelineHealthCheckPayload scopes a sweep to one tenant when set;
// empty means sweep every known tenant.
type PipelineHealthCheckPayload struct {
	TenantID string `json:"tenantId,omitempty"`
}

func NewPipelineHealthCheckTask(payload PipelineHealthCheckPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPipelineHealthCheck, data), nil
}

func ParsePipelineHealthCheckPayload(task *asynq.Task) (PipelineHealthCheckPayload, error) {
	var payload PipelineHealthCheckPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PipelineHealthCheckPayload{}, err
	}
	return payload, nil
}
