package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fawad-mazhar/statusboard/internal/models"
)

func TestMapStatus(t *testing.T) {
	tests := map[string]models.LifecycleState{
		"PENDING":   models.StateNotStarted,
		"RUNNING":   models.StateRunning,
		"running":   models.StateRunning,
		"RETRYING":  models.StateUpForRetry,
		"COMPLETED": models.StateSuccessful,
		"SKIPPED":   models.StateSkipped,
		"FAILED":    models.StateFailed,
		"PAUSED":    models.LifecycleState("PAUSED"),
	}

	for status, expected := range tests {
		t.Run(status, func(t *testing.T) {
			assert.Equal(t, expected, MapStatus(status))
		})
	}
}

func TestUpsertTask_KeepsLatestAttempt(t *testing.T) {
	var tasks []models.TaskSnapshot
	tasks = upsertTask(tasks, models.TaskSnapshot{Name: "extract", State: models.StateFailed})
	tasks = upsertTask(tasks, models.TaskSnapshot{Name: "load", State: models.StateNotStarted})
	tasks = upsertTask(tasks, models.TaskSnapshot{Name: "extract", State: models.StateSuccessful})

	assert.Equal(t, []models.TaskSnapshot{
		{Name: "extract", State: models.StateSuccessful},
		{Name: "load", State: models.StateNotStarted},
	}, tasks)
}
