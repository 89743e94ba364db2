// internal/storage/postgres/client.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/fawad-mazhar/statusboard/internal/config"
	"github.com/fawad-mazhar/statusboard/internal/models"
)

// Client reads execution history from the orchestrator's database. It never
// writes.
type Client struct {
	db *sql.DB
}

func NewClient(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// MapStatus translates an orchestrator status into a lifecycle state
func MapStatus(status string) models.LifecycleState {
	switch strings.ToUpper(status) {
	case "PENDING", "QUEUED":
		return models.StateNotStarted
	case "RUNNING":
		return models.StateRunning
	case "RETRYING", "UP_FOR_RETRY":
		return models.StateUpForRetry
	case "COMPLETED", "SUCCESS", "SUCCESSFUL":
		return models.StateSuccessful
	case "SKIPPED":
		return models.StateSkipped
	case "FAILED", "ERROR":
		return models.StateFailed
	default:
		// left for the color resolver to report
		return models.LifecycleState(status)
	}
}

// RecentExecutions returns up to limit of the most recently started executions,
// oldest first, with their task states. An empty job selects every job.
func (c *Client) RecentExecutions(ctx context.Context, job string, limit int) ([]models.ExecutionSnapshot, error) {
	query := `
		SELECT je.id, jd.name, je.status, je.start_time
		FROM job_executions je
		JOIN job_definitions jd ON jd.id = je.definition_id
		WHERE $1 = '' OR jd.name = $1
		ORDER BY je.start_time DESC
		LIMIT $2`

	rows, err := c.db.QueryContext(ctx, query, job, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var executions []models.ExecutionSnapshot
	positions := make(map[string]int)
	for rows.Next() {
		var (
			exec   models.ExecutionSnapshot
			status string
		)
		if err := rows.Scan(&exec.ID, &exec.JobName, &status, &exec.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		exec.State = MapStatus(status)
		executions = append(executions, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(executions) == 0 {
		return executions, nil
	}

	// oldest first
	for i, j := 0, len(executions)-1; i < j; i, j = i+1, j-1 {
		executions[i], executions[j] = executions[j], executions[i]
	}
	ids := make([]string, len(executions))
	for i, exec := range executions {
		ids[i] = exec.ID
		positions[exec.ID] = i
	}

	if err := c.attachTasks(ctx, ids, executions, positions); err != nil {
		return nil, err
	}
	return executions, nil
}

func (c *Client) attachTasks(ctx context.Context, ids []string, executions []models.ExecutionSnapshot, positions map[string]int) error {
	query := `
		SELECT job_id, task_id, status, start_time
		FROM task_executions
		WHERE job_id = ANY($1)
		ORDER BY start_time ASC`

	rows, err := c.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query task executions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			jobID, taskID, status string
			startTime             sql.NullTime
		)
		if err := rows.Scan(&jobID, &taskID, &status, &startTime); err != nil {
			return fmt.Errorf("failed to scan task execution: %w", err)
		}

		task := models.TaskSnapshot{Name: taskID, State: MapStatus(status)}
		if startTime.Valid {
			started := startTime.Time.In(time.UTC)
			task.StartedAt = &started
		}

		i := positions[jobID]
		executions[i].Tasks = upsertTask(executions[i].Tasks, task)
	}
	return rows.Err()
}

// upsertTask keeps the latest attempt of each task, in first-attempt order
func upsertTask(tasks []models.TaskSnapshot, task models.TaskSnapshot) []models.TaskSnapshot {
	for i := range tasks {
		if tasks[i].Name == task.Name {
			tasks[i] = task
			return tasks
		}
	}
	return append(tasks, task)
}
