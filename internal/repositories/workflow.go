package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/shared"
)

// WorkflowRepository persists workflow state so in-flight approvals survive
// a restart. Structured state rides in JSON text columns.
type WorkflowRepository struct {
	db *sql.DB
}

// NewWorkflowRepository creates a new WorkflowRepository with the given database connection
func NewWorkflowRepository(db *sql.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Upsert writes the workflow's full state, inserting on first save.
func (r *WorkflowRepository) Upsert(workflow *models.Workflow) error {
	if err := workflow.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	setlist, err := marshalColumn(workflow.Setlist)
	if err != nil {
		return err
	}
	matches, err := marshalColumn(workflow.Matches)
	if err != nil {
		return err
	}
	selections, err := marshalColumn(workflow.Selections)
	if err != nil {
		return err
	}
	approvers, err := marshalColumn(workflow.ApproverIDs)
	if err != nil {
		return err
	}
	handles, err := marshalColumn(workflow.Handles)
	if err != nil {
		return err
	}

	workflow.UpdatedAt = time.Now()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = workflow.UpdatedAt
	}

	query := `
		INSERT INTO workflows (id, tenant_id, triggered_by, setlist, matches, selections, approver_ids, handles, origin_channel_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			setlist = excluded.setlist,
			matches = excluded.matches,
			selections = excluded.selections,
			approver_ids = excluded.approver_ids,
			handles = excluded.handles,
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	_, err = r.db.Exec(query,
		workflow.ID,
		workflow.TenantID,
		workflow.TriggeredBy,
		setlist,
		matches,
		selections,
		approvers,
		handles,
		workflow.OriginChannelID,
		workflow.Status,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert workflow: %w", err)
	}

	return nil
}

// Get retrieves a workflow by ID.
func (r *WorkflowRepository) Get(id string) (*models.Workflow, error) {
	query := workflowSelect + " WHERE id = ?"
	workflow, err := r.scanOne(r.db.QueryRow(query, id))
	if err != nil {
		return nil, err
	}
	if workflow == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrWorkflowNotFound, id)
	}
	return workflow, nil
}

// ListActive retrieves all workflows that have not reached a terminal state,
// oldest first. Used to rebuild the engine's in-memory cache on startup.
func (r *WorkflowRepository) ListActive() ([]*models.Workflow, error) {
	query := workflowSelect + `
		WHERE status NOT IN (?, ?)
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(query, models.StatusCompleted, models.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		workflow, err := scanWorkflow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return workflows, nil
}

// Delete removes a workflow row entirely.
func (r *WorkflowRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM workflows WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrWorkflowNotFound, id)
	}

	return nil
}

const workflowSelect = `
	SELECT id, tenant_id, triggered_by, setlist, matches, selections, approver_ids, handles, origin_channel_id, status, created_at, updated_at
	FROM workflows`

func (r *WorkflowRepository) scanOne(row *sql.Row) (*models.Workflow, error) {
	workflow, err := scanWorkflow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}
	return workflow, nil
}

func scanWorkflow(scan func(...any) error) (*models.Workflow, error) {
	var (
		workflow   models.Workflow
		setlist    string
		matches    string
		selections string
		approvers  string
		handles    string
	)

	err := scan(
		&workflow.ID,
		&workflow.TenantID,
		&workflow.TriggeredBy,
		&setlist,
		&matches,
		&selections,
		&approvers,
		&handles,
		&workflow.OriginChannelID,
		&workflow.Status,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalColumn(setlist, &workflow.Setlist); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(matches, &workflow.Matches); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(selections, &workflow.Selections); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(approvers, &workflow.ApproverIDs); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(handles, &workflow.Handles); err != nil {
		return nil, err
	}

	if workflow.Selections == nil {
		workflow.Selections = make(map[int]models.TrackRef)
	}
	if workflow.Handles == nil {
		workflow.Handles = make(map[string]int)
	}

	return &workflow, nil
}
