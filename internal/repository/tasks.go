package repository

import (
	"context"
	"database/sql"
	"errors"

	"taskhub/internal/models"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = "id, user_id, title, description, done, files, created_at, updated_at"

func scanTask(row *sql.Row) (models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Done, &t.Files, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, ErrNotFound
	}
	return t, err
}

func collectTasks(rows *sql.Rows) ([]models.Task, error) {
	defer rows.Close()
	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Done, &t.Files, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Create inserts a task owned by userID. The owner reference is set here and
// no update path ever touches it again.
func (r *TaskRepository) Create(ctx context.Context, userID, title string, description, files *string) (models.Task, error) {
	row := r.db.QueryRowContext(ctx,
		"INSERT INTO tasks (id, user_id, title, description, files) VALUES ($1, $2, $3, $4, $5) RETURNING "+taskColumns,
		NewID(), userID, title, description, files)
	return scanTask(row)
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (models.Task, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = $1", id)
	return scanTask(row)
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID string) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (r *TaskRepository) ListPage(ctx context.Context, userID string, limit, offset int) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (r *TaskRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE user_id = $1", userID).Scan(&n)
	return n, err
}

// Update is the full-replacement write: title and done are always set,
// description is overwritten with the provided value (nil clears it).
// Attachments are only replaced when files is non-nil; their removal goes
// through SetFiles so the store never sees an implicit clear.
func (r *TaskRepository) Update(ctx context.Context, id, title string, description *string, done bool, files *string) (models.Task, error) {
	row := r.db.QueryRowContext(ctx, `
        UPDATE tasks
        SET title = $1,
            description = $2,
            done = $3,
            files = COALESCE($4, files),
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $5
        RETURNING `+taskColumns,
		title, description, done, files, id)
	return scanTask(row)
}

// UpdatePartial modifies only the non-nil fields and returns the updated row.
func (r *TaskRepository) UpdatePartial(ctx context.Context, id string, title, description *string, done *bool, files *string) (models.Task, error) {
	row := r.db.QueryRowContext(ctx, `
        UPDATE tasks
        SET title = COALESCE($1, title),
            description = COALESCE($2, description),
            done = COALESCE($3, done),
            files = COALESCE($4, files),
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $5
        RETURNING `+taskColumns,
		title, description, done, files, id)
	return scanTask(row)
}

// SetFiles overwrites the attachment list. Passing nil stores NULL, which is
// the canonical encoding of "no attachments".
func (r *TaskRepository) SetFiles(ctx context.Context, id string, files *string) (models.Task, error) {
	row := r.db.QueryRowContext(ctx, `
        UPDATE tasks
        SET files = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2
        RETURNING `+taskColumns,
		files, id)
	return scanTask(row)
}

// Delete removes the row and reports whether it existed.
func (r *TaskRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
