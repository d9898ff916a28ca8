package postgres

import (
	"database/sql"
	"iter"

	"github.com/lib/pq"
	"github.com/phrazzld/questboard-api/internal/domain"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const taskColumns = `t.id, t.complexity, t.description, t.expected_time, t.tags, t.assigned_to, t.created_at`

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task       domain.Task
		complexity int16
		tags       pq.StringArray
		assignedTo sql.NullInt64
	)

	if err := row.Scan(
		&task.ID,
		&complexity,
		&task.Description,
		&task.ExpectedTime,
		&tags,
		&assignedTo,
		&task.CreatedAt,
	); err != nil {
		return nil, err
	}

	rank, err := domain.ParseRank(int(complexity))
	if err != nil {
		return nil, err
	}
	task.Complexity = rank
	task.Tags = domain.NormalizeTags(tags)
	if assignedTo.Valid {
		owner := assignedTo.Int64
		task.AssignedTo = &owner
	}
	return &task, nil
}

const userColumns = `u.id, u.login, u.name, u.password_hash, u.class, u.is_admin, u.tags, u.created_at`

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user  domain.User
		class int16
		tags  pq.StringArray
	)

	if err := row.Scan(
		&user.ID,
		&user.Login,
		&user.Name,
		&user.HashedPassword,
		&class,
		&user.IsAdmin,
		&tags,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}

	rank, err := domain.ParseRank(int(class))
	if err != nil {
		return nil, err
	}
	user.Class = rank
	user.Tags = domain.NormalizeTags(tags)
	return &user, nil
}

// querySeq runs query on every iteration and yields scanned tasks. Errors
// are yielded once and end the sequence.
func querySeq(run func() (*sql.Rows, error)) iter.Seq2[*domain.Task, error] {
	return func(yield func(*domain.Task, error) bool) {
		rows, err := run()
		if err != nil {
			yield(nil, err)
			return
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			task, err := scanTask(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(task, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}
