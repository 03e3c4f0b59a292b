package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
)

func (r *Repository) CreateCandidate(c *domain.Candidate) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		INSERT INTO candidates (id, name, cost, category, group_name, predicted_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, version
	`

	args := []any{c.ID, c.Name, c.Cost, c.Category, c.Group, c.PredictedScore}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&c.CreatedAt, &c.Version); err != nil {
		return err
	}

	return nil
}

// CreateCandidates 在一个事务中批量导入候选人，已存在的 ID 会被覆盖
func (r *Repository) CreateCandidates(candidates []domain.Candidate) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO candidates (id, name, cost, category, group_name, predicted_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			cost = EXCLUDED.cost,
			category = EXCLUDED.category,
			group_name = EXCLUDED.group_name,
			predicted_score = EXCLUDED.predicted_score,
			version = candidates.version + 1
		RETURNING created_at, version
	`

	for i := range candidates {
		c := &candidates[i]
		args := []any{c.ID, c.Name, c.Cost, c.Category, c.Group, c.PredictedScore}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&c.CreatedAt, &c.Version); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetAllCandidates() ([]domain.Candidate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT id, name, cost, category, group_name, predicted_score, created_at, version
		FROM candidates
		ORDER BY id
	`

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := make([]domain.Candidate, 0)
	for rows.Next() {
		var c domain.Candidate
		dst := []any{&c.ID, &c.Name, &c.Cost, &c.Category, &c.Group, &c.PredictedScore, &c.CreatedAt, &c.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return candidates, nil
}

func (r *Repository) GetCandidateByID(id int64) (*domain.Candidate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT name, cost, category, group_name, predicted_score, created_at, version
		FROM candidates WHERE id = $1
	`

	c := &domain.Candidate{
		ID: id,
	}

	dst := []any{&c.Name, &c.Cost, &c.Category, &c.Group, &c.PredictedScore, &c.CreatedAt, &c.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return c, nil
}

func (r *Repository) UpdateCandidate(c *domain.Candidate) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		UPDATE candidates
		SET
			name = $1,
			cost = $2,
			category = $3,
			group_name = $4,
			predicted_score = $5,
			version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING version
	`

	args := []any{c.Name, c.Cost, c.Category, c.Group, c.PredictedScore, c.ID, c.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&c.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeleteCandidate(id int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `DELETE FROM candidates WHERE id = $1`
	if _, err := r.dbpool.ExecContext(ctx, query, id); err != nil {
		return err
	}

	return nil
}
