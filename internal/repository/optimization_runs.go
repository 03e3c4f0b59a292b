package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
)

func (r *Repository) CreateOptimizationRun(run *domain.OptimizationRun) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		INSERT INTO optimization_runs (requester_id, parameters, seed)
		VALUES ($1, $2, $3)
		RETURNING id, status, created_at, version
	`

	args := []any{run.RequesterID, string(run.Parameters), run.Seed}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.ID, &run.Status, &run.CreatedAt, &run.Version); err != nil {
		return err
	}

	return nil
}

const optimizationRunColumns = `id, requester_id, status, parameters, seed, fitness, aggregate_score, total_cost, error, created_at, finished_at, version`

func (r *Repository) GetAllOptimizationRuns() ([]*domain.OptimizationRun, error) {
	return r.listOptimizationRuns(`SELECT ` + optimizationRunColumns + ` FROM optimization_runs ORDER BY id DESC`)
}

func (r *Repository) GetOptimizationRunsByRequester(requesterID int64) ([]*domain.OptimizationRun, error) {
	query := `SELECT ` + optimizationRunColumns + ` FROM optimization_runs WHERE requester_id = $1 ORDER BY id DESC`
	return r.listOptimizationRuns(query, requesterID)
}

// 列表中不返回阵容成员，只返回汇总信息
func (r *Repository) listOptimizationRuns(query string, args ...any) ([]*domain.OptimizationRun, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.OptimizationRun, 0)
	for rows.Next() {
		run, err := scanOptimizationRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (r *Repository) GetOptimizationRunByID(id int64) (*domain.OptimizationRun, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `SELECT ` + optimizationRunColumns + ` FROM optimization_runs WHERE id = $1`

	run, err := scanOptimizationRun(r.dbpool.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if run.Result == nil {
		return run, nil
	}

	query = `
		SELECT candidate_id, name, cost, category, group_name, predicted_score, bench
		FROM optimization_run_members
		WHERE run_id = $1
		ORDER BY position
	`

	rows, err := r.dbpool.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.SquadMember
		dst := []any{&m.ID, &m.Name, &m.Cost, &m.Category, &m.Group, &m.PredictedScore, &m.Bench}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		run.Result.Members = append(run.Result.Members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return run, nil
}

// MarkOptimizationRunRunning 已经结束的任务不会再次运行，返回 sql.ErrNoRows；
// 处于 running 状态的任务允许重新开始，对应 worker 中途退出后消息被重新投递的情况
func (r *Repository) MarkOptimizationRunRunning(run *domain.OptimizationRun) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		UPDATE optimization_runs
		SET status = $1, version = version + 1
		WHERE id = $2 AND status IN ($3, $4)
		RETURNING status, version
	`

	args := []any{domain.RunStatusRunning, run.ID, domain.RunStatusPending, domain.RunStatusRunning}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.Status, &run.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) MarkOptimizationRunFailed(run *domain.OptimizationRun, reason string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		UPDATE optimization_runs
		SET status = $1, error = $2, finished_at = NOW(), version = version + 1
		WHERE id = $3
		RETURNING status, error, finished_at, version
	`

	args := []any{domain.RunStatusFailed, reason, run.ID}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.Status, &run.Error, &run.FinishedAt, &run.Version); err != nil {
		return err
	}

	return nil
}

// InsertOptimizationResult 保存阵容成员的快照并把任务标记为成功
func (r *Repository) InsertOptimizationResult(run *domain.OptimizationRun, result *domain.SquadReport) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 先将之前的结果删除
	query := `DELETE FROM optimization_run_members WHERE run_id = $1`
	if _, err := tx.ExecContext(ctx, query, run.ID); err != nil {
		return err
	}

	query = `
		INSERT INTO optimization_run_members (run_id, position, candidate_id, name, cost, category, group_name, predicted_score, bench)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for i, m := range result.Members {
		args := []any{run.ID, i, m.ID, m.Name, m.Cost, m.Category, m.Group, m.PredictedScore, m.Bench}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	query = `
		UPDATE optimization_runs
		SET status = $1, fitness = $2, aggregate_score = $3, total_cost = $4, error = '', finished_at = NOW(), version = version + 1
		WHERE id = $5
		RETURNING status, finished_at, version
	`
	args := []any{domain.RunStatusSucceeded, result.Fitness, result.AggregateScore, result.TotalCost, run.ID}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&run.Status, &run.FinishedAt, &run.Version); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	run.Result = result
	run.Error = ""

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOptimizationRun(row rowScanner) (*domain.OptimizationRun, error) {
	var (
		run            domain.OptimizationRun
		parameters     []byte
		fitness        sql.NullFloat64
		aggregateScore sql.NullFloat64
		totalCost      sql.NullFloat64
		finishedAt     sql.NullTime
	)

	dst := []any{
		&run.ID,
		&run.RequesterID,
		&run.Status,
		&parameters,
		&run.Seed,
		&fitness,
		&aggregateScore,
		&totalCost,
		&run.Error,
		&run.CreatedAt,
		&finishedAt,
		&run.Version,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	run.Parameters = parameters
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	if run.Status == domain.RunStatusSucceeded {
		run.Result = &domain.SquadReport{
			Members:        make([]domain.SquadMember, 0),
			Fitness:        fitness.Float64,
			AggregateScore: aggregateScore.Float64,
			TotalCost:      totalCost.Float64,
		}
	}

	return &run, nil
}
