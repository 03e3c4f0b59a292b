package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/optimizer"
)

type fakeRepository struct {
	runs       map[int64]*domain.OptimizationRun
	candidates []domain.Candidate
	insertErr  error
	inserted   *domain.SquadReport
}

func (f *fakeRepository) GetUserByID(id int64) (*domain.User, error) {
	return &domain.User{ID: id, FullName: "张三", Email: "zhangsan@example.com"}, nil
}

func (f *fakeRepository) GetAllCandidates() ([]domain.Candidate, error) {
	return f.candidates, nil
}

func (f *fakeRepository) GetOptimizationRunByID(id int64) (*domain.OptimizationRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *run
	return &cp, nil
}

func (f *fakeRepository) MarkOptimizationRunRunning(run *domain.OptimizationRun) error {
	stored := f.runs[run.ID]
	if stored.Status != domain.RunStatusPending && stored.Status != domain.RunStatusRunning {
		return sql.ErrNoRows
	}
	stored.Status = domain.RunStatusRunning
	run.Status = stored.Status
	return nil
}

func (f *fakeRepository) MarkOptimizationRunFailed(run *domain.OptimizationRun, reason string) error {
	stored := f.runs[run.ID]
	stored.Status = domain.RunStatusFailed
	stored.Error = reason
	run.Status, run.Error = stored.Status, stored.Error
	return nil
}

func (f *fakeRepository) InsertOptimizationResult(run *domain.OptimizationRun, result *domain.SquadReport) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = result
	stored := f.runs[run.ID]
	stored.Status = domain.RunStatusSucceeded
	run.Status = stored.Status
	run.Result = result
	return nil
}

// 20 人的候选池，按 2 GK、5 DEF、5 MID、3 FWD 的上限总能组成合法阵容
func newTestPool() []domain.Candidate {
	categories := []domain.Category{
		domain.CategoryGoalkeeper, domain.CategoryGoalkeeper, domain.CategoryGoalkeeper,
		domain.CategoryDefender, domain.CategoryDefender, domain.CategoryDefender,
		domain.CategoryDefender, domain.CategoryDefender, domain.CategoryDefender,
		domain.CategoryMidfielder, domain.CategoryMidfielder, domain.CategoryMidfielder,
		domain.CategoryMidfielder, domain.CategoryMidfielder, domain.CategoryMidfielder,
		domain.CategoryMidfielder, domain.CategoryForward, domain.CategoryForward,
		domain.CategoryForward, domain.CategoryForward,
	}

	pool := make([]domain.Candidate, len(categories))
	for i, c := range categories {
		pool[i] = domain.Candidate{
			ID:             int64(i + 1),
			Name:           fmt.Sprintf("球员%d", i+1),
			Cost:           50,
			Category:       c,
			Group:          fmt.Sprintf("俱乐部%d", i/2),
			PredictedScore: float64(i + 1),
		}
	}
	return pool
}

func newTestRun(t *testing.T, id int64, cfg optimizer.Config) *domain.OptimizationRun {
	t.Helper()

	parameters, err := json.Marshal(cfg)
	require.NoError(t, err)
	return &domain.OptimizationRun{ID: id, RequesterID: 1, Status: domain.RunStatusPending, Parameters: parameters, Seed: 42}
}

func smallConfig() optimizer.Config {
	cfg := optimizer.DefaultConfig()
	cfg.PopulationSize = 10
	cfg.Generations = 3
	cfg.Workers = 1
	return cfg
}

type recorder struct {
	mails    []domain.MailMessage
	progress []optimizer.Progress
	closed   int
}

func newTestWorker(repo Repository, rec *recorder) *Worker {
	reporters := func(runID int64) (optimizer.Reporter, func()) {
		return optimizer.ReporterFunc(func(p optimizer.Progress) {
			rec.progress = append(rec.progress, p)
		}), func() { rec.closed++ }
	}
	publish := func(ctx context.Context, queue string, v any) error {
		rec.mails = append(rec.mails, v.(domain.MailMessage))
		return nil
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(repo, reporters, publish, "email_queue", time.Second, logger)
}

func jobBody(t *testing.T, runID int64) []byte {
	t.Helper()

	body, err := json.Marshal(domain.OptimizationJob{RunID: runID})
	require.NoError(t, err)
	return body
}

func TestHandleSucceeded(t *testing.T) {
	repo := &fakeRepository{
		runs:       map[int64]*domain.OptimizationRun{1: newTestRun(t, 1, smallConfig())},
		candidates: newTestPool(),
	}
	rec := &recorder{}
	w := newTestWorker(repo, rec)

	require.NoError(t, w.Handle(jobBody(t, 1)))

	assert.Equal(t, domain.RunStatusSucceeded, repo.runs[1].Status)
	require.NotNil(t, repo.inserted)
	assert.Len(t, repo.inserted.Members, optimizer.SquadSize)
	assert.Len(t, rec.progress, 3)
	assert.Equal(t, 1, rec.closed)

	require.Len(t, rec.mails, 1)
	assert.Equal(t, domain.MailTypeOptimizationFinished, rec.mails[0].Type)
	data := rec.mails[0].Data.(domain.OptimizationFinishedMailData)
	assert.Equal(t, domain.RunStatusSucceeded, data.Status)
	assert.Equal(t, repo.inserted.AggregateScore, data.AggregateScore)
}

func TestHandleInfeasiblePoolMarksFailed(t *testing.T) {
	repo := &fakeRepository{
		runs:       map[int64]*domain.OptimizationRun{1: newTestRun(t, 1, smallConfig())},
		candidates: newTestPool()[:10],
	}
	rec := &recorder{}
	w := newTestWorker(repo, rec)

	require.NoError(t, w.Handle(jobBody(t, 1)))

	assert.Equal(t, domain.RunStatusFailed, repo.runs[1].Status)
	assert.NotEmpty(t, repo.runs[1].Error)
	require.Len(t, rec.mails, 1)
	assert.Equal(t, domain.RunStatusFailed, rec.mails[0].Data.(domain.OptimizationFinishedMailData).Status)
}

func TestHandleSkipsFinishedRun(t *testing.T) {
	run := newTestRun(t, 1, smallConfig())
	run.Status = domain.RunStatusSucceeded
	repo := &fakeRepository{runs: map[int64]*domain.OptimizationRun{1: run}, candidates: newTestPool()}
	rec := &recorder{}
	w := newTestWorker(repo, rec)

	require.NoError(t, w.Handle(jobBody(t, 1)))
	assert.Nil(t, repo.inserted)
	assert.Empty(t, rec.mails)
}

func TestHandleErrors(t *testing.T) {
	t.Run("消息格式错误", func(t *testing.T) {
		w := newTestWorker(&fakeRepository{}, &recorder{})
		err := w.Handle([]byte("{"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, errRetry)
	})

	t.Run("任务不存在", func(t *testing.T) {
		w := newTestWorker(&fakeRepository{runs: map[int64]*domain.OptimizationRun{}}, &recorder{})
		err := w.Handle(jobBody(t, 7))
		require.Error(t, err)
		assert.NotErrorIs(t, err, errRetry)
	})

	t.Run("结果保存失败需要重试", func(t *testing.T) {
		repo := &fakeRepository{
			runs:       map[int64]*domain.OptimizationRun{1: newTestRun(t, 1, smallConfig())},
			candidates: newTestPool(),
			insertErr:  errors.New("connection reset"),
		}
		rec := &recorder{}
		w := newTestWorker(repo, rec)

		err := w.Handle(jobBody(t, 1))
		assert.ErrorIs(t, err, errRetry)
		assert.Empty(t, rec.mails)

		// 重新投递时任务仍处于 running 状态，可以再次运行
		repo.insertErr = nil
		require.NoError(t, w.Handle(jobBody(t, 1)))
		assert.Equal(t, domain.RunStatusSucceeded, repo.runs[1].Status)
	})
}

func TestHandleIsDeterministic(t *testing.T) {
	run := func() *domain.SquadReport {
		repo := &fakeRepository{
			runs:       map[int64]*domain.OptimizationRun{1: newTestRun(t, 1, smallConfig())},
			candidates: newTestPool(),
		}
		require.NoError(t, newTestWorker(repo, &recorder{}).Handle(jobBody(t, 1)))
		return repo.inserted
	}

	assert.Equal(t, run(), run())
}
