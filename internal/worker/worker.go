package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/optimizer"
)

// errRetry 表示任务结果没能保存，消息需要重新入队
var errRetry = errors.New("无法保存优化结果")

type Repository interface {
	GetUserByID(id int64) (*domain.User, error)
	GetAllCandidates() ([]domain.Candidate, error)
	GetOptimizationRunByID(id int64) (*domain.OptimizationRun, error)
	MarkOptimizationRunRunning(run *domain.OptimizationRun) error
	MarkOptimizationRunFailed(run *domain.OptimizationRun, reason string) error
	InsertOptimizationResult(run *domain.OptimizationRun, result *domain.SquadReport) error
}

// ReporterFactory 为任务创建进度上报器，第二个返回值在任务结束后调用
type ReporterFactory func(runID int64) (optimizer.Reporter, func())

// PublishFunc 把 v 发送到名为 queue 的队列
type PublishFunc func(ctx context.Context, queue string, v any) error

type Worker struct {
	repo           Repository
	reporters      ReporterFactory
	publish        PublishFunc
	emailQueue     string
	publishTimeout time.Duration
	logger         *slog.Logger
}

func New(repo Repository, reporters ReporterFactory, publish PublishFunc, emailQueue string, publishTimeout time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		repo:           repo,
		reporters:      reporters,
		publish:        publish,
		emailQueue:     emailQueue,
		publishTimeout: publishTimeout,
		logger:         logger,
	}
}

// Run 逐条处理消息，直到 ctx 被取消或者通道被关闭
func (w *Worker) Run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				w.logger.Warn("消息通道已关闭")
				return
			}

			err := w.Handle(msg.Body)
			switch {
			case err == nil:
				_ = msg.Ack(false)
			case errors.Is(err, errRetry):
				w.logger.Error("优化任务处理失败，重新入队", "error", err)
				_ = msg.Nack(false, true)
			default:
				// 重试也无法成功的错误，直接丢弃
				w.logger.Error("优化任务处理失败", "error", err)
				_ = msg.Ack(false)
			}
		}
	}
}

// Handle 处理一条优化任务消息
func (w *Worker) Handle(body []byte) error {
	var job domain.OptimizationJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("任务反序列化失败: %w", err)
	}

	logger := w.logger.With("runID", job.RunID)

	run, err := w.repo.GetOptimizationRunByID(job.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("优化任务 %d 不存在", job.RunID)
		}
		return fmt.Errorf("%w: %w", errRetry, err)
	}

	if err := w.repo.MarkOptimizationRunRunning(run); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Info("优化任务已经结束，跳过", "status", run.Status)
			return nil
		}
		return fmt.Errorf("%w: %w", errRetry, err)
	}

	logger.Info("开始优化")
	report, err := w.optimize(run, logger)
	if err != nil {
		logger.Warn("优化失败", "error", err)
		if markErr := w.repo.MarkOptimizationRunFailed(run, err.Error()); markErr != nil {
			return fmt.Errorf("%w: %w", errRetry, markErr)
		}
	} else {
		if err := w.repo.InsertOptimizationResult(run, report); err != nil {
			return fmt.Errorf("%w: %w", errRetry, err)
		}
		logger.Info("优化完成", "fitness", report.Fitness, "aggregateScore", report.AggregateScore, "totalCost", report.TotalCost)
	}

	// 结果已经保存，通知失败不影响任务本身
	if err := w.notify(run); err != nil {
		logger.Warn("无法发送优化完成通知", "error", err)
	}

	return nil
}

func (w *Worker) optimize(run *domain.OptimizationRun, logger *slog.Logger) (*domain.SquadReport, error) {
	var cfg optimizer.Config
	if err := json.Unmarshal(run.Parameters, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", optimizer.ErrInvalidConfig, err)
	}

	candidates, err := w.repo.GetAllCandidates()
	if err != nil {
		return nil, fmt.Errorf("无法读取候选池: %w", err)
	}

	reporter, done := w.reporters(run.ID)
	defer done()

	o, err := optimizer.New(&cfg, candidates,
		optimizer.WithSeed(run.Seed),
		optimizer.WithReporter(reporter),
		optimizer.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return o.Optimize()
}

func (w *Worker) notify(run *domain.OptimizationRun) error {
	user, err := w.repo.GetUserByID(run.RequesterID)
	if err != nil {
		return err
	}

	data := domain.OptimizationFinishedMailData{
		FullName: user.FullName,
		RunID:    run.ID,
		Status:   run.Status,
		Error:    run.Error,
	}
	if run.Result != nil {
		data.AggregateScore = run.Result.AggregateScore
		data.TotalCost = run.Result.TotalCost
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.publishTimeout)
	defer cancel()

	return w.publish(ctx, w.emailQueue, domain.MailMessage{
		Type: domain.MailTypeOptimizationFinished,
		To:   user.Email,
		Data: data,
	})
}
