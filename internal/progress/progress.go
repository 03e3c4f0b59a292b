package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/config"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/optimizer"
)

var ErrNotFound = errors.New("没有找到优化进度")

// Store 把优化进度快照保存在 redis 中
type Store struct {
	rdb        *redis.Client
	expiration time.Duration
	timeout    time.Duration
}

func NewStore(rdb *redis.Client, expiration time.Duration, timeout time.Duration) *Store {
	return &Store{
		rdb:        rdb,
		expiration: expiration,
		timeout:    timeout,
	}
}

func key(runID int64) string {
	return fmt.Sprintf("optimization_run_%d_progress", runID)
}

func (s *Store) Save(ctx context.Context, p domain.OptimizationProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key(p.RunID), data, s.expiration).Err()
}

func (s *Store) Get(ctx context.Context, runID int64) (*domain.OptimizationProgress, error) {
	data, err := s.rdb.Get(ctx, key(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	p := &domain.OptimizationProgress{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Reporter 为某个任务创建一个写入 redis 的进度上报器，使用完后需要调用 Close
func (s *Store) Reporter(runID int64) *Reporter {
	return newReporter(runID, s, s.timeout)
}

type saver interface {
	Save(ctx context.Context, p domain.OptimizationProgress) error
}

// Reporter 在后台 goroutine 中写入进度，Report 从不阻塞优化过程；
// 来不及写入的旧进度会被最新的进度覆盖
type Reporter struct {
	runID   int64
	saver   saver
	timeout time.Duration
	updates chan optimizer.Progress
	done    chan struct{}
}

func newReporter(runID int64, s saver, timeout time.Duration) *Reporter {
	r := &Reporter{
		runID:   runID,
		saver:   s,
		timeout: timeout,
		updates: make(chan optimizer.Progress, 1),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Reporter) Report(p optimizer.Progress) {
	for {
		select {
		case r.updates <- p:
			return
		default:
			// 丢弃还没写入的旧进度
			select {
			case <-r.updates:
			default:
			}
		}
	}
}

func (r *Reporter) run() {
	defer close(r.done)

	for p := range r.updates {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := r.saver.Save(ctx, domain.OptimizationProgress{
			RunID:       r.runID,
			Generation:  p.Generation,
			Generations: p.Generations,
			BestFitness: p.BestFitness,
			UpdatedAt:   time.Now(),
		})
		cancel()
		if err != nil {
			slog.Warn("无法保存优化进度", "runID", r.runID, "generation", p.Generation, "error", err)
		}
	}
}

// Close 等待最后一次进度写入完成
func (r *Reporter) Close() {
	close(r.updates)
	<-r.done
}

// Connect 按配置创建 redis 客户端并确认可以连接
func Connect(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}
