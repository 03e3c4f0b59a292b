package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/config"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/optimizer"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/progress"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/queue"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/repository"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/worker"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接外部服务
	 **********************************************/
	dbpool, err := repository.Open(cfg)
	if err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}
	defer dbpool.Close()
	repo := repository.NewRepository(cfg, dbpool)

	rdb, err := progress.Connect(cfg)
	if err != nil {
		logger.Error("无法连接到 redis", "error", err)
		return
	}
	defer rdb.Close()

	store := progress.NewStore(
		rdb,
		time.Duration(cfg.Redis.ProgressExpiration)*time.Second,
		time.Duration(cfg.Redis.OperationExpiration)*time.Second,
	)

	// worker 消费优化任务，并向邮件队列发送通知
	conn, ch, err := queue.Dial(cfg.RabbitMQ.DSN, cfg.RabbitMQ.EmailQueue, cfg.RabbitMQ.OptimizationQueue)
	if err != nil {
		logger.Error("无法连接到 rabbitmq", "error", err)
		return
	}
	defer conn.Close()

	// 一次只取 Prefetch 条消息，避免多个耗时的优化任务堆积在同一个 worker 上
	if err := ch.Qos(cfg.RabbitMQ.Prefetch, 0, false); err != nil {
		logger.Error("无法设置预取数量", "error", err)
		return
	}

	msgs, err := ch.Consume(
		cfg.RabbitMQ.OptimizationQueue,
		"",    // 消费者标识，由 RabbitMQ 自动分配
		false, // 手动确认
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Error("无法消费消息", "error", err)
		return
	}

	/**********************************************
	 * 启动 worker
	 **********************************************/
	reporters := func(runID int64) (optimizer.Reporter, func()) {
		r := store.Reporter(runID)
		return r, r.Close
	}
	publish := func(ctx context.Context, name string, v any) error {
		_, err := queue.Publish(ctx, ch, name, v)
		return err
	}
	w := worker.New(repo, reporters, publish, cfg.RabbitMQ.EmailQueue, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	runCtx, stop := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(runCtx, msgs)
	}()

	logger.Info("等待优化任务...（按 CTRL+C 退出）")
	<-sigChan

	// 正在运行的任务会先完成
	logger.Info("正在关闭 optimization worker...")
	stop()
	wg.Wait()
	logger.Info("optimization worker 已成功关闭")
}
