package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/config"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/handler"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/progress"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/queue"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("api 服务异常退出", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("无法加载配置文件: %w", err)
	}

	/**********************************************
	 * 连接外部服务
	 **********************************************/
	dbpool, err := repository.Open(cfg)
	if err != nil {
		return fmt.Errorf("无法连接到数据库: %w", err)
	}
	defer dbpool.Close()
	repo := repository.NewRepository(cfg, dbpool)

	// api 只负责发送消息，两个队列都需要存在
	conn, ch, err := queue.Dial(cfg.RabbitMQ.DSN, cfg.RabbitMQ.EmailQueue, cfg.RabbitMQ.OptimizationQueue)
	if err != nil {
		return fmt.Errorf("无法连接到 rabbitmq: %w", err)
	}
	defer conn.Close()

	rdb, err := progress.Connect(cfg)
	if err != nil {
		return fmt.Errorf("无法连接到 redis: %w", err)
	}
	defer rdb.Close()

	if err := ensureInitialAdmin(cfg, repo); err != nil {
		return err
	}

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	h, err := handler.NewHandler(cfg, repo, ch, rdb)
	if err != nil {
		return fmt.Errorf("无法创建 handler: %w", err)
	}
	h.RegisterRoutes()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      h.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("无法启动服务器: %w", err)
	case <-quit:
	}

	logger.Info("正在关闭服务器...")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("关闭服务器失败: %w", err)
	}
	logger.Info("服务器已成功关闭")
	return nil
}

// ensureInitialAdmin 数据库中没有同名用户时创建初始管理员
func ensureInitialAdmin(cfg *config.Config, repo *repository.Repository) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.InitialAdmin.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("无法生成初始管理员密码哈希: %w", err)
	}

	created, err := repo.EnsureUser(&domain.User{
		Username:     cfg.InitialAdmin.Username,
		PasswordHash: string(hash),
		FullName:     cfg.InitialAdmin.FullName,
		Email:        cfg.InitialAdmin.Email,
		Role:         domain.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("无法创建初始管理员: %w", err)
	}
	if created {
		slog.Info("已创建初始管理员", "username", cfg.InitialAdmin.Username)
	}

	return nil
}
