package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/optimizer"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD,required"`
		FullName string `env:"FULL_NAME" envDefault:"管理员"`
		Email    string `env:"EMAIL,required"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"336"` // 小时，14 天
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	Email struct {
		SMTP struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
		TemplateDir string `env:"TEMPLATE_DIR" envDefault:"./templates"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN               string `env:"DSN,required"`
		PublishTimeout    int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
		EmailQueue        string `env:"EMAIL_QUEUE" envDefault:"email_queue"`
		OptimizationQueue string `env:"OPTIMIZATION_QUEUE" envDefault:"optimization_queue"`
		Prefetch          int    `env:"PREFETCH" envDefault:"1"` // worker 同时处理的任务数
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD,required"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
		ProgressExpiration  int    `env:"PROGRESS_EXPIRATION" envDefault:"86400"` // 进度快照保留的秒数
	} `envPrefix:"REDIS_"`
	Optimizer optimizer.Config `envPrefix:"OPTIMIZER_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, firstError(err)
	}

	return cfg, nil
}

// LoadOptimizerConfig 只读取 OPTIMIZER_ 开头的配置，供不依赖数据库等外部服务的命令行工具使用
func LoadOptimizerConfig() (*optimizer.Config, error) {
	cfg := &optimizer.Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "OPTIMIZER_"}); err != nil {
		return nil, firstError(err)
	}

	return cfg, nil
}

func firstError(err error) error {
	aggErr := env.AggregateError{}
	if ok := errors.As(err, &aggErr); ok {
		// 只返回第一个错误使得日志更清晰
		return aggErr.Errors[0]
	}
	return err
}
