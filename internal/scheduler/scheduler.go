package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// 单次任务的执行上限
const (
	retryTimeout = 2 * time.Minute
	sweepTimeout = 5 * time.Minute
)

// Retrier 失败通知重投
type Retrier interface {
	RetryFailed(ctx context.Context) (int, error)
}

// Sweeper 缺勤收尾
type Sweeper interface {
	SweepResolved(ctx context.Context) (int, error)
}

// Scheduler 后台定时任务：通知重试、缺勤收尾
type Scheduler struct {
	engine    *cron.Cron
	retrier   Retrier
	sweeper   Sweeper
	retrySpec string
	sweepSpec string
	logger    *zap.Logger
}

// New 创建 Scheduler；spec 为标准 5 段 cron 表达式
func New(retrier Retrier, sweeper Sweeper, retrySpec, sweepSpec string, loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	logger = logger.Named("scheduler")
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		engine: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		retrier:   retrier,
		sweeper:   sweeper,
		retrySpec: retrySpec,
		sweepSpec: sweepSpec,
		logger:    logger,
	}
}

// Start 注册任务并启动
func (s *Scheduler) Start() error {
	if _, err := s.engine.AddFunc(s.retrySpec, s.runRetry); err != nil {
		return fmt.Errorf("注册通知重试任务失败: %w", err)
	}
	if _, err := s.engine.AddFunc(s.sweepSpec, s.runSweep); err != nil {
		return fmt.Errorf("注册缺勤收尾任务失败: %w", err)
	}
	s.engine.Start()
	s.logger.Info("定时任务已启动",
		zap.String("retry_cron", s.retrySpec),
		zap.String("absence_sweep_cron", s.sweepSpec),
	)
	return nil
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.engine.Stop()
	select {
	case <-done.Done():
		s.logger.Info("定时任务已停止")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("等待定时任务结束超时: %w", ctx.Err())
	}
}

func (s *Scheduler) runRetry() {
	ctx, cancel := context.WithTimeout(context.Background(), retryTimeout)
	defer cancel()
	if _, err := s.retrier.RetryFailed(ctx); err != nil {
		s.logger.Error("通知重试任务失败", zap.Error(err))
	}
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	if _, err := s.sweeper.SweepResolved(ctx); err != nil {
		s.logger.Error("缺勤收尾任务失败", zap.Error(err))
	}
}

// cronLogger 将 cron 内部日志接入 zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
