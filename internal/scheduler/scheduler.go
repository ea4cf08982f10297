package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/assist-by/venuelink/internal/logger"
)

// Task는 스케줄러가 실행할 작업을 정의하는 인터페이스입니다
type Task interface {
	Execute(ctx context.Context) error
}

// TaskFunc는 함수를 Task로 사용하기 위한 어댑터입니다
type TaskFunc func(ctx context.Context) error

// Execute는 f(ctx)를 호출합니다
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Scheduler는 정해진 간격의 경계 시각마다 작업을 실행하는 스케줄러입니다
type Scheduler struct {
	interval time.Duration
	task     Task
	log      *logrus.Entry
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option은 스케줄러 옵션입니다
type Option func(*Scheduler)

// WithLogger는 로거를 설정합니다
func WithLogger(log *logrus.Entry) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

// NewScheduler는 새로운 스케줄러를 생성합니다
func NewScheduler(interval time.Duration, task Task, opts ...Option) *Scheduler {
	s := &Scheduler{
		interval: interval,
		task:     task,
		log:      logger.Discard(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start는 스케줄러를 시작합니다. Stop이나 ctx 취소 전까지 반환하지 않습니다.
func (s *Scheduler) Start(ctx context.Context) error {
	timer := time.NewTimer(s.untilNext())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.stopCh:
			return nil

		case <-timer.C:
			// 에러가 발생해도 계속 실행
			if err := s.task.Execute(ctx); err != nil {
				s.log.WithError(err).Error("작업 실행 실패")
			}
			timer.Reset(s.untilNext())
		}
	}
}

// untilNext는 다음 간격 경계까지 남은 시간을 계산합니다
func (s *Scheduler) untilNext() time.Duration {
	now := time.Now()
	nextRun := now.Truncate(s.interval).Add(s.interval)
	wait := nextRun.Sub(now)

	s.log.WithField("next_run", nextRun.Format("15:04:05")).
		Debugf("다음 실행까지 %v 대기", wait.Round(time.Millisecond))
	return wait
}

// Stop은 스케줄러를 중지합니다. 여러 번 호출해도 안전합니다.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}
