package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	osSignal "os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/assist-by/venuelink/internal/config"
	"github.com/assist-by/venuelink/internal/logger"
	"github.com/assist-by/venuelink/internal/scheduler"
	"github.com/assist-by/venuelink/internal/venue"
	"github.com/assist-by/venuelink/internal/venue/binance"
	"github.com/assist-by/venuelink/internal/venue/terminal"
)

func main() {
	// 명령줄 플래그 정의
	venueFlag := flag.String("venue", "", "조회할 거래 장소 이름 (비어 있으면 전체)")
	cmdFlag := flag.String("cmd", "balance", "balance|orders|positions|trades|ticker|tickers|watch")
	symbolFlag := flag.String("symbol", "", "심볼 (예: BTCUSDT)")
	symbolsFlag := flag.String("symbols", "", "쉼표로 구분한 심볼 목록 (tickers)")
	intervalFlag := flag.Duration("interval", 0, "watch 모드 조회 간격 (0이면 POLL_INTERVAL)")
	connectFlag := flag.Duration("connect-timeout", 30*time.Second, "소켓 거래 장소 로그인 대기 시간")
	flag.Parse()

	if err := run(*venueFlag, *cmdFlag, *symbolFlag, *symbolsFlag, *intervalFlag, *connectFlag); err != nil {
		fmt.Fprintf(os.Stderr, "venuectl: %v\n", err)
		os.Exit(1)
	}
}

func run(venueName, cmd, symbol, symbols string, interval, connectTimeout time.Duration) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("설정 로드 실패: %w", err)
	}

	logs, err := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("로거 생성 실패: %w", err)
	}
	defer logs.Close()
	log := logs.WithComponent("venuectl")

	specs, err := cfg.VenueSpecs()
	if err != nil {
		return err
	}
	if venueName != "" {
		specs, err = pickVenue(specs, venueName)
		if err != nil {
			return err
		}
	}

	// 컨텍스트 생성, 종료 시그널에서 취소
	ctx, stop := osSignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := venue.NewRegistry()
	binance.Register(reg)
	terminal.Register(reg)

	adapters, err := reg.BuildAll(specs, logs.WithComponent("venue"))
	if err != nil {
		return err
	}
	defer func() {
		for name, a := range adapters {
			if err := a.Close(); err != nil {
				log.WithError(err).WithField("venue", name).Warn("어댑터 종료 실패")
			}
		}
	}()

	for name, a := range adapters {
		if bc, ok := a.(*binance.Client); ok {
			if err := bc.SyncTime(ctx); err != nil {
				log.WithError(err).WithField("venue", name).Warn("서버 시간 동기화 실패, 로컬 시간 사용")
			}
		}
	}

	// 소켓 거래 장소는 로그인이 끝나야 조회할 수 있음
	if err := waitConnected(ctx, log, adapters, connectTimeout); err != nil {
		return err
	}

	if cmd == "watch" {
		if interval <= 0 {
			interval = cfg.App.PollInterval
		}
		return watch(ctx, log, adapters, interval)
	}

	for _, name := range sortedNames(adapters) {
		entry := log.WithField("venue", name)
		if err := execute(ctx, entry, adapters[name], cmd, symbol, splitSymbols(symbols)); err != nil {
			if kind, ok := venue.KindOf(err); ok {
				entry = entry.WithField("kind", kind.String())
			}
			entry.WithError(err).Error("명령 실행 실패")
			return err
		}
	}
	return nil
}

// watch는 모든 거래 장소의 잔고와 포지션을 주기적으로 조회합니다
func watch(ctx context.Context, log *logrus.Entry, adapters map[string]venue.Adapter, interval time.Duration) error {
	task := scheduler.TaskFunc(func(ctx context.Context) error {
		for _, name := range sortedNames(adapters) {
			entry := log.WithField("venue", name)
			if err := execute(ctx, entry, adapters[name], "balance", "", nil); err != nil {
				entry.WithError(err).Warn("잔고 조회 실패")
			}
			if err := execute(ctx, entry, adapters[name], "positions", "", nil); err != nil {
				entry.WithError(err).Warn("포지션 조회 실패")
			}
		}
		return nil
	})

	s := scheduler.NewScheduler(interval, task, scheduler.WithLogger(log.WithField("component", "scheduler")))
	log.WithField("interval", interval).Info("watch 모드 시작")

	err := s.Start(ctx)
	log.Info("시스템 종료 신호 수신, 프로그램을 종료합니다")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// connectWaiter는 백그라운드로 연결하는 어댑터입니다
type connectWaiter interface {
	WaitConnected(ctx context.Context) error
}

var _ connectWaiter = (*terminal.Client)(nil)

// waitConnected는 연결형 어댑터가 모두 Connected가 될 때까지 기다립니다
func waitConnected(ctx context.Context, log *logrus.Entry, adapters map[string]venue.Adapter, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, name := range sortedNames(adapters) {
		w, ok := adapters[name].(connectWaiter)
		if !ok {
			continue
		}
		entry := log.WithField("venue", name)
		if err := w.WaitConnected(ctx); err != nil {
			entry.WithError(err).Error("거래 장소 연결 실패")
			return fmt.Errorf("%s 연결 대기 실패: %w", name, err)
		}
		entry.Info("거래 장소 연결됨")
	}
	return nil
}

func pickVenue(specs []venue.VenueSpec, name string) ([]venue.VenueSpec, error) {
	for _, spec := range specs {
		if spec.Name == name {
			return []venue.VenueSpec{spec}, nil
		}
	}
	return nil, fmt.Errorf("설정에 없는 거래 장소: %s", name)
}

func sortedNames(adapters map[string]venue.Adapter) []string {
	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func splitSymbols(s string) []string {
	var out []string
	for _, sym := range strings.Split(s, ",") {
		if sym = strings.TrimSpace(sym); sym != "" {
			out = append(out, strings.ToUpper(sym))
		}
	}
	return out
}
