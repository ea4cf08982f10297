// Package logger는 logrus 기반 구조화 로거를 설정합니다.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields는 logrus.Fields 별칭입니다
type Fields = logrus.Fields

// Options는 로거 설정입니다
type Options struct {
	Level      string // debug, info, warn, error
	Format     string // text, json
	File       string // 비어 있으면 stdout만 사용
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Log는 logrus.Logger를 감싼 타입입니다
type Log struct {
	*logrus.Logger
	closer io.Closer
}

// New는 옵션에 따라 로거를 생성합니다
func New(opts Options) (*Log, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("잘못된 로그 레벨 %q: %w", opts.Level, err)
	}
	l.SetLevel(level)

	switch opts.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "06-01-02 15:04:05",
		})
	default:
		return nil, fmt.Errorf("지원하지 않는 로그 포맷: %s", opts.Format)
	}

	log := &Log{Logger: l}
	if opts.File == "" {
		l.SetOutput(os.Stdout)
		return log, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("로그 디렉터리 생성 실패: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	l.SetOutput(io.MultiWriter(os.Stdout, rotator))
	log.closer = rotator
	return log, nil
}

// Discard는 출력하지 않는 로거를 반환합니다 (테스트 및 기본값)
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// WithComponent는 component 필드가 붙은 엔트리를 반환합니다
func (l *Log) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// Close는 로그 파일을 닫습니다
func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
