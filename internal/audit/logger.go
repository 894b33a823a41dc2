// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package audit writes a best-effort trail of successful sign-ins.
package audit

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// DefaultBufferSize is the number of records that may be queued before
// RecordLogin starts dropping.
const DefaultBufferSize = 1000

// Failure reasons reported on gatekeep_audit_failures_total.
const (
	ReasonDecode = "decode"
	ReasonWrite  = "write"
)

// Logger serializes login records onto a writer from a single consumer
// goroutine. It implements auth.LoginAuditor.
type Logger struct {
	out      io.WriteCloser
	logger   *slog.Logger
	records  chan auth.LoginRecord
	stopChan chan struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool
	once     sync.Once
	closeErr error

	dropped  prometheus.Counter
	failures *prometheus.CounterVec
}

// Option configures a Logger.
type Option func(*Logger)

// WithLogger sets the logger used to report write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithBufferSize overrides DefaultBufferSize.
func WithBufferSize(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.records = make(chan auth.LoginRecord, n)
		}
	}
}

// NewLogger starts a Logger writing to out. Close must be called to flush
// queued records and release out.
func NewLogger(out io.WriteCloser, opts ...Option) *Logger {
	l := &Logger{
		out:      out,
		logger:   slog.Default(),
		records:  make(chan auth.LoginRecord, DefaultBufferSize),
		stopChan: make(chan struct{}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_audit_dropped_total",
			Help: "Total number of login audit records dropped because the queue was full",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeep_audit_failures_total",
			Help: "Total number of login audit records that could not be written",
		}, []string{"reason"}),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.wg.Add(1)
	go l.consume()

	return l
}

// Collectors returns the logger's metrics for registration.
func (l *Logger) Collectors() []prometheus.Collector {
	return []prometheus.Collector{l.dropped, l.failures}
}

// RecordLogin queues rec for writing. It never blocks: when the queue is
// full or the logger is closed the record is dropped.
func (l *Logger) RecordLogin(rec auth.LoginRecord) {
	if l.closed.Load() {
		l.dropped.Inc()
		return
	}

	select {
	case l.records <- rec:
	default:
		l.dropped.Inc()
	}
}

// Close flushes queued records and closes the underlying writer.
func (l *Logger) Close() error {
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.stopChan)
		l.wg.Wait()

		if err := l.out.Close(); err != nil {
			l.closeErr = oops.Code("AUDIT_CLOSE_FAILED").Wrap(err)
		}
	})
	return l.closeErr
}

func (l *Logger) consume() {
	defer l.wg.Done()

	for {
		select {
		case rec := <-l.records:
			l.write(rec)
		case <-l.stopChan:
			l.drain()
			return
		}
	}
}

func (l *Logger) drain() {
	for {
		select {
		case rec := <-l.records:
			l.write(rec)
		default:
			return
		}
	}
}

func (l *Logger) write(rec auth.LoginRecord) {
	line, err := FormatLoginRecord(rec)
	if err != nil {
		l.failures.WithLabelValues(ReasonDecode).Inc()
		l.logger.Error("audit record decode failed", "error", err, "ip_address", rec.IPAddress)
		return
	}

	if _, err := l.out.Write(line); err != nil {
		l.failures.WithLabelValues(ReasonWrite).Inc()
		l.logger.Error("audit record write failed", "error", err, "ip_address", rec.IPAddress)
	}
}

// FormatLoginRecord renders rec as an audit block: the issuance time, the
// token's claims as compact JSON and the client IP, each under a marker line,
// followed by a blank line.
func FormatLoginRecord(rec auth.LoginRecord) ([]byte, error) {
	claims, err := auth.DecodeUnverified(rec.Token)
	if err != nil {
		return nil, err
	}

	info, err := json.Marshal(claims)
	if err != nil {
		return nil, oops.Code("AUDIT_ENCODE_FAILED").Wrap(err)
	}

	var buf bytes.Buffer
	buf.WriteString("<<Login Time>>\n")
	buf.WriteString(rec.Time.Format(time.RFC1123Z))
	buf.WriteString("\n<<Login info>>\n")
	buf.Write(info)
	buf.WriteString("\n<<Login IP>>\n")
	buf.WriteString(rec.IPAddress)
	buf.WriteString("\n\n")

	return buf.Bytes(), nil
}
