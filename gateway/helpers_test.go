/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tenebris-tech/mlogger"
)

func newTestLogger() *mlogger.MemoryLogger {
	return mlogger.NewMemoryLogger()
}

// logged reports whether any captured line contains substr
func logged(logger *mlogger.MemoryLogger, substr string) bool {
	for _, line := range logger.Logs() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// recordingSleeper records requested waits without sleeping
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}
