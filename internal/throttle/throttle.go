package throttle

import (
	"context"
	"sync"
	"time"

	"MatchPoster/internal/utils/clock"
)

// Throttle 进程级最小请求间隔。
// 调用方在锁内预约下一个发送时刻，锁外等待，并发调用被依次排开而不会被丢弃
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time // 最近一次预约的发送时刻
	clk      clock.Clock
}

// New 创建节流器，interval<=0 表示不限速
func New(interval time.Duration, clk clock.Clock) *Throttle {
	if clk == nil {
		clk = clock.Real()
	}
	return &Throttle{interval: interval, clk: clk}
}

// Interval 最小间隔
func (t *Throttle) Interval() time.Duration { return t.interval }

// reserve 原子地读取并更新上次发送时刻，返回需要等待的时长
func (t *Throttle) reserve() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clk.Now()
	next := now
	if !t.last.IsZero() {
		if earliest := t.last.Add(t.interval); earliest.After(now) {
			next = earliest
		}
	}
	t.last = next
	return next.Sub(now)
}

// Wait 阻塞到允许发送为止。ctx 取消时返回 ctx.Err()，已预约的时段不回收
func (t *Throttle) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.interval <= 0 {
		return nil
	}
	wait := t.reserve()
	if wait <= 0 {
		return nil
	}
	return t.clk.Sleep(ctx, wait)
}
