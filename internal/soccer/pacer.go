package soccer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pingcap/errors"
)

// Interval is a random duration in [Min, Min+Spread).
type Interval struct {
	Min    time.Duration `toml:"min" json:"min"`
	Spread time.Duration `toml:"spread" json:"spread"`
}

// Timing holds the intervals actors sleep for.
type Timing struct {
	PlayerArrival  Interval `toml:"player-arrival"`
	GoalieArrival  Interval `toml:"goalie-arrival"`
	RefereeArrival Interval `toml:"referee-arrival"`
	Match          Interval `toml:"match"`
}

func DefaultTiming() Timing {
	return Timing{
		PlayerArrival:  Interval{Min: 50 * time.Microsecond, Spread: 200 * time.Microsecond},
		GoalieArrival:  Interval{Min: 60 * time.Microsecond, Spread: 200 * time.Microsecond},
		RefereeArrival: Interval{Min: 10 * time.Microsecond, Spread: 100 * time.Microsecond},
		Match:          Interval{Min: 900 * time.Microsecond, Spread: 100 * time.Microsecond},
	}
}

func (t Timing) arrival(r Role) Interval {
	if r == RoleGoalie {
		return t.GoalieArrival
	}
	return t.PlayerArrival
}

// Pacer puts actors to sleep for random intervals. It is safe for concurrent use.
type Pacer struct {
	clock clock.Clock

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewPacer(clk clock.Clock, seed int64) *Pacer {
	return &Pacer{
		clock: clk,
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

// Draw picks a duration from iv.
func (p *Pacer) Draw(iv Interval) time.Duration {
	if iv.Spread <= 0 {
		return iv.Min
	}
	p.mu.Lock()
	d := iv.Min + time.Duration(p.rnd.Int63n(int64(iv.Spread)))
	p.mu.Unlock()
	return d
}

// Sleep waits for a duration drawn from iv, or until ctx is done.
func (p *Pacer) Sleep(ctx context.Context, iv Interval) error {
	d := p.Draw(iv)
	if d <= 0 {
		return nil
	}
	timer := p.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}
