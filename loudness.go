package studio

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// LoudnessPhase distinguishes the first sample of an analyzer from the rest.
type LoudnessPhase int

const (
	LoudnessStarted    LoudnessPhase = iota // First block after creation
	LoudnessContinuing                      // Every later block
)

func (p LoudnessPhase) String() string {
	if p == LoudnessStarted {
		return "started"
	}
	return "continuing"
}

// LoudnessEvent is one loudness sample of a monitored connection.
type LoudnessEvent struct {
	ConnectionID string        `json:"connection_id"`
	From         string        `json:"from"`
	To           string        `json:"to"`
	Phase        LoudnessPhase `json:"phase"`
	RMS          float64       `json:"rms"`
	Level        float64       `json:"level"` // Meter level in [0, 100]
	Time         time.Time     `json:"time"`
}

// RMS returns sqrt(mean(x²)) of samples, 0 for an empty block.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// MeterLevel maps an RMS value to a meter level in [0, 100].
func MeterLevel(rms float64) float64 {
	return math.Min(rms*300, 100)
}

// LoudnessAnalyzer computes the RMS of each block read from a tap and emits
// it for one connection. It runs on its own goroutine and never blocks the
// producer: the tap drops blocks when the analyzer falls behind.
type LoudnessAnalyzer struct {
	conn     Connection
	tap      *Tap
	emit     func(LoudnessEvent)
	interval time.Duration

	started  bool
	lastEmit time.Time

	launched atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewLoudnessAnalyzer creates an analyzer for conn. Events closer together
// than interval are coalesced; zero emits every block.
func NewLoudnessAnalyzer(conn Connection, tap *Tap, interval time.Duration, emit func(LoudnessEvent)) *LoudnessAnalyzer {
	return &LoudnessAnalyzer{
		conn:     conn,
		tap:      tap,
		emit:     emit,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the analysis loop until Stop or until the tap closes.
func (a *LoudnessAnalyzer) Start() {
	if a.launched.CompareAndSwap(false, true) {
		go a.run()
	}
}

func (a *LoudnessAnalyzer) run() {
	defer close(a.done)
	for {
		select {
		case <-a.stopCh:
			return
		case b, ok := <-a.tap.C():
			if !ok {
				return
			}
			ev, emit := a.Process(b)
			if emit && a.emit != nil {
				a.emit(ev)
			}
		}
	}
}

// Process analyzes the first channel of b. The first call always yields a
// LoudnessStarted event; later calls yield LoudnessContinuing events and
// report false while inside the coalescing interval.
func (a *LoudnessAnalyzer) Process(b *AudioBlock) (LoudnessEvent, bool) {
	var samples []float32
	if len(b.Channels) > 0 {
		samples = b.Channels[0]
	}
	rms := RMS(samples)
	now := time.Now()

	ev := LoudnessEvent{
		ConnectionID: a.conn.ID,
		From:         a.conn.From,
		To:           a.conn.To,
		Phase:        LoudnessContinuing,
		RMS:          rms,
		Level:        MeterLevel(rms),
		Time:         now,
	}
	if !a.started {
		a.started = true
		a.lastEmit = now
		ev.Phase = LoudnessStarted
		return ev, true
	}
	if a.interval > 0 && now.Sub(a.lastEmit) < a.interval {
		return ev, false
	}
	a.lastEmit = now
	return ev, true
}

// Stop ends the loop and waits for it. Stopping twice is a no-op.
func (a *LoudnessAnalyzer) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
	})
	if a.launched.Load() {
		<-a.done
	}
}
