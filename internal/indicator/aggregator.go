package indicator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"shreddy/internal/device"
	"shreddy/internal/logging"
)

// AggregatorConfig holds the blink burst and the ERROR re-check timeout.
type AggregatorConfig struct {
	BlinkInterval time.Duration
	BlinkCount    int
	ErrorRecheck  time.Duration
}

// DefaultAggregatorConfig: 10 вспышек по 0.5с, перепроверка через 2с.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		BlinkInterval: 500 * time.Millisecond,
		BlinkCount:    10,
		ErrorRecheck:  2 * time.Second,
	}
}

// Aggregator сводит статусы всех устройств в один худший и показывает его на индикаторе.
type Aggregator struct {
	mu     sync.Mutex
	states map[string]device.Severity

	wake     chan struct{}
	ind      Indicator
	cfg      AggregatorConfig
	logger   *logging.Logger
	rendered atomic.Int32
}

// NewAggregator: ind may be nil, in which case rendering is log-only.
func NewAggregator(ind Indicator, cfg AggregatorConfig, logger *logging.Logger) *Aggregator {
	if ind == nil {
		ind = NewLogIndicator(logger)
	}
	defaults := DefaultAggregatorConfig()
	if cfg.BlinkInterval <= 0 {
		cfg.BlinkInterval = defaults.BlinkInterval
	}
	if cfg.BlinkCount <= 0 {
		cfg.BlinkCount = defaults.BlinkCount
	}
	if cfg.ErrorRecheck <= 0 {
		cfg.ErrorRecheck = defaults.ErrorRecheck
	}

	return &Aggregator{
		states: make(map[string]device.Severity),
		wake:   make(chan struct{}, 1),
		ind:    ind,
		cfg:    cfg,
		logger: logger,
	}
}

// SetStatus запоминает статус устройства и будит цикл. Не блокирует.
func (a *Aggregator) SetStatus(path string, status device.Severity) {
	a.mu.Lock()
	a.states[path] = status
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
		// цикл уже разбужен
	}
}

// Overall returns the highest-ranked severity over all tracked devices.
func (a *Aggregator) Overall() device.Severity {
	a.mu.Lock()
	defer a.mu.Unlock()

	max := device.SeverityNone
	for _, s := range a.states {
		if max.Less(s) {
			max = s
		}
	}
	return max
}

// Rendered returns the level most recently shown on the indicator.
func (a *Aggregator) Rendered() device.Severity {
	return device.Severity(a.rendered.Load())
}

// Run sleeps until notified, then renders the worst status once. While in ERROR it
// also wakes after ErrorRecheck so the blink keeps being re-asserted.
func (a *Aggregator) Run(ctx context.Context) error {
	if err := a.ind.KeepAlive(); err != nil {
		a.logger.Log("WARN", "Indicator keep-alive failed", "error", err)
	}

	level := device.SeverityNone
	for {
		var timer *time.Timer
		var timeout <-chan time.Time
		if level == device.SeverityError {
			timer = time.NewTimer(a.cfg.ErrorRecheck)
			timeout = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case <-a.wake:
		case <-timeout:
		}
		if timer != nil {
			timer.Stop()
		}

		level = a.Overall()
		a.render(level)
	}
}

func (a *Aggregator) render(level device.Severity) {
	a.logger.Log("DEBUG", "Overall status", "level", level.String())
	a.rendered.Store(int32(level))

	if level == device.SeverityError {
		if err := a.ind.Blink(ColorAlarm, a.cfg.BlinkInterval, a.cfg.BlinkCount); err != nil {
			a.logger.Log("WARN", "Indicator blink failed", "error", err)
		}
		return
	}

	if err := a.ind.SetColor(ColorFor(level)); err != nil {
		a.logger.Log("WARN", "Indicator color failed", "color", ColorFor(level).String(), "error", err)
		return
	}
	if err := a.ind.Send(); err != nil {
		a.logger.Log("WARN", "Indicator send failed", "error", err)
	}
}

// ColorFor maps a non-error severity to its steady color.
func ColorFor(level device.Severity) Color {
	switch level {
	case device.SeverityInserted:
		return ColorAmber
	case device.SeverityRunning:
		return ColorRed
	case device.SeverityDone:
		return ColorGreen
	case device.SeverityError:
		return ColorAlarm
	default:
		return ColorOff
	}
}
