// Package indicator drives the station's status light and aggregates device
// severities into the single state it shows.
package indicator

import (
	"fmt"
	"time"

	"shreddy/internal/logging"
)

// Color is an RGB triple as understood by busylight-style drivers.
type Color struct {
	R, G, B uint8
}

func (c Color) IsOff() bool {
	return c.R == 0 && c.G == 0 && c.B == 0
}

func (c Color) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

var (
	ColorOff   = Color{0, 0, 0}
	ColorAmber = Color{100, 100, 0}
	ColorRed   = Color{100, 0, 0}
	ColorGreen = Color{0, 100, 0}
	ColorAlarm = Color{255, 0, 0}
)

// Indicator возможности драйвера индикатора.
type Indicator interface {
	KeepAlive() error
	SetColor(c Color) error
	// Blink blocks for the whole burst.
	Blink(c Color, interval time.Duration, count int) error
	Send() error
}

// LogIndicator is used when no physical light is attached: it only logs.
type LogIndicator struct {
	logger *logging.Logger
}

func NewLogIndicator(logger *logging.Logger) *LogIndicator {
	return &LogIndicator{logger: logger}
}

func (l *LogIndicator) KeepAlive() error { return nil }

func (l *LogIndicator) SetColor(c Color) error {
	l.logger.Log("DEBUG", "Indicator color", "color", c.String())
	return nil
}

func (l *LogIndicator) Blink(c Color, interval time.Duration, count int) error {
	l.logger.Log("DEBUG", "Indicator blink", "color", c.String(), "interval", interval, "count", count)
	return nil
}

func (l *LogIndicator) Send() error { return nil }
