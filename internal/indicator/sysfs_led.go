package indicator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"shreddy/internal/logging"
)

// SysfsLEDRoot is the LED class directory.
const SysfsLEDRoot = "/sys/class/leds"

// ErrNoIndicator means the configured light is not attached.
var ErrNoIndicator = errors.New("indicator not available")

// SysfsLED drives a kernel LED class device. Colors collapse to on/off.
type SysfsLED struct {
	dir   string
	max   int
	sleep func(time.Duration)
}

// NewSysfsLED opens the LED directory and reads max_brightness.
func NewSysfsLED(dir string) (*SysfsLED, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoIndicator, dir)
	}

	max := 1
	if data, err := os.ReadFile(filepath.Join(dir, "max_brightness")); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && v > 0 {
			max = v
		}
	}

	return &SysfsLED{dir: dir, max: max, sleep: time.Sleep}, nil
}

func (s *SysfsLED) write(attr, value string) error {
	path := filepath.Join(s.dir, attr)
	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// KeepAlive: светодиодам ядра поддержка соединения не нужна.
func (s *SysfsLED) KeepAlive() error { return nil }

func (s *SysfsLED) SetColor(c Color) error {
	if err := s.write("trigger", "none"); err != nil {
		return err
	}
	brightness := 0
	if !c.IsOff() {
		brightness = s.max
	}
	return s.write("brightness", strconv.Itoa(brightness))
}

func (s *SysfsLED) Blink(c Color, interval time.Duration, count int) error {
	if c.IsOff() || count <= 0 {
		return s.SetColor(ColorOff)
	}

	ms := strconv.FormatInt(interval.Milliseconds(), 10)
	if err := s.write("trigger", "timer"); err != nil {
		return err
	}
	// delay_on/delay_off появляются только после выбора триггера timer
	if err := s.write("delay_on", ms); err != nil {
		return err
	}
	if err := s.write("delay_off", ms); err != nil {
		return err
	}

	s.sleep(interval * time.Duration(count))
	return s.SetColor(ColorOff)
}

func (s *SysfsLED) Send() error { return nil }

// Open returns the configured LED, or a LogIndicator when none is configured
// or the LED is absent. Absence is logged, not returned.
func Open(led string, logger *logging.Logger) Indicator {
	if led == "" {
		logger.Log("INFO", "Индикатор не настроен, только журнал")
		return NewLogIndicator(logger)
	}

	dir := led
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(SysfsLEDRoot, led)
	}

	ind, err := NewSysfsLED(dir)
	if err != nil {
		logger.Log("WARN", "Индикатор недоступен, только журнал", "led", dir, "error", err)
		return NewLogIndicator(logger)
	}

	logger.Log("INFO", "Индикатор подключен", "led", dir)
	return ind
}
