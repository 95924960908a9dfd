package wipe

import (
	"time"

	"golang.org/x/sys/unix"

	"shreddy/internal/logging"
)

const (
	// PartitionNodeAttempts число попыток дождаться узла раздела.
	PartitionNodeAttempts = 19
	// PartitionNodeInterval пауза между попытками.
	PartitionNodeInterval = time.Second
)

// PartitionNode returns the first partition node of a whole-disk path.
func PartitionNode(path string) string {
	return path + "1"
}

// deviceReady reports whether path exists and can be opened read-only.
func deviceReady(path string) bool {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return false
	}
	_ = unix.Close(fd)
	return true
}

// waitForDevice опрашивает узел до attempts раз. Узел появляется не сразу после разметки.
func waitForDevice(path string, attempts int, interval time.Duration, ready func(string) bool, sleep func(time.Duration), logger *logging.Logger) bool {
	for attempt := 1; attempt <= attempts; attempt++ {
		logger.Log("DEBUG", "Check device availability", "path", path, "attempt", attempt)
		if ready(path) {
			return true
		}
		if attempt < attempts {
			sleep(interval)
		}
	}
	logger.Log("WARN", "Device not found", "path", path, "attempts", attempts)
	return false
}
