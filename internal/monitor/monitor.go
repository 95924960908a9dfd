package monitor

import (
	"context"
	"errors"
	"fmt"

	"shreddy/internal/device"
	"shreddy/internal/logging"
)

// EventSource yields hotplug events. Next blocks until an event is available.
type EventSource interface {
	Next(ctx context.Context) (Event, error)
}

// SpawnFunc starts processing of a newly inserted device. It must not block.
type SpawnFunc func(rec *device.Record)

// Monitor реагирует на подключение и извлечение USB-носителей.
type Monitor struct {
	source   EventSource
	registry *device.Registry
	notifier device.StatusNotifier
	spawn    SpawnFunc
	logger   *logging.Logger
}

// NewMonitor wires a monitor. spawn is called synchronously; callers start their own goroutine.
func NewMonitor(source EventSource, registry *device.Registry, notifier device.StatusNotifier, spawn SpawnFunc, logger *logging.Logger) *Monitor {
	return &Monitor{
		source:   source,
		registry: registry,
		notifier: notifier,
		spawn:    spawn,
		logger:   logger,
	}
}

// Qualifies reports whether an add event describes a whole USB mass-storage disk.
func Qualifies(evt Event) bool {
	return isBlockDisk(evt) &&
		evt.Property("ID_TYPE") == "disk" &&
		evt.Property("ID_USB_DRIVER") == "usb-storage"
}

// Run читает события до отмены ctx. Отмена не считается ошибкой.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Log("INFO", "Monitoring hotplug events")
	for {
		evt, err := m.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("ошибка чтения событий hotplug: %w", err)
		}
		m.Handle(evt)
	}
}

// Handle applies one event to the registry.
func (m *Monitor) Handle(evt Event) {
	switch evt.Action {
	case ActionAdd:
		if !Qualifies(evt) || evt.DevNode == "" {
			return
		}
		m.insert(evt)
	case ActionRemove:
		if !isBlockDisk(evt) || evt.DevNode == "" {
			return
		}
		m.remove(evt.DevNode)
	}
}

func isBlockDisk(evt Event) bool {
	return evt.Subsystem == "block" && evt.DevType == "disk"
}

// insert держит не больше одной живой записи на путь. Повтор add для
// незавершённой записи игнорируется; после DONE или ERROR без remove
// старая запись закрывается как REMOVED.
func (m *Monitor) insert(evt Event) {
	if old := m.registry.FindLive(evt.DevNode); old != nil {
		switch status := old.Status(); status {
		case device.SeverityDone, device.SeverityError:
			m.logger.Log("WARN", "Add without remove, closing previous record", "path", old.Path, "status", status.String(), "id", old.ID)
			old.SetStatus(device.SeverityRemoved, "removed")
			m.notify(old.Path, device.SeverityRemoved)
		default:
			m.logger.Log("WARN", "Duplicate add ignored", "path", old.Path, "status", status.String(), "id", old.ID)
			return
		}
	}

	rec := device.NewRecord(evt.DevNode, evt.Property("ID_MODEL"))
	m.logger.Log("INFO", "Device inserted", "path", rec.Path, "model", rec.Model, "id", rec.ID)

	m.notify(rec.Path, device.SeverityInserted)
	rec.SetStatus(device.SeverityInserted, "")
	m.registry.Append(rec)

	if m.spawn != nil {
		m.spawn(rec)
	}
}

// remove помечает запись REMOVED независимо от состояния конвейера.
func (m *Monitor) remove(path string) {
	rec := m.registry.FindLive(path)
	if rec == nil {
		m.logger.Log("DEBUG", "Removal of unknown device", "path", path)
		return
	}

	if status := rec.Status(); status == device.SeverityRunning {
		m.logger.Log("WARN", "Device removed while erasing", "path", path, "message", rec.Message())
	}
	rec.SetStatus(device.SeverityRemoved, "removed")
	m.notify(path, device.SeverityRemoved)
	m.logger.Log("INFO", "Device removed", "path", path, "model", rec.Model)
}

func (m *Monitor) notify(path string, status device.Severity) {
	if m.notifier != nil {
		m.notifier.SetStatus(path, status)
	}
}
