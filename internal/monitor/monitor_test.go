package monitor

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shreddy/internal/device"
	"shreddy/internal/logging"
)

func kernelMessage(head string, props ...string) []byte {
	return []byte(head + "\x00" + strings.Join(props, "\x00") + "\x00")
}

func libudevMessage(props ...string) []byte {
	body := []byte(strings.Join(props, "\x00") + "\x00")
	hdr := make([]byte, 40)
	copy(hdr, libudevPrefix)
	binary.BigEndian.PutUint32(hdr[8:], libudevMagic)
	binary.NativeEndian.PutUint32(hdr[12:], uint32(len(hdr)))
	binary.NativeEndian.PutUint32(hdr[16:], uint32(len(hdr)))
	binary.NativeEndian.PutUint32(hdr[20:], uint32(len(body)))
	return append(hdr, body...)
}

var usbDiskProps = []string{
	"ACTION=add",
	"DEVPATH=/devices/pci0000:00/0000:00:14.0/usb1/1-1/1-1:1.0/host6/target6:0:0/6:0:0:0/block/sdx",
	"SUBSYSTEM=block",
	"DEVNAME=/dev/sdx",
	"DEVTYPE=disk",
	"ID_TYPE=disk",
	"ID_USB_DRIVER=usb-storage",
	"ID_MODEL=Kingston DataTraveler\x07",
}

func TestParseMessageLibudev(t *testing.T) {
	evt, ok := ParseMessage(libudevMessage(usbDiskProps...))
	require.True(t, ok)

	assert.Equal(t, ActionAdd, evt.Action)
	assert.Equal(t, "/dev/sdx", evt.DevNode)
	assert.Equal(t, "disk", evt.DevType)
	assert.Equal(t, "block", evt.Subsystem)
	assert.Equal(t, "usb-storage", evt.Property("ID_USB_DRIVER"))
	assert.True(t, Qualifies(evt))
}

func TestParseMessageKernel(t *testing.T) {
	data := kernelMessage("remove@/devices/virtual/block/sdx",
		"ACTION=remove",
		"DEVPATH=/devices/virtual/block/sdx",
		"SUBSYSTEM=block",
		"DEVNAME=sdx",
		"DEVTYPE=disk",
	)

	evt, ok := ParseMessage(data)
	require.True(t, ok)
	assert.Equal(t, ActionRemove, evt.Action)
	assert.Equal(t, "/dev/sdx", evt.DevNode)
	assert.Equal(t, "/devices/virtual/block/sdx", evt.DevPath)
	assert.False(t, Qualifies(evt))
}

func TestParseMessageKernelHeaderOnly(t *testing.T) {
	evt, ok := ParseMessage(kernelMessage("change@/devices/virtual/block/loop0"))
	require.True(t, ok)
	assert.Equal(t, ActionChange, evt.Action)
	assert.Equal(t, "/devices/virtual/block/loop0", evt.DevPath)
}

func TestParseMessageRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"no header", []byte("KEY=VALUE\x00")},
		{"short libudev", []byte(libudevPrefix + "abc")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseMessage(tt.data)
			assert.False(t, ok)
		})
	}

	t.Run("bad magic", func(t *testing.T) {
		msg := libudevMessage(usbDiskProps...)
		binary.BigEndian.PutUint32(msg[8:], 0xdeadbeef)
		_, ok := ParseMessage(msg)
		assert.False(t, ok)
	})

	t.Run("properties out of range", func(t *testing.T) {
		msg := libudevMessage(usbDiskProps...)
		binary.NativeEndian.PutUint32(msg[20:], uint32(len(msg)))
		_, ok := ParseMessage(msg)
		assert.False(t, ok)
	})
}

func TestQualifies(t *testing.T) {
	base := Event{
		Action:    ActionAdd,
		DevNode:   "/dev/sdx",
		Subsystem: "block",
		DevType:   "disk",
		Properties: map[string]string{
			"ID_TYPE":       "disk",
			"ID_USB_DRIVER": "usb-storage",
		},
	}
	assert.True(t, Qualifies(base))

	partition := base
	partition.DevType = "partition"
	assert.False(t, Qualifies(partition))

	cdrom := base
	cdrom.Properties = map[string]string{"ID_TYPE": "cd", "ID_USB_DRIVER": "usb-storage"}
	assert.False(t, Qualifies(cdrom))

	uas := base
	uas.Properties = map[string]string{"ID_TYPE": "disk", "ID_USB_DRIVER": "uas"}
	assert.False(t, Qualifies(uas))

	usb := base
	usb.Subsystem = "usb"
	assert.False(t, Qualifies(usb))

	noSubsystem := base
	noSubsystem.Subsystem = ""
	assert.False(t, Qualifies(noSubsystem))

	assert.False(t, Qualifies(Event{DevType: "disk"}))
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) SetStatus(path string, s device.Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, path+":"+s.String())
}

func (n *recordingNotifier) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func addEvent(node, model string) Event {
	return Event{
		Action:    ActionAdd,
		DevNode:   node,
		Subsystem: "block",
		DevType:   "disk",
		Properties: map[string]string{
			"ID_TYPE":       "disk",
			"ID_USB_DRIVER": "usb-storage",
			"ID_MODEL":      model,
		},
	}
}

func removeEvent(node string) Event {
	return Event{Action: ActionRemove, DevNode: node, Subsystem: "block", DevType: "disk"}
}

func TestHandleAddCreatesRecordAndSpawns(t *testing.T) {
	registry := device.NewRegistry()
	notifier := &recordingNotifier{}
	var spawned []*device.Record
	m := NewMonitor(nil, registry, notifier, func(rec *device.Record) {
		assert.Equal(t, device.SeverityInserted, rec.Status())
		spawned = append(spawned, rec)
	}, logging.NewTestLogger())

	m.Handle(addEvent("/dev/sdx", "Kingston DataTraveler\x07"))

	require.Len(t, spawned, 1)
	require.Equal(t, 1, registry.Len())
	snap := registry.Recent(1)[0]
	assert.Equal(t, "/dev/sdx", snap.Path)
	assert.Equal(t, "Kingston DataTraveler", snap.Model)
	assert.Equal(t, device.SeverityInserted, snap.Status)
	assert.Equal(t, []string{"/dev/sdx:INSERTED"}, notifier.snapshot())
}

func TestHandleIgnoresNonQualifying(t *testing.T) {
	registry := device.NewRegistry()
	spawns := 0
	m := NewMonitor(nil, registry, nil, func(*device.Record) { spawns++ }, logging.NewTestLogger())

	partition := addEvent("/dev/sdx1", "Stick")
	partition.DevType = "partition"
	m.Handle(partition)

	m.Handle(Event{Action: ActionAdd, DevNode: "/dev/sr0", Subsystem: "block", DevType: "disk",
		Properties: map[string]string{"ID_TYPE": "cd", "ID_USB_DRIVER": "usb-storage"}})

	foreign := addEvent("/dev/sdy", "Stick")
	foreign.Subsystem = "usb"
	m.Handle(foreign)
	m.Handle(Event{Action: ActionChange, DevNode: "/dev/sdx", DevType: "disk"})
	m.Handle(removeEvent("/dev/sdz"))

	assert.Zero(t, registry.Len())
	assert.Zero(t, spawns)
}

func TestHandleRemoveMarksLiveRecord(t *testing.T) {
	registry := device.NewRegistry()
	notifier := &recordingNotifier{}
	m := NewMonitor(nil, registry, notifier, nil, logging.NewTestLogger())

	m.Handle(addEvent("/dev/sdx", "First"))
	m.Handle(removeEvent("/dev/sdx"))
	m.Handle(addEvent("/dev/sdx", "Second"))

	recent := registry.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "Second", recent[0].Model)
	assert.Equal(t, device.SeverityInserted, recent[0].Status)
	assert.Equal(t, "First", recent[1].Model)
	assert.Equal(t, device.SeverityRemoved, recent[1].Status)
	assert.Equal(t, "removed", recent[1].Message)

	m.Handle(removeEvent("/dev/sdx"))
	recent = registry.Recent(0)
	assert.Equal(t, device.SeverityRemoved, recent[0].Status)

	assert.Equal(t, []string{
		"/dev/sdx:INSERTED",
		"/dev/sdx:REMOVED",
		"/dev/sdx:INSERTED",
		"/dev/sdx:REMOVED",
	}, notifier.snapshot())
}

func TestHandleRemoveIgnoresOtherSubsystems(t *testing.T) {
	registry := device.NewRegistry()
	notifier := &recordingNotifier{}
	m := NewMonitor(nil, registry, notifier, nil, logging.NewTestLogger())

	m.Handle(addEvent("/dev/sdx", "Stick"))
	foreign := removeEvent("/dev/sdx")
	foreign.Subsystem = "usb"
	m.Handle(foreign)

	assert.Equal(t, device.SeverityInserted, registry.Recent(1)[0].Status)
	assert.Equal(t, []string{"/dev/sdx:INSERTED"}, notifier.snapshot())
}

func TestDuplicateAddWhileActiveIsIgnored(t *testing.T) {
	for _, status := range []device.Severity{device.SeverityInserted, device.SeverityRunning} {
		t.Run(status.String(), func(t *testing.T) {
			registry := device.NewRegistry()
			notifier := &recordingNotifier{}
			var spawned []*device.Record
			m := NewMonitor(nil, registry, notifier, func(r *device.Record) { spawned = append(spawned, r) }, logging.NewTestLogger())

			m.Handle(addEvent("/dev/sdx", "Stick"))
			require.Len(t, spawned, 1)
			spawned[0].SetStatus(status, "")

			m.Handle(addEvent("/dev/sdx", "Stick"))

			assert.Len(t, spawned, 1)
			assert.Equal(t, 1, registry.Len())
			assert.Same(t, spawned[0], registry.FindLive("/dev/sdx"))
			assert.Equal(t, status, spawned[0].Status())
			assert.Equal(t, []string{"/dev/sdx:INSERTED"}, notifier.snapshot())

			// один remove закрывает единственную живую запись
			m.Handle(removeEvent("/dev/sdx"))
			assert.Nil(t, registry.FindLive("/dev/sdx"))
		})
	}
}

func TestAddAfterFinishedWithoutRemoveClosesPreviousRecord(t *testing.T) {
	for _, status := range []device.Severity{device.SeverityDone, device.SeverityError} {
		t.Run(status.String(), func(t *testing.T) {
			registry := device.NewRegistry()
			notifier := &recordingNotifier{}
			var spawned []*device.Record
			m := NewMonitor(nil, registry, notifier, func(r *device.Record) { spawned = append(spawned, r) }, logging.NewTestLogger())

			m.Handle(addEvent("/dev/sdx", "First"))
			require.Len(t, spawned, 1)
			spawned[0].SetStatus(status, "")

			m.Handle(addEvent("/dev/sdx", "Second"))

			require.Len(t, spawned, 2)
			assert.Equal(t, device.SeverityRemoved, spawned[0].Status())
			assert.Equal(t, "removed", spawned[0].Message())
			assert.Equal(t, device.SeverityInserted, spawned[1].Status())
			assert.Same(t, spawned[1], registry.FindLive("/dev/sdx"))
			assert.Equal(t, 2, registry.Len())
			assert.Equal(t, []string{
				"/dev/sdx:INSERTED",
				"/dev/sdx:REMOVED",
				"/dev/sdx:INSERTED",
			}, notifier.snapshot())

			m.Handle(removeEvent("/dev/sdx"))
			assert.Nil(t, registry.FindLive("/dev/sdx"))
		})
	}
}

// Извлечение во время затирания сразу даёт REMOVED; поздняя запись конвейера
// может перезаписать статус, это поведение закреплено.
func TestRemoveWhileRunning(t *testing.T) {
	registry := device.NewRegistry()
	var rec *device.Record
	m := NewMonitor(nil, registry, nil, func(r *device.Record) { rec = r }, logging.NewTestLogger())

	m.Handle(addEvent("/dev/sdx", "Stick"))
	require.NotNil(t, rec)
	rec.SetStatus(device.SeverityRunning, "overwriting pass 2/3")

	m.Handle(removeEvent("/dev/sdx"))
	assert.Equal(t, device.SeverityRemoved, rec.Status())

	rec.SetError("erasing failed (pass 2)")
	assert.Equal(t, device.SeverityError, rec.Status())
}

type chanSource struct {
	events chan Event
	err    error
}

func (s *chanSource) Next(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case evt, ok := <-s.events:
		if !ok {
			return Event{}, s.err
		}
		return evt, nil
	}
}

func TestRunProcessesUntilCancelled(t *testing.T) {
	registry := device.NewRegistry()
	src := &chanSource{events: make(chan Event, 4)}
	spawned := make(chan string, 4)
	m := NewMonitor(src, registry, nil, func(r *device.Record) { spawned <- r.Path }, logging.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	src.events <- addEvent("/dev/sdx", "A")
	src.events <- addEvent("/dev/sdy", "B")

	for _, want := range []string{"/dev/sdx", "/dev/sdy"} {
		select {
		case got := <-spawned:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("device %s not spawned", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestRunReturnsSourceError(t *testing.T) {
	src := &chanSource{events: make(chan Event), err: errors.New("socket closed")}
	close(src.events)
	m := NewMonitor(src, device.NewRegistry(), nil, nil, logging.NewTestLogger())

	err := m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "socket closed")
}
