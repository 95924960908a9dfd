// Package monitor turns block-device hotplug events into device records and
// starts an erase pipeline for each qualifying USB mass-storage disk.
package monitor

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// Actions carried by uevents.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
)

const (
	libudevPrefix = "libudev\x00"
	libudevMagic  = 0xfeedcafe
	// prefix[8] + magic + header_size + properties_off + properties_len
	libudevMinHeader = 24
)

// Event is one parsed uevent.
type Event struct {
	Action     string
	DevPath    string
	DevNode    string
	DevType    string
	Subsystem  string
	Properties map[string]string
}

// Property returns a raw uevent property or "".
func (e Event) Property(key string) string {
	if e.Properties == nil {
		return ""
	}
	return e.Properties[key]
}

// ParseMessage разбирает сообщение netlink: либо в формате libudev (заголовок с
// магией 0xfeedcafe), либо «сырое» ядерное «action@devpath\0KEY=VALUE\0...».
func ParseMessage(data []byte) (Event, bool) {
	if bytes.HasPrefix(data, []byte(libudevPrefix)) {
		return parseLibudev(data)
	}
	return parseKernel(data)
}

func parseLibudev(data []byte) (Event, bool) {
	if len(data) < libudevMinHeader {
		return Event{}, false
	}
	// magic всегда в сетевом порядке байт, остальные поля в родном
	if binary.BigEndian.Uint32(data[8:12]) != libudevMagic {
		return Event{}, false
	}
	off := int(binary.NativeEndian.Uint32(data[16:20]))
	length := int(binary.NativeEndian.Uint32(data[20:24]))
	if off < libudevMinHeader || length <= 0 || off+length > len(data) {
		return Event{}, false
	}

	evt := parseProperties(data[off : off+length])
	return evt, evt.Action != ""
}

func parseKernel(data []byte) (Event, bool) {
	head, _, _ := bytes.Cut(data, []byte{0})
	action, devpath, ok := strings.Cut(string(head), "@")
	if !ok || action == "" {
		return Event{}, false
	}

	evt := parseProperties(data[len(head):])
	if evt.Action == "" {
		evt.Action = action
	}
	if evt.DevPath == "" {
		evt.DevPath = devpath
	}
	return evt, true
}

func parseProperties(data []byte) Event {
	evt := Event{Properties: make(map[string]string)}

	for _, field := range bytes.Split(data, []byte{0}) {
		if len(field) == 0 {
			continue
		}
		key, value, ok := strings.Cut(string(field), "=")
		if !ok {
			continue
		}
		evt.Properties[key] = value

		switch key {
		case "ACTION":
			evt.Action = value
		case "DEVPATH":
			evt.DevPath = value
		case "DEVNAME":
			evt.DevNode = devNode(value)
		case "DEVTYPE":
			evt.DevType = value
		case "SUBSYSTEM":
			evt.Subsystem = value
		}
	}
	return evt
}

// Ядро присылает DEVNAME без /dev, udev уже с полным путём.
func devNode(name string) string {
	if name == "" || strings.HasPrefix(name, "/") {
		return name
	}
	return "/dev/" + name
}
