//go:build linux

package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// udevMonitorGroup is the multicast group udevd re-broadcasts processed events on.
	udevMonitorGroup = 2

	ueventBufferSize = 8192
	pollTimeout      = 500 * time.Millisecond
)

// NetlinkSource reads uevents from a NETLINK_KOBJECT_UEVENT socket.
type NetlinkSource struct {
	fd  int
	buf []byte
}

// NewNetlinkSource subscribes to udev-processed events.
func NewNetlinkSource() (*NetlinkSource, error) {
	return newNetlinkSource(udevMonitorGroup)
}

func newNetlinkSource(group uint32) (*NetlinkSource, error) {
	fd, err := unix.Socket(
		unix.AF_NETLINK,
		unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK,
		unix.NETLINK_KOBJECT_UEVENT,
	)
	if err != nil {
		return nil, fmt.Errorf("создание netlink сокета: %w", err)
	}

	addr := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: group,
	}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("привязка netlink сокета к группе %d: %w", group, err)
	}

	return &NetlinkSource{fd: fd, buf: make([]byte, ueventBufferSize)}, nil
}

// Next blocks until a parseable event arrives or ctx is done.
func (s *NetlinkSource) Next(ctx context.Context) (Event, error) {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}

	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}

		n, err := unix.Poll(fds, int(pollTimeout.Milliseconds()))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return Event{}, fmt.Errorf("poll netlink: %w", err)
		}
		if n == 0 {
			continue
		}

		size, _, err := unix.Recvfrom(s.fd, s.buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			// ENOBUFS: ядро сбросило события при переполнении, читаем дальше
			if errors.Is(err, unix.ENOBUFS) {
				continue
			}
			return Event{}, fmt.Errorf("recv netlink: %w", err)
		}
		if size <= 0 {
			continue
		}

		if evt, ok := ParseMessage(s.buf[:size]); ok {
			return evt, nil
		}
	}
}

// Close releases the socket.
func (s *NetlinkSource) Close() error {
	return unix.Close(s.fd)
}
