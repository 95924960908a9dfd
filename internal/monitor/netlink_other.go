//go:build !linux

package monitor

import (
	"context"
	"errors"
)

var errUnsupported = errors.New("hotplug monitoring requires linux netlink")

type NetlinkSource struct{}

func NewNetlinkSource() (*NetlinkSource, error) {
	return nil, errUnsupported
}

func (s *NetlinkSource) Next(ctx context.Context) (Event, error) {
	return Event{}, errUnsupported
}

func (s *NetlinkSource) Close() error {
	return nil
}
