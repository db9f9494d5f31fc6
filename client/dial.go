package client

import (
	"context"
	"net"

	"ezi-bridge/channel"
	"ezi-bridge/codec"
	"ezi-bridge/loadbalance"
	"ezi-bridge/registry"
	"ezi-bridge/transport"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Dial finds a host of app in reg, lets bal choose one, and connects to it.
// The returned Host is ready to be placed in a channel.Slot.
func Dial(ctx context.Context, reg registry.Registry, bal loadbalance.Balancer, app string, codecType codec.CodecType) (channel.Host, error) {
	instances, err := reg.Discover(ctx, app)
	if err != nil {
		return nil, errors.Wrapf(err, "discover %s", app)
	}
	instance, err := bal.Pick(instances)
	if err != nil {
		return nil, errors.Wrapf(err, "pick host for %s", app)
	}
	log.Debug().Str("component", "client").Str("app", app).Str("instance", instance.Key()).Str("balancer", bal.Name()).Msg("dialing host")
	return DialInstance(ctx, *instance, codecType)
}

// DialInstance connects to one advertised host endpoint.
func DialInstance(ctx context.Context, instance registry.HostInstance, codecType codec.CodecType) (channel.Host, error) {
	switch instance.Scheme {
	case "", "tcp":
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", instance.Addr)
		if err != nil {
			return nil, errors.Wrapf(err, "dial %s", instance.Addr)
		}
		return transport.NewFrontendStream(conn, byte(codecType)), nil
	case "ws":
		path := instance.Path
		if path == "" {
			path = "/ipc"
		}
		h, err := transport.DialWebSocket(ctx, "ws://"+instance.Addr+path, codecType == codec.CodecTypeBinary)
		if err != nil {
			return nil, err
		}
		return h, nil
	default:
		return nil, errors.Errorf("unsupported host scheme %q", instance.Scheme)
	}
}
