package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ezi-bridge/channel"
	"ezi-bridge/client"
	"ezi-bridge/codec"
	"ezi-bridge/config"
	"ezi-bridge/loadbalance"
	"ezi-bridge/registry"
	"ezi-bridge/transport"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call <namespace> <method> [json-args]",
	Short: "Issue one call to a running host and print its result",
	Long: `Issue one call to a running host and print the JSON result.

  ezi call windowm getWindowList
  ezi call windowm setTitle '{"winId":1,"title":"Hello"}'
  ezi call version info --discover`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runCall,
}

func init() {
	callCmd.Flags().Duration("timeout", 10*time.Second, "How long to wait for the result")
	callCmd.Flags().Bool("discover", false, "Find the host in etcd (bridge.etcd.endpoints) instead of dialing --address")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	discover, _ := cmd.Flags().GetBool("discover")

	callArgs := json.RawMessage(`{}`)
	if len(args) == 3 {
		if !json.Valid([]byte(args[2])) {
			return errors.Errorf("arguments are not valid JSON: %s", args[2])
		}
		callArgs = json.RawMessage(args[2])
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	c, err := codec.ByName(cfg.Bridge.Codec)
	if err != nil {
		return err
	}
	host, closeHost, err := dialHost(ctx, cfg, c.Type(), discover)
	if err != nil {
		return err
	}
	defer closeHost()

	ch, err := channel.New(channel.NewSlot(host), channel.WithCodec(c), channel.WithLogger(log.Logger))
	if err != nil {
		return err
	}
	cl := client.New(ch, client.WithLogger(log.Logger))

	result, err := cl.Call(args[0], args[1], callArgs).Wait(ctx)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, result, "", "  "); err != nil {
		out.Reset()
		out.Write(result)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.String())
	return nil
}

// dialHost connects a front-end to the configured host. The returned func
// releases the connection.
func dialHost(ctx context.Context, cfg *config.Config, codecType codec.CodecType, discover bool) (channel.Host, func(), error) {
	b := cfg.Bridge

	if b.Transport == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: b.Redis.Addr})
		// every front-end reads all responses, so each gets its own group
		group := "ezi-frontend-" + uuid.NewString()
		pub, sub, err := transport.NewRedisPubSub(rdb, group, group, log.Logger)
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		requests, responses := transport.Topics(cfg.Application.Name)
		h := transport.NewPubSubHost(pub, sub, requests, responses, log.Logger)
		return h, func() {
			_ = h.Close()
			_ = sub.Close()
			_ = pub.Close()
			_ = rdb.Close()
		}, nil
	}

	var (
		host channel.Host
		err  error
	)
	if discover {
		if len(b.Etcd.Endpoints) == 0 {
			return nil, nil, errors.New("--discover needs bridge.etcd.endpoints")
		}
		reg, rerr := registry.NewEtcdRegistry(b.Etcd.Endpoints)
		if rerr != nil {
			return nil, nil, rerr
		}
		defer reg.Close()
		bal, berr := loadbalance.ByName(b.Balancer)
		if berr != nil {
			return nil, nil, berr
		}
		host, err = client.Dial(ctx, reg, bal, cfg.Application.Name, codecType)
	} else {
		switch b.Transport {
		case "tcp", "ws":
			host, err = client.DialInstance(ctx, registry.HostInstance{Addr: b.Address, Scheme: b.Transport, Path: b.Path}, codecType)
		default:
			return nil, nil, errors.Errorf("cannot call over the %s transport from another process", b.Transport)
		}
	}
	if err != nil {
		return nil, nil, err
	}
	return host, func() {
		if c, ok := host.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}, nil
}
