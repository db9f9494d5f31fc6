// Package registry lets host processes advertise their bridge endpoints and
// lets front-ends find them.
package registry

import "context"

// HostInstance is one reachable bridge endpoint of a host process.
type HostInstance struct {
	ID      string `json:"id"`               // Stable per host process
	Addr    string `json:"addr"`             // "127.0.0.1:7410"
	Scheme  string `json:"scheme"`           // "tcp" or "ws"
	Path    string `json:"path,omitempty"`   // WebSocket path, "/ipc"
	Weight  int    `json:"weight,omitempty"` // Relative share for weighted balancing
	Version string `json:"version,omitempty"`
}

// Key identifies the instance inside an application's set.
func (h HostInstance) Key() string {
	if h.ID != "" {
		return h.ID
	}
	return h.Scheme + "://" + h.Addr
}

type Registry interface {
	Register(ctx context.Context, app string, instance HostInstance, ttl int64) error
	Deregister(ctx context.Context, app string, key string) error
	Discover(ctx context.Context, app string) ([]HostInstance, error)
	Watch(ctx context.Context, app string) <-chan []HostInstance
}
