// Package datasource exposes the dashboard queries over a live backend or a static demo snapshot.
package datasource

import (
	"strings"

	"github.com/chrisvdg/dashcache/cache"
	"github.com/chrisvdg/dashcache/fetch"
	"github.com/chrisvdg/dashcache/scheduler"
	"github.com/pkg/errors"
)

var (
	// ErrUnknownMode represents a mode that is neither live nor demo
	ErrUnknownMode = errors.New("unknown data source mode")
)

// DefaultSnapshotPath is where the demo snapshot is served
const DefaultSnapshotPath = "/dashboard.json"

// Source is implemented by the live and the demo data source
type Source interface {
	// Services returns the services of type typ sorted by name, all services when typ is empty
	Services(typ string) *View[[]Service]
	Service(name, typ string) *View[*Service]
	// Events returns the events matching namespace and all traits in source order
	Events(namespace string, traits ...Trait) *View[[]Event]
	Event(id string) *View[*Event]
	// Metrics returns the metrics whose name starts with query
	Metrics(query string) *View[[]Metric]
	Mailbox(service, name string) *View[*Mailbox]
	MailboxMessages(service, name string) *View[[]MessageInfo]
	Mail(messageID string) *View[*Mail]
	// AttachmentURL returns a URL the attachment content can be loaded from
	AttachmentURL(messageID, name string) string
	Example(req ExampleRequest) *View[[]Example]
	Configs() *View[[]Config]
	Config(id string) *View[*Config]
	ConfigData(id string) *View[string]
	// Close releases resources held by the source itself
	Close()
}

// Mode selects the Source implementation
type Mode string

const (
	// ModeLive queries the backend API
	ModeLive Mode = "live"
	// ModeDemo queries a static snapshot
	ModeDemo Mode = "demo"
)

// ParseMode parses a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLive:
		return ModeLive, nil
	case ModeDemo:
		return ModeDemo, nil
	default:
		return "", errors.Wrapf(ErrUnknownMode, "%q", s)
	}
}

// SourceConfig selects and configures a Source
type SourceConfig struct {
	Mode Mode
	// SnapshotPath is the path of the demo snapshot relative to the executor base URL
	SnapshotPath string
}

// Open returns the Source selected by cfg.Mode
func Open(cfg SourceConfig, c *cache.Cache, exec *fetch.Executor, setting *scheduler.Setting) (Source, error) {
	switch cfg.Mode {
	case ModeLive:
		return NewLive(c, exec, setting), nil
	case ModeDemo:
		path := cfg.SnapshotPath
		if path == "" {
			path = DefaultSnapshotPath
		}
		return NewDemo(c, exec, path), nil
	default:
		return nil, errors.Wrapf(ErrUnknownMode, "%q", cfg.Mode)
	}
}
