package datasource

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/chrisvdg/dashcache/cache"
	"github.com/chrisvdg/dashcache/fetch"
	"github.com/chrisvdg/dashcache/scheduler"
	"github.com/pkg/errors"
)

// NewLive returns a Source querying the backend API through the cache.
// Views acquired while setting is enabled are refreshed by the scheduler.
func NewLive(c *cache.Cache, exec *fetch.Executor, setting *scheduler.Setting) *Live {
	return &Live{
		c:       c,
		exec:    exec,
		setting: setting,
	}
}

// Live is the Source backed by the network API
type Live struct {
	c       *cache.Cache
	exec    *fetch.Executor
	setting *scheduler.Setting
}

var _ Source = &Live{}

func (l *Live) acquire(req fetch.Request) *cache.Handle {
	return l.c.Acquire(req.Key(), func(ctx context.Context) (interface{}, error) {
		return l.exec.Execute(ctx, req)
	}, l.setting.Enabled())
}

func liveView[T any](l *Live, req fetch.Request, derive func(*fetch.Result) (T, error)) *View[T] {
	h := l.acquire(req)
	return newView(h, derive, h.Refresh)
}

// apiPath returns the API path of the escaped elements, every element is one path segment
func apiPath(elem ...string) string {
	escaped := make([]string, len(elem))
	for i, e := range elem {
		switch e {
		case ".", "..":
			escaped[i] = strings.Repeat("%2E", len(e))
		default:
			escaped[i] = url.PathEscape(e)
		}
	}
	return "/api/" + strings.Join(escaped, "/")
}

// Services returns the services of type typ sorted by name.
// All types share the /api/services resource, filtering happens on the shared data.
func (l *Live) Services(typ string) *View[[]Service] {
	return liveView(l, fetch.Get(apiPath("services"), nil), func(res *fetch.Result) ([]Service, error) {
		services, err := decodeAs[[]Service](res)
		if err != nil {
			return nil, err
		}
		return FilterServices(services, typ), nil
	})
}

// Service returns the service name of type typ.
// Without a type the service is looked up in the shared service list.
func (l *Live) Service(name, typ string) *View[*Service] {
	if typ == "" {
		return liveView(l, fetch.Get(apiPath("services"), nil), func(res *fetch.Result) (*Service, error) {
			services, err := decodeAs[[]Service](res)
			if err != nil {
				return nil, err
			}
			return FindService(services, name, typ)
		})
	}
	return liveView(l, fetch.Get(apiPath("services", typ, name), nil), decodeAs[*Service])
}

// Events returns the events matching namespace and traits
func (l *Live) Events(namespace string, traits ...Trait) *View[[]Event] {
	params := url.Values(traitParams(namespace, traits))
	return liveView(l, fetch.Get(apiPath("events"), params), decodeAs[[]Event])
}

// Event returns the event with id
func (l *Live) Event(id string) *View[*Event] {
	return liveView(l, fetch.Get(apiPath("events", id), nil), decodeAs[*Event])
}

// Metrics returns the metrics whose name starts with query
func (l *Live) Metrics(query string) *View[[]Metric] {
	var params url.Values
	if query != "" {
		params = url.Values{"q": {query}}
	}
	return liveView(l, fetch.Get(apiPath("metrics"), params), func(res *fetch.Result) ([]Metric, error) {
		metrics, err := decodeAs[[]Metric](res)
		if err != nil {
			return nil, err
		}
		return FilterMetrics(metrics, query), nil
	})
}

// Mailbox returns the mailbox name of mail service service
func (l *Live) Mailbox(service, name string) *View[*Mailbox] {
	return liveView(l, fetch.Get(apiPath("services", "mail", service, "mailboxes", name), nil), decodeAs[*Mailbox])
}

// MailboxMessages returns the messages in mailbox name of mail service service
func (l *Live) MailboxMessages(service, name string) *View[[]MessageInfo] {
	return liveView(l, fetch.Get(apiPath("services", "mail", service, "mailboxes", name, "messages"), nil), decodeAs[[]MessageInfo])
}

// Mail returns the message with messageID
func (l *Live) Mail(messageID string) *View[*Mail] {
	return liveView(l, fetch.Get(apiPath("services", "mail", "messages", messageID), nil), decodeAs[*Mail])
}

// AttachmentURL returns the backend URL of an attachment
func (l *Live) AttachmentURL(messageID, name string) string {
	return l.exec.URL(fetch.Get(apiPath("services", "mail", "messages", messageID, "attachments", name), nil))
}

// Example requests generated example data for a schema
func (l *Live) Example(req ExampleRequest) *View[[]Example] {
	body, err := json.Marshal(req)
	r := fetch.Post(apiPath("schema", "example"), "application/json", body)
	if err != nil {
		err = errors.Wrap(err, "failed to marshal example request")
		h := l.c.Acquire(r.Key()+"#invalid", func(context.Context) (interface{}, error) {
			return nil, err
		}, false)
		return newView(h, decodeAs[[]Example], nil)
	}

	return liveView(l, r, decodeAs[[]Example])
}

// Configs returns all loaded configs
func (l *Live) Configs() *View[[]Config] {
	return liveView(l, fetch.Get(apiPath("configs"), nil), decodeAs[[]Config])
}

// Config returns the config with id
func (l *Live) Config(id string) *View[*Config] {
	return liveView(l, fetch.Get(apiPath("configs", id), nil), decodeAs[*Config])
}

// ConfigData returns the raw content of the config with id
func (l *Live) ConfigData(id string) *View[string] {
	return liveView(l, fetch.Get(apiPath("configs", id, "data"), nil), text)
}

// Close has nothing to release, views are released individually
func (l *Live) Close() {}
