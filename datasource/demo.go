package datasource

import (
	"context"
	"sync"

	"github.com/chrisvdg/dashcache/cache"
	"github.com/chrisvdg/dashcache/fetch"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NewDemo returns a Source answering every query from the snapshot at snapshotPath.
// The snapshot is fetched once on first use and kept until Close.
func NewDemo(c *cache.Cache, exec *fetch.Executor, snapshotPath string) *Demo {
	return &Demo{
		c:    c,
		exec: exec,
		req:  fetch.Get(snapshotPath, nil),
		once: &sync.Once{},
		m:    &sync.Mutex{},
	}
}

// Demo is the Source backed by a static snapshot
type Demo struct {
	c    *cache.Cache
	exec *fetch.Executor
	req  fetch.Request

	once *sync.Once
	root *cache.Handle

	m        *sync.Mutex
	decoded  *fetch.Result
	snapshot *Snapshot
}

var _ Source = &Demo{}

func (d *Demo) fetch(ctx context.Context) (interface{}, error) {
	return d.exec.Execute(ctx, d.req)
}

// load acquires the snapshot the first time it is called
func (d *Demo) load() *cache.Handle {
	d.once.Do(func() {
		log.Debugf("loading demo snapshot %s", d.req.Path)
		h := d.c.Acquire(d.req.Key(), d.fetch, false)
		d.m.Lock()
		d.root = h
		d.m.Unlock()
	})
	d.m.Lock()
	defer d.m.Unlock()
	return d.root
}

// retry refetches the snapshot after a failed load, a loaded snapshot is never refetched
func (d *Demo) retry() {
	h := d.load()
	if s := h.State(); !s.IsLoading && s.Err != nil {
		log.Debugf("retrying demo snapshot %s after %s", d.req.Path, s.Error)
		h.Refresh()
	}
}

// decode returns the snapshot decoded from res, decoding each result only once
func (d *Demo) decode(res *fetch.Result) (*Snapshot, error) {
	d.m.Lock()
	defer d.m.Unlock()
	if d.decoded == res && d.snapshot != nil {
		return d.snapshot, nil
	}

	s := &Snapshot{}
	err := res.Decode(s)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode demo snapshot")
	}
	d.decoded = res
	d.snapshot = s

	return s, nil
}

// current returns the loaded snapshot, nil while loading or after a failed load
func (d *Demo) current() *Snapshot {
	s := d.load().State()
	res, ok := s.Data.(*fetch.Result)
	if !ok {
		return nil
	}
	snap, err := d.decode(res)
	if err != nil {
		return nil
	}
	return snap
}

func demoView[T any](d *Demo, query func(*Snapshot) (T, error)) *View[T] {
	d.retry()
	h := d.c.Acquire(d.req.Key(), d.fetch, false)
	return newView(h, func(res *fetch.Result) (T, error) {
		s, err := d.decode(res)
		if err != nil {
			var zero T
			return zero, err
		}
		return query(s)
	}, d.retry)
}

// Services returns the services of type typ sorted by name
func (d *Demo) Services(typ string) *View[[]Service] {
	return demoView(d, func(s *Snapshot) ([]Service, error) {
		return FilterServices(s.Services, typ), nil
	})
}

// Service returns the service name of type typ, the first service called name when typ is empty
func (d *Demo) Service(name, typ string) *View[*Service] {
	return demoView(d, func(s *Snapshot) (*Service, error) {
		if svc, ok := s.ServiceDetails[ServiceKey(typ, name)]; ok && typ != "" {
			return &svc, nil
		}
		return FindService(s.Services, name, typ)
	})
}

// Events returns the events matching namespace and traits
func (d *Demo) Events(namespace string, traits ...Trait) *View[[]Event] {
	return demoView(d, func(s *Snapshot) ([]Event, error) {
		return FilterEvents(s.Events, namespace, traits...), nil
	})
}

// Event returns the event with id
func (d *Demo) Event(id string) *View[*Event] {
	return demoView(d, func(s *Snapshot) (*Event, error) {
		return FindEvent(s.Events, id)
	})
}

// Metrics returns the metrics whose name starts with query
func (d *Demo) Metrics(query string) *View[[]Metric] {
	return demoView(d, func(s *Snapshot) ([]Metric, error) {
		return FilterMetrics(s.Metrics, query), nil
	})
}

func (d *Demo) mailbox(s *Snapshot, service, name string) (*MailboxSnapshot, error) {
	mb, ok := s.Mailboxes[MailboxKey(service, name)]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "mailbox %s", MailboxKey(service, name))
	}
	return &mb, nil
}

// Mailbox returns the mailbox name of mail service service
func (d *Demo) Mailbox(service, name string) *View[*Mailbox] {
	return demoView(d, func(s *Snapshot) (*Mailbox, error) {
		mb, err := d.mailbox(s, service, name)
		if err != nil {
			return nil, err
		}
		return &mb.Mailbox, nil
	})
}

// MailboxMessages returns the messages in mailbox name of mail service service
func (d *Demo) MailboxMessages(service, name string) *View[[]MessageInfo] {
	return demoView(d, func(s *Snapshot) ([]MessageInfo, error) {
		mb, err := d.mailbox(s, service, name)
		if err != nil {
			return nil, err
		}
		messages := make([]MessageInfo, len(mb.Messages))
		copy(messages, mb.Messages)
		return messages, nil
	})
}

// Mail returns the message with messageID
func (d *Demo) Mail(messageID string) *View[*Mail] {
	return demoView(d, func(s *Snapshot) (*Mail, error) {
		return FindMail(s.Mails, messageID)
	})
}

// AttachmentURL returns a data URL with the attachment content embedded in the snapshot.
// It returns an empty string while the snapshot is loading or when the attachment is unknown.
func (d *Demo) AttachmentURL(messageID, name string) string {
	s := d.current()
	if s == nil {
		return ""
	}
	m, err := FindMail(s.Mails, messageID)
	if err != nil {
		return ""
	}
	for _, a := range m.Data.Attachments {
		if a.Name == name {
			return "data:" + a.ContentType + ";base64," + a.Data
		}
	}
	return ""
}

// Example returns the examples stored for the schema name of req
func (d *Demo) Example(req ExampleRequest) *View[[]Example] {
	return demoView(d, func(s *Snapshot) ([]Example, error) {
		examples, ok := s.Examples[req.Name]
		if !ok {
			return nil, errors.Wrapf(ErrNotFound, "example %s", req.Name)
		}
		return examples, nil
	})
}

// Configs returns all configs of the snapshot
func (d *Demo) Configs() *View[[]Config] {
	return demoView(d, func(s *Snapshot) ([]Config, error) {
		configs := make([]Config, len(s.Configs))
		copy(configs, s.Configs)
		return configs, nil
	})
}

// Config returns the config with id
func (d *Demo) Config(id string) *View[*Config] {
	return demoView(d, func(s *Snapshot) (*Config, error) {
		return FindConfig(s.Configs, id)
	})
}

// ConfigData returns the raw content of the config with id
func (d *Demo) ConfigData(id string) *View[string] {
	return demoView(d, func(s *Snapshot) (string, error) {
		c, err := FindConfig(s.Configs, id)
		if err != nil {
			return "", err
		}
		return c.Data, nil
	})
}

// Close releases the snapshot
func (d *Demo) Close() {
	d.m.Lock()
	root := d.root
	d.m.Unlock()
	if root != nil {
		root.Close()
	}
}
