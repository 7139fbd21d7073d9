package datasource_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chrisvdg/dashcache/cache"
	"github.com/chrisvdg/dashcache/datasource"
	"github.com/chrisvdg/dashcache/fetch"
	"github.com/chrisvdg/dashcache/scheduler"
	"github.com/chrisvdg/dashcache/server"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)

func testSnapshot() *datasource.Snapshot {
	return &datasource.Snapshot{
		Services: []datasource.Service{
			{Name: "Orders", Type: "kafka"},
			{Name: "petstore", Type: "http"},
			{Name: "billing", Type: "kafka"},
			{Name: "Mail", Type: "mail"},
			{Name: "audit", Type: "kafka"},
		},
		ServiceDetails: map[string]datasource.Service{
			"http/petstore": {Name: "petstore", Type: "http", Version: "1.0", Servers: []datasource.Server{{URL: "http://localhost/petstore"}}},
		},
		Events: []datasource.Event{
			{ID: "1", Time: t0, Traits: map[string]string{"namespace": "mail", "name": "smtp"}},
			{ID: "2", Time: t0.Add(time.Second), Traits: map[string]string{"namespace": "kafka", "topic": "orders"}},
			{ID: "3", Time: t0.Add(2 * time.Second), Traits: map[string]string{"namespace": "mail", "name": "imap"}},
			{ID: "4", Time: t0.Add(3 * time.Second), Traits: map[string]string{"namespace": "mail", "name": "smtp", "port": "25"}},
		},
		Metrics: []datasource.Metric{
			{Name: "app_start_timestamp", Value: 1},
			{Name: "kafka_messages_total", Value: 42},
			{Name: "http_requests_total", Value: 7},
			{Name: "kafka_topic_offset", Value: 3},
		},
		Mailboxes: map[string]datasource.MailboxSnapshot{
			"Mail/alice": {
				Mailbox: datasource.Mailbox{Name: "alice", Username: "alice", NumMessages: 1},
				Messages: []datasource.MessageInfo{
					{MessageID: "m1", Subject: "hello", Date: t0, From: []datasource.Address{{Address: "bob@example.com"}}, To: []datasource.Address{{Address: "alice@example.com"}}},
				},
			},
		},
		Mails: []datasource.Mail{
			{
				Service: "Mail",
				Data: datasource.Message{
					MessageID: "m1",
					Subject:   "hello",
					Date:      t0,
					From:      []datasource.Address{{Address: "bob@example.com"}},
					To:        []datasource.Address{{Address: "alice@example.com"}},
					Body:      "hi alice",
					Attachments: []datasource.Attachment{
						{Name: "note.txt", ContentType: "text/plain", Size: 5, Data: base64.StdEncoding.EncodeToString([]byte("notes"))},
					},
				},
			},
		},
		Configs: []datasource.Config{
			{ID: "c1", URL: "file://petstore.yaml", Provider: "file", Time: t0, Data: "openapi: 3.0.0"},
		},
		Examples: map[string][]datasource.Example{
			"Pet": {{ContentType: "application/json", Value: `{"name":"rex"}`}},
		},
	}
}

type fakeClock struct {
	m   sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.m.Lock()
	defer c.m.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.m.Lock()
	c.now = c.now.Add(d)
	c.m.Unlock()
}

type env struct {
	srv       *server.Server
	ts        *httptest.Server
	calls     *int64
	paths     *sync.Map
	failing   *int32
	cache     *cache.Cache
	exec      *fetch.Executor
	setting   *scheduler.Setting
	scheduler *scheduler.Scheduler
	clock     *fakeClock
}

func (e *env) requests(uri string) int64 {
	v, ok := e.paths.Load(uri)
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v.(*int64))
}

// fail makes the backend answer every request with 503 until called with false
func (e *env) fail(failing bool) {
	v := int32(0)
	if failing {
		v = 1
	}
	atomic.StoreInt32(e.failing, v)
}

func newEnv(t *testing.T, refresh time.Duration) *env {
	srv := server.NewFromSnapshot(testSnapshot())
	calls := int64(0)
	failing := int32(0)
	paths := &sync.Map{}
	handler := srv.Handler()
	ts := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&calls, 1)
		v, _ := paths.LoadOrStore(req.URL.RequestURI(), new(int64))
		atomic.AddInt64(v.(*int64), 1)
		if atomic.LoadInt32(&failing) == 1 {
			http.Error(res, "maintenance", http.StatusServiceUnavailable)
			return
		}
		handler.ServeHTTP(res, req)
	}))
	t.Cleanup(ts.Close)

	exec, err := fetch.NewExecutor(ts.URL, ts.Client())
	require.NoError(t, err)

	clock := &fakeClock{now: time.Now()}
	setting := scheduler.NewSetting(refresh)
	s := scheduler.New(setting, scheduler.WithClock(clock))
	c := cache.New(s, cache.WithFetchTimeout(5*time.Second))
	t.Cleanup(c.DisposeAll)

	return &env{
		srv:       srv,
		ts:        ts,
		calls:     &calls,
		paths:     paths,
		failing:   &failing,
		cache:     c,
		exec:      exec,
		setting:   setting,
		scheduler: s,
		clock:     clock,
	}
}

func wait[T any](t *testing.T, v *datasource.View[T]) datasource.Value[T] {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	val, err := v.Wait(ctx)
	require.NoError(t, err)
	return val
}

func toJSON(t *testing.T, v interface{}) string {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
