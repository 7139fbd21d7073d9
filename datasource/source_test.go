package datasource_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/chrisvdg/dashcache/datasource"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(services []datasource.Service) []string {
	out := []string{}
	for _, s := range services {
		out = append(out, s.Name)
	}
	return out
}

func ids(events []datasource.Event) []string {
	out := []string{}
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestLiveServicesSortedAndEvicted(t *testing.T) {
	assert := assert.New(t)
	e := newEnv(t, 0)
	e.srv.SetSnapshot(&datasource.Snapshot{Services: []datasource.Service{{Name: "b"}, {Name: "a"}}})
	live := datasource.NewLive(e.cache, e.exec, e.setting)

	v := live.Services("")
	val := wait(t, v)
	assert.Empty(val.Error)
	assert.Equal([]string{"a", "b"}, names(val.Data))
	assert.Equal(int64(1), e.requests("/api/services"))

	v.Close()
	assert.Equal(0, e.cache.Len())

	v2 := live.Services("")
	defer v2.Close()
	wait(t, v2)
	assert.Equal(int64(2), e.requests("/api/services"))
}

func TestLiveServicesShareOneResource(t *testing.T) {
	assert := assert.New(t)
	e := newEnv(t, 0)
	live := datasource.NewLive(e.cache, e.exec, e.setting)

	kafka := live.Services("kafka")
	defer kafka.Close()
	http := live.Services("http")
	defer http.Close()

	assert.Equal(kafka.Key(), http.Key())
	assert.Equal(2, e.cache.RefCount("/api/services"))
	assert.Equal([]string{"audit", "billing", "Orders"}, names(wait(t, kafka).Data))
	assert.Equal([]string{"petstore"}, names(wait(t, http).Data))
	assert.Equal(int64(1), e.requests("/api/services"))
}

func TestLiveRequestError(t *testing.T) {
	assert := assert.New(t)
	e := newEnv(t, 0)
	live := datasource.NewLive(e.cache, e.exec, e.setting)

	v := live.Event("missing")
	defer v.Close()
	val := wait(t, v)
	assert.Nil(val.Data)
	assert.False(val.IsLoading)
	assert.Contains(val.Error, "404")
	assert.Contains(val.Error, "not found")
}

func TestLiveRefreshFromScheduler(t *testing.T) {
	assert := assert.New(t)
	e := newEnv(t, 20*time.Second)
	live := datasource.NewLive(e.cache, e.exec, e.setting)

	v := live.Services("kafka")
	defer v.Close()
	wait(t, v)
	assert.Equal([]string{"/api/services"}, e.scheduler.Tasks())

	updated := testSnapshot()
	updated.Services = append(updated.Services, datasource.Service{Name: "accounts", Type: "kafka"})
	e.srv.SetSnapshot(updated)

	got := make(chan []string, 8)
	cancel := v.Subscribe(func(val datasource.Value[[]datasource.Service]) {
		if !val.IsLoading {
			got <- names(val.Data)
		}
	})
	defer cancel()

	e.scheduler.Tick()
	e.clock.Advance(5 * time.Second)
	e.scheduler.Tick()
	assert.Equal(int64(1), e.requests("/api/services"))

	// a shorter interval applies on the next tick
	e.setting.Set(5 * time.Second)
	e.scheduler.Tick()

	expected := []string{"accounts", "audit", "billing", "Orders"}
	timeout := time.After(5 * time.Second)
	for {
		select {
		case n := <-got:
			if len(n) != len(expected) {
				continue
			}
			assert.Equal(expected, n)
			assert.Equal(expected, names(v.State().Data))
			assert.Equal(int64(2), e.requests("/api/services"))
			return
		case <-timeout:
			t.Fatal("view was not refreshed")
		}
	}
}

func TestLiveRefreshDisabled(t *testing.T) {
	e := newEnv(t, 0)
	live := datasource.NewLive(e.cache, e.exec, e.setting)

	v := live.Metrics("kafka")
	defer v.Close()
	wait(t, v)
	assert.Empty(t, e.scheduler.Tasks())

	// enabling refresh only affects resources acquired afterwards
	e.setting.Set(time.Second)
	c := live.Configs()
	defer c.Close()
	wait(t, c)
	assert.Equal(t, []string{"/api/configs"}, e.scheduler.Tasks())
}

func TestLiveEventsQuery(t *testing.T) {
	assert := assert.New(t)
	e := newEnv(t, 0)
	live := datasource.NewLive(e.cache, e.exec, e.setting)

	v := live.Events("mail", datasource.Trait{Name: "name", Value: "smtp"})
	defer v.Close()
	assert.Equal("/api/events?name=smtp&namespace=mail", v.Key())
	assert.Equal([]string{"1", "4"}, ids(wait(t, v).Data))
}

func TestLiveAttachmentURL(t *testing.T) {
	e := newEnv(t, 0)
	live := datasource.NewLive(e.cache, e.exec, e.setting)

	u := live.AttachmentURL("m1", "note.txt")
	assert.Equal(t, e.ts.URL+"/api/services/mail/messages/m1/attachments/note.txt", u)

	res, err := e.ts.Client().Get(u)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/plain", res.Header.Get("Content-Type"))
	assert.Equal(t, 0, e.cache.Len())
}

func TestDemoLoadsSnapshotOnce(t *testing.T) {
	assert := assert.New(t)
	e := newEnv(t, time.Second)
	demo := datasource.NewDemo(e.cache, e.exec, datasource.DefaultSnapshotPath)
	defer demo.Close()

	services := demo.Services("kafka")
	events := demo.Events("mail")
	metrics := demo.Metrics("kafka_")
	assert.Equal([]string{"audit", "billing", "Orders"}, names(wait(t, services).Data))
	assert.Equal([]string{"1", "3", "4"}, ids(wait(t, events).Data))
	assert.Len(wait(t, metrics).Data, 2)

	services.Close()
	events.Close()
	metrics.Close()
	services.Refresh()

	mail := demo.Mail("m1")
	defer mail.Close()
	assert.Equal("hello", wait(t, mail).Data.Data.Subject)

	assert.Empty(e.scheduler.Tasks())
	assert.Equal(int64(1), e.requests(datasource.DefaultSnapshotPath))
	assert.Equal(int64(1), atomic.LoadInt64(e.calls))
}

func TestDemoLookups(t *testing.T) {
	assert := assert.New(t)
	e := newEnv(t, 0)
	demo := datasource.NewDemo(e.cache, e.exec, datasource.DefaultSnapshotPath)
	defer demo.Close()

	svc := wait(t, demo.Service("petstore", "http"))
	assert.Equal("1.0", svc.Data.Version)

	fallback := wait(t, demo.Service("Orders", "kafka"))
	assert.Equal("Orders", fallback.Data.Name)

	missing := wait(t, demo.Service("nope", "http"))
	assert.Nil(missing.Data)
	assert.Contains(missing.Error, "not found")

	mb := wait(t, demo.Mailbox("Mail", "alice"))
	assert.Equal(1, mb.Data.NumMessages)
	msgs := wait(t, demo.MailboxMessages("Mail", "alice"))
	assert.Equal("m1", msgs.Data[0].MessageID)

	cfg := wait(t, demo.ConfigData("c1"))
	assert.Equal("openapi: 3.0.0", cfg.Data)

	ex := wait(t, demo.Example(datasource.ExampleRequest{Name: "Pet"}))
	assert.Equal(`{"name":"rex"}`, ex.Data[0].Value)

	assert.Equal("data:text/plain;base64,bm90ZXM=", demo.AttachmentURL("m1", "note.txt"))
	assert.Equal("", demo.AttachmentURL("m1", "missing.txt"))
}

func TestDemoSnapshotFailure(t *testing.T) {
	e := newEnv(t, 0)
	demo := datasource.NewDemo(e.cache, e.exec, "/missing.json")
	defer demo.Close()

	v := demo.Services("")
	defer v.Close()
	val := wait(t, v)
	assert.Nil(t, val.Data)
	assert.Contains(t, val.Error, "404")
	assert.Equal(t, "", demo.AttachmentURL("m1", "note.txt"))
}

func TestDemoRecoversFromFailedLoad(t *testing.T) {
	assert := assert.New(t)
	e := newEnv(t, 0)
	e.fail(true)
	demo := datasource.NewDemo(e.cache, e.exec, datasource.DefaultSnapshotPath)
	defer demo.Close()

	v := demo.Services("kafka")
	defer v.Close()
	assert.Contains(wait(t, v).Error, "503")

	// a new view retries the failed load
	e.fail(false)
	v2 := demo.Services("http")
	defer v2.Close()
	assert.Equal([]string{"petstore"}, names(wait(t, v2).Data))
	assert.Equal([]string{"audit", "billing", "Orders"}, names(v.State().Data))
	assert.Equal(int64(2), e.requests(datasource.DefaultSnapshotPath))

	// a loaded snapshot is never refetched
	v.Refresh()
	wait(t, v)
	assert.Equal(int64(2), e.requests(datasource.DefaultSnapshotPath))
}

func TestDemoRefreshRetriesFailedLoad(t *testing.T) {
	assert := assert.New(t)
	e := newEnv(t, 0)
	e.fail(true)
	demo := datasource.NewDemo(e.cache, e.exec, datasource.DefaultSnapshotPath)
	defer demo.Close()

	v := demo.Event("3")
	defer v.Close()
	val := wait(t, v)
	assert.Nil(val.Data)
	assert.Contains(val.Error, "503")

	e.fail(false)
	v.Refresh()
	val = wait(t, v)
	assert.Empty(val.Error)
	assert.Equal("3", val.Data.ID)
	assert.Equal("", demo.AttachmentURL("m1", "missing.txt"))
	assert.NotEmpty(demo.AttachmentURL("m1", "note.txt"))
}

func TestLiveServiceWithoutType(t *testing.T) {
	assert := assert.New(t)
	e := newEnv(t, 0)
	live := datasource.NewLive(e.cache, e.exec, e.setting)

	v := live.Service("petstore", "")
	defer v.Close()
	assert.Equal("/api/services", v.Key())
	val := wait(t, v)
	assert.Empty(val.Error)
	assert.Equal("http", val.Data.Type)

	missing := live.Service("nope", "")
	defer missing.Close()
	assert.Contains(wait(t, missing).Error, "not found")
}

func TestLiveAndDemoAgree(t *testing.T) {
	e := newEnv(t, 0)
	live := datasource.NewLive(e.cache, e.exec, e.setting)
	demo := datasource.NewDemo(e.cache, e.exec, datasource.DefaultSnapshotPath)
	defer demo.Close()

	sources := map[string]datasource.Source{"live": live, "demo": demo}
	results := map[string][]string{}
	for name, s := range sources {
		results[name] = []string{
			toJSON(t, wait(t, s.Services("kafka"))),
			toJSON(t, wait(t, s.Events("mail", datasource.Trait{Name: "namespace", Value: "mail"}))),
			toJSON(t, wait(t, s.Events("mail", datasource.Trait{Name: "namespace", Value: "kafka"}))),
			toJSON(t, wait(t, s.Events("kafka", datasource.Trait{Name: "topic", Value: "orders"}))),
			toJSON(t, wait(t, s.Event("3"))),
			toJSON(t, wait(t, s.Metrics("kafka_"))),
			toJSON(t, wait(t, s.Service("petstore", "http"))),
			toJSON(t, wait(t, s.Service("petstore", ""))),
			toJSON(t, wait(t, s.Service("Orders", ""))),
			toJSON(t, wait(t, s.Service("nope", ""))),
			toJSON(t, wait(t, s.Mailbox("Mail", "alice"))),
			toJSON(t, wait(t, s.MailboxMessages("Mail", "alice"))),
			toJSON(t, wait(t, s.Mail("m1"))),
			toJSON(t, wait(t, s.Example(datasource.ExampleRequest{Name: "Pet"}))),
			toJSON(t, wait(t, s.Configs())),
			toJSON(t, wait(t, s.Config("c1"))),
			toJSON(t, wait(t, s.ConfigData("c1"))),
		}
	}

	assert.Equal(t, results["demo"], results["live"])
}

func TestParseModeAndOpen(t *testing.T) {
	assert := assert.New(t)
	e := newEnv(t, 0)

	m, err := datasource.ParseMode(" Demo ")
	require.NoError(t, err)
	assert.Equal(datasource.ModeDemo, m)

	_, err = datasource.ParseMode("offline")
	assert.Equal(datasource.ErrUnknownMode, errors.Cause(err))

	s, err := datasource.Open(datasource.SourceConfig{Mode: datasource.ModeLive}, e.cache, e.exec, e.setting)
	require.NoError(t, err)
	assert.IsType(&datasource.Live{}, s)

	s, err = datasource.Open(datasource.SourceConfig{Mode: datasource.ModeDemo}, e.cache, e.exec, e.setting)
	require.NoError(t, err)
	assert.IsType(&datasource.Demo{}, s)
	s.Close()

	_, err = datasource.Open(datasource.SourceConfig{}, e.cache, e.exec, e.setting)
	assert.Equal(datasource.ErrUnknownMode, errors.Cause(err))
}
