package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/chrisvdg/dashcache/datasource"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func newHandlers(snapshot func() *datasource.Snapshot) *handlers {
	return &handlers{snapshot: snapshot}
}

type handlers struct {
	snapshot func() *datasource.Snapshot
}

func writeJSON(res http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Errorf("failed to marshal response: %s", err)
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	res.Header().Set("Content-Type", "application/json")
	res.Write(data)
}

func writeError(res http.ResponseWriter, err error) {
	if errors.Cause(err) == datasource.ErrNotFound {
		http.Error(res, err.Error(), http.StatusNotFound)
		return
	}
	log.Errorf("request failed: %s", err)
	http.Error(res, err.Error(), http.StatusInternalServerError)
}

func (h *handlers) SnapshotHandler(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, h.snapshot())
}

func (h *handlers) ServicesHandler(res http.ResponseWriter, req *http.Request) {
	services := h.snapshot().Services
	if services == nil {
		services = []datasource.Service{}
	}
	writeJSON(res, services)
}

func (h *handlers) ServiceHandler(res http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	snap := h.snapshot()
	key := datasource.ServiceKey(vars["type"], vars["name"])
	if svc, ok := snap.ServiceDetails[key]; ok {
		writeJSON(res, svc)
		return
	}
	svc, err := datasource.FindService(snap.Services, vars["name"], vars["type"])
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, svc)
}

func (h *handlers) EventsHandler(res http.ResponseWriter, req *http.Request) {
	namespace, traits := datasource.ParseTraits(req.URL.Query())
	writeJSON(res, datasource.FilterEvents(h.snapshot().Events, namespace, traits...))
}

func (h *handlers) EventHandler(res http.ResponseWriter, req *http.Request) {
	e, err := datasource.FindEvent(h.snapshot().Events, mux.Vars(req)["id"])
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, e)
}

func (h *handlers) MetricsHandler(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, datasource.FilterMetrics(h.snapshot().Metrics, req.URL.Query().Get("q")))
}

func (h *handlers) mailbox(req *http.Request) (*datasource.MailboxSnapshot, error) {
	vars := mux.Vars(req)
	key := datasource.MailboxKey(vars["service"], vars["name"])
	mb, ok := h.snapshot().Mailboxes[key]
	if !ok {
		return nil, errors.Wrapf(datasource.ErrNotFound, "mailbox %s", key)
	}
	return &mb, nil
}

func (h *handlers) MailboxHandler(res http.ResponseWriter, req *http.Request) {
	mb, err := h.mailbox(req)
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, mb.Mailbox)
}

func (h *handlers) MailboxMessagesHandler(res http.ResponseWriter, req *http.Request) {
	mb, err := h.mailbox(req)
	if err != nil {
		writeError(res, err)
		return
	}
	messages := mb.Messages
	if messages == nil {
		messages = []datasource.MessageInfo{}
	}
	writeJSON(res, messages)
}

func (h *handlers) MailHandler(res http.ResponseWriter, req *http.Request) {
	m, err := datasource.FindMail(h.snapshot().Mails, mux.Vars(req)["id"])
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, m)
}

func (h *handlers) AttachmentHandler(res http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	m, err := datasource.FindMail(h.snapshot().Mails, vars["id"])
	if err != nil {
		writeError(res, err)
		return
	}
	for _, a := range m.Data.Attachments {
		if a.Name != vars["name"] {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(a.Data)
		if err != nil {
			writeError(res, errors.Wrap(err, "failed to decode attachment"))
			return
		}
		res.Header().Set("Content-Type", a.ContentType)
		res.Write(data)
		return
	}
	writeError(res, errors.Wrapf(datasource.ErrNotFound, "attachment %s", vars["name"]))
}

func (h *handlers) ExampleHandler(res http.ResponseWriter, req *http.Request) {
	r := datasource.ExampleRequest{}
	err := json.NewDecoder(req.Body).Decode(&r)
	if err != nil {
		http.Error(res, "invalid example request: "+err.Error(), http.StatusBadRequest)
		return
	}
	examples, ok := h.snapshot().Examples[r.Name]
	if !ok {
		writeError(res, errors.Wrapf(datasource.ErrNotFound, "example %s", r.Name))
		return
	}
	writeJSON(res, examples)
}

func (h *handlers) ConfigsHandler(res http.ResponseWriter, req *http.Request) {
	configs := h.snapshot().Configs
	if configs == nil {
		configs = []datasource.Config{}
	}
	writeJSON(res, configs)
}

func (h *handlers) ConfigHandler(res http.ResponseWriter, req *http.Request) {
	c, err := datasource.FindConfig(h.snapshot().Configs, mux.Vars(req)["id"])
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, c)
}

func (h *handlers) ConfigDataHandler(res http.ResponseWriter, req *http.Request) {
	c, err := datasource.FindConfig(h.snapshot().Configs, mux.Vars(req)["id"])
	if err != nil {
		writeError(res, err)
		return
	}
	res.Header().Set("Content-Type", "text/plain; charset=utf-8")
	res.Write([]byte(c.Data))
}
