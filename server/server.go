// Package server serves a dashboard snapshot both as demo document and as backend API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"

	"github.com/chrisvdg/dashcache/datasource"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// New creates a new server instance serving the snapshot file of c
func New(c *Config) (*Server, error) {
	if c.SnapshotFile == "" {
		return nil, errors.New("No snapshot file provided")
	}

	snap, err := readSnapshot(c.SnapshotFile)
	if err != nil {
		return nil, err
	}

	s := NewFromSnapshot(snap)
	s.c = c

	return s, nil
}

// NewFromSnapshot creates a server instance serving snap
func NewFromSnapshot(snap *datasource.Snapshot) *Server {
	s := &Server{
		c: &Config{TLS: &TLSConfig{}},
		m: &sync.RWMutex{},
	}
	s.SetSnapshot(snap)

	return s
}

// Server represents a server instance
type Server struct {
	c    *Config
	m    *sync.RWMutex
	snap *datasource.Snapshot
}

// readSnapshot reads a snapshot document from disk
func readSnapshot(path string) (*datasource.Snapshot, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read snapshot file")
	}

	snap := &datasource.Snapshot{}
	err = json.Unmarshal(data, snap)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse snapshot file")
	}

	return snap, nil
}

// SetSnapshot replaces the served snapshot
func (s *Server) SetSnapshot(snap *datasource.Snapshot) {
	s.m.Lock()
	s.snap = snap
	s.m.Unlock()
}

func (s *Server) snapshot() *datasource.Snapshot {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.snap
}

// Handler returns the router serving the snapshot and the API
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	h := newHandlers(s.snapshot)

	r.HandleFunc(datasource.DefaultSnapshotPath, h.SnapshotHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/services", h.ServicesHandler).Methods("GET")
	api.HandleFunc("/services/mail/messages/{id}", h.MailHandler).Methods("GET")
	api.HandleFunc("/services/mail/messages/{id}/attachments/{name}", h.AttachmentHandler).Methods("GET")
	api.HandleFunc("/services/mail/{service}/mailboxes/{name}", h.MailboxHandler).Methods("GET")
	api.HandleFunc("/services/mail/{service}/mailboxes/{name}/messages", h.MailboxMessagesHandler).Methods("GET")
	api.HandleFunc("/services/{type}/{name}", h.ServiceHandler).Methods("GET")
	api.HandleFunc("/events", h.EventsHandler).Methods("GET")
	api.HandleFunc("/events/{id}", h.EventHandler).Methods("GET")
	api.HandleFunc("/metrics", h.MetricsHandler).Methods("GET")
	api.HandleFunc("/schema/example", h.ExampleHandler).Methods("POST")
	api.HandleFunc("/configs", h.ConfigsHandler).Methods("GET")
	api.HandleFunc("/configs/{id}", h.ConfigHandler).Methods("GET")
	api.HandleFunc("/configs/{id}/data", h.ConfigDataHandler).Methods("GET")

	if s.c.Verbose {
		r.Use(logRequests)
	}

	return r
}

// ListenAndServe listens for new requests and serves them
func (s *Server) ListenAndServe() {
	r := s.Handler()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tlsEnabled := s.c.TLS != nil && s.c.TLS.CertFile != "" && s.c.TLS.KeyFile != ""
	if !s.c.TLSOnly {
		go listenAndServe(ctx, cancel, s.c.ListenAddr, r)
	}

	if tlsEnabled {
		go listenAndServeTLS(ctx, cancel, s.c.TLSListenAddr, s.c.TLS, r)
	}

	<-ctx.Done()
}

// listenAndServe serves a plain http webserver
func listenAndServe(ctx context.Context, cancel func(), addr string, handler http.Handler) {
	defer cancel()
	addrStr := getAddrString(addr)
	log.Infof("http server listening on: http://%s\n", addrStr)
	log.Error(http.ListenAndServe(addr, handler))
}

// listenAndServeTLS serves a tls webserver
func listenAndServeTLS(ctx context.Context, cancel func(), addr string, tls *TLSConfig, handler http.Handler) {
	defer cancel()
	addrStr := getAddrString(addr)
	log.Infof("https server listening on: https://%s\n", addrStr)
	log.Error(http.ListenAndServeTLS(addr, tls.CertFile, tls.KeyFile, handler))
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		log.Debugf("%s %s", req.Method, req.URL.RequestURI())
		next.ServeHTTP(res, req)
	})
}

func getAddrString(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = fmt.Sprintf("0.0.0.0%s", addr)
	}
	return addr
}
