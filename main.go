package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chrisvdg/dashcache/cache"
	"github.com/chrisvdg/dashcache/datasource"
	"github.com/chrisvdg/dashcache/fetch"
	"github.com/chrisvdg/dashcache/scheduler"
	"github.com/chrisvdg/dashcache/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const usage = `usage: dashcache <command> [flags]

commands:
  serve   serve a dashboard snapshot as demo document and backend API
  watch   watch services and events through the shared resource cache
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = serve(os.Args[2:])
	case "watch":
		err = watch(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func serve(args []string) error {
	flags := pflag.NewFlagSet("serve", pflag.ExitOnError)
	listAddr := flags.StringP("listenaddr", "l", ":8080", "http listen address")
	tlsListAddr := flags.StringP("tlsaddr", "t", ":8443", "https listen address")
	tlsKey := flags.StringP("tlskey", "k", "", "TLS private key file path")
	tlsCert := flags.StringP("tlscert", "c", "", "TLS certificate file path")
	tlsOnly := flags.BoolP("tlsonly", "s", false, "Only serve TLS")
	snapshot := flags.StringP("snapshot", "f", "dashboard.json", "dashboard snapshot file")
	verbose := flags.BoolP("verbose", "v", false, "Verbose output")
	flags.Parse(args)

	setVerbose(*verbose)
	c := &server.Config{
		ListenAddr:    *listAddr,
		TLSListenAddr: *tlsListAddr,
		TLSOnly:       *tlsOnly,
		TLS: &server.TLSConfig{
			KeyFile:  *tlsKey,
			CertFile: *tlsCert,
		},
		Verbose:      *verbose,
		SnapshotFile: *snapshot,
	}

	s, err := server.New(c)
	if err != nil {
		return err
	}

	s.ListenAndServe()
	return nil
}

func watch(args []string) error {
	flags := pflag.NewFlagSet("watch", pflag.ExitOnError)
	mode := flags.StringP("mode", "m", string(datasource.ModeLive), "data source mode, live or demo")
	baseURL := flags.StringP("url", "u", "http://localhost:8080", "backend base URL")
	snapshot := flags.String("snapshot", datasource.DefaultSnapshotPath, "demo snapshot path on the backend")
	refresh := flags.DurationP("refresh", "r", 0, "refresh interval, 0 disables refresh")
	typ := flags.String("type", "", "only watch services of this type")
	namespace := flags.StringP("namespace", "n", "", "also watch events of this namespace")
	timeout := flags.Duration("timeout", 10*time.Second, "timeout of a single request")
	verbose := flags.BoolP("verbose", "v", false, "Verbose output")
	flags.Parse(args)

	setVerbose(*verbose)
	m, err := datasource.ParseMode(*mode)
	if err != nil {
		return err
	}

	client, err := fetch.NewHTTPClient(*timeout)
	if err != nil {
		return err
	}
	exec, err := fetch.NewExecutor(*baseURL, client)
	if err != nil {
		return err
	}

	setting := scheduler.NewSetting(*refresh)
	sched := scheduler.New(setting)
	c := cache.New(sched, cache.WithFetchTimeout(*timeout))
	defer c.DisposeAll()

	src, err := datasource.Open(datasource.SourceConfig{Mode: m, SnapshotPath: *snapshot}, c, exec, setting)
	if err != nil {
		return err
	}
	defer src.Close()

	services := src.Services(*typ)
	defer services.Close()
	report := func(v datasource.Value[[]datasource.Service]) {
		switch {
		case v.IsLoading:
			log.Debugf("loading services")
		case v.Error != "":
			log.Errorf("services: %s", v.Error)
		default:
			for _, s := range v.Data {
				log.Infof("service %s (%s) %s", s.Name, s.Type, s.Version)
			}
		}
	}
	cancel := services.Subscribe(report)
	defer cancel()
	if v := services.State(); !v.IsLoading {
		report(v)
	}

	if *namespace != "" {
		events := src.Events(*namespace)
		defer events.Close()
		cancelEvents := events.Subscribe(func(v datasource.Value[[]datasource.Event]) {
			if v.IsLoading {
				return
			}
			if v.Error != "" {
				log.Errorf("events: %s", v.Error)
				return
			}
			log.Infof("%d events in namespace %s", len(v.Data), *namespace)
		})
		defer cancelEvents()
	}

	if setting.Enabled() {
		sched.Start()
		defer sched.Stop()
	}
	log.Infof("watching %s data source at %s, refresh %s", m, *baseURL, setting.Get())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	return nil
}

func setVerbose(verbose bool) {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}
