package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/personafy/personafy-core/internal/host"
	"github.com/personafy/personafy-core/internal/host/httpapi"
	"github.com/personafy/personafy-core/internal/hostconfig"
	"github.com/personafy/personafy-core/internal/maintenance"
	"github.com/personafy/personafy-core/internal/notify"
	"github.com/personafy/personafy-core/internal/notify/external"
	natstransport "github.com/personafy/personafy-core/internal/transport/nats"
	"github.com/personafy/personafy-core/internal/vaultlock"
)

func main() {
	configPath := flag.String("config", "personafy.yaml", "Host configuration file")
	port := flag.Int("port", 8420, "Admin HTTP API port")
	embedNats := flag.Bool("embed-nats", false, "Run a local-dev NATS broker embedded in this process")
	natsPort := flag.Int("nats-port", 4222, "Port for the embedded NATS broker, if enabled")
	flag.Parse()

	cfg, err := hostconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "creating state dir: %v\n", err)
		os.Exit(1)
	}

	lock, err := vaultlock.Acquire(cfg.StateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "another host already holds %s: %v\n", cfg.StateDir, err)
		os.Exit(1)
	}
	defer lock.Release()

	var webhookSink notify.WebhookSink
	if cfg.Notifications.WebhookURL != "" {
		webhookSink = external.NewWebhookNotifier(external.WebhookConfig{URL: cfg.Notifications.WebhookURL})
	}
	notifier := notify.NewManager(notify.Config{
		AppID:          cfg.Notifications.AppID,
		EnableToast:    cfg.Notifications.EnableToast,
		EnableTerminal: cfg.Notifications.EnableTerminal,
		Webhook:        webhookSink,
	})

	handle, err := host.LoadVault(cfg.StateDir, cfg.Passphrase, notifier)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading vault: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("vault loaded from %s\n", cfg.StateDir)

	var embedded *natstransport.EmbeddedServer
	var bridge *natstransport.Bridge
	if *embedNats {
		embedded, err = natstransport.NewEmbeddedServer(natstransport.EmbeddedServerConfig{Port: *natsPort})
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuring embedded nats: %v\n", err)
			os.Exit(1)
		}
		if err := embedded.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "starting embedded nats: %v\n", err)
			os.Exit(1)
		}
		defer embedded.Shutdown()
		fmt.Printf("embedded nats broker listening at %s\n", embedded.URL())

		bridge, err = natstransport.Connect(embedded.URL())
		if err != nil {
			fmt.Fprintf(os.Stderr, "connecting bridge to embedded nats: %v\n", err)
			os.Exit(1)
		}
		defer bridge.Stop()
		if err := bridge.Start(handle); err != nil {
			fmt.Fprintf(os.Stderr, "starting nats bridge: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("nats bridge serving ctx.*.request")
	}

	apiHandler := httpapi.NewHandler(handle)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: apiHandler.Router(),
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.ListenAndServe()
	}()
	fmt.Printf("admin api listening on :%d\n", *port)

	maintenanceTick := time.NewTicker(15 * time.Minute)
	defer maintenanceTick.Stop()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

runloop:
	for {
		select {
		case err := <-serverErr:
			if err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "admin api error: %v\n", err)
			}
			break runloop
		case <-maintenanceTick.C:
			summary := handle.MaintenanceSweep(time.Now().UnixMilli(), maintenance.Options{
				RetentionMs:   cfg.Retention.AuditRetentionMs,
				KeepApprovals: cfg.Retention.KeepApprovals,
			})
			fmt.Printf("maintenance sweep: %+v\n", summary)
		case <-shutdown:
			fmt.Println("shutting down (signal received)...")
			break runloop
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "admin api shutdown: %v\n", err)
	}

	if err := handle.SaveVault(cfg.StateDir, cfg.Passphrase); err != nil {
		fmt.Fprintf(os.Stderr, "saving vault: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("vault saved, goodbye")
}
