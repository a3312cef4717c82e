// Command someipd wires the runtime factory, netlink link supervisor,
// and gateway introspection surface into a runnable process, mirroring
// the teacher's examples/basic and examples/http wiring of pkg/network
// and pkg/gateway/http.
package main

import (
	"flag"
	"log/slog"
	"net"
	"os"

	"github.com/samsamfire/gosomeip/pkg/config"
	"github.com/samsamfire/gosomeip/pkg/gateway"
	"github.com/samsamfire/gosomeip/pkg/netlink"
	"github.com/samsamfire/gosomeip/pkg/runtime"
)

func main() {
	configPath := flag.String("c", "", "INI config file path (see pkg/config for recognized keys)")
	gatewayAddr := flag.String("gateway", "127.0.0.1:9000", "gateway introspection HTTP listen address")
	majorVersion := flag.Int("iface-major", 1, "default interface major version stamped by the runtime factory")
	flag.Parse()

	logger := slog.Default()

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Error("failed to load config", "path", *configPath, "err", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	rt := runtime.New(uint8(*majorVersion))
	name, correlationID := rt.RegisterApplication("someipd")
	logger.Info("registered application", "name", name, "correlationId", correlationID)

	registry := gateway.NewRegistry()
	registry.SetApplications(rt.Applications())

	listenAddr := cfg.ListenAddress
	if listenAddr == nil {
		listenAddr = net.ParseIP("127.0.0.1")
	}
	sup := netlink.New(netlink.Config{
		ListenAddress:    listenAddr,
		MulticastAddress: cfg.MulticastAddress,
		LinkRequired:     true,
	}, func(signal netlink.Signal, name string, available bool) {
		logger.Info("link signal transition", "signal", signal, "name", name, "available", available)
	})
	if err := sup.Start(); err != nil {
		logger.Error("netlink supervisor failed to start", "err", err)
		os.Exit(1)
	}
	defer sup.Stop()

	srv := gateway.NewServer(registry, logger)
	logger.Info("starting gateway introspection server", "addr", *gatewayAddr)
	if err := srv.ListenAndServe(*gatewayAddr); err != nil {
		logger.Error("gateway server exited", "err", err)
		os.Exit(1)
	}
}
