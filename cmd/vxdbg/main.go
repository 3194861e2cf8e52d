package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vortex-riscv/vxdbg/pkg/config"
	"github.com/vortex-riscv/vxdbg/pkg/dm"
	"github.com/vortex-riscv/vxdbg/pkg/engine"
	"github.com/vortex-riscv/vxdbg/pkg/logflags"
	"github.com/vortex-riscv/vxdbg/pkg/rsp"
	"github.com/vortex-riscv/vxdbg/pkg/transport"
)

var (
	configPath    string
	transportAddr string
	gdbPort       int
	logWire       bool
)

func main() {
	rootCommand := &cobra.Command{
		Use:   "vxdbg",
		Short: "vxdbg bridges GDB to a Vortex GPGPU debug transport over the RSP protocol.",
		RunE:  run,
	}
	rootCommand.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file.")
	rootCommand.Flags().StringVarP(&transportAddr, "transport-addr", "t", "", "host:port of the on-target debug transport (overrides config).")
	rootCommand.Flags().IntVarP(&gdbPort, "gdb-port", "p", 0, "TCP port the GDB RSP stub listens on (overrides config).")
	rootCommand.Flags().BoolVarP(&logWire, "log", "", false, "Enable wire-level logging for every subsystem.")

	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("vxdbg: %w", err)
	}
	if transportAddr != "" {
		cfg.TransportAddr = transportAddr
	}
	if gdbPort != 0 {
		cfg.GDBPort = gdbPort
	}
	logflags.Setup(
		logWire || cfg.LogDMWire,
		logWire || cfg.LogTransport,
		logWire || cfg.LogEngine,
		logWire || cfg.LogRSP,
	)

	t := transport.NewTCPTransport(msToDuration(cfg.TransportTimeoutMS))
	host, port, err := splitAddr(cfg.TransportAddr)
	if err != nil {
		return fmt.Errorf("vxdbg: %w", err)
	}
	if err := t.Connect(map[string]string{"ip": host, "port": port}); err != nil {
		return fmt.Errorf("vxdbg: connecting to transport %s: %w", cfg.TransportAddr, err)
	}
	defer t.Disconnect()

	access := dm.New(t)
	eng := engine.New(access, engine.Config{
		PollRetries:     cfg.PollRetries,
		PollDelay:       msToDuration(cfg.PollDelayMS),
		WakeDMRetries:   cfg.WakeDMRetries,
		ContinueTimeout: 0,
	})
	if err := eng.Initialize(); err != nil {
		return fmt.Errorf("vxdbg: initializing engine: %w", err)
	}

	server := rsp.NewServer(eng, rsp.Config{
		Port:            cfg.GDBPort,
		ContinueTimeout: 0,
		AllowReconnect:  true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx)
	})
	g.Go(func() error {
		// On shutdown, leave the target running rather than halted so a
		// killed vxdbg process doesn't strand the warps mid-debug.
		<-gctx.Done()
		if err := eng.ResumeAllWarps(); err != nil {
			return fmt.Errorf("vxdbg: resuming warps on shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func splitAddr(addr string) (host, port string, err error) {
	idx := -1
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", "", fmt.Errorf("malformed address %q, want host:port", addr)
	}
	return addr[:idx], addr[idx+1:], nil
}
