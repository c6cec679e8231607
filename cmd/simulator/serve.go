package main

import (
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/config"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/device"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/events"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/faultsim"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/handlers"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/httpapi"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/pset"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/scheduler"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/server"
)

const eventBusCapacity = events.DefaultCapacity

var (
	tcpPort        int
	httpPort       int
	bindAddress    string
	cellID         uint32
	channelID      uint32
	controllerName string
	supplierCode   string
	dbPath         string
	connHealth     uint8
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the TCP and HTTP/WebSocket simulator surfaces",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&tcpPort, "tcp-port", 0, "TCP port for the Open Protocol wire surface (0: use config/default)")
	serveCmd.Flags().IntVar(&httpPort, "http-port", 0, "HTTP port for the control/WebSocket surface (0: use config/default)")
	serveCmd.Flags().StringVar(&bindAddress, "bind-address", "", "Bind address (empty: use config/default)")
	serveCmd.Flags().Uint32Var(&cellID, "cell-id", 0, "Controller cell id (0: use config/default)")
	serveCmd.Flags().Uint32Var(&channelID, "channel-id", 0, "Controller channel id (0: use config/default)")
	serveCmd.Flags().StringVar(&controllerName, "controller-name", "", "Controller name (empty: use config/default)")
	serveCmd.Flags().StringVar(&supplierCode, "supplier-code", "", "Supplier code (empty: use config/default)")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "SQLite PSET database path (empty: use in-memory PSET repository)")
	serveCmd.Flags().Uint8Var(&connHealth, "connection-health", 100, "Connection health 0-100 driving fault simulation (100: perfect)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	applyFlagOverrides(cmd, &cfg)

	psets, err := openPsetRepository(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	state := device.NewWithIdentity(cfg.CellID, cfg.ChannelID, cfg.ControllerName, cfg.SupplierCode)
	bus := events.New(eventBusCapacity)
	obs := device.NewObservable(state, bus)

	faultCfg := faultsim.FromHealth(connHealth)
	sim := faultsim.New(faultCfg)
	obs.AttachSimulator(sim)

	registry := handlers.NewDefaultRegistry()
	hctx := &handlers.Context{Observable: obs, Psets: psets}

	sched := scheduler.New(obs, psets)

	tcpAddr := net.JoinHostPort(cfg.BindAddress, fmt.Sprint(cfg.TCPPort))
	httpAddr := net.JoinHostPort(cfg.BindAddress, fmt.Sprint(cfg.HTTPPort))

	tcpSrv := server.New(tcpAddr, registry, hctx, sim)
	api := &httpapi.API{Observable: obs, Psets: psets, Scheduler: sched}
	httpSrv := &http.Server{Addr: httpAddr, Handler: api.NewMux()}

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		if err := tcpSrv.Start(); err != nil {
			return fmt.Errorf("tcp server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		_ = tcpSrv.Stop()
		_ = httpSrv.Close()
		sched.Stop()
		return nil
	})

	fmt.Fprintf(os.Stderr, "simulator: listening tcp=%s http=%s\n", tcpAddr, httpAddr)
	return g.Wait()
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("tcp-port") {
		cfg.TCPPort = tcpPort
	}
	if cmd.Flags().Changed("http-port") {
		cfg.HTTPPort = httpPort
	}
	if cmd.Flags().Changed("bind-address") {
		cfg.BindAddress = bindAddress
	}
	if cmd.Flags().Changed("cell-id") {
		cfg.CellID = cellID
	}
	if cmd.Flags().Changed("channel-id") {
		cfg.ChannelID = channelID
	}
	if cmd.Flags().Changed("controller-name") {
		cfg.ControllerName = controllerName
	}
	if cmd.Flags().Changed("supplier-code") {
		cfg.SupplierCode = supplierCode
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = dbPath
	}
}

func openPsetRepository(dbPath string) (pset.Repository, error) {
	if dbPath == "" {
		return pset.NewInMemoryRepository(), nil
	}
	return pset.NewSqliteRepository(dbPath)
}
