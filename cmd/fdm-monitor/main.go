// Command fdm-monitor receives FlightGear native FDM packets and shows them
// as a live terminal readout. It can also record sessions to SQLite, relay
// packets to another host and serve the latest record over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/netfdm/internal/config"
	"github.com/banshee-data/netfdm/internal/db"
	"github.com/banshee-data/netfdm/internal/display"
	"github.com/banshee-data/netfdm/internal/fdm"
	"github.com/banshee-data/netfdm/internal/ingest"
	"github.com/banshee-data/netfdm/internal/monitor"
	"github.com/banshee-data/netfdm/internal/monitoring"
	"github.com/banshee-data/netfdm/internal/units"
	"github.com/banshee-data/netfdm/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to a JSON receiver config file")
	showVersion = flag.Bool("version", false, "Print version and exit")

	udpAddress   = flag.String("listen", config.DefaultUDPAddress, "UDP address to receive FDM packets on")
	rcvBuf       = flag.Int("rcvbuf", config.DefaultRcvBuf, "UDP receive buffer size in bytes")
	logInterval  = flag.Duration("log-interval", config.DefaultLogInterval, "Interval between packet statistics log lines")
	debugPackets = flag.Int("debug-packets", 0, "Hex dump the first N packets")

	pcapFile     = flag.String("pcap", "", "Replay FDM packets from a pcap/pcapng capture instead of listening")
	pcapRealtime = flag.Bool("pcap-realtime", false, "Pace pcap replay by capture timestamps")
	pcapSpeed    = flag.Float64("pcap-speed", 1.0, "Playback speed multiplier for -pcap-realtime")

	serialPort = flag.String("serial", "", "Read FDM frames from a serial device instead of listening")
	serialBaud = flag.Int("baud", config.DefaultSerialBaud, "Serial baud rate")

	forwardAddress = flag.String("forward", "", "Relay raw packets to host:port")

	showDisplay = flag.Bool("display", true, "Show the live terminal readout")
	refresh     = flag.Duration("refresh", config.DefaultRefresh, "Minimum time between display redraws")
	speedUnits  = flag.String("units", units.KT, "Airspeed units for verbose display ("+units.GetValidUnitsString()+")")
	verbose     = flag.Bool("verbose", false, "Show airspeed, engines, gear and controls")

	record      = flag.Bool("record", false, "Record decoded packets to SQLite")
	dbPath      = flag.String("db", config.DefaultDBPath, "SQLite database path for -record")
	httpListen  = flag.String("http", config.DefaultHTTPListen, "HTTP listen address; empty disables the web server")
	historySize = flag.Int("history", config.DefaultHistorySize, "Number of recent records kept for the altitude chart")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("fdm-monitor"))
		return
	}

	cfg, err := buildConfig(*configFile, setFlags())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, sourceOptions{
		pcapFile:     *pcapFile,
		pcapRealtime: *pcapRealtime,
		pcapSpeed:    *pcapSpeed,
	}); err != nil {
		if errors.Is(err, fdm.ErrLayoutInvariant) {
			log.Fatalf("FDM decoder is broken, stopping: %v", err)
		}
		log.Fatalf("fdm-monitor: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

// setFlags returns the names of the flags given on the command line.
func setFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// buildConfig loads path (if any) and lets every explicitly set flag
// override the file.
func buildConfig(path string, set map[string]bool) (*config.ReceiverConfig, error) {
	cfg := config.DefaultReceiverConfig()
	if path != "" {
		loaded, err := config.LoadReceiverConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if set["listen"] {
		cfg.UDPAddress = udpAddress
	}
	if set["rcvbuf"] {
		cfg.RcvBuf = rcvBuf
	}
	if set["log-interval"] {
		s := logInterval.String()
		cfg.LogInterval = &s
	}
	if set["debug-packets"] {
		cfg.DebugPackets = debugPackets
	}
	if set["serial"] {
		cfg.SerialPort = serialPort
	}
	if set["baud"] {
		cfg.SerialBaud = serialBaud
	}
	if set["forward"] {
		cfg.ForwardAddress = forwardAddress
	}
	if set["display"] {
		cfg.Display = showDisplay
	}
	if set["refresh"] {
		s := refresh.String()
		cfg.Refresh = &s
	}
	if set["units"] {
		cfg.SpeedUnits = speedUnits
	}
	if set["verbose"] {
		cfg.Verbose = verbose
	}
	if set["record"] {
		cfg.Record = record
	}
	if set["db"] {
		cfg.DBPath = dbPath
	}
	if set["http"] {
		cfg.HTTPListen = httpListen
	}
	if set["history"] {
		cfg.HistorySize = historySize
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

type sourceOptions struct {
	pcapFile     string
	pcapRealtime bool
	pcapSpeed    float64
}

// run wires the sinks, starts the optional forwarder and web server, and
// blocks on the packet source until ctx is cancelled or the source ends.
func run(ctx context.Context, cfg *config.ReceiverConfig, src sourceOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	source := cfg.GetUDPAddress()
	switch {
	case src.pcapFile != "":
		source = src.pcapFile
	case cfg.GetSerialPort() != "":
		source = cfg.GetSerialPort()
	}

	stats := ingest.NewPacketStats()
	store := monitor.NewStore(cfg.GetHistorySize())
	sinks := ingest.MultiSink{store}

	if cfg.GetDisplay() {
		// Log lines would tear the redrawn screen.
		restore := monitoring.Mute()
		defer restore()
		sinks = append(sinks, display.NewTerminal(os.Stdout, display.Options{
			Verbose:   cfg.GetVerbose(),
			SpeedUnit: cfg.GetSpeedUnits(),
		}, cfg.GetRefresh()))
	}

	var database *db.DB
	if cfg.GetRecord() {
		var err error
		database, err = db.NewDB(cfg.GetDBPath())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		recorder := db.NewRecorder(database, source)
		defer func() {
			if err := recorder.Close(); err != nil {
				log.Printf("failed to close recording session: %v", err)
			}
		}()
		sinks = append(sinks, recorder)
	}

	var forwarder ingest.Forwarder
	if addr := cfg.GetForwardAddress(); addr != "" {
		fwd, err := ingest.NewPacketForwarder(addr, stats, cfg.GetLogInterval())
		if err != nil {
			return err
		}
		fwd.Start(ctx)
		defer fwd.Close()
		forwarder = fwd
	}

	handler := ingest.NewHandler(ingest.HandlerConfig{
		Sink:         sinks,
		Stats:        stats,
		Forwarder:    forwarder,
		DebugPackets: cfg.GetDebugPackets(),
	})

	var wg sync.WaitGroup
	if addr := cfg.GetHTTPListen(); addr != "" {
		ws := monitor.NewWebServer(monitor.WebServerConfig{
			Address: addr,
			Store:   store,
			Stats:   stats,
			DB:      database,
			Source:  source,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(ctx); err != nil {
				log.Printf("web server: %v", err)
			}
		}()
	}
	defer wg.Wait()
	defer cancel()

	err := readSource(ctx, cfg, src, handler)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readSource runs exactly one packet source: pcap replay, serial, or UDP.
func readSource(ctx context.Context, cfg *config.ReceiverConfig, src sourceOptions, h *ingest.Handler) error {
	switch {
	case src.pcapFile != "":
		port, err := udpPort(cfg.GetUDPAddress())
		if err != nil {
			return err
		}
		go logStats(ctx, h.Stats(), cfg.GetLogInterval())
		err = ingest.ReadPCAPFile(ctx, src.pcapFile, ingest.PCAPOptions{
			Port:     port,
			Realtime: src.pcapRealtime,
			Speed:    src.pcapSpeed,
		}, h)
		if err == nil {
			h.Stats().LogStats()
		}
		return err

	case cfg.GetSerialPort() != "":
		port, err := ingest.OpenSerial(cfg.GetSerialPort(), cfg.GetSerialBaud())
		if err != nil {
			return err
		}
		reader := ingest.NewSerialReader(port, cfg.GetSerialPort(), h)
		defer reader.Close()
		go logStats(ctx, h.Stats(), cfg.GetLogInterval())
		return reader.Start(ctx)

	default:
		listener := ingest.NewUDPListener(ingest.UDPListenerConfig{
			Address:     cfg.GetUDPAddress(),
			RcvBuf:      cfg.GetRcvBuf(),
			LogInterval: cfg.GetLogInterval(),
			Handler:     h,
		})
		defer listener.Close()
		return listener.Start(ctx)
	}
}

// udpPort extracts the port pcap replay filters on from a listen address.
func udpPort(address string) (int, error) {
	_, p, err := net.SplitHostPort(address)
	if err != nil {
		return 0, fmt.Errorf("invalid UDP address %q: %w", address, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("invalid UDP port %q: %w", p, err)
	}
	return port, nil
}

func logStats(ctx context.Context, stats *ingest.PacketStats, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats.LogStats()
		}
	}
}
