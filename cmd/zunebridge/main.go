package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	zune "github.com/kjarmicki/zunebridge/src"
)

func ipToBytes(s string) ([4]byte, error) {
	var out [4]byte
	var ip = net.ParseIP(s)
	if ip == nil {
		return out, fmt.Errorf("invalid IP address %q", s)
	}
	var v4 = ip.To4()
	if v4 == nil {
		return out, fmt.Errorf("%q is not an IPv4 address", s)
	}
	copy(out[:], v4)
	return out, nil
}

func main() {
	var configFileName = pflag.StringP("config-file", "c", "", "YAML configuration file.")
	var verbose = pflag.BoolP("verbose", "v", false, "Enable debug logging.")
	var printVersion = pflag.BoolP("version", "V", false, "Print version and exit.")
	var announceName = pflag.StringP("announce-name", "n", "zunebridge", "mDNS instance name to announce the bridge under.")
	var announcePort = pflag.IntP("announce-port", "p", 0, "Port to announce over mDNS. 0 disables announcing.")

	var cfg = zune.DefaultConfig()
	cfg.BindFlags(pflag.CommandLine)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "zunebridge - MTP/PPP bridge for Zune-family devices.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: zunebridge [options]\n\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *printVersion {
		zune.PrintVersion(*verbose)
		os.Exit(0)
	}

	if *configFileName != "" {
		var fileCfg, err = zune.LoadConfig(*configFileName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "zunebridge: %v\n", err)
			os.Exit(1)
		}
		var cliValues = make(map[string]string)
		pflag.Visit(func(f *pflag.Flag) { cliValues[f.Name] = f.Value.String() })
		cfg = fileCfg
		for name, value := range cliValues {
			pflag.Set(name, value) // re-apply so CLI flags win over the file
		}
	}

	cfg.ApplyDeviceIDOverrides()

	var logLevel = log.InfoLevel
	if *verbose {
		logLevel = log.DebugLevel
	}
	var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "zunebridge", ReportTimestamp: true})
	logger.SetLevel(logLevel)

	var ctx, cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var deviceIP, deviceIPErr = ipToBytes(cfg.DeviceIP)
	if deviceIPErr != nil {
		logger.Fatal("bad device-ip", "err", deviceIPErr)
	}
	var hostIP, hostIPErr = ipToBytes(cfg.HostIP)
	if hostIPErr != nil {
		logger.Fatal("bad host-ip", "err", hostIPErr)
	}
	var dnsIP, dnsIPErr = ipToBytes(cfg.DNSIP)
	if dnsIPErr != nil {
		logger.Fatal("bad dns-ip", "err", dnsIPErr)
	}

	var persisted = &zune.PersistedState{
		PairingGUIDPath: cfg.PairingGUIDPath,
		SessionGUIDPath: cfg.SessionGUIDPath,
		Logger:          logger.WithPrefix("pairing"),
	}
	var pairingGUID = persisted.PairingGUID()
	if pairingGUID == "" || zune.IsNullGUID(pairingGUID) {
		logger.Info("no prior pairing on record; device will request pairing on first connect")
	} else {
		logger.Info("resuming with existing pairing", "guid", pairingGUID)
	}

	if *announcePort > 0 {
		go func() {
			if err := zune.Announce(ctx, *announceName, *announcePort); err != nil {
				logger.Warn("mDNS announce stopped", "err", err)
			}
		}()
	}

	if !cfg.NetworkModeEnabled {
		logger.Info("network mode disabled; waiting on USB attach/retrofit flow only")
		<-ctx.Done()
		return
	}

	logger.Info("zunebridge started", "device-ip", deviceIP, "host-ip", hostIP, "dns-ip", dnsIP)

	// A real deployment plugs a USB/MTP Session implementation in here once
	// network mode is requested; wiring that transport is external to this
	// package (see mtpsession.go's Session doc comment). cmd/devicesim
	// exercises the rest of the stack against a simulated device instead.
	logger.Fatal("no MTP transport wired; run cmd/devicesim to exercise the network stack without hardware")
}
