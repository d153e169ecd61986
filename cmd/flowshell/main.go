// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command flowshell runs the load-reactive flow control shell.
//
// Usage:
//
//	flowshell [flags] [serve]            run the controller and HTTP API
//	flowshell [flags] burst [amount]     ask a running shell for a traffic burst
//	flowshell [flags] replay <capture>   replay a pcap/pcapng into a running shell
//	flowshell [flags] config             print the effective configuration
package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/flowshell/internal/config"
	"grimm.is/flowshell/internal/logging"
)

type options struct {
	configPath string
	listen     string
	mode       string
	seed       uint64
	topology   string
	server     string
	dpid       uint64
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to HCL or JSON config file")
	flag.StringVar(&opts.listen, "listen", "", "Override the API listen address")
	flag.StringVar(&opts.mode, "mode", "", "Override the runtime mode (simulated or bound)")
	flag.Uint64Var(&opts.seed, "seed", 0, "Seed for the control loop (0 keeps the configured seed)")
	flag.StringVar(&opts.topology, "topology", "", "Override the topology file")
	flag.StringVar(&opts.server, "server", "http://localhost:8080", "Base URL of a running shell (burst, replay)")
	flag.Uint64Var(&opts.dpid, "dpid", 1, "Datapath the replayed frames are attributed to")
	flag.Parse()

	args := flag.Args()
	subcmd := "serve"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	var err error
	switch subcmd {
	case "serve", "server":
		err = runServe(opts)
	case "burst":
		amount := ""
		if len(args) > 0 {
			amount = args[0]
		}
		err = sendBurst(opts.server, amount)
	case "replay":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: flowshell replay <capture-file>")
			os.Exit(2)
		}
		err = sendReplay(opts.server, args[0], opts.dpid)
	case "config":
		err = printConfig(opts)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", subcmd)
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		logging.Error("flowshell failed", "command", subcmd, "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(opts options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	if opts.listen != "" {
		cfg.API.Listen = opts.listen
	}
	if opts.mode != "" {
		cfg.Mode = opts.mode
	}
	if opts.seed != 0 {
		cfg.Seed = opts.seed
	}
	if opts.topology != "" {
		cfg.Topology.File = opts.topology
	}
	return cfg, cfg.Validate()
}

func printConfig(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(config.Encode(cfg))
	return err
}
