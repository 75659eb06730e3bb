package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ctagard/inspector-broker/internal/config"
	"github.com/ctagard/inspector-broker/internal/mcp"
	"github.com/ctagard/inspector-broker/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	mode := flag.String("mode", "", "Capability mode: 'readonly' or 'full' (overrides the config file)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	help := flag.Bool("help", false, "Show help and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("inspector-broker version %s\n", version.GetVersion())
		os.Exit(0)
	}

	if *help {
		printHelp()
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	switch *mode {
	case "readonly":
		cfg.Mode = config.ModeReadOnly
	case "full":
		cfg.Mode = config.ModeFull
	}

	server := mcp.NewServer(cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("Shutting down...")
		server.Close()
		os.Exit(0)
	}()

	log.Println("inspector-broker starting...")
	if err := server.ServeStdio(); err != nil {
		server.Close()
		log.Fatalf("Server error: %v", err)
	}
	server.Close()
}

func printHelp() {
	fmt.Println(`inspector-broker: JS inspector protocol MCP server

A Model Context Protocol (MCP) server that exposes a JavaScript-runtime
inspector's Debugger and Runtime domains to LLMs, enabling AI agents to
introspect and debug a running Node.js process or browser page without
speaking the wire protocol themselves.

USAGE:
    inspector-broker [OPTIONS]

OPTIONS:
    -config <path>     Path to configuration file (JSON)
    -mode <mode>       Capability mode: 'readonly' or 'full' (default: full)
    -version           Show version and exit
    -help              Show this help message

CONFIGURATION:
    Create a JSON configuration file to customize behavior:

    {
        "mode": "full",
        "allowedHosts": ["localhost", "127.0.0.1", "::1"],
        "allowUnlistedHosts": false,
        "maxSessions": 10,
        "commandTimeoutSeconds": 5
    }

MCP INTEGRATION:
    Add to your MCP client configuration:

    Claude Code (~/.claude.json):
    {
        "mcpServers": {
            "inspector-broker": {
                "command": "inspector-broker",
                "args": ["--mode", "full"]
            }
        }
    }

TOOLS:
    Session Management:
        connect_session       Connect to a target's inspector endpoint
        disconnect_session    End a debug session
        list_sessions         List active sessions

    Inspection (read-only):
        list_scripts          List parsed scripts
        get_script_source     Get a script's source text
        get_original_location Map a generated position to its source
        get_call_stack        Get the paused call stack
        get_scope_variables   Resolve scope/object variables
        evaluate_expression   Evaluate an expression

    Control (full mode only):
        set_breakpoint            Set a breakpoint
        remove_breakpoint         Remove a breakpoint
        continue_execution        Resume execution
        step                      Step over/into/out
        pause                     Request a pause
        set_variable_value        Modify a local variable
        set_pause_on_exceptions   Configure exception pausing

RESOURCES:
    debug://sessions       Every active session's summary
    debug://sessions/{id}  One session's summary, breakpoints and, if paused, call stack`)
}
