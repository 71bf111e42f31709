/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/PivotLLM/GatewayAuth/config"
	"github.com/PivotLLM/GatewayAuth/db"
	"github.com/PivotLLM/GatewayAuth/gateway"
	"github.com/PivotLLM/GatewayAuth/global"
	"github.com/PivotLLM/GatewayAuth/mcpserver"
	"github.com/tenebris-tech/mlogger"
)

// Version information
const (
	AppName    = "GatewayAuth"
	AppVersion = "0.1.0"
)

const (
	defaultBaseURL        = "https://gateway.example.com"
	metricsLogInterval    = 5 * time.Minute
	defaultListenHostPort = "localhost:8888"
)

func main() {
	var listen string

	// Commands
	loginFlag := flag.Bool("login", false, "Sign in to the gateway with the device authorization flow")
	logoutFlag := flag.Bool("logout", false, "Remove the stored gateway credential")
	whoamiFlag := flag.Bool("whoami", false, "Show the stored credential and resolved identity")
	notificationsFlag := flag.Bool("notifications", false, "Show gateway notifications")
	refreshFlag := flag.Bool("refresh", false, "Renew the stored OAuth credential")
	apiKeyFlag := flag.String("api-key", "", "Store a gateway API key")
	serveFlag := flag.Bool("serve", false, "Run the MCP server")

	// Options
	allFlag := flag.Bool("all", false, "With -notifications, include notifications not meant for the CLI")
	configFlag := flag.String("config", "", "Comma separated gateway configuration files (optional)")
	debugFlag := flag.Bool("debug", false, "Enable debug mode")
	portFlag := flag.Int("port", 8888, "Port to listen on with -serve")
	noStreamingFlag := flag.Bool("no-streaming", false, "Disable streaming (use plain HTTP instead of SSE)")
	helpFlag := flag.Bool("help", false, "Show help information")
	versionFlag := flag.Bool("version", false, "Show version information")

	flag.Usage = func() {
		fmt.Printf("%s - Gateway credential acquisition and identity\n\n", AppName)
		fmt.Printf("Usage:\n")
		fmt.Printf("  %s [command] [options]\n\n", os.Args[0])
		fmt.Printf("Commands:\n")
		fmt.Printf("  -login            Sign in with the device authorization flow\n")
		fmt.Printf("  -logout           Remove the stored credential\n")
		fmt.Printf("  -whoami           Show the stored credential and identity\n")
		fmt.Printf("  -notifications    Show gateway notifications (-all for every surface)\n")
		fmt.Printf("  -refresh          Renew the stored OAuth credential\n")
		fmt.Printf("  -api-key string   Store a gateway API key\n")
		fmt.Printf("  -serve            Run the MCP server\n\n")
		fmt.Printf("Options:\n")
		fmt.Printf("  -config string    Comma separated configuration files\n")
		fmt.Printf("  -debug            Enable debug mode\n")
		fmt.Printf("  -port int         Port to listen on (default 8888)\n")
		fmt.Printf("  -no-streaming     Use plain HTTP instead of SSE\n")
		fmt.Printf("  -version          Show version information\n\n")
		fmt.Printf("Environment Variables:\n")
		fmt.Printf("  GATEWAY_CONFIG       Configuration files when -config is not given\n")
		fmt.Printf("  GATEWAY_BASE_URL     Gateway URL when no configuration sets baseURL\n")
		fmt.Printf("  GATEWAY_DATA_DIR     Data directory (default: ~/.gatewayauth)\n")
		fmt.Printf("  GATEWAY_LISTEN       Listen address for -serve\n")
		fmt.Printf("  GATEWAY_TOKEN        Gateway key stored when no command is given\n")
		fmt.Printf("  GATEWAY_API_KEY      Fallback when GATEWAY_TOKEN is not set\n")
		fmt.Printf("  %s   Machine id override\n\n", gateway.MachineIDEnvVar)
		fmt.Printf("Examples:\n")
		fmt.Printf("  %s -login\n", os.Args[0])
		fmt.Printf("  %s -whoami\n", os.Args[0])
		fmt.Printf("  %s -serve -port 8888\n\n", os.Args[0])
	}

	flag.Parse()

	if *helpFlag {
		flag.Usage()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("%s version %s\n", AppName, AppVersion)
		os.Exit(0)
	}

	// Load environment variables from the first env file found
	loadedEnvFile := loadEnvFiles()

	dataDir := os.Getenv("GATEWAY_DATA_DIR")
	if dataDir == "" {
		dataDir = db.DefaultDataDir(nil)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		fmt.Printf("Unable to create data directory %s: %v\n", dataDir, err)
		os.Exit(1)
	}

	// CLI commands keep stdout for their own output unless debugging
	logger, err := mlogger.New(
		mlogger.WithPrefix(AppName),
		mlogger.WithDateFormat("2006-01-02 15:04:05"),
		mlogger.WithLogFile(filepath.Join(dataDir, "gatewayauth.log")),
		mlogger.WithLogStdout(*serveFlag || *debugFlag),
		mlogger.WithDebug(*debugFlag),
	)
	if err != nil {
		fmt.Printf("Unable to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if loadedEnvFile != "" {
		logger.Infof("Loaded environment variables from %s", loadedEnvFile)
	}

	configFiles := *configFlag
	if configFiles == "" {
		if envConfig := os.Getenv("GATEWAY_CONFIG"); envConfig != "" {
			configFiles = envConfig
			logger.Infof("Using gateway config from GATEWAY_CONFIG: %s", envConfig)
		}
	}

	baseURL := os.Getenv("GATEWAY_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	configManager := config.New(
		config.WithLogger(logger),
		config.WithConfigFiles(splitList(configFiles)...),
		config.WithDefaultBaseURL(baseURL),
	)
	cfg, err := configManager.LoadConfigs()
	if err != nil {
		fatal(logger, "Failed to load configuration", err)
	}

	if envListen := os.Getenv("GATEWAY_LISTEN"); envListen != "" {
		listen = envListen
		logger.Infof("Using listen address from GATEWAY_LISTEN: %s", envListen)
	} else if *portFlag > 0 && *portFlag < 65536 {
		listen = fmt.Sprintf("localhost:%d", *portFlag)
	} else {
		listen = defaultListenHostPort
	}

	database, err := db.New(db.WithLogger(logger), db.WithDataDir(dataDir))
	if err != nil {
		fatal(logger, "Failed to initialize database", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Errorf("Error closing database: %v", err)
		}
	}()

	cli, err := newApp(cfg, database, dataDir, logger)
	if err != nil {
		fatal(logger, "Failed to initialize gateway components", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiKey := resolveAPIKey(*apiKeyFlag, os.Getenv)

	switch {
	case *apiKeyFlag != "":
		err = cli.storeAPIKey(ctx, apiKey)
	case *loginFlag:
		err = cli.login(ctx)
	case *refreshFlag:
		err = cli.refresh(ctx)
	case *logoutFlag:
		err = cli.logout(ctx)
	case *whoamiFlag:
		err = cli.whoami(ctx)
	case *notificationsFlag:
		err = cli.showNotifications(ctx, *allFlag)
	case *serveFlag:
		err = serve(ctx, cli, listen, *debugFlag, *noStreamingFlag, logger)
	case apiKey != "":
		logger.Info("Storing gateway key from the environment")
		err = cli.storeAPIKey(ctx, apiKey)
	default:
		flag.Usage()
	}

	if err != nil {
		fmt.Println(userMessage(err))
		logger.Errorf("Command failed: %v", err)
		stop()
		_ = database.Close()
		logger.Close()
		os.Exit(1)
	}
}

// fatal reports an initialization failure to the user and the log, then exits
func fatal(logger global.Logger, msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "%s: %s\n", msg, userMessage(err))
	logger.Fatalf("%s: %v", msg, err)
}

// loadEnvFiles loads the first env file found and returns its path
func loadEnvFiles() string {
	envFiles := []string{
		"/opt/gatewayauth/env",
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(homeDir, ".gatewayauth.env"))
	}

	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				return envFile
			}
		}
	}
	return ""
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// serve runs the MCP server until ctx is cancelled
func serve(ctx context.Context, a *app, listen string, debug, noStreaming bool, logger global.Logger) error {
	a.metrics.StartPeriodicLogging(ctx, metricsLogInterval)

	// Resolve the identity up front so the first tool call is cheap
	a.provider.Load(ctx, a.store.Get)

	server, err := mcpserver.New(
		mcpserver.WithListen(listen),
		mcpserver.WithDebug(debug),
		mcpserver.WithLogger(logger),
		mcpserver.WithName(AppName),
		mcpserver.WithVersion(AppVersion),
		mcpserver.WithNoStreaming(noStreaming),
		mcpserver.WithToolProviders([]global.ToolProvider{a.service}),
	)
	if err != nil {
		return fmt.Errorf("unable to create MCP server: %w", err)
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("MCP server failed to start: %w", err)
	}

	<-ctx.Done()
	logger.Infof("Shutting down...")

	if err := server.Stop(); err != nil {
		return fmt.Errorf("error stopping MCP server: %w", err)
	}

	logger.Infof("MCP server stopped successfully")
	return nil
}
