package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/appetiteclub/pos/cmd/utils/internal/commands"
	"github.com/aquamarinepk/aqm"
)

const (
	appName    = "pos-utils"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	config, err := aqm.LoadConfig("UTILS", os.Args[2:])
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	logLevel := config.GetStringOrDef("log.level", "info")
	logger := aqm.NewLogger(logLevel)

	ctx := context.Background()
	command := os.Args[1]

	switch command {
	case "clear-demo":
		if err := commands.ClearDemo(ctx, config, logger); err != nil {
			log.Fatalf("Clear demo data failed: %v", err)
		}
		logger.Info("Demo data cleared successfully")

	case "reset-db":
		if err := commands.ResetDB(ctx, config, logger); err != nil {
			log.Fatalf("Database reset failed: %v", err)
		}
		logger.Info("Database reset completed successfully")

	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - POS utility commands

Usage:
  %s <command> [options]

Commands:
  clear-demo   Remove the demo order and demo delivery orders, free the demo table
               and forget the demo seeds so the next demo start re-applies them
  reset-db     Drop the POS database (USE WITH CAUTION)
  version      Print version information
  help         Show this help message

Environment Variables:
  UTILS_DB_MONGO_URL    MongoDB connection URL (default: mongodb://localhost:27017)
  UTILS_DB_MONGO_NAME   POS database name (default: appetite_pos)
  UTILS_LOG_LEVEL       Log level: debug, info, warn, error (default: info)

Examples:
  %s clear-demo
  UTILS_DB_MONGO_URL=mongodb://localhost:27017 %s reset-db

`, appName, appName, appName, appName)
}
