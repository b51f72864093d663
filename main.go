package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/botceptor/botceptor/engine"
	"github.com/botceptor/botceptor/logger"
	"github.com/botceptor/botceptor/model"
	"github.com/botceptor/botceptor/report"
	"github.com/botceptor/botceptor/server"
	"github.com/botceptor/botceptor/templates"
	"github.com/botceptor/botceptor/version"
	"github.com/joho/godotenv"
)

const (
	AppName = "botceptor"
)

func main() {
	inputPath := flag.String("f", "", "Path to the test input file (YAML/JSON)")
	serve := flag.Bool("serve", false, "Run the HTTP front-end instead of a one-shot test run")
	addr := flag.String("addr", ":8000", "Front-end listen address")
	outputPath := flag.String("o", "", "Path to the output HTML report file")
	logPath := flag.String("l", "", "Path to the log file (if not set, logs to stdout)")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	showVersion := flag.Bool("v", false, "Show version and exit")

	flag.Parse()

	fmt.Printf("Version: %s\nCommit: %s\nBuildDate: %s\n",
		version.Version, version.Commit, version.BuildDate)
	if *showVersion {
		return
	}

	// Initialize Logger
	logWriter, logFile, err := logger.SetupLogWriter(*logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	logger.SetupLogger(logWriter, *verbose)
	templates.NewTemplateEngine()

	if err := godotenv.Load(); err != nil {
		logger.Logger.Debug("No .env file loaded", "error", err)
	}

	if *serve {
		logger.Logger.Info("Starting application",
			"app", AppName,
			"mode", "server",
			"addr", *addr,
			"verbose", *verbose)
		if err := server.NewServer(*addr).ListenAndServe(); err != nil {
			logger.Logger.Error("Front-end stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	if *inputPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -f <test-file> or -serve is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	logger.Logger.Info("Starting application",
		"app", AppName,
		"input", *inputPath,
		"output", *outputPath,
		"logfile", *logPath,
		"verbose", *verbose)

	input, err := model.ParseTestInput(*inputPath)
	if err != nil {
		logger.Logger.Error("Failed to parse test input", "error", err)
		os.Exit(1)
	}
	if err := input.Validate(); err != nil {
		logger.Logger.Error("Invalid test input", "error", err)
		os.Exit(1)
	}
	input.Render(model.GetAllEnv())

	controller := engine.NewController(input)
	if err := controller.InitializeBots(); err != nil {
		logger.Logger.Error("Failed to initialize test bots", "error", err)
		os.Exit(1)
	}

	controller.RunBots()
	controller.Wait()

	reports := controller.Reports()
	engine.PrintRunSummary(reports)

	if *outputPath != "" {
		gen, err := report.NewGenerator()
		if err != nil {
			logger.Logger.Error("Failed to create report generator", "error", err)
			os.Exit(1)
		}
		if err := gen.GenerateHTMLToFile(reports, *outputPath); err != nil {
			logger.Logger.Error("Failed to write report", "error", err)
			os.Exit(1)
		}
		logger.Logger.Info("Report generated", "path", *outputPath)
	}

	if engine.HasFailures(reports) {
		logger.Logger.Warn("Test run completed with failures")
		os.Exit(1)
	}
	logger.Logger.Info("All sessions passed")
}
