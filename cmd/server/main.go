package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/real-rm/goconfig"
	"github.com/real-rm/golog"
	"github.com/real-rm/gomongo"

	"github.com/real-rm/linkup"
	"github.com/real-rm/linkup/internal/constants"
)

// loadDotEnv loads variables from path into the environment. Variables that
// are already set win; a missing file is not an error.
func loadDotEnv(path string) error {
	// No else needed: early return pattern (guard clause)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// loadConfiguration loads the configuration and returns the config accessor
func loadConfiguration() (*goconfig.ConfigAccessor, error) {
	if err := goconfig.LoadConfig(); err != nil {
		return nil, err
	}

	cfg, err := goconfig.Default()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// initializeLogger initializes the logger with the given configuration
func initializeLogger(cfg *goconfig.ConfigAccessor) (*golog.Logger, error) {
	logDir, _ := cfg.ConfigStringWithDefault("log.dir", constants.DefaultLogDir)
	logLevel, _ := cfg.ConfigStringWithDefault("log.level", constants.DefaultLogLevel)
	standardOutput, _ := cfg.ConfigBoolWithDefault("log.standardOutput", true)

	logger, err := golog.InitLog(golog.LogConfig{
		Dir:            logDir,
		Level:          logLevel,
		StandardOutput: standardOutput,
		InfoFile:       "info.log",
		WarnFile:       "warn.log",
		ErrorFile:      "error.log",
	})
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// getServerPort retrieves the server port from configuration
func getServerPort(cfg *goconfig.ConfigAccessor) int {
	port, _ := cfg.ConfigIntWithDefault("server.port", constants.DefaultPort)
	return port
}

// NewHTTPServer creates an HTTP server with production-safe timeout defaults.
// Use this when running linkup as a standalone server (not via gomain).
// Upgraded WebSocket connections manage their own deadlines.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  constants.HTTPReadTimeout,
		WriteTimeout: constants.HTTPWriteTimeout,
		IdleTimeout:  constants.HTTPIdleTimeout,
	}
}

// newEngine builds the gin engine and registers the linkup service on it.
func newEngine(cfg *goconfig.ConfigAccessor, logger *golog.Logger, mongo *gomongo.Mongo) (*gin.Engine, error) {
	mode, _ := cfg.ConfigStringWithDefault("server.mode", gin.ReleaseMode)
	gin.SetMode(mode)

	r := gin.New()
	r.Use(gin.Recovery())
	if err := linkup.Register(r, cfg, logger, mongo); err != nil {
		return nil, fmt.Errorf("failed to register linkup service: %w", err)
	}
	return r, nil
}

// shutdownOperations lists what runs, in parallel, once a signal arrives.
func shutdownOperations(server *http.Server, logger *golog.Logger) map[string]gfshutdown.Operation {
	return map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			logger.Info("Stopping HTTP server")
			return server.Shutdown(ctx)
		},
		"linkup": func(ctx context.Context) error {
			return linkup.Shutdown(ctx)
		},
	}
}

func main() {
	if err := runMain(); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

// runMain is the testable main function
func runMain() error {
	// No else needed: optional operation (.env is a development convenience)
	if err := loadDotEnv(".env"); err != nil {
		log.Printf("Ignoring unreadable .env file: %v", err)
	}

	cfg, err := loadConfiguration()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	mongo, err := gomongo.InitMongoDB(logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize MongoDB: %w", err)
	}

	engine, err := newEngine(cfg, logger, mongo)
	if err != nil {
		return err
	}

	port := getServerPort(cfg)
	server := NewHTTPServer(":"+strconv.Itoa(port), engine)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "port", port)
		// No else needed: optional operation (Shutdown makes ListenAndServe return ErrServerClosed)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	wait := gfshutdown.GracefulShutdown(context.Background(), constants.ShutdownTimeout, shutdownOperations(server, logger))

	select {
	case err := <-serveErr:
		_ = linkup.Shutdown(context.Background())
		return fmt.Errorf("HTTP server failed: %w", err)
	case code := <-wait:
		logger.Info("Shutdown finished", "exit_code", code)
		// No else needed: early return pattern (guard clause)
		if code != 0 {
			return fmt.Errorf("graceful shutdown exited with code %d", code)
		}
		return nil
	}
}
