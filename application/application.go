package application

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	zlog "github.com/Pedro-5D/planchis/pkg/log"
	zviper "github.com/Pedro-5D/planchis/pkg/util/viper"
)

// ServerConfig holds the network endpoints of the relay process.
type ServerConfig struct {
	// Host and Port form the WebSocket listen address.
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Path is the WebSocket upgrade path.
	Path string `mapstructure:"path"`

	// StatusPort is the listen port of the health/status/metrics surface.
	StatusPort int `mapstructure:"status-port"`
}

// GameConfig holds the session lifecycle tunables, in seconds where
// a duration is meant. Zero values fall back to built-in defaults.
type GameConfig struct {
	GracePeriodSeconds   int `mapstructure:"grace-period-seconds"`
	MaxAgeHours          int `mapstructure:"max-age-hours"`
	MaxInactivityHours   int `mapstructure:"max-inactivity-hours"`
	LobbyEmptyTTLSeconds int `mapstructure:"lobby-empty-ttl-seconds"`
	MaxGames             int `mapstructure:"max-games"`
	SweepIntervalSeconds int `mapstructure:"sweep-interval-seconds"`
}

// Application is the main runtime container for the relay service.
// It owns configuration and manages common dependencies.
type Application struct {
	cfg     *zviper.Config
	loggers map[string]*zlog.MLogger

	server ServerConfig
	game   GameConfig
}

// New creates a new Application instance.
func New() *Application {
	return &Application{}
}

// Run is the entry of the application bootstrap.
// It parses command-line arguments (os.Args) and loads configuration file
// using the following priority:
//  1. Default: ./config.yaml
//  2. Env: PLANCHIS_CONFIG_FILE_PATH
//  3. CLI: --config <path> or --config=<path>
//
// A missing config file is tolerated: the service then runs on defaults
// plus environment overrides.
func (a *Application) Run() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.initLogging(); err != nil {
		return err
	}

	a.loadServerConfig()
	if err := a.loadGameConfig(); err != nil {
		return err
	}

	return nil
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// Server returns the resolved server endpoint configuration.
func (a *Application) Server() ServerConfig {
	return a.server
}

// Game returns the resolved session lifecycle configuration.
func (a *Application) Game() GameConfig {
	return a.game
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if a.loggers == nil {
		return &zlog.MLogger{Logger: zlog.L()}
	}
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return &zlog.MLogger{Logger: zlog.L()}
}

// loadConfig resolves config file path and loads it via viper wrapper.
func (a *Application) loadConfig() (*zviper.Config, error) {
	configPath := "./config.yaml"
	explicit := false

	if envPath := os.Getenv("PLANCHIS_CONFIG_FILE_PATH"); envPath != "" {
		configPath = envPath
		explicit = true
	}

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value after --config")
			}
			configPath = args[i+1]
			explicit = true
			i++
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			val := strings.TrimPrefix(arg, "--config=")
			if val != "" {
				configPath = val
				explicit = true
			}
			continue
		}
	}

	cfg := zviper.New()
	if err := cfg.LoadFile(configPath); err != nil {
		// Only an explicitly requested file is required to load.
		if explicit {
			return nil, fmt.Errorf("failed to load config file %q: %w", configPath, err)
		}
		return cfg, nil
	}

	return cfg, nil
}

// loadServerConfig resolves the listen endpoints.
// Priority: built-in defaults < config file < HOST/PORT env vars.
func (a *Application) loadServerConfig() {
	a.server = ServerConfig{
		Host:       "0.0.0.0",
		Port:       8765,
		Path:       "/",
		StatusPort: 8766,
	}

	if a.cfg != nil {
		_ = a.cfg.UnmarshalKey("server", &a.server)
		if a.server.Host == "" {
			a.server.Host = "0.0.0.0"
		}
		if a.server.Port == 0 {
			a.server.Port = 8765
		}
		if a.server.Path == "" {
			a.server.Path = "/"
		}
		if a.server.StatusPort == 0 {
			a.server.StatusPort = 8766
		}
	}

	if host := strings.TrimSpace(os.Getenv("HOST")); host != "" {
		a.server.Host = host
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			a.server.Port = p
		}
	}
}

// loadGameConfig reads the "game" section; zero values keep defaults.
func (a *Application) loadGameConfig() error {
	if a.cfg == nil {
		return nil
	}
	return a.cfg.UnmarshalKey("game", &a.game)
}

// initLogging initializes global and module-level loggers.
func (a *Application) initLogging() error {
	if err := a.initGlobalLoggerFromEnv(); err != nil {
		return err
	}
	if err := a.initModuleLoggersFromConfig(); err != nil {
		return err
	}
	return nil
}

// initGlobalLoggerFromEnv configures the process-wide logger based on PLANCHIS_LOG_* env vars.
//
// Priority:
//   - PLANCHIS_LOG_ENABLE: "1"/"true" to enable outputs; others treated as disabled.
//   - PLANCHIS_LOG_LEVEL: log level (default "info").
//   - PLANCHIS_LOG_STDOUT: whether to log to stdout (default true).
//   - PLANCHIS_LOG_FILE_DIR: log directory.
//   - PLANCHIS_LOG_FILE: log file name (empty means no file).
//   - PLANCHIS_LOG_FORMAT: log format ("text" or "json", default "text").
func (a *Application) initGlobalLoggerFromEnv() error {
	enabled := getenvBool("PLANCHIS_LOG_ENABLE", true)

	cfg := &zlog.Config{
		Level:             getenvDefault("PLANCHIS_LOG_LEVEL", "info"),
		Format:            getenvDefault("PLANCHIS_LOG_FORMAT", "text"),
		DisableTimestamp:  false,
		Stdout:            getenvBool("PLANCHIS_LOG_STDOUT", true),
		DisableCaller:     false,
		DisableStacktrace: false,
		File: zlog.FileLogConfig{
			RootPath: getenvDefault("PLANCHIS_LOG_FILE_DIR", ""),
			Filename: getenvDefault("PLANCHIS_LOG_FILE", ""),
		},
	}

	// When not enabled, direct all outputs to a discarded sink.
	if !enabled {
		cfg.Stdout = false
		cfg.File.Filename = ""
	}

	logger, props, err := zlog.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("init global logger from env: %w", err)
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}

// initModuleLoggersFromConfig creates named loggers from YAML config under "logging" key.
//
// Example:
//
//	logging:
//	  game:
//	    level: debug
//	    stdout: true
//	    file:
//	      rootpath: ./logs
//	      filename: game.log
func (a *Application) initModuleLoggersFromConfig() error {
	if a.cfg == nil {
		return nil
	}

	// Unmarshal "logging" section into a map[name]Config.
	raw := make(map[string]zlog.Config)
	if err := a.cfg.UnmarshalKey("logging", &raw); err != nil {
		// If the key doesn't exist, UnmarshalKey typically leaves raw empty without error.
		// Any real error should be returned.
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return fmt.Errorf("init module logger %q: %w", name, err)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger}
	}

	return nil
}

func getenvDefault(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func getenvBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
