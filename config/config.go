package config

/*
 * Licensed under LGPL-3.0.
 *
 * You can get a copy of the LGPL-3.0 License at
 *
 * https://www.gnu.org/licenses/lgpl-3.0.en.html
 *
 * @wcgcyx - https://github.com/wcgcyx
 */

import (
	"os"
	"path/filepath"
	"time"

	logging "github.com/ipfs/go-log"
	"github.com/spf13/viper"
)

// Logger
var log = logging.Logger("config")

const (
	defaultConfigPath = ".crucible"
)

type Config struct {
	// Global
	GlobalLoggingLevel string        `mapstructure:"LOGGING"`    // Log Level: FATAL, PANIC, ERROR, WARN, INFO, DEBUG.
	Path               string        `mapstructure:"DATA_DIR"`   // Main datastore path.
	DSTimeout          time.Duration `mapstructure:"DS_TIMEOUT"` // Datastore timeout.

	// Chain
	ChainID  int64  `mapstructure:"CHAIN_ID"`  // Simulated chain id.
	GasLimit uint64 `mapstructure:"GAS_LIMIT"` // Gas limit per test body / block.

	// Test orchestrator
	TestWorkers      int   `mapstructure:"TEST_WORKERS"`       // Parallel test workers.
	FuzzRuns         int   `mapstructure:"FUZZ_RUNS"`          // Cases per fuzz test.
	FuzzSeed         int64 `mapstructure:"FUZZ_SEED"`          // Fuzz seed, 0 for clock.
	FuzzShrinkBudget int   `mapstructure:"FUZZ_SHRINK_BUDGET"` // Shrink candidate budget.

	// RPC
	RPCHost   string `mapstructure:"RPC_HOST"`    // RPC Server host.
	RPCPort   uint64 `mapstructure:"RPC_PORT"`    // RPC Server port.
	RPCGasCap uint64 `mapstructure:"RPC_GAS_CAP"` // RPC gas cap for answering calls.

	// Node
	NodeCheckFrequency time.Duration `mapstructure:"NODE_CHECK_FREQUENCY"` // Frequency node advances the simulated clock.
}

// Default configs
var DefaultConfig Config = Config{
	GlobalLoggingLevel: "INFO",
	Path:               "$HOME/.crucible",
	DSTimeout:          5 * time.Second,
	ChainID:            31337,
	GasLimit:           30000000,
	TestWorkers:        4,
	FuzzRuns:           256,
	FuzzSeed:           0,
	FuzzShrinkBudget:   512,
	RPCHost:            "localhost",
	RPCPort:            9545,
	RPCGasCap:          50000000,
	NodeCheckFrequency: 10 * time.Second,
}

// NewConfig creates a new configuration.
//
// @output - configuration, error.
func NewConfig(configFile string) (Config, error) {
	// Try to load config file from $HOME/.crucible
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/" + defaultConfigPath)
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}
	viper.AutomaticEnv()

	conf := Config{}

	// Parse global config
	conf.GlobalLoggingLevel = viper.GetString("LOGGING")
	if conf.GlobalLoggingLevel == "" {
		conf.GlobalLoggingLevel = DefaultConfig.GlobalLoggingLevel
	}
	logLevel, err := logging.LevelFromString(conf.GlobalLoggingLevel)
	if err != nil {
		return Config{}, err
	}
	logging.SetAllLoggers(logLevel)
	conf.Path = viper.GetString("DATA_DIR")
	if conf.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, err
		}
		conf.Path = filepath.Join(home, defaultConfigPath)
		log.Infof("DATA_DIR not defined, use default: %v", conf.Path)
	}
	conf.DSTimeout = viper.GetDuration("DS_TIMEOUT")
	if conf.DSTimeout <= 0 {
		conf.DSTimeout = DefaultConfig.DSTimeout
		log.Infof("Invalid DS_TIMEOUT found, use default: %v", conf.DSTimeout)
	}

	// Parse chain config
	conf.ChainID = viper.GetInt64("CHAIN_ID")
	if conf.ChainID <= 0 {
		conf.ChainID = DefaultConfig.ChainID
		log.Infof("CHAIN_ID not set, use default %v", conf.ChainID)
	}
	conf.GasLimit = uint64(viper.GetInt64("GAS_LIMIT"))
	if conf.GasLimit == 0 {
		conf.GasLimit = DefaultConfig.GasLimit
		log.Infof("GAS_LIMIT not set, use default %v", conf.GasLimit)
	}

	// Parse orchestrator config
	conf.TestWorkers = viper.GetInt("TEST_WORKERS")
	if conf.TestWorkers <= 0 {
		conf.TestWorkers = DefaultConfig.TestWorkers
		log.Infof("TEST_WORKERS not set, use default %v", conf.TestWorkers)
	}
	conf.FuzzRuns = viper.GetInt("FUZZ_RUNS")
	if conf.FuzzRuns <= 0 {
		conf.FuzzRuns = DefaultConfig.FuzzRuns
		log.Infof("FUZZ_RUNS not set, use default %v", conf.FuzzRuns)
	}
	conf.FuzzSeed = viper.GetInt64("FUZZ_SEED")
	conf.FuzzShrinkBudget = viper.GetInt("FUZZ_SHRINK_BUDGET")
	if conf.FuzzShrinkBudget <= 0 {
		conf.FuzzShrinkBudget = DefaultConfig.FuzzShrinkBudget
		log.Infof("FUZZ_SHRINK_BUDGET not set, use default %v", conf.FuzzShrinkBudget)
	}

	// Parse RPC config
	conf.RPCHost = viper.GetString("RPC_HOST")
	if conf.RPCHost == "" {
		conf.RPCHost = DefaultConfig.RPCHost
		log.Infof("RPC_HOST not set, use default %v", conf.RPCHost)
	}
	conf.RPCPort = uint64(viper.GetInt64("RPC_PORT"))
	if conf.RPCPort == 0 {
		conf.RPCPort = DefaultConfig.RPCPort
		log.Infof("RPC_PORT not set, use default %v", conf.RPCPort)
	}
	conf.RPCGasCap = uint64(viper.GetInt64("RPC_GAS_CAP"))
	if conf.RPCGasCap == 0 {
		conf.RPCGasCap = DefaultConfig.RPCGasCap
		log.Infof("RPC_GAS_CAP not set, use default %v", conf.RPCGasCap)
	}

	// Parse node config
	conf.NodeCheckFrequency = viper.GetDuration("NODE_CHECK_FREQUENCY")
	if conf.NodeCheckFrequency <= 0 {
		conf.NodeCheckFrequency = DefaultConfig.NodeCheckFrequency
		log.Infof("Invalid NODE_CHECK_FREQUENCY found, use default: %v", conf.NodeCheckFrequency)
	}

	return conf, nil
}
