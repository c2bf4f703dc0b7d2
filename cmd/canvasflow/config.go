package main

import (
	"strings"
	"time"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/warriorguo/canvasflow/llm"
	"github.com/warriorguo/canvasflow/simulator"
	"github.com/warriorguo/canvasflow/store/postgres"
	"github.com/warriorguo/canvasflow/types"
)

const (
	configName = "canvasflow"
	envPrefix  = "CANVASFLOW"

	providerOpenAI    = "openai"
	providerHeuristic = "heuristic"

	storeMemory   = "memory"
	storePostgres = "postgres"
)

// Config holds the configuration for the command line.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`
	Chat struct {
		Provider    string        `mapstructure:"provider"`
		Endpoint    string        `mapstructure:"endpoint"`
		APIKey      string        `mapstructure:"api_key"`
		Model       string        `mapstructure:"model"`
		Timeout     time.Duration `mapstructure:"timeout"`
		Temperature float64       `mapstructure:"temperature"`
	} `mapstructure:"chat"`
	Workflow struct {
		StageTimeout time.Duration `mapstructure:"stage_timeout"`
		ImageModel   string        `mapstructure:"image_model"`
		ImageSize    string        `mapstructure:"image_size"`
		VideoModel   string        `mapstructure:"video_model"`
	} `mapstructure:"workflow"`
	Simulator struct {
		Latency        time.Duration `mapstructure:"latency"`
		MaxConcurrency int           `mapstructure:"max_concurrency"`
	} `mapstructure:"simulator"`
	Store struct {
		Type string `mapstructure:"type"`
		DSN  string `mapstructure:"dsn"`
	} `mapstructure:"store"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("chat.provider", providerHeuristic)
	v.SetDefault("chat.endpoint", llm.DefaultOpenAIEndpoint)
	v.SetDefault("chat.model", "gpt-4o")
	v.SetDefault("chat.timeout", 120*time.Second)
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("workflow.stage_timeout", 5*time.Minute)
	v.SetDefault("simulator.latency", 200*time.Millisecond)
	v.SetDefault("simulator.max_concurrency", 4)
	v.SetDefault("store.type", storeMemory)
}

/**
 * LoadConfig reads canvasflow.yaml from the given file, or from the current
 * directory and ./config when file is empty. A missing default file is not
 * an error. Environment variables override the file, e.g.
 * CANVASFLOW_CHAT_API_KEY for chat.api_key.
 */
func LoadConfig(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, errors.Annotatef(err, "read config")
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.Annotatef(err, "decode config")
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debugf("config loaded from %s", used)
	}
	return config, errors.Trace(config.Validate())
}

func (c *Config) Validate() error {
	switch c.Chat.Provider {
	case providerOpenAI:
		if c.Chat.APIKey == "" {
			return errors.NotValidf("chat.api_key empty for provider %q", c.Chat.Provider)
		}
	case providerHeuristic:
	default:
		return errors.NotValidf("chat.provider %q", c.Chat.Provider)
	}
	switch c.Store.Type {
	case storeMemory:
	case storePostgres:
		if c.Store.DSN == "" {
			return errors.NotValidf("store.dsn empty for store %q", c.Store.Type)
		}
	default:
		return errors.NotValidf("store.type %q", c.Store.Type)
	}
	if c.Workflow.StageTimeout <= 0 {
		return errors.NotValidf("workflow.stage_timeout %v", c.Workflow.StageTimeout)
	}
	return nil
}

func (c *Config) setupLogging() error {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return errors.Annotatef(err, "log.level")
	}
	log.SetLevel(level)
	switch c.Log.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return errors.NotValidf("log.format %q", c.Log.Format)
	}
	return nil
}

func (c *Config) completer() types.ChatCompleter {
	if c.Chat.Provider == providerOpenAI {
		oc := llm.NewOpenAIConfig()
		oc.Endpoint = c.Chat.Endpoint
		oc.APIKey = c.Chat.APIKey
		oc.Timeout = c.Chat.Timeout
		oc.Temperature = c.Chat.Temperature
		return llm.NewOpenAIClient(oc)
	}
	return llm.NewHeuristic()
}

func (c *Config) options() ([]types.Option, error) {
	opts := []types.Option{
		types.WithChatModel(c.Chat.Model),
		types.WithStageTimeout(c.Workflow.StageTimeout),
		types.WithImageModel(c.Workflow.ImageModel, c.Workflow.ImageSize),
		types.WithVideoModel(c.Workflow.VideoModel),
	}
	if c.Store.Type != storePostgres {
		return append(opts, types.EnableMemStore()), nil
	}

	pg, err := postgres.ParseDSN(c.Store.DSN)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return append(opts, types.WithPostgresConfig(&types.PostgresConfig{
		Host:     pg.Host,
		Port:     pg.Port,
		User:     pg.User,
		Password: pg.Password,
		Database: pg.Database,
		SSLMode:  pg.SSLMode,
	})), nil
}

func (c *Config) simulatorOptions() []simulator.Option {
	return []simulator.Option{
		simulator.WithLatency(c.Simulator.Latency),
		simulator.SetMaxConcurrency(c.Simulator.MaxConcurrency),
	}
}
