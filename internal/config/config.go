package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config captures the runtime configuration for the voice gateway.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	AWS           AWSConfig           `mapstructure:"aws"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Transcribe    TranscribeConfig    `mapstructure:"transcribe"`
	Streaming     StreamingConfig     `mapstructure:"streaming"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Voices        VoicesConfig        `mapstructure:"voices"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	ListenAddr            string        `mapstructure:"listen_addr"`
	BodyLimitMB           int           `mapstructure:"body_limit_mb"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
}

type AWSConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	Profile         string `mapstructure:"profile"`
}

type StorageConfig struct {
	Driver   string `mapstructure:"driver"`
	Bucket   string `mapstructure:"bucket"`
	Endpoint string `mapstructure:"endpoint"`
	LocalDir string `mapstructure:"local_dir"`
}

type TranscribeConfig struct {
	Language     string        `mapstructure:"language"`
	MediaFormat  string        `mapstructure:"media_format"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxWait      time.Duration `mapstructure:"max_wait"`
}

type StreamingConfig struct {
	SampleRateHz int    `mapstructure:"sample_rate_hz"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	FFmpegPath   string `mapstructure:"ffmpeg_path"`
	Language     string `mapstructure:"language"`
}

type LLMConfig struct {
	Provider         string  `mapstructure:"provider"`
	BedrockModelID   string  `mapstructure:"bedrock_model_id"`
	AnthropicVersion string  `mapstructure:"anthropic_version"`
	MaxTokens        int32   `mapstructure:"max_tokens"`
	Temperature      float64 `mapstructure:"temperature"`
	OpenAIKey        string  `mapstructure:"openai_key"`
	OpenAIBaseURL    string  `mapstructure:"openai_base_url"`
	OpenAIModel      string  `mapstructure:"openai_model"`
	CompanyName      string  `mapstructure:"company_name"`
	CompanyProfile   string  `mapstructure:"company_profile"`
	KnowledgeFile    string  `mapstructure:"knowledge_file"`
}

type VoicesConfig struct {
	English      string `mapstructure:"english"`
	Arabic       string `mapstructure:"arabic"`
	Engine       string `mapstructure:"engine"`
	OutputFormat string `mapstructure:"output_format"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ObservabilityConfig struct {
	EnableMetrics bool   `mapstructure:"enable_metrics"`
	EnableOTLP    bool   `mapstructure:"enable_otlp"`
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
}

// Options override config discovery, primarily for tests.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else if cfg := os.Getenv("VOICE_CONFIG_FILE"); cfg != "" {
		v.SetConfigFile(cfg)
		explicitFile = true
	}

	if !explicitFile {
		// Allow standard lookup locations when no explicit file is provided.
		v.SetConfigName("voice")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("VOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(timeStringToDurationHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures required values are set and intervals are sane.
func (c *Config) Validate() error {
	var missing []string

	if c.AWS.Region == "" {
		missing = append(missing, "VOICE_AWS_REGION")
	}
	if c.Storage.Driver == "s3" && c.Storage.Bucket == "" {
		missing = append(missing, "VOICE_STORAGE_BUCKET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.Storage.Driver {
	case "s3", "local":
	default:
		return fmt.Errorf("storage.driver must be s3 or local, got %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "local" && c.Storage.LocalDir == "" {
		return fmt.Errorf("storage.local_dir must be provided for the local driver")
	}

	if c.Transcribe.PollInterval <= 0 {
		return fmt.Errorf("transcribe.poll_interval must be > 0")
	}
	if c.Transcribe.MaxWait <= 0 {
		return fmt.Errorf("transcribe.max_wait must be > 0")
	}
	if c.Transcribe.MaxWait < c.Transcribe.PollInterval {
		return fmt.Errorf("transcribe.max_wait must be at least the poll interval")
	}

	if c.Streaming.SampleRateHz <= 0 {
		return fmt.Errorf("streaming.sample_rate_hz must be > 0")
	}
	if c.Streaming.ChunkSize <= 0 {
		return fmt.Errorf("streaming.chunk_size must be > 0")
	}

	switch c.LLM.Provider {
	case "bedrock":
		if c.LLM.BedrockModelID == "" {
			return fmt.Errorf("llm.bedrock_model_id must be provided for the bedrock provider")
		}
	case "openai":
		if c.LLM.OpenAIKey == "" {
			return fmt.Errorf("llm.openai_key must be provided for the openai provider")
		}
		if c.LLM.OpenAIModel == "" {
			return fmt.Errorf("llm.openai_model must be provided for the openai provider")
		}
	default:
		return fmt.Errorf("llm.provider must be bedrock or openai, got %q", c.LLM.Provider)
	}

	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be > 0")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.body_limit_mb", 25)
	v.SetDefault("server.read_timeout", "300s")
	v.SetDefault("server.graceful_shutdown_delay", "5s")

	v.SetDefault("aws.region", "us-west-2")

	v.SetDefault("storage.driver", "s3")
	v.SetDefault("storage.bucket", "")

	v.SetDefault("transcribe.language", "auto")
	v.SetDefault("transcribe.media_format", "wav")
	v.SetDefault("transcribe.poll_interval", "5s")
	v.SetDefault("transcribe.max_wait", "5m")

	v.SetDefault("streaming.sample_rate_hz", 16000)
	v.SetDefault("streaming.chunk_size", 16*1024)
	v.SetDefault("streaming.ffmpeg_path", "ffmpeg")
	v.SetDefault("streaming.language", "en-US")

	v.SetDefault("llm.provider", "bedrock")
	v.SetDefault("llm.bedrock_model_id", "anthropic.claude-3-sonnet-20240229-v1:0")
	v.SetDefault("llm.anthropic_version", "bedrock-2023-05-31")
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.temperature", 0.5)

	v.SetDefault("voices.english", "Joanna")
	v.SetDefault("voices.arabic", "Zayd")
	v.SetDefault("voices.engine", "neural")
	v.SetDefault("voices.output_format", "mp3")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_otlp", false)
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
