package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalid marks a configuration that can't be used.
var ErrInvalid = errors.New("invalid configuration")

const EnvPrefix = "CROMWELL_CLEANER"

type Config struct {
	Bucket         string               `mapstructure:"bucket"`
	DryRun         bool                 `mapstructure:"dry_run"`
	Workers        int                  `mapstructure:"workers"`
	QueueSize      int                  `mapstructure:"queue_size"`
	PageSize       int                  `mapstructure:"page_size"`
	MaxAttempts    int                  `mapstructure:"max_attempts"`
	BaseDelay      time.Duration        `mapstructure:"base_delay"`
	MaxDelay       time.Duration        `mapstructure:"max_delay"`
	RequestTimeout time.Duration        `mapstructure:"request_timeout"`
	RateLimit      float64              `mapstructure:"rate_limit"`
	LogLevel       string               `mapstructure:"log_level"`
	LogFormat      string               `mapstructure:"log_format"`
	MetricsFile    string               `mapstructure:"metrics_file"`
	Schedule       string               `mapstructure:"schedule"`
	RunTimeout     time.Duration        `mapstructure:"run_timeout"`
	GCS            GCSConfig            `mapstructure:"gcs"`
	S3             S3Config             `mapstructure:"s3"`
	Local          LocalConfig          `mapstructure:"local"`
	Classifier     ClassifierConfig     `mapstructure:"classifier"`
	Rules          []RuleConfig         `mapstructure:"rules"`
	Notifications  []NotificationConfig `mapstructure:"notifications"`
}

type GCSConfig struct {
	Project         string `mapstructure:"project"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type S3Config struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
}

// LocalConfig serves file://bucket/prefix locations: each bucket is a
// directory under Root.
type LocalConfig struct {
	Root string `mapstructure:"root"`
}

type ClassifierConfig struct {
	RequireWorkflowUUID bool `mapstructure:"require_workflow_uuid"`
}

// RuleConfig is one row of the scaffold rule table. An empty rules list
// keeps the built-in table.
type RuleConfig struct {
	Name    string `mapstructure:"name"`
	Match   string `mapstructure:"match"`
	Pattern string `mapstructure:"pattern"`
	Reason  string `mapstructure:"reason"`
}

type NotificationConfig struct {
	Type   string              `mapstructure:"type"`
	On     []string            `mapstructure:"on"`
	Config NotificationDetails `mapstructure:"config"`
}

type NotificationDetails struct {
	SMTPHost string            `mapstructure:"smtp_host"`
	SMTPPort int               `mapstructure:"smtp_port"`
	From     string            `mapstructure:"from"`
	To       string            `mapstructure:"to"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	URL      string            `mapstructure:"url"`
	Headers  map[string]string `mapstructure:"headers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bucket", "")
	v.SetDefault("dry_run", false)
	v.SetDefault("workers", 16)
	v.SetDefault("queue_size", 1000)
	v.SetDefault("page_size", 1000)
	v.SetDefault("max_attempts", 5)
	v.SetDefault("base_delay", 200*time.Millisecond)
	v.SetDefault("max_delay", 10*time.Second)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("metrics_file", "")
	v.SetDefault("schedule", "")
	v.SetDefault("run_timeout", time.Duration(0))
	v.SetDefault("gcs.project", "")
	v.SetDefault("gcs.credentials_file", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.use_path_style", false)
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("local.root", ".")
	v.SetDefault("classifier.require_workflow_uuid", false)
}

// LoadConfig reads defaults, an optional .env file, CROMWELL_CLEANER_* env
// vars and, when path is non-empty, a YAML config file.
func LoadConfig(path string) (*Config, error) {
	// a missing .env is normal
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config: %v", ErrInvalid, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", ErrInvalid, err)
	}

	ModifyConfig(&cfg)

	return &cfg, nil
}

// ModifyConfig expands ${VAR} references in fields that commonly carry secrets or paths.
func ModifyConfig(cfg *Config) {
	cfg.Bucket = os.ExpandEnv(cfg.Bucket)
	cfg.MetricsFile = os.ExpandEnv(cfg.MetricsFile)
	cfg.GCS.Project = os.ExpandEnv(cfg.GCS.Project)
	cfg.GCS.CredentialsFile = os.ExpandEnv(cfg.GCS.CredentialsFile)
	cfg.S3.Region = os.ExpandEnv(cfg.S3.Region)
	cfg.S3.Endpoint = os.ExpandEnv(cfg.S3.Endpoint)
	cfg.S3.AccessKey = os.ExpandEnv(cfg.S3.AccessKey)
	cfg.S3.SecretKey = os.ExpandEnv(cfg.S3.SecretKey)
	cfg.Local.Root = os.ExpandEnv(cfg.Local.Root)

	for i := range cfg.Notifications {
		nt := &cfg.Notifications[i]
		nt.Type = os.ExpandEnv(nt.Type)
		for j := range nt.On {
			nt.On[j] = os.ExpandEnv(nt.On[j])
		}
		nt.Config.SMTPHost = os.ExpandEnv(nt.Config.SMTPHost)
		nt.Config.From = os.ExpandEnv(nt.Config.From)
		nt.Config.To = os.ExpandEnv(nt.Config.To)
		nt.Config.Username = os.ExpandEnv(nt.Config.Username)
		nt.Config.Password = os.ExpandEnv(nt.Config.Password)
		nt.Config.URL = os.ExpandEnv(nt.Config.URL)
		for k, v := range nt.Config.Headers {
			nt.Config.Headers[k] = os.ExpandEnv(v)
		}
	}
}
