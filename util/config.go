package util

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Defaults
const (
	DefaultBindAddress   = "0.0.0.0:8000"
	DefaultDBType        = "jsondb"
	DefaultDBPath        = "./db"
	DefaultUsername      = "admin"
	DefaultPassword      = "admin"
	DefaultUploadBackend = "dir"
	DefaultUploadMaxSize = "64M"
	DefaultLogLevel      = "INFO"
	SessionCookieName    = "session"
)

// Config is the runtime configuration, filled by viper from defaults, the
// optional atemap.yaml, ATEMAP_* environment variables and command-line flags.
type Config struct {
	BindAddress string       `mapstructure:"bind-address"`
	ProjectDir  string       `mapstructure:"project-dir"`
	DB          DBConfig     `mapstructure:"db"`
	Admin       AdminConfig  `mapstructure:"admin"`
	Upload      UploadConfig `mapstructure:"upload"`
	S3          S3Config     `mapstructure:"s3"`
	Log         LogConfig    `mapstructure:"log"`
}

type DBConfig struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
	DSN  string `mapstructure:"dsn"`
}

// AdminConfig holds the credentials of the account created on first boot.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type UploadConfig struct {
	Backend string `mapstructure:"backend"`
	MaxSize string `mapstructure:"max-size"`
}

// S3Config configures the S3 upload backend. Endpoint may point at any
// S3-compatible service (MinIO etc).
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access-key"`
	SecretKey string `mapstructure:"secret-key"`
	Prefix    string `mapstructure:"prefix"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ConfigDefaults returns the viper defaults keyed by their dotted config path.
func ConfigDefaults() map[string]any {
	return map[string]any{
		"bind-address":    DefaultBindAddress,
		"project-dir":     ".",
		"db.type":         DefaultDBType,
		"db.path":         DefaultDBPath,
		"db.dsn":          "",
		"admin.username":  DefaultUsername,
		"admin.password":  DefaultPassword,
		"upload.backend":  DefaultUploadBackend,
		"upload.max-size": DefaultUploadMaxSize,
		"s3.bucket":       "",
		"s3.region":       "us-east-1",
		"s3.endpoint":     "",
		"s3.access-key":   "",
		"s3.secret-key":   "",
		"s3.prefix":       "",
		"log.level":       DefaultLogLevel,
	}
}

// flagKeys maps command-line flag names to config keys
var flagKeys = map[string]string{
	"bind-address":   "bind-address",
	"project-dir":    "project-dir",
	"db-type":        "db.type",
	"db-path":        "db.path",
	"db-dsn":         "db.dsn",
	"upload-backend": "upload.backend",
	"log-level":      "log.level",
}

// AddFlags declares the command-line flags understood by LoadConfig
func AddFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("config", "", "config file (default is ./atemap.yaml)")
	f.String("bind-address", DefaultBindAddress, "Address:Port to which the app will be bound.")
	f.String("project-dir", ".", "Directory receiving uploaded runs.")
	f.String("db-type", DefaultDBType, `User database backend ("jsondb", "sqlite", "postgres", "mysql").`)
	f.String("db-path", DefaultDBPath, "Directory of the jsondb backend.")
	f.String("db-dsn", "", "Data source name of the SQL backends.")
	f.String("upload-backend", DefaultUploadBackend, `Where uploads go ("dir", "s3").`)
	f.String("log-level", DefaultLogLevel, "DEBUG, INFO, WARN, ERROR or OFF.")
}

// LoadConfig reads, in increasing precedence, defaults, atemap.yaml (or the
// --config file), a .env file, ATEMAP_* environment variables and flags.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	var c Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return c, fmt.Errorf("cannot load .env: %w", err)
	}

	v := viper.New()
	for key, value := range ConfigDefaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName("atemap")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	v.SetEnvPrefix("atemap")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		// only flags the user actually set override the layers below
		if flag := cmd.Flags().Lookup(name); flag != nil && flag.Changed {
			if err := v.BindPFlag(key, flag); err != nil {
				return c, err
			}
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}

// ParseLogLevel converts a level name to a gommon log level.
func ParseLogLevel(lvl string) (log.Lvl, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return log.DEBUG, nil
	case "info":
		return log.INFO, nil
	case "warn":
		return log.WARN, nil
	case "error":
		return log.ERROR, nil
	case "off":
		return log.OFF, nil
	default:
		return log.DEBUG, fmt.Errorf("not a valid log level: %s", lvl)
	}
}
