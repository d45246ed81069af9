package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/ehr/medletter/internal/letter"
)

// Archive backends accepted in ARCHIVE_BACKEND.
const (
	ArchiveMemory = "memory"
	ArchiveMinio  = "minio"
	ArchiveNone   = "none"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	DataDir        string        `mapstructure:"DATA_DIR"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	FetchTimeout   time.Duration `mapstructure:"FETCH_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`

	ClinicName          string `mapstructure:"CLINIC_NAME"`
	ClinicType          string `mapstructure:"CLINIC_TYPE"`
	ClinicAddress       string `mapstructure:"CLINIC_ADDRESS"`
	ClinicPhone         string `mapstructure:"CLINIC_PHONE"`
	ClinicEmail         string `mapstructure:"CLINIC_EMAIL"`
	ClinicFiscalCode    string `mapstructure:"CLINIC_FISCAL_CODE"`
	ClinicTradeRegistry string `mapstructure:"CLINIC_TRADE_REGISTRY"`
	ClinicCASContract   string `mapstructure:"CLINIC_CAS_CONTRACT"`
	ClinicCASName       string `mapstructure:"CLINIC_CAS_NAME"`

	RenderFontFile       string `mapstructure:"RENDER_FONT_FILE"`
	RenderBoldFontFile   string `mapstructure:"RENDER_BOLD_FONT_FILE"`
	RenderItalicFontFile string `mapstructure:"RENDER_ITALIC_FONT_FILE"`

	ArchiveBackend string `mapstructure:"ARCHIVE_BACKEND"`
	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DATA_DIR",
	"CORS_ORIGINS", "REQUEST_TIMEOUT", "FETCH_TIMEOUT", "BODY_LIMIT",
	"CLINIC_NAME", "CLINIC_TYPE", "CLINIC_ADDRESS", "CLINIC_PHONE", "CLINIC_EMAIL",
	"CLINIC_FISCAL_CODE", "CLINIC_TRADE_REGISTRY", "CLINIC_CAS_CONTRACT", "CLINIC_CAS_NAME",
	"RENDER_FONT_FILE", "RENDER_BOLD_FONT_FILE", "RENDER_ITALIC_FONT_FILE",
	"ARCHIVE_BACKEND", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY",
	"MINIO_BUCKET", "MINIO_USE_SSL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("FETCH_TIMEOUT", "10s")
	v.SetDefault("BODY_LIMIT", "2M")
	v.SetDefault("ARCHIVE_BACKEND", ArchiveMemory)
	v.SetDefault("MINIO_BUCKET", "letters")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.ArchiveBackend = strings.ToLower(strings.TrimSpace(cfg.ArchiveBackend))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesDatabase reports whether consultations are read from PostgreSQL. When
// DATA_DIR is set it takes precedence.
func (c *Config) UsesDatabase() bool {
	return c.DataDir == "" && c.DatabaseURL != ""
}

// Level returns the zerolog level for LOG_LEVEL, info when it does not parse.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Clinic returns the clinic identity printed in every letter header.
func (c *Config) Clinic() letter.ClinicIdentity {
	return letter.ClinicIdentity{
		Name:          c.ClinicName,
		Type:          c.ClinicType,
		Address:       c.ClinicAddress,
		Phone:         c.ClinicPhone,
		Email:         c.ClinicEmail,
		FiscalCode:    c.ClinicFiscalCode,
		TradeRegistry: c.ClinicTradeRegistry,
		CASContract:   c.ClinicCASContract,
		CASName:       c.ClinicCASName,
	}
}

// Validate checks that the configuration is enough to serve letters. Either
// DATABASE_URL or DATA_DIR must name a consultation source.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && c.DataDir == "" {
		return fmt.Errorf("DATABASE_URL or DATA_DIR is required")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("FETCH_TIMEOUT must not be negative, got %s", c.FetchTimeout)
	}
	if (c.RenderBoldFontFile != "" || c.RenderItalicFontFile != "") && c.RenderFontFile == "" {
		return fmt.Errorf("RENDER_FONT_FILE is required when a bold or italic font file is set")
	}

	switch c.ArchiveBackend {
	case ArchiveMemory, ArchiveNone:
	case ArchiveMinio:
		if c.MinioEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required when ARCHIVE_BACKEND is %q", ArchiveMinio)
		}
		if c.MinioBucket == "" {
			return fmt.Errorf("MINIO_BUCKET is required when ARCHIVE_BACKEND is %q", ArchiveMinio)
		}
	default:
		return fmt.Errorf("ARCHIVE_BACKEND must be \"memory\", \"minio\", or \"none\", got %q", c.ArchiveBackend)
	}

	return nil
}
