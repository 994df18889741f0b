package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/justtherip/packvault/internal/logger"
	"github.com/justtherip/packvault/internal/service/catalog"
)

const (
	defaultListenAddr   = "localhost:8080"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the packvault service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key used to verify access tokens issued by the auth provider
	SecretKey string

	// Shared secret for the manual catalog sync endpoint.
	// The endpoint stays disabled while this is empty.
	CronSecret string

	// Run the catalog sync scheduler inside this process
	SyncEnabled bool

	// Cron spec for the scheduled catalog sync
	SyncSchedule string

	// Card categories to sync from the upstream catalog
	SyncCategories []string

	// Upstream catalog base URL
	TCGBaseURL string

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:       defaultLoggingLevel,
		ListenAddr:     defaultListenAddr,
		Environment:    defaultEnvironment,
		SyncSchedule:   catalog.DefaultSchedule,
		SyncCategories: catalog.DefaultCategories,
		TCGBaseURL:     catalog.DefaultBaseURL,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setBool := func(o *bool) func(value string) {
		return func(value string) {
			if parsed, err := strconv.ParseBool(value); err == nil {
				*o = parsed
			}
		}
	}
	setStrings := func(o *[]string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = strings.Split(value, ",")
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":     setString(&c.ListenAddr),
		"DATABASE_URI":    setString(&c.DatabaseDSN),
		"SECRET_KEY":      setString(&c.SecretKey),
		"CRON_SECRET":     setString(&c.CronSecret),
		"LOG_LEVEL":       setString(&c.LogLevel),
		"ENVIRONMENT":     setString(&c.Environment),
		"SYNC_ENABLED":    setBool(&c.SyncEnabled),
		"SYNC_SCHEDULE":   setString(&c.SyncSchedule),
		"SYNC_CATEGORIES": setStrings(&c.SyncCategories),
		"TCG_BASE_URL":    setString(&c.TCGBaseURL),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("packvault", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Access token secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.CronSecret, "cron-secret", c.CronSecret, "Shared secret for the manual sync endpoint")
	fs.BoolVar(&c.SyncEnabled, "sync", c.SyncEnabled, "Run the catalog sync scheduler")
	fs.StringVar(&c.SyncSchedule, "sync-schedule", c.SyncSchedule, "Cron spec for the scheduled catalog sync")
	fs.StringSliceVar(&c.SyncCategories, "sync-categories", c.SyncCategories, "Card categories to sync")
	fs.StringVar(&c.TCGBaseURL, "tcg-url", c.TCGBaseURL, "Upstream catalog base URL")

	return fs.Parse(args)
}
