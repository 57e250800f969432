package main

import "time"

const (
	defaultBindHost       = "127.0.0.1"
	defaultAPIPort        = 3000
	defaultQueryTimeout   = 30 * time.Second
	defaultExportKeepLast = 24
	storeBackendFile      = "file"
	storeBackendDuckDB    = "duckdb"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Store          string        `mapstructure:"store"`
	LogPath        string        `mapstructure:"log-path"`
	DBPath         string        `mapstructure:"db-path"`
	APIPort        int           `mapstructure:"api-port"`
	APIAddr        string        `mapstructure:"api-addr"`
	AdminToken     string        `mapstructure:"admin-token"`
	ExportDir      string        `mapstructure:"export-dir"`
	ExportBaseURL  string        `mapstructure:"export-base-url"`
	ExportKeepLast int           `mapstructure:"export-keep-last"`
	QueryTimeout   time.Duration `mapstructure:"query-timeout"`
	ConfigPath     string        `mapstructure:"-"` // not from config file
}
