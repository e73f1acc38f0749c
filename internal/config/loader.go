package config

import (
	"log/slog"
)

// DefaultEnvFile is read when present unless another file is requested.
const DefaultEnvFile = ".env"

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile is a YAML or TOML file. Empty falls back to WANSYNC_CONFIG.
	ConfigFile string

	// EnvFile is a dotenv file loaded before anything else.
	EnvFile string

	// EnvFileRequired makes a missing EnvFile an error.
	EnvFileRequired bool
}

// Load reads configuration with precedence defaults < config file <
// environment, validates it, and returns every problem at once as a
// *ValidationError. No network calls are made.
func Load(opts LoadOptions) (*Config, error) {
	var errs []string

	envLoaded, err := loadDotEnv(opts.EnvFile, opts.EnvFileRequired)
	if err != nil {
		return nil, &ValidationError{Errors: []string{err.Error()}}
	}

	path := opts.ConfigFile
	if path == "" {
		path = getEnv("WANSYNC_CONFIG")
	}

	global := defaultGlobalConfig()
	unifiCfg := defaultUniFiConfig()
	webCfg := defaultWebConfig()
	openDNSCfg := defaultOpenDNSConfig()
	r53 := defaultRoute53Config()

	var fileCfg *FileConfig
	if path != "" {
		fileCfg, err = LoadFile(path)
		if err != nil {
			return nil, &ValidationError{Errors: []string{"config file: " + err.Error()}}
		}
		slog.Info("loaded configuration from file", slog.String("path", path))

		errs = append(errs, fileCfg.applyGlobal(global)...)
		fileCfg.applyBackends(unifiCfg, webCfg, openDNSCfg, r53)
	}

	global, globalErrs := mergeGlobalConfig(global)
	errs = append(errs, globalErrs...)
	errs = append(errs, mergeUniFiConfig(unifiCfg)...)
	mergeWebConfig(webCfg)
	mergeOpenDNSConfig(openDNSCfg)
	errs = append(errs, mergeRoute53Config(r53)...)

	unifiCfg.finalize()

	var fileRecords []FileRecordConfig
	if fileCfg != nil {
		fileRecords = fileCfg.Records
	}
	records, recordErrs := buildRecords(fileRecords, r53, global.RecordTypes)
	errs = append(errs, recordErrs...)

	cfg := &Config{
		Global:     global,
		UniFi:      *unifiCfg,
		Web:        *webCfg,
		OpenDNS:    *openDNSCfg,
		Route53:    *r53,
		Records:    records,
		ConfigFile: path,
	}
	if envLoaded {
		cfg.EnvFile = opts.EnvFile
	}

	errs = append(errs, validateConfig(cfg)...)

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return cfg, nil
}
