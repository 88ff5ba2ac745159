package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/upperatm/internal/cache"
	"github.com/san-kum/upperatm/internal/kernel"
	"github.com/san-kum/upperatm/internal/native"
	"github.com/san-kum/upperatm/internal/sched"
)

const (
	DefaultDensityModel   = "msis2"
	DefaultWindModel      = "hwm14"
	DefaultPrecision      = "single"
	DefaultFailurePolicy  = "abort-on-first"
	DefaultMaxBatchPoints = 1_000_000
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultSpaceWeather   = "moderate"
	DefaultOutputDir      = "runs"
)

type Config struct {
	DensityModel   string `yaml:"density_model" hcl:"density_model,optional"`
	WindModel      string `yaml:"wind_model" hcl:"wind_model,optional"`
	LibraryPath    string `yaml:"library_path,omitempty" hcl:"library_path,optional"`
	LibraryDir     string `yaml:"library_dir,omitempty" hcl:"library_dir,optional"`
	DataDir        string `yaml:"data_dir,omitempty" hcl:"data_dir,optional"`
	Precision      string `yaml:"precision" hcl:"precision,optional"`
	Workers        int    `yaml:"workers" hcl:"workers,optional"`
	QueueDepth     int    `yaml:"queue_depth" hcl:"queue_depth,optional"`
	CacheCapacity  int    `yaml:"cache_capacity" hcl:"cache_capacity,optional"`
	CacheDigits    int    `yaml:"cache_digits" hcl:"cache_digits,optional"`
	FailurePolicy  string `yaml:"failure_policy" hcl:"failure_policy,optional"`
	BatchTimeout   string `yaml:"batch_timeout,omitempty" hcl:"batch_timeout,optional"`
	MaxBatchPoints int    `yaml:"max_batch_points" hcl:"max_batch_points,optional"`
	Vectorized     bool   `yaml:"vectorized" hcl:"vectorized,optional"`
	SpaceWeather   string `yaml:"space_weather" hcl:"space_weather,optional"`
	OutputDir      string `yaml:"output_dir" hcl:"output_dir,optional"`
	LogLevel       string `yaml:"log_level" hcl:"log_level,optional"`
	LogFormat      string `yaml:"log_format" hcl:"log_format,optional"`
}

func DefaultConfig() *Config {
	workers := sched.DefaultWorkers()
	return &Config{
		DensityModel:   DefaultDensityModel,
		WindModel:      DefaultWindModel,
		Precision:      DefaultPrecision,
		Workers:        workers,
		QueueDepth:     2 * workers,
		CacheCapacity:  cache.DefaultCapacity,
		CacheDigits:    cache.DefaultDigits,
		FailurePolicy:  DefaultFailurePolicy,
		MaxBatchPoints: DefaultMaxBatchPoints,
		Vectorized:     true,
		SpaceWeather:   DefaultSpaceWeather,
		OutputDir:      DefaultOutputDir,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
	}
}

// Load reads a YAML or, for a .hcl file, HCL config over the defaults and
// validates it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		f, diags := hclparse.NewParser().ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL config %s: %w", path, diags)
		}
		if diags := gohcl.DecodeBody(f.Body, nil, cfg); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL config %s: %w", path, diags)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes cfg as YAML.
func Encode(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var err error

	if _, ok := native.Lookup(c.DensityModel); !ok || !isDensity(c.DensityModel) {
		err = multierr.Append(err, &kernel.InvalidParameterError{Param: "density_model", Expected: "msis2, msis00 or msis00d", Actual: c.DensityModel})
	}
	if c.WindModel != "hwm14" && c.WindModel != "hwm93" {
		err = multierr.Append(err, &kernel.InvalidParameterError{Param: "wind_model", Expected: "hwm14 or hwm93", Actual: c.WindModel})
	}
	if _, perr := kernel.ParsePrecision(c.Precision); perr != nil {
		err = multierr.Append(err, perr)
	}
	if _, perr := sched.ParsePolicy(c.FailurePolicy); perr != nil {
		err = multierr.Append(err, perr)
	}
	if c.Workers < 1 {
		err = multierr.Append(err, positive("workers", c.Workers))
	}
	if c.QueueDepth < 1 {
		err = multierr.Append(err, positive("queue_depth", c.QueueDepth))
	}
	if c.CacheCapacity < 0 {
		err = multierr.Append(err, &kernel.InvalidParameterError{Param: "cache_capacity", Expected: ">= 0", Actual: fmt.Sprint(c.CacheCapacity)})
	}
	if c.CacheDigits < 1 || c.CacheDigits > 17 {
		err = multierr.Append(err, &kernel.InvalidParameterError{Param: "cache_digits", Expected: "1..17", Actual: fmt.Sprint(c.CacheDigits)})
	}
	if c.MaxBatchPoints < 1 {
		err = multierr.Append(err, positive("max_batch_points", c.MaxBatchPoints))
	}
	if c.BatchTimeout != "" {
		if d, perr := time.ParseDuration(c.BatchTimeout); perr != nil || d < 0 {
			err = multierr.Append(err, &kernel.InvalidParameterError{Param: "batch_timeout", Expected: "a non-negative duration", Actual: c.BatchTimeout})
		}
	}
	if c.SpaceWeather != "" && GetPreset(c.SpaceWeather) == nil {
		err = multierr.Append(err, &kernel.InvalidParameterError{Param: "space_weather", Expected: strings.Join(ListPresets(), ", "), Actual: c.SpaceWeather})
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		err = multierr.Append(err, &kernel.InvalidParameterError{Param: "log_format", Expected: "console or json", Actual: c.LogFormat})
	}
	return err
}

func positive(param string, v int) error {
	return &kernel.InvalidParameterError{Param: param, Expected: "> 0", Actual: fmt.Sprint(v)}
}

func isDensity(name string) bool {
	switch name {
	case "msis2", "msis00", "msis00d":
		return true
	}
	return false
}

// PrecisionValue returns the parsed precision, Single when invalid.
func (c *Config) PrecisionValue() kernel.Precision {
	p, _ := kernel.ParsePrecision(c.Precision)
	return p
}

func (c *Config) Policy() sched.Policy {
	p, _ := sched.ParsePolicy(c.FailurePolicy)
	return p
}

// Timeout returns the batch timeout, zero when unset.
func (c *Config) Timeout() time.Duration {
	d, _ := time.ParseDuration(c.BatchTimeout)
	return d
}

// NativeOptions maps library settings onto binding options.
func (c *Config) NativeOptions() []native.Option {
	opts := []native.Option{native.WithPrecision(c.PrecisionValue())}
	if c.LibraryPath != "" {
		opts = append(opts, native.WithLibraryPath(c.LibraryPath))
	}
	if c.LibraryDir != "" {
		opts = append(opts, native.WithLibraryDir(c.LibraryDir))
	}
	if c.DataDir != "" {
		opts = append(opts, native.WithDataDir(c.DataDir))
	}
	return opts
}
