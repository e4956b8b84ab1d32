package raylog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/prometheus/client_golang/prometheus"
)

type Options struct {
	// Output directory for all log files.
	Dir string `yaml:"dir"`

	// Primary (before query) and verify (after query) stream filenames.
	Ray1File        string `yaml:"ray1"`
	Ray1VerifyFile  string `yaml:"ray1_verify"`
	Ray4File        string `yaml:"ray4"`
	Ray4VerifyFile  string `yaml:"ray4_verify"`
	Ray8File        string `yaml:"ray8"`
	Ray8VerifyFile  string `yaml:"ray8_verify"`
	Ray16File       string `yaml:"ray16"`
	Ray16VerifyFile string `yaml:"ray16_verify"`

	// Geometry dump filename.
	GeometryFile string `yaml:"geometry"`

	// Registry for logger metrics. If nil, metrics are tracked but not exported.
	Registerer prometheus.Registerer `yaml:"-"`

	// Invoked on unrecoverable errors. Defaults to Fatal.
	OnFatal FatalHandler `yaml:"-"`
}

// Get the default logger options.
func DefaultOptions() Options {
	return Options{
		Dir:             ".",
		Ray1File:        "ray1.bin",
		Ray1VerifyFile:  "ray1_verify.bin",
		Ray4File:        "ray4.bin",
		Ray4VerifyFile:  "ray4_verify.bin",
		Ray8File:        "ray8.bin",
		Ray8VerifyFile:  "ray8_verify.bin",
		Ray16File:       "ray16.bin",
		Ray16VerifyFile: "ray16_verify.bin",
		GeometryFile:    "geometry.bin",
	}
}

// Load options from a yaml file. Fields missing from the file keep their
// default values.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}

	if err = yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("raylog: could not parse options from %s: %w", path, err)
	}
	return opts, nil
}

// Get the primary and verify stream paths for a packet width.
func (o *Options) StreamPaths(width int) (primary, verify string, err error) {
	switch width {
	case 1:
		primary, verify = o.Ray1File, o.Ray1VerifyFile
	case 4:
		primary, verify = o.Ray4File, o.Ray4VerifyFile
	case 8:
		primary, verify = o.Ray8File, o.Ray8VerifyFile
	case 16:
		primary, verify = o.Ray16File, o.Ray16VerifyFile
	default:
		return "", "", ErrUnsupportedWidth
	}
	return filepath.Join(o.Dir, primary), filepath.Join(o.Dir, verify), nil
}

// Get the path of the geometry dump file.
func (o *Options) GeometryPath() string {
	return filepath.Join(o.Dir, o.GeometryFile)
}
