package config

import (
	"os"

	"go.uber.org/zap"
)

const (
	DefaultProfile = "default"
	ProfileEnv     = "PROFILE"
	ProfileKey     = "profile"
)

// Source identifies the layer a configuration value came from.
type Source string

const (
	Source_DefaultFile Source = "default-file"
	Source_ProfileFile Source = "profile-file"
	Source_Environment Source = "environment"
	Source_Args        Source = "args"
)

// Options controls where configuration layers are read from.
type Options struct {
	// Directory holding the default and profile files.
	Dir string
	// Base name of the default file, without extension.
	DefaultName string
	// Command line arguments. Nil means os.Args[1:].
	Args []string
	// Process environment in KEY=VALUE form. Nil means os.Environ().
	Environ []string
	// Dotenv files merged under the process environment, later files win.
	// Nil means ".env" and ".env.<profile>"; an empty slice disables dotenv.
	DotEnv []string
	// Only variables starting with EnvPrefix + "_" are used, with the prefix stripped.
	EnvPrefix string
	// Replaced with "." in variable names to address nested keys, e.g. "__".
	EnvSeparator string
	Logger       *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		Dir:         "config",
		DefaultName: DefaultProfile,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Dir == "" {
		o.Dir = d.Dir
	}
	if o.DefaultName == "" {
		o.DefaultName = d.DefaultName
	}
	if o.Args == nil && len(os.Args) > 1 {
		o.Args = os.Args[1:]
	}
	if o.Environ == nil {
		o.Environ = os.Environ()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

func (o Options) dotEnvFiles(profile string) []string {
	if o.DotEnv != nil {
		return o.DotEnv
	}
	files := []string{".env"}
	if profile != "" && profile != o.DefaultName {
		files = append(files, ".env."+profile)
	}
	return files
}
