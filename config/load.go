package config

import (
	"fmt"

	"github.com/dozm/waiter/errorx"
	"go.uber.org/zap"
)

// Load builds the store for profile. Layers, lowest precedence first:
// the default file, the profile file (skipped for the default profile),
// the environment (dotenv files under the process environment) and the
// command line.
func Load(profile string, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	log := opts.Logger

	layers := make([]Layer, 0, 4)

	l, ok, err := readFile(opts.Dir, opts.DefaultName, Source_DefaultFile)
	if err != nil {
		return nil, err
	}
	if ok {
		log.Debug("config file loaded", zap.String("source", string(l.Source)), zap.String("path", l.Name))
		layers = append(layers, l)
	}

	if profile != "" && profile != opts.DefaultName {
		l, ok, err = readFile(opts.Dir, profile, Source_ProfileFile)
		if err != nil {
			return nil, err
		}
		if ok {
			log.Debug("config file loaded", zap.String("source", string(l.Source)), zap.String("path", l.Name))
			layers = append(layers, l)
		} else {
			log.Debug("no config file for profile", zap.String("profile", profile), zap.String("dir", opts.Dir))
		}
	}

	dotenv, err := readDotEnv(opts.dotEnvFiles(profile))
	if err != nil {
		return nil, err
	}
	layers = append(layers,
		envLayer(dotenv, opts.Environ, opts.EnvPrefix, opts.EnvSeparator),
		argsLayer(opts.Args))

	return NewStore(layers...), nil
}

// ResolveProfile picks the active profile from, in order: the --profile
// argument, the PROFILE environment variable, the profile key of the
// default file, and finally DefaultProfile.
func ResolveProfile(opts Options) (string, error) {
	opts = opts.withDefaults()

	profile, from, err := resolveProfile(opts)
	if err != nil {
		return "", err
	}
	opts.Logger.Info("using profile", zap.String("profile", profile), zap.String("from", from))
	return profile, nil
}

func resolveProfile(opts Options) (string, string, error) {
	if p, ok := parseArgs(opts.Args)[ProfileKey].(string); ok && p != "" {
		return p, string(Source_Args), nil
	}

	if p := environMap(opts.Environ)[ProfileEnv]; p != "" {
		return p, string(Source_Environment), nil
	}

	l, ok, err := readFile(opts.Dir, opts.DefaultName, Source_DefaultFile)
	if err != nil {
		return "", "", err
	}
	if ok {
		if v, found := l.Values[ProfileKey]; found {
			p, err := AsString(v)
			if err != nil {
				return "", "", &errorx.ConfigLoadError{Source: l.Name, Err: fmt.Errorf("profile: %w", err)}
			}
			if p != "" {
				return p, string(Source_DefaultFile), nil
			}
		}
	}

	return DefaultProfile, "fallback", nil
}
