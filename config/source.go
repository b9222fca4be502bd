package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dozm/waiter/errorx"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type decodeFunc func([]byte) (map[string]any, error)

var fileFormats = []struct {
	ext    string
	decode decodeFunc
}{
	{".yaml", decodeYAML},
	{".yml", decodeYAML},
	{".toml", decodeTOML},
	{".json", decodeJSON},
}

func decodeYAML(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeTOML(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeJSON(data []byte) (map[string]any, error) {
	var m map[string]any
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	if err := d.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// readFile loads dir/base with the first known extension that exists.
// A missing file is not an error.
func readFile(dir, base string, source Source) (Layer, bool, error) {
	for _, f := range fileFormats {
		path := filepath.Join(dir, base+f.ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Layer{}, false, &errorx.ConfigLoadError{Source: path, Err: err}
		}

		m, err := f.decode(data)
		if err != nil {
			return Layer{}, false, &errorx.ConfigLoadError{Source: path, Err: err}
		}
		return Layer{Source: source, Name: path, Values: normalizeMap(m)}, true, nil
	}
	return Layer{}, false, nil
}

func readDotEnv(files []string) (map[string]string, error) {
	merged := map[string]string{}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		vars, err := godotenv.Read(f)
		if err != nil {
			return nil, &errorx.ConfigLoadError{Source: f, Err: err}
		}
		for k, v := range vars {
			merged[k] = v
		}
	}
	return merged, nil
}

func environMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		m[k] = v
	}
	return m
}

func envLayer(dotenv map[string]string, environ []string, prefix, separator string) Layer {
	values := map[string]any{}
	add := func(vars map[string]string) {
		for k, v := range vars {
			if key, ok := envKey(k, prefix, separator); ok {
				setPath(values, splitKey(key), v)
			}
		}
	}
	add(dotenv)
	add(environMap(environ))
	return Layer{Source: Source_Environment, Name: "env", Values: values}
}

func envKey(name, prefix, separator string) (string, bool) {
	key := strings.ToLower(name)
	if prefix != "" {
		p := strings.ToLower(prefix) + "_"
		if !strings.HasPrefix(key, p) {
			return "", false
		}
		key = key[len(p):]
	}
	if separator != "" {
		key = strings.ReplaceAll(key, strings.ToLower(separator), ".")
	}
	key = strings.Trim(key, ".")
	return key, key != ""
}

// parseArgs reads "--key value", "--key=value" and bare "--flag" arguments.
// A flag directly followed by another "--" argument, or last, is true.
func parseArgs(args []string) map[string]any {
	values := map[string]any{}
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "--") || len(a) == 2 {
			continue
		}
		name := a[2:]
		if k, v, ok := strings.Cut(name, "="); ok {
			if path := splitKey(k); path != nil {
				setPath(values, path, v)
			}
			continue
		}

		path := splitKey(name)
		if path == nil {
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			setPath(values, path, args[i+1])
			i++
		} else {
			setPath(values, path, true)
		}
	}
	return values
}

func argsLayer(args []string) Layer {
	return Layer{Source: Source_Args, Name: "args", Values: parseArgs(args)}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return normalizeMap(x)
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[strings.ToLower(fmt.Sprint(k))] = normalize(v)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, v := range x {
			s[i] = normalize(v)
		}
		return s
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return normalizeUint(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return normalizeUint(x)
	case float32:
		return float64(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	}
	return v
}

func normalizeUint(u uint64) any {
	if u <= 1<<63-1 {
		return int64(u)
	}
	return u
}
