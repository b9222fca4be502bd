package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dozm/waiter/errorx"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func isolated(dir string) Options {
	return Options{
		Dir:     dir,
		Args:    []string{},
		Environ: []string{},
		DotEnv:  []string{},
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.yaml", "level: 1\nname: base\n")
	writeFile(t, dir, "dev.toml", "level = 2\n")

	cases := []struct {
		name    string
		environ []string
		args    []string
		profile string
		want    int64
		found   bool
	}{
		{"cli wins", []string{"LEVEL=3"}, []string{"--level", "4"}, "dev", 4, true},
		{"env over profile file", []string{"LEVEL=3"}, nil, "dev", 3, true},
		{"profile file over default", nil, nil, "dev", 2, true},
		{"default file only", nil, nil, DefaultProfile, 1, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := isolated(dir)
			if tc.environ != nil {
				opts.Environ = tc.environ
			}
			if tc.args != nil {
				opts.Args = tc.args
			}
			s, err := Load(tc.profile, opts)
			require.NoError(t, err)

			v, ok, err := s.GetInt("level")
			require.NoError(t, err)
			assert.Equal(t, tc.found, ok)
			assert.Equal(t, tc.want, v)
		})
	}

	s, err := Load(DefaultProfile, isolated(t.TempDir()))
	require.NoError(t, err)
	_, ok, err := s.GetInt("level")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoad_Sources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.json", `{"db": {"host": "localhost", "port": 5432}, "ratio": 0.5}`)
	writeFile(t, dir, "prod.yml", "db:\n  host: db.internal\n")

	s, err := Load("prod", isolated(dir))
	require.NoError(t, err)

	want := []Layer{
		{Source: Source_DefaultFile, Name: filepath.Join(dir, "default.json"), Values: map[string]any{
			"db":    map[string]any{"host": "localhost", "port": int64(5432)},
			"ratio": 0.5,
		}},
		{Source: Source_ProfileFile, Name: filepath.Join(dir, "prod.yml"), Values: map[string]any{
			"db": map[string]any{"host": "db.internal"},
		}},
		{Source: Source_Environment, Name: "env", Values: map[string]any{}},
		{Source: Source_Args, Name: "args", Values: map[string]any{}},
	}
	if diff := cmp.Diff(want, s.Layers()); diff != "" {
		t.Errorf("layers mismatch (-want +got):\n%s", diff)
	}

	// the profile tree shadows the default one, leaf keys fall through
	v, ok := s.Lookup("db")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"host": "db.internal"}, v)

	port, ok, err := s.GetInt("DB.Port")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(5432), port)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "default.yaml", "level: [1, 2\n")

	_, err := Load(DefaultProfile, isolated(dir))
	var le *errorx.ConfigLoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, path, le.Source)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, ".env", "GREETING=hello\nPORT=80\n")
	dev := writeFile(t, dir, ".env.dev", "GREETING=hi\n")

	opts := isolated(dir)
	opts.DotEnv = []string{base, dev, filepath.Join(dir, ".env.missing")}
	opts.Environ = []string{"PORT=8080"}

	s, err := Load("dev", opts)
	require.NoError(t, err)

	greeting, _, err := s.GetString("greeting")
	require.NoError(t, err)
	assert.Equal(t, "hi", greeting)

	port, _, err := s.GetInt("port")
	require.NoError(t, err)
	assert.Equal(t, int64(8080), port)
}

func TestLoad_EnvPrefixAndSeparator(t *testing.T) {
	opts := isolated(t.TempDir())
	opts.EnvPrefix = "APP"
	opts.EnvSeparator = "__"
	opts.Environ = []string{"APP_DB__HOST=remote", "HOME=/root", "APP_DEBUG=true"}

	s, err := Load(DefaultProfile, opts)
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"db.host", "debug"}, s.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}

	debug, ok, err := s.GetBool("debug")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, debug)
}

func TestParseArgs(t *testing.T) {
	got := parseArgs([]string{"serve", "--port", "8080", "--verbose", "--Mode=Fast", "--offset", "-5", "--dry-run"})
	want := map[string]any{
		"port":    "8080",
		"verbose": true,
		"mode":    "Fast",
		"offset":  "-5",
		"dry-run": true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveProfile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.yaml", "profile: staging\n")

	opts := isolated(dir)
	p, err := ResolveProfile(opts)
	require.NoError(t, err)
	assert.Equal(t, "staging", p)

	opts.Environ = []string{"PROFILE=qa"}
	p, err = ResolveProfile(opts)
	require.NoError(t, err)
	assert.Equal(t, "qa", p)

	opts.Args = []string{"--profile", "dev"}
	p, err = ResolveProfile(opts)
	require.NoError(t, err)
	assert.Equal(t, "dev", p)

	p, err = ResolveProfile(isolated(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile, p)

	bad := t.TempDir()
	writeFile(t, bad, "default.yaml", "profile: 3\n")
	_, err = ResolveProfile(isolated(bad))
	require.Error(t, err)
}
