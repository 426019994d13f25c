package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, "chatsweep.yaml", `
token: abc
bot: true
base_url: http://localhost:1234/api
channels:
  - "111"
  - "222"
max: 10
pace: 2s
`)
	cfg, err := LoadFromFile(path, true)
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Token:    "abc",
		Bot:      true,
		BaseURL:  "http://localhost:1234/api",
		Channels: []string{"111", "222"},
		Max:      10,
		Pace:     "2s",
	}, cfg)

	d, err := cfg.PaceDuration()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
}

func TestLoadFromFileMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := LoadFromFile(missing, false)
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)

	_, err = LoadFromFile(missing, true)
	assert.Error(t, err)
}

func TestLoadFromFileInvalid(t *testing.T) {
	path := writeFile(t, "bad.yaml", "max: [not, a, number\n")
	_, err := LoadFromFile(path, true)
	assert.Error(t, err)
}

func TestApplyEnvPrecedence(t *testing.T) {
	dotenv := writeFile(t, ".env", "CHATSWEEP_TOKEN=from-dotenv\nCHATSWEEP_BOT=true\n")
	vars, err := ReadDotEnv(dotenv)
	require.NoError(t, err)

	env := map[string]string{EnvToken: "from-env"}
	cfg := &Config{Token: "from-file", BaseURL: "http://file"}
	require.NoError(t, cfg.ApplyEnv(Chain(MapLookup(env), MapLookup(vars))))

	assert.Equal(t, "from-env", cfg.Token, "process environment wins over .env")
	assert.True(t, cfg.Bot, ".env applies when the environment is silent")
	assert.Equal(t, "http://file", cfg.BaseURL, "file value kept when nothing overrides it")
}

func TestApplyEnvBadBool(t *testing.T) {
	cfg := &Config{}
	err := cfg.ApplyEnv(MapLookup(map[string]string{EnvBot: "maybe"}))
	assert.Error(t, err)
}

func TestReadDotEnvMissing(t *testing.T) {
	vars, err := ReadDotEnv(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zero", Config{}, false},
		{"full", Config{Channels: []string{"80351110224678912"}, Max: 5, Pace: "1.25s"}, false},
		{"negative max", Config{Max: -1}, true},
		{"bad pace", Config{Pace: "soon"}, true},
		{"negative pace", Config{Pace: "-1s"}, true},
		{"bad channel", Config{Channels: []string{"general"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("HOME", "/home/nelly")
	assert.Equal(t, filepath.Join("/home/nelly", DefaultName), DefaultPath())
}
