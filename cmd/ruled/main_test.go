// ruled/cmd/ruled/main_test.go

package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruled/pkg/ruleset"
	"ruled/pkg/runtime"
	"ruled/pkg/store"
)

// Mock implementations for testing purposes
type MockStoreFactory struct{}

func (f *MockStoreFactory) NewStore(addr, password string, db int) store.Store {
	return store.NewRedisStore(addr, password, db)
}

type MockEngineFactory struct{}

func (f *MockEngineFactory) NewEngine(snapshot *ruleset.Snapshot, config *Config, eventStore store.Store) (*runtime.Engine, error) {
	return runtime.NewEngine(snapshot), nil
}

func TestParseConfig(t *testing.T) {
	// Reset the flag set before each test run
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	configFile, err := os.CreateTemp("", "ruled_config*.json")
	require.NoError(t, err)
	defer os.Remove(configFile.Name())

	configContent := `{
		"rules": {
			"dir": "testdata/rules",
			"duplicate_policy": "first_wins",
			"watch": false
		},
		"engine": {
			"output_dir": "/tmp/ruled-out",
			"history_size": 32,
			"script_timeout_ms": 250
		},
		"logging": {
			"level": "debug",
			"output": "console"
		},
		"redis": {
			"address": "localhost:6379",
			"password": "password",
			"database": 1,
			"channels": ["command"]
		},
		"dashboard": {
			"enabled": true,
			"port": 9090,
			"update_interval": 15
		}
	}`
	_, err = configFile.WriteString(configContent)
	require.NoError(t, err)
	configFile.Close()

	args := []string{"ruled", "--config", configFile.Name()}
	config, err := parseConfig(args)
	require.NoError(t, err)

	assert.Equal(t, "testdata/rules", config.RulesDir)
	assert.Equal(t, "first_wins", config.DuplicatePolicy)
	assert.False(t, config.WatchRules)
	assert.Equal(t, "/tmp/ruled-out", config.OutputDir)
	assert.Equal(t, 32, config.HistorySize)
	assert.Equal(t, 250, config.ScriptTimeoutMS)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "console", config.LogDestination)
	assert.Equal(t, "localhost:6379", config.RedisAddress)
	assert.Equal(t, "password", config.RedisPassword)
	assert.Equal(t, 1, config.RedisDB)
	assert.Equal(t, []string{"command"}, config.RedisChannels)
	assert.True(t, config.DashboardEnabled)
	assert.Equal(t, 9090, config.DashboardPort)
	assert.Equal(t, 15, config.DashboardUpdateInterval)
}

func writeRuleCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	doc := `{
		"rules": [
			{
				"name": "onboard",
				"filters": [{"type": "command", "pattern": "onboard project"}],
				"actions": [{"type": "suggest", "message": "Project onboarding complete!"}]
			}
		]
	}`
	err := os.WriteFile(filepath.Join(dir, "onboard.json"), []byte(doc), 0o644)
	require.NoError(t, err)
	return dir
}

func TestSetupDependencies(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	config := &Config{
		RulesDir:        writeRuleCorpus(t),
		DuplicatePolicy: string(ruleset.DuplicateLastWins),
		OutputDir:       "out",
		HistorySize:     8,
		RedisAddress:    s.Addr(),
	}

	deps, err := setupDependencies(config, &MockStoreFactory{}, &MockEngineFactory{})
	require.NoError(t, err)
	assert.NotNil(t, deps.Store)
	assert.NotNil(t, deps.Engine)
	assert.Equal(t, 1, deps.RuleStore.Snapshot().Len())
}

func TestProcessMessage(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	redisStore := store.NewRedisStore(s.Addr(), "", 0)

	dir := writeRuleCorpus(t)
	ruleStore := ruleset.NewStore(dir)
	snapshot, _, err := ruleStore.Load()
	require.NoError(t, err)
	engine := runtime.NewEngine(snapshot)

	// Listen for published effects.
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	pubsub := client.Subscribe(context.Background(), store.EffectsChannel)
	_, err = pubsub.Receive(context.Background())
	require.NoError(t, err)
	defer pubsub.Close()

	msg := &redis.Message{Channel: "command", Payload: "command=onboard project"}
	require.NoError(t, processMessage(engine, redisStore, msg))

	select {
	case effect := <-pubsub.Channel():
		assert.Contains(t, effect.Payload, "Project onboarding complete!")
		assert.Contains(t, effect.Payload, "message")
	case <-time.After(2 * time.Second):
		t.Fatal("expected a published effect")
	}
}

func TestProcessMessageInvalidPayload(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	redisStore := store.NewRedisStore(s.Addr(), "", 0)
	engine := runtime.NewEngine(ruleset.NewSnapshot(nil))

	msg := &redis.Message{Channel: "command", Payload: "no separator here"}
	err = processMessage(engine, redisStore, msg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid payload format")
}
