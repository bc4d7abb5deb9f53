package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"alphabot/internal/config"
	"alphabot/internal/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintSettings(t *testing.T) {
	st := settings.Defaults([]string{"+15550001111"})

	var yml bytes.Buffer
	require.NoError(t, printSettings(&yml, st, "yaml"))
	assert.Contains(t, yml.String(), "prefix: ")
	assert.Contains(t, yml.String(), "ownerNumbers:")
	assert.Contains(t, yml.String(), "15550001111")

	var js bytes.Buffer
	require.NoError(t, printSettings(&js, st, "json"))
	assert.Contains(t, js.String(), `"ownerNumbers": [`)

	assert.Error(t, printSettings(&js, st, "toml"))
}

func TestBackupRestore(t *testing.T) {
	src := t.TempDir()
	targets := map[string]string{
		backupConfigName:             filepath.Join(src, "config.json"),
		backupSettingsName + ".json": filepath.Join(src, "settings.json"),
		backupFeedbackName:           filepath.Join(src, "missing.log"),
	}
	require.NoError(t, os.WriteFile(targets[backupConfigName], []byte(`{"general":{}}`), 0o600))
	require.NoError(t, os.WriteFile(targets[backupSettingsName+".json"], []byte(`{"prefix":"!"}`), 0o600))

	archive := filepath.Join(t.TempDir(), "b.tar.gz")
	n, err := createBackup(archive, targets)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dst := t.TempDir()
	restoreTo := map[string]string{
		backupConfigName:             filepath.Join(dst, "c", "config.json"),
		backupSettingsName + ".json": filepath.Join(dst, "s", "settings.json"),
	}
	restored, err := extractBackup(archive, restoreTo)
	require.NoError(t, err)
	assert.Len(t, restored, 2)

	data, err := os.ReadFile(restoreTo[backupSettingsName+".json"])
	require.NoError(t, err)
	assert.Equal(t, `{"prefix":"!"}`, string(data))
}

func TestBackupNothingToArchive(t *testing.T) {
	dir := t.TempDir()
	_, err := createBackup(filepath.Join(dir, "b.tar.gz"), map[string]string{
		backupConfigName: filepath.Join(dir, "nope.json"),
	})
	assert.Error(t, err)
}

func TestBackupTargetsFollowConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Settings.Path = filepath.Join(dir, "bot.yaml")
	cfg.Feedback.Path = filepath.Join(dir, "fb.log")
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, config.Save(cfgPath, cfg))

	targets := backupTargets(cfgPath)
	assert.Equal(t, cfgPath, targets[backupConfigName])
	assert.Equal(t, cfg.Settings.Path, targets["settings.yaml"])
	assert.Equal(t, cfg.Feedback.Path, targets[backupFeedbackName])
}

func TestServiceFile(t *testing.T) {
	path, body, err := serviceFile("linux", "/usr/local/bin/alphabot", "/etc/alphabot.json")
	require.NoError(t, err)
	assert.Equal(t, systemdUnit, filepath.Base(path))
	assert.Contains(t, body, "ExecStart=/usr/local/bin/alphabot run --config /etc/alphabot.json")

	path, body, err = serviceFile("darwin", "/bin/alphabot", "/c.json")
	require.NoError(t, err)
	assert.Equal(t, launchdLabel+".plist", filepath.Base(path))
	assert.Contains(t, body, "<string>run</string>")
	assert.NotContains(t, body, "{{")

	_, _, err = serviceFile("plan9", "", "")
	assert.Error(t, err)
}

func TestEnabledChannels(t *testing.T) {
	cfg := config.Defaults()
	cfg.Bridge.Enabled = true
	cfg.Telegram.Enabled = true // no token: skipped
	cfg.Console.Enabled = true

	chs := enabledChannels(cfg)
	require.Len(t, chs, 2)
	assert.Equal(t, "whatsapp", chs[0].Name())
	assert.Equal(t, "console", chs[1].Name())
}
