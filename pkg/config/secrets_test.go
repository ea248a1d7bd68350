package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	secrets := map[string]string{
		EnvAnthropicAPIKey: "sk-ant-test",
		"CUSTOM_TOKEN":     "value-123",
	}

	require.NoError(t, EncryptSecretsFile(dir, "hunter2", secrets))
	assert.True(t, SecretsFileExists(dir))

	// Encrypted at rest with owner-only permissions.
	path := filepath.Join(dir, ProjectConfigDir, "secrets.json.enc")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-ant-test")

	decrypted, err := DecryptSecretsFile(dir, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, secrets, decrypted)
}

func TestSecretsWrongPassword(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EncryptSecretsFile(dir, "correct", map[string]string{"K": "v"}))

	_, err := DecryptSecretsFile(dir, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestSecretsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	configDir := filepath.Join(dir, ProjectConfigDir)
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "secrets.json.enc"),
		[]byte("short"), 0o600))

	_, err := DecryptSecretsFile(dir, "any")
	assert.Error(t, err)
}

func TestSecretsPermissionsFixed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EncryptSecretsFile(dir, "pw", map[string]string{"K": "v"}))

	path := filepath.Join(dir, ProjectConfigDir, "secrets.json.enc")
	require.NoError(t, os.Chmod(path, 0o644))

	_, err := DecryptSecretsFile(dir, "pw")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestGetSecretPrecedence(t *testing.T) {
	t.Cleanup(func() { SetDecryptedSecrets(nil) })

	t.Setenv("PAPERWRIGHT_SECRET_PROBE", "from-env")

	SetDecryptedSecrets(map[string]string{"PAPERWRIGHT_SECRET_PROBE": "from-file"})
	value, err := GetSecret("PAPERWRIGHT_SECRET_PROBE")
	require.NoError(t, err)
	assert.Equal(t, "from-file", value, "secrets file beats environment")

	SetDecryptedSecrets(nil)
	value, err = GetSecret("PAPERWRIGHT_SECRET_PROBE")
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)

	_, err = GetSecret("PAPERWRIGHT_SECRET_ABSENT")
	assert.Error(t, err)
}

func TestSetAndDeleteSecret(t *testing.T) {
	t.Cleanup(func() { SetDecryptedSecrets(nil) })

	require.NoError(t, SetSecret("K", "v"))
	assert.Contains(t, GetDecryptedSecretNames(), "K")

	require.NoError(t, DeleteSecret("K"))
	assert.NotContains(t, GetDecryptedSecretNames(), "K")
}

func TestAnthropicAPIKey(t *testing.T) {
	t.Cleanup(func() { SetDecryptedSecrets(nil) })
	SetDecryptedSecrets(nil)

	key, err := AnthropicAPIKey("explicit-key")
	require.NoError(t, err)
	assert.Equal(t, "explicit-key", key)

	t.Setenv(EnvAnthropicAPIKey, "env-key")
	key, err = AnthropicAPIKey("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", key)
}
