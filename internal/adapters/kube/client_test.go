package kube

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kubeconfig = `apiVersion: v1
kind: Config
current-context: dev
clusters:
- name: dev
  cluster:
    server: https://dev.example:6443
- name: prod
  cluster:
    server: https://prod.example:6443
users:
- name: admin
  user:
    token: not-a-real-token
contexts:
- name: dev
  context:
    cluster: dev
    user: admin
- name: prod
  context:
    cluster: prod
    user: admin
`

func writeKubeconfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(kubeconfig), 0o600))
	return path
}

func TestLoad_CurrentContext(t *testing.T) {
	client, err := Load(writeKubeconfig(t), "")
	require.NoError(t, err)

	assert.Equal(t, "dev", client.Context)
	assert.Equal(t, "https://dev.example:6443", client.RestConfig.Host)
	assert.Equal(t, "flux9s", client.RestConfig.UserAgent)
	assert.NotNil(t, client.Clientset)
}

func TestLoad_ExplicitContext(t *testing.T) {
	client, err := Load(writeKubeconfig(t), "prod")
	require.NoError(t, err)

	assert.Equal(t, "prod", client.Context)
	assert.Equal(t, "https://prod.example:6443", client.RestConfig.Host)
}

func TestLoad_UnknownContext(t *testing.T) {
	_, err := Load(writeKubeconfig(t), "staging")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"staging"`)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"), "")
	assert.Error(t, err)
}
