package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientTransportInference(t *testing.T) {
	// Explicit types.
	_, err := newClient(ServerConfig{ServerType: ServerTypeStdio, Command: "mcp-server"})
	assert.NoError(t, err)
	_, err = newClient(ServerConfig{ServerType: ServerTypeSSE, BaseURL: "http://localhost:9000"})
	assert.NoError(t, err)

	// Inferred from the populated field.
	_, err = newClient(ServerConfig{Command: "mcp-server"})
	assert.NoError(t, err)
	_, err = newClient(ServerConfig{BaseURL: "http://localhost:9000"})
	assert.NoError(t, err)
}

func TestNewClientRejectsInvalidConfigs(t *testing.T) {
	_, err := newClient(ServerConfig{})
	assert.Error(t, err)

	_, err = newClient(ServerConfig{ServerType: ServerTypeStdio})
	assert.Error(t, err)

	_, err = newClient(ServerConfig{ServerType: ServerTypeSSE})
	assert.Error(t, err)

	_, err = newClient(ServerConfig{ServerType: "websocket", Command: "x"})
	assert.Error(t, err)
}

func TestAvailableEmptyConfiguration(t *testing.T) {
	p := NewProber(nil, time.Second)
	assert.Nil(t, p.Available(context.Background()))
}

func TestAvailableUnreachableServer(t *testing.T) {
	p := NewProber(map[string]ServerConfig{
		"ghost": {ServerType: ServerTypeStdio, Command: "/nonexistent/mcp-server"},
	}, 500*time.Millisecond)

	require.Empty(t, p.Available(context.Background()))
}

func TestProberDefaultTimeout(t *testing.T) {
	p := NewProber(nil, 0)
	assert.Equal(t, 5*time.Second, p.timeout)
}
