// Package mcp resolves which of the corpus's declared MCP connections are
// actually reachable at request time. The engine excludes any skill whose
// required services did not answer the probe.
package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"

	"github.com/opus67/skillctx/pkg/logger"
	"github.com/opus67/skillctx/pkg/version"
)

// ServerType selects the transport used to reach an MCP server.
type ServerType string

const (
	ServerTypeStdio ServerType = "stdio"
	ServerTypeSSE   ServerType = "sse"
)

// ServerConfig describes one named MCP server.
type ServerConfig struct {
	ServerType ServerType        `json:"server_type" mapstructure:"server_type"`
	Command    string            `json:"command" mapstructure:"command"`
	Args       []string          `json:"args" mapstructure:"args"`
	Envs       map[string]string `json:"envs" mapstructure:"envs"`
	BaseURL    string            `json:"base_url" mapstructure:"base_url"`
	Headers    map[string]string `json:"headers" mapstructure:"headers"`
}

// Prober checks which configured MCP servers respond to an initialize
// handshake within the timeout. Probes run concurrently; an unreachable
// server is a normal outcome, never an error.
type Prober struct {
	servers map[string]ServerConfig
	timeout time.Duration
}

// NewProber creates a Prober over the named server configurations.
func NewProber(servers map[string]ServerConfig, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{servers: servers, timeout: timeout}
}

// Available returns the sorted names of servers that completed the MCP
// initialize handshake.
func (p *Prober) Available(ctx context.Context) []string {
	if len(p.servers) == 0 {
		return nil
	}

	var mu sync.Mutex
	var available []string
	var wg sync.WaitGroup

	for name, cfg := range p.servers {
		wg.Add(1)
		go func(name string, cfg ServerConfig) {
			defer wg.Done()
			if err := p.probe(ctx, cfg); err != nil {
				logger.G(ctx).WithField("server", name).WithError(err).Debug("mcp server unreachable")
				return
			}
			mu.Lock()
			available = append(available, strings.ToLower(name))
			mu.Unlock()
		}(name, cfg)
	}
	wg.Wait()

	sort.Strings(available)
	return available
}

func (p *Prober) probe(ctx context.Context, cfg ServerConfig) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cli, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer cli.Close()

	if err := cli.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start mcp client")
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "skillctx",
		Version: version.Version,
	}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		return errors.Wrap(err, "mcp initialize failed")
	}
	return nil
}

func newClient(cfg ServerConfig) (*client.Client, error) {
	serverType := cfg.ServerType
	if serverType == "" {
		switch {
		case cfg.BaseURL != "":
			serverType = ServerTypeSSE
		case cfg.Command != "":
			serverType = ServerTypeStdio
		default:
			return nil, errors.New("server_type is required")
		}
	}

	switch serverType {
	case ServerTypeStdio:
		if cfg.Command == "" {
			return nil, errors.New("command is required for stdio server")
		}
		envArgs := make([]string, 0, len(cfg.Envs))
		for k, v := range cfg.Envs {
			envArgs = append(envArgs, fmt.Sprintf("%s=%s", k, v))
		}
		tp := transport.NewStdio(cfg.Command, envArgs, cfg.Args...)
		return client.NewClient(tp), nil
	case ServerTypeSSE:
		if cfg.BaseURL == "" {
			return nil, errors.New("base_url is required for sse server")
		}
		tp, err := transport.NewSSE(cfg.BaseURL, transport.WithHeaders(cfg.Headers))
		if err != nil {
			return nil, err
		}
		return client.NewClient(tp), nil
	default:
		return nil, errors.Errorf("invalid server type %q", serverType)
	}
}
