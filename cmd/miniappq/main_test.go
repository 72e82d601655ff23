package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/miniappq/internal/application"
	"github.com/ericfisherdev/miniappq/internal/config"
	"github.com/ericfisherdev/miniappq/internal/domain/model"
)

type stubValidator map[string]bool

func (s stubValidator) Validate(_ context.Context, p model.Proxy) bool {
	return !s[p.Addr()]
}

func TestSelectBots(t *testing.T) {
	cfg := &config.Config{Bots: []string{"gamebot", "otherbot"}}

	got, err := selectBots(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"gamebot", "otherbot"}, got)

	got, err = selectBots(cfg, []string{"otherbot"})
	require.NoError(t, err)
	assert.Equal(t, []string{"otherbot"}, got)

	_, err = selectBots(cfg, []string{"otherbot", "nobot"})
	assert.ErrorContains(t, err, "nobot")
}

func TestFailurePolicy(t *testing.T) {
	assert.Equal(t, application.AbortOnFailure, failurePolicy(config.ErrorPolicyAbort))
	assert.Equal(t, application.SkipFailures, failurePolicy(config.ErrorPolicySkip))
}

func TestCheckProxies(t *testing.T) {
	proxies := []model.Proxy{
		{Protocol: "http", Host: "10.0.0.1", Port: 8080, Login: "user", Password: "hunter2"},
		{Protocol: "socks5", Host: "10.0.0.2", Port: 1080},
	}

	var out bytes.Buffer
	err := checkProxies(context.Background(), &out, stubValidator{}, proxies)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "http://10.0.0.1:8080")
	assert.Contains(t, out.String(), "socks5://10.0.0.2:1080")
	assert.NotContains(t, out.String(), "hunter2")
	assert.NotContains(t, out.String(), "unreachable")
}

func TestCheckProxies_ReportsFailures(t *testing.T) {
	proxies := []model.Proxy{
		{Protocol: "http", Host: "10.0.0.1", Port: 8080},
		{Protocol: "http", Host: "10.0.0.2", Port: 8080},
	}

	var out bytes.Buffer
	err := checkProxies(context.Background(), &out, stubValidator{"10.0.0.2:8080": true}, proxies)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Contains(t, out.String(), "unreachable")
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "generate", "proxies"})
}
