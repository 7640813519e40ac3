package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/operations/testutil"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts"
)

type fixedClients int

func (c fixedClients) ClientCount() int { return int(c) }

func TestHealthService(t *testing.T) {
	f := newServiceFixture(t)
	hs := NewHealthService("http://pipeline.local/api", f.Service, fixedClients(2), testutil.DiscardLogger())

	assert.Equal(t, "ok", hs.HealthCheck(context.Background()).Status)

	live := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", live.Status)
	assert.Contains(t, live.Runtime, "goroutines")

	ready := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "2 clients connected", ready.Services["websocket"].(ServiceHealth).Message)
	assert.Equal(t, "state idle", ready.Services["forecast"].(ServiceHealth).Message)

	assert.Equal(t, contracts.Version, hs.Version().Version)
}

func TestReadinessWithoutEndpoint(t *testing.T) {
	hs := NewHealthService("", nil, nil, nil)

	ready := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", ready.Status)
	assert.Equal(t, "not_ready", ready.Services["pipeline"].(ServiceHealth).Status)
	assert.Equal(t, "ready", ready.Services["websocket"].(ServiceHealth).Status)
}
