package api

import (
	"net/http"
	"testing"

	"github.com/npezzotti/go-relay/internal/config"
	"github.com/npezzotti/go-relay/internal/database"
	"github.com/npezzotti/go-relay/internal/server"
	"github.com/npezzotti/go-relay/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewRelayApp(t *testing.T) {
	mux := http.NewServeMux()
	logger := testutil.TestLogger(t)
	cs := &server.ChatServer{}
	db := &database.MockRelayRepository{}
	idp := newTestIdentity()
	cfg := &config.Config{
		ServerAddr:     "localhost:8080",
		DatabaseDSN:    "dsn",
		SigningKey:     []byte("secret"),
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	app := NewRelayApp(mux, logger, cs, db, idp, cfg)

	assert.NotNil(t, app, "expected app to be initialized")
	assert.NotNil(t, app.mux, "expected mux to be initialized")
	assert.Equal(t, app.log, logger, "expected logger to be set")
	assert.Equal(t, app.db, db, "expected db to be set")
	assert.Equal(t, app.cs, cs, "expected chat server to be set")
	assert.Equal(t, app.identity, idp, "expected identity provider to be set")
	assert.Equal(t, cfg.AllowedOrigins, app.allowedOrigins, "expected allowed origins to be set")
	assert.Equal(t, app.mux.Addr, cfg.ServerAddr, "expected server address to match config")
}
