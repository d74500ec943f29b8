package echoapi

import (
	"net/http"
	"testing"
	"time"
)

func Test_server_startBindsListener(t *testing.T) {
	app := setup(t)
	app.conf.Server.Host = "127.0.0.1"
	app.conf.Server.Port = "0"

	go app.server.Start()
	select {
	case err := <-app.server.Errors():
		t.Fatalf("Start() failed: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	if err := app.server.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := <-app.server.Errors(); err != http.ErrServerClosed {
		t.Errorf("Start() returned %v; want %v", err, http.ErrServerClosed)
	}
}
