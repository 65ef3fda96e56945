package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenKVRedisPingsEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":"PONG"}`)
	}))
	defer server.Close()
	t.Setenv("REDIS_URL", server.URL)
	t.Setenv("REDIS_TOKEN", "token")

	kv, err := openKV(context.Background(), "redis")
	if err != nil {
		t.Fatalf("openKV(redis) error = %v", err)
	}
	if kv == nil {
		t.Fatal("openKV(redis) returned nil store")
	}
}

func TestOpenKVRedisUnreachableFailsStartup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()
	t.Setenv("REDIS_URL", endpoint)
	t.Setenv("REDIS_TOKEN", "token")

	if _, err := openKV(context.Background(), "redis"); err == nil {
		t.Fatal("openKV(redis) must fail when the endpoint is unreachable")
	}
}

func TestOpenKVRedisMissingCredentials(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_TOKEN", "")

	_, err := openKV(context.Background(), "redis")
	if err == nil {
		t.Fatal("openKV(redis) must fail without credentials")
	}
	if !strings.Contains(err.Error(), "REDIS_URL") || !strings.Contains(err.Error(), "REDIS_TOKEN") {
		t.Fatalf("error must name the missing keys, got %v", err)
	}
}

func TestOpenKVUnknownBackend(t *testing.T) {
	if _, err := openKV(context.Background(), "postgres"); err == nil {
		t.Fatal("openKV must reject unknown backends")
	}
}
