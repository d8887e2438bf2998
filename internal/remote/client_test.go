package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"driftq/internal/config"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logger := zerolog.Nop()
	client, err := NewClient(config.RemoteConfig{
		BaseURL:        baseURL,
		HealthPath:     "/healthz",
		SessionPath:    "/api/v1/session",
		TimeoutSeconds: 5,
		Auth:           config.RemoteAuthConfig{Token: "test-token"},
	}, &logger)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientRequiresAuth(t *testing.T) {
	logger := zerolog.Nop()
	_, err := NewClient(config.RemoteConfig{BaseURL: "http://localhost"}, &logger)
	if err == nil {
		t.Fatal("expected error when neither token nor token_url is configured")
	}
}

func TestInvoke(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.Invoke(context.Background(), http.MethodPost, "/api/v1/todos", []byte(`{"title":"Buy milk"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/api/v1/todos" {
		t.Fatalf("unexpected request: %s %s", gotMethod, gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotBody != `{"title":"Buy milk"}` {
		t.Fatalf("unexpected body: %s", gotBody)
	}
}

func TestInvokeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("todo already exists"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.Invoke(context.Background(), http.MethodPost, "/api/v1/todos", []byte(`{}`))
	if err == nil {
		t.Fatal("expected error for 409 response")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Error(), "409 Conflict") {
		t.Fatalf("error text must carry the status line, got %q", apiErr.Error())
	}
	if !strings.Contains(apiErr.Error(), "todo already exists") {
		t.Fatalf("error text must carry the response body, got %q", apiErr.Error())
	}
}

func TestCheckAuth(t *testing.T) {
	t.Run("Accepted", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/session" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		if err := client.CheckAuth(context.Background()); err != nil {
			t.Fatalf("expected auth to pass, got %v", err)
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		err := client.CheckAuth(context.Background())
		if err == nil || !strings.Contains(err.Error(), "session rejected") {
			t.Fatalf("expected session rejection, got %v", err)
		}
	})
}

func TestProbe(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		if err := client.Probe(context.Background()); err != nil {
			t.Fatalf("probe: %v", err)
		}
	})

	t.Run("ServerError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		if err := client.Probe(context.Background()); err == nil {
			t.Fatal("expected probe failure for 5xx")
		}
	})

	t.Run("Unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		client := newTestClient(t, srv.URL)
		if err := client.Probe(context.Background()); err == nil {
			t.Fatal("expected probe failure for unreachable backend")
		}
	})

	t.Run("AuthFailureCountsAsReachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		if err := client.Probe(context.Background()); err != nil {
			t.Fatalf("401 means the backend is up, got %v", err)
		}
	})
}
