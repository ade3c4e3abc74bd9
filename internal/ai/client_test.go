package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/autoconsolidate"
	"github.com/starford/laguz/internal/cluster"
)

func newServer(t *testing.T, status int, content string) (*httptest.Server, *chatRequest) {
	t.Helper()
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(status)
		if status < http.StatusBadRequest {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
			})
			return
		}
		_, _ = w.Write([]byte("upstream failure"))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestSuggestTopics(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"clusters":[]}`)
	c := New(Config{Endpoint: srv.URL, Model: "m", APIKey: "secret"})

	resp, err := c.SuggestTopics(context.Background(), cluster.Request{Kind: cluster.KindClusterDocuments, Prompt: "group these"})
	if err != nil {
		t.Fatalf("SuggestTopics: %v", err)
	}
	if resp.Kind != cluster.KindClusterDocuments || resp.Text != `{"clusters":[]}` {
		t.Errorf("unexpected response %+v", resp)
	}
	if got.Model != "m" || len(got.Messages) != 2 || got.Messages[1].Content != "group these" {
		t.Errorf("unexpected request %+v", got)
	}
	if got.Messages[0].Content != defaultSystemPrompt {
		t.Errorf("system prompt = %q", got.Messages[0].Content)
	}
}

func TestClassifyDocument(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"isDocumentation":true}`)
	c := New(Config{Endpoint: srv.URL, Model: "m", APIKey: "secret"})

	resp, err := c.ClassifyDocument(context.Background(), autoconsolidate.ClassifyRequest{
		Kind:   autoconsolidate.KindClassifyDocumentation,
		Path:   "notes.txt",
		Prompt: "is this documentation?",
	})
	if err != nil {
		t.Fatalf("ClassifyDocument: %v", err)
	}
	if resp.Kind != autoconsolidate.KindClassifyDocumentation {
		t.Errorf("kind = %q", resp.Kind)
	}
}

func TestUpstreamError(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadGateway, "")
	c := New(Config{Endpoint: srv.URL, Model: "m", APIKey: "secret"})

	_, err := c.SuggestTopics(context.Background(), cluster.Request{Kind: cluster.KindClusterDocuments})
	if !errors.Is(err, apperr.ErrAIUnavailable) {
		t.Fatalf("expected ErrAIUnavailable, got %v", err)
	}
}

func TestWrongKindRejected(t *testing.T) {
	c := New(Config{Endpoint: "http://127.0.0.1:1", Model: "m"})
	if _, err := c.SuggestTopics(context.Background(), cluster.Request{Kind: "other"}); err == nil {
		t.Fatal("expected error for mismatched kind")
	}
}

func TestNewWithoutEndpointIsAbsent(t *testing.T) {
	if c := New(Config{Model: "m"}); c != nil {
		t.Fatal("expected nil client without endpoint")
	}
}
