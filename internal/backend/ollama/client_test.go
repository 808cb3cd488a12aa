package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/modelgate/modelgate/internal/domain"
)

func TestGenerate(t *testing.T) {
	var got generatePayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(domain.Generation{
			Model:    got.Model,
			Response: "Paris",
			Done:     true,
		})
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	gen, err := client.Generate(context.Background(), &domain.GenerateRequest{
		Prompt: "What is the capital of France?",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if gen.Response != "Paris" {
		t.Errorf("Response = %q, want Paris", gen.Response)
	}
	if got.Model != defaultModel {
		t.Errorf("model = %q, want default %q", got.Model, defaultModel)
	}
	if got.Stream {
		t.Error("stream must be disabled")
	}
	if got.KeepAlive != defaultKeepAlive {
		t.Errorf("keep_alive = %q, want %q", got.KeepAlive, defaultKeepAlive)
	}
}

func TestGenerate_ExplicitModel(t *testing.T) {
	var got generatePayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(domain.Generation{Done: true})
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).Generate(context.Background(), &domain.GenerateRequest{
		Prompt: "hi",
		Model:  "llama3:8b",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Model != "llama3:8b" {
		t.Errorf("model = %q, want llama3:8b", got.Model)
	}
}

func TestGenerate_StripsDataURIPrefix(t *testing.T) {
	var got generatePayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(domain.Generation{Done: true})
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).Generate(context.Background(), &domain.GenerateRequest{
		Prompt: "what is in this image",
		Images: []string{"data:image/png;base64,aVZCT1J3"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(got.Images) != 1 || got.Images[0] != "aVZCT1J3" {
		t.Errorf("images = %v, want bare base64 payload", got.Images)
	}
}

func TestGenerate_BackendError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).Generate(context.Background(), &domain.GenerateRequest{Prompt: "hi"})

	var gerr *domain.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *domain.Error, got %v", err)
	}
	if gerr.Kind != domain.ErrorKindBackend {
		t.Errorf("Kind = %q, want %q", gerr.Kind, domain.ErrorKindBackend)
	}
	// The caller-facing message stays fixed; the cause carries detail.
	if gerr.Message != "Internal server error" {
		t.Errorf("Message = %q, want fixed message", gerr.Message)
	}
	if gerr.Err == nil {
		t.Error("expected cause to be attached for logs")
	}
}

func TestGenerate_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(ts.URL).Generate(ctx, &domain.GenerateRequest{Prompt: "hi"})

	var gerr *domain.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *domain.Error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in cause chain, got %v", gerr.Err)
	}
}

func TestListModels(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		w.Write([]byte(`{"models": [
			{"name": "llama3:8b", "model": "llama3:8b", "size": 4661224676,
			 "details": {"family": "llama", "parameter_size": "8B", "quantization_level": "Q4_0"}}
		]}`))
	}))
	defer ts.Close()

	models, err := NewClient(ts.URL).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("len(models) = %d, want 1", len(models))
	}
	m := models[0]
	if m.Name != "llama3:8b" || m.Size != 4661224676 {
		t.Errorf("unexpected model: %+v", m)
	}
	if m.Details.Family != "llama" {
		t.Errorf("Details.Family = %q", m.Details.Family)
	}
}

func TestListModels_MalformedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).ListModels(context.Background())

	var gerr *domain.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *domain.Error, got %v", err)
	}
	if gerr.Kind != domain.ErrorKindBackend {
		t.Errorf("Kind = %q, want %q", gerr.Kind, domain.ErrorKindBackend)
	}
}
