package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if in["model"] != "small" {
			t.Fatalf("model = %v, want small", in["model"])
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "hello there"})
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(Config{STTEndpoint: srv.URL, STTModelSize: "small"})
	got, err := tr.Transcribe(context.Background(), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "hello there" {
		t.Fatalf("text = %q", got)
	}
}

func TestHTTPTranscriberServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(Config{STTEndpoint: srv.URL})
	if _, err := tr.Transcribe(context.Background(), nil); !errors.Is(err, ErrExternalService) {
		t.Fatalf("err = %v, want ErrExternalService", err)
	}
}

func TestHTTPSynthesizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]byte{"audio": {0xAA, 0xBB}})
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(Config{TTSEndpoint: srv.URL, TTSVoice: "en_US-kristin"})
	audio, err := s.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(audio) != 2 {
		t.Fatalf("audio = %v", audio)
	}
}

func TestHTTPResponderFallsBackToScript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"response": ""})
	}))
	defer srv.Close()

	r := NewHTTPResponder(Config{LLMEndpoint: srv.URL, LLMModel: "llama3"})
	got, err := r.Respond(context.Background(), RespondRequest{Script: "Hi, this is Dana."})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got != "Hi, this is Dana." {
		t.Fatalf("response = %q", got)
	}
}

func TestScriptResponder(t *testing.T) {
	got, err := (ScriptResponder{}).Respond(context.Background(), RespondRequest{Script: "Welcome."})
	if err != nil || got != "Welcome." {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestUnconfiguredEndpoint(t *testing.T) {
	tr := NewHTTPTranscriber(Config{})
	if _, err := tr.Transcribe(context.Background(), nil); !errors.Is(err, ErrExternalService) {
		t.Fatalf("err = %v, want ErrExternalService", err)
	}
}
