package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Thin clients for the external speech-to-text, text-to-speech and language
// model services. The services themselves are out of scope: these wrappers
// only post JSON to env-configured endpoints and classify failures so the
// call agent can fail a call deterministically.

// ErrExternalService marks any STT/TTS/LLM failure.
var ErrExternalService = errors.New("speech: external service failure")

// Transcriber converts one utterance of audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer converts agent text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// RespondRequest carries everything the responder may use for one turn.
type RespondRequest struct {
	Script        string            `json:"script"`
	UserText      string            `json:"user_text"`
	Stage         string            `json:"stage"`
	CollectedData map[string]string `json:"collected_data,omitempty"`
}

// Responder produces the agent's reply for one turn.
type Responder interface {
	Respond(ctx context.Context, req RespondRequest) (string, error)
}

// ScriptResponder answers with the rendered campaign script verbatim. It is
// the default when no LLM endpoint is configured.
type ScriptResponder struct{}

func (ScriptResponder) Respond(_ context.Context, req RespondRequest) (string, error) {
	return req.Script, nil
}

// Config holds the endpoints and model knobs, straight from the environment.
type Config struct {
	STTEndpoint  string
	STTModelSize string

	TTSEndpoint string
	TTSVoice    string

	LLMEndpoint string
	LLMModel    string

	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.Timeout <= 0 {
		out.Timeout = 30 * time.Second
	}
	if out.STTModelSize == "" {
		out.STTModelSize = "base"
	}
	return out
}

type HTTPTranscriber struct {
	endpoint string
	model    string
	client   *http.Client
}

func NewHTTPTranscriber(cfg Config) *HTTPTranscriber {
	cfg = cfg.withDefaults()
	return &HTTPTranscriber{
		endpoint: cfg.STTEndpoint,
		model:    cfg.STTModelSize,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	err := postJSON(ctx, t.client, t.endpoint, map[string]any{
		"model": t.model,
		"audio": audio, // base64 via encoding/json
	}, &out)
	if err != nil {
		return "", fmt.Errorf("%w: stt: %v", ErrExternalService, err)
	}
	return out.Text, nil
}

type HTTPSynthesizer struct {
	endpoint string
	voice    string
	client   *http.Client
}

func NewHTTPSynthesizer(cfg Config) *HTTPSynthesizer {
	cfg = cfg.withDefaults()
	return &HTTPSynthesizer{
		endpoint: cfg.TTSEndpoint,
		voice:    cfg.TTSVoice,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var out struct {
		Audio []byte `json:"audio"`
	}
	err := postJSON(ctx, s.client, s.endpoint, map[string]any{
		"voice": s.voice,
		"text":  text,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("%w: tts: %v", ErrExternalService, err)
	}
	return out.Audio, nil
}

type HTTPResponder struct {
	endpoint string
	model    string
	client   *http.Client
}

func NewHTTPResponder(cfg Config) *HTTPResponder {
	cfg = cfg.withDefaults()
	return &HTTPResponder{
		endpoint: cfg.LLMEndpoint,
		model:    cfg.LLMModel,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (r *HTTPResponder) Respond(ctx context.Context, req RespondRequest) (string, error) {
	var out struct {
		Response string `json:"response"`
	}
	err := postJSON(ctx, r.client, r.endpoint, map[string]any{
		"model":          r.model,
		"script":         req.Script,
		"user_text":      req.UserText,
		"stage":          req.Stage,
		"collected_data": req.CollectedData,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("%w: llm: %v", ErrExternalService, err)
	}
	if out.Response == "" {
		// A silent model should not stall the call; fall back to the script.
		return req.Script, nil
	}
	return out.Response, nil
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, in any, out any) error {
	if endpoint == "" {
		return errors.New("endpoint not configured")
	}
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, snippet)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
