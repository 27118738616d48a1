package assistant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ErrMissingAPIKey means the proxy was never configured and every call will
// fail the same way.
var ErrMissingAPIKey = errors.New("assistant: GEMINI_API_KEY is not set")

// ErrUnavailable wraps exhaustion of the whole fallback chain.
var ErrUnavailable = errors.New("assistant: all models failed")

// ApiError is a non-2xx reply from the upstream LLM API.
type ApiError struct {
	StatusCode int
	Model      string
	Body       string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("assistant: model %s returned %d: %s", e.Model, e.StatusCode, e.Body)
}

// retryable reports whether the next model in the chain is worth trying.
// Rate limits and server errors are per-model conditions; auth failures are
// not, a bad key fails everywhere.
func (e *ApiError) retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}

// Service proxies the Gemini generateContent API, walking an ordered list of
// candidate models until one answers.
type Service struct {
	Client  *http.Client
	APIKey  string
	BaseURL string
	Models  []string
}

func NewService(apiKey string) *Service {
	return &Service{
		Client:  &http.Client{Timeout: 30 * time.Second},
		APIKey:  apiKey,
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		Models: []string{
			"gemini-2.5-flash",
			"gemini-2.0-flash-lite-001",
			"gemini-2.0-flash",
		},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate runs the prompt through the fallback chain and returns the first
// successful completion.
func (s *Service) Generate(prompt string) (string, error) {
	if s.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	var lastErr error
	for _, model := range s.Models {
		text, err := s.generateWith(model, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var apiErr *ApiError
		if errors.As(err, &apiErr) {
			if !apiErr.retryable() {
				// auth/key class errors fail for every model, stop here
				return "", err
			}
			log.Printf("Model %s failed (%d), trying next", model, apiErr.StatusCode)
			continue
		}
		// transport error, next model goes through the same client so a
		// retry is still worth it
		log.Printf("Model %s failed: %v", model, err)
	}

	if lastErr == nil {
		lastErr = ErrUnavailable
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (s *Service) generateWith(model, prompt string) (string, error) {
	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", s.BaseURL, model, s.APIKey)
	resp, err := s.Client.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ApiError{StatusCode: resp.StatusCode, Model: model, Body: string(body)}
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", &ApiError{StatusCode: resp.StatusCode, Model: model, Body: "empty candidates"}
	}

	return out.Candidates[0].Content.Parts[0].Text, nil
}
