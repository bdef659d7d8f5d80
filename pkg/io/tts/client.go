package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client speaks the wyoming-piper style HTTP API:
// GET /api/text-to-speech?text=...&voice=... streams a WAV body on success.
type Client struct {
	BaseURL string
	HTTP    *http.Client // inject; default if nil
	Voice   string       // default voice (override per-call)
	Timeout time.Duration
}

func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL}
}

// Open performs one synthesis request and hands the raw audio body to the
// caller, who must Close it.
func (c *Client) Open(ctx context.Context, text, optVoice string) (io.ReadCloser, string, error) {
	if text == "" {
		return nil, "", fmt.Errorf("empty text")
	}
	voice := c.Voice
	if optVoice != "" {
		voice = optVoice
	}

	u, err := url.Parse(c.BaseURL + "/api/text-to-speech")
	if err != nil {
		return nil, "", err
	}
	q := u.Query()
	q.Set("text", text)
	if voice != "" {
		q.Set("voice", voice)
	}
	u.RawQuery = q.Encode()

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx2, cancel := context.WithTimeout(ctx, timeout)

	req, err := http.NewRequestWithContext(ctx2, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, "", err
	}
	req.Header.Set("Accept", "audio/wav")

	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{}
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		cancel()
		return nil, "", fmt.Errorf("tts http request failed: %w (url=%s)", err, u.String())
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, "", fmt.Errorf("tts http %d: %s (url=%s, dur=%s)", resp.StatusCode, string(b), u.String(), time.Since(start))
	}

	ct := resp.Header.Get("Content-Type")
	return &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}, ct, nil
}

// Synthesize buffers one full utterance.
func (c *Client) Synthesize(ctx context.Context, text, optVoice string) ([]byte, error) {
	rc, _, err := c.Open(ctx, text, optVoice)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("tts read body: %w", err)
	}
	return data, nil
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
