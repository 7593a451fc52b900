// Package swarm talks to a Swarm HTTP gateway and publishes contract
// metadata together with the sources it references.
package swarm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

var ErrHashMismatch = errors.New("Hash mismatch")

type Client struct {
	gateway string
	http    *http.Client
	logger  *zap.Logger
}

func New(gateway string, client *http.Client, logger *zap.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		gateway: strings.TrimSuffix(gateway, "/"),
		http:    client,
		logger:  logger.Named("swarm"),
	}
}

// Get fetches a bzz URL (bzz://, bzzr://, bzzi://) through the gateway.
func (c *Client) Get(ctx context.Context, url string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, c.gateway+"/"+url, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Put stores content and returns the hash the gateway assigned to it.
func (c *Client) Put(ctx context.Context, content string) (string, error) {
	body, err := c.do(ctx, http.MethodPost, c.gateway+"/bzzr:/", strings.NewReader(content))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// VerifiedPut stores content and fails unless the gateway hash equals
// expectedHash.
func (c *Client) VerifiedPut(ctx context.Context, content, expectedHash string) error {
	hash, err := c.Put(ctx, content)
	if err != nil {
		return err
	}
	if hash != expectedHash {
		c.logger.Warn("hash mismatch", zap.String("expected", expectedHash), zap.String("got", hash))
		return ErrHashMismatch
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("swarm gateway: %s", resp.Status)
	}
	return buf.Bytes(), nil
}
