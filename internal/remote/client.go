/*
Package remote connects the client controllers to the Schoolmaps server.

Client speaks the JSON envelope API, Auth implements the identity stream on top of it,
and Live multiplexes every live subscription over one websocket. Profiles, Docs and
Blobs adapt these to the collaborator interfaces of the session and collections
packages.
*/
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"schoolmaps/internal/localstate"
	"schoolmaps/internal/pkg/errs"
	"schoolmaps/internal/pkg/logx"
	"schoolmaps/internal/pkg/resp"
)

const requestTimeout = 30 * time.Second

// Client calls the HTTP API and holds the bearer token.
type Client struct {
	base   string
	http   *http.Client
	local  localstate.Store
	logger zerolog.Logger

	mu    sync.RWMutex
	token string
}

// NewClient builds a Client for baseURL. The token is restored from local.
func NewClient(baseURL string, local localstate.Store) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: requestTimeout},
		local:  local,
		logger: logx.Component("remote"),
	}

	if rec, err := local.Load(); err != nil {
		c.logger.Warn().Err(err).Msg("loading stored token failed")
	} else {
		c.token = rec.AuthToken
	}
	return c
}

// Token returns the current bearer token, empty when signed out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the token and persists it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	if err := c.local.Update(func(r *localstate.Record) { r.AuthToken = token }); err != nil {
		c.logger.Warn().Err(err).Msg("saving token failed")
	}
}

// call sends in as the JSON body, if any, and decodes the envelope's data into out. Non-zero envelope codes come back as *errs.CustomError.
func (c *Client) call(ctx context.Context, method, path string, in, out any, header http.Header) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	if err := resp.Decode(res.Body, res.StatusCode, out); err != nil {
		var customErr *errs.CustomError
		if errors.As(err, &customErr) {
			return customErr
		}
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.call(ctx, http.MethodPost, path, in, out, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodGet, path, nil, out, nil)
}
