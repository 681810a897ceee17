package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RESTConfig configures a Firebase Realtime Database style REST client.
type RESTConfig struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
	// HTTPClient overrides the default client, e.g. with an OAuth2 transport.
	HTTPClient *http.Client
}

// restStore implements RemoteStore against {BaseURL}/{path}.json endpoints.
type restStore struct {
	baseURL   *url.URL
	authToken string
	client    *http.Client
}

// NewRESTStore creates a RemoteStore that talks to a Firebase-compatible REST
// endpoint.
func NewRESTStore(cfg RESTConfig) (RemoteStore, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("creating rest store: base URL must not be empty")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating rest store: parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("creating rest store: unsupported scheme %q", u.Scheme)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout > 0 {
		c := *client
		c.Timeout = cfg.Timeout
		client = &c
	}

	return &restStore{
		baseURL:   u,
		authToken: cfg.AuthToken,
		client:    client,
	}, nil
}

func (s *restStore) endpoint(path string) string {
	u := *s.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + CleanPath(path) + ".json"
	if s.authToken != "" {
		q := u.Query()
		q.Set("auth", s.authToken)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do performs a request and returns the response body. A JSON null body is
// returned as nil.
func (s *restStore) do(ctx context.Context, method, path string, doc any) (json.RawMessage, error) {
	var body io.Reader
	if doc != nil {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%s %s: marshaling document: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: building request: %w", method, path, err)
	}
	if doc != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading response: %w: %w", method, path, ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: %w: status %d", method, path, ErrRequestFailed, resp.StatusCode)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

func (s *restStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return s.do(ctx, http.MethodGet, path, nil)
}

func (s *restStore) Create(ctx context.Context, path string, doc any) (string, error) {
	data, err := s.do(ctx, http.MethodPost, path, doc)
	if err != nil {
		return "", err
	}
	var resp struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &resp); err != nil || resp.Name == "" {
		return "", fmt.Errorf("POST %s: %w: missing generated key in response", path, ErrRequestFailed)
	}
	return resp.Name, nil
}

func (s *restStore) Put(ctx context.Context, path string, doc any) (json.RawMessage, error) {
	return s.do(ctx, http.MethodPut, path, doc)
}

func (s *restStore) Delete(ctx context.Context, path string) error {
	_, err := s.do(ctx, http.MethodDelete, path, nil)
	return err
}
