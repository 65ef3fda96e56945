package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	defaultStoreKeyPrefix = "mstore:"
	maxResponseSizeBytes  = 2 << 20
)

// StoreOption customizes RedisRESTStore.
type StoreOption func(*RedisRESTStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *RedisRESTStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *RedisRESTStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// RedisRESTStore implements KV over an Upstash-style Redis REST
// endpoint. Checkpoints and memory profiles are written without a TTL:
// history is retained for replay and audit, profiles never expire.
type RedisRESTStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type RedisRESTConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

func NewRedisRESTStore(cfg RedisRESTConfig, opts ...StoreOption) (*RedisRESTStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("redis rest url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("redis rest token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	store := &RedisRESTStore{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		keyPrefix: defaultStoreKeyPrefix,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	return store, nil
}

// Ping verifies the endpoint is reachable, for fail-fast startup.
func (s *RedisRESTStore) Ping(ctx context.Context) error {
	_, err := s.exec(ctx, []any{"PING"})
	return err
}

func (s *RedisRESTStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	redisKey, err := s.redisKey(namespace, key)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"GET", redisKey})
	if err != nil {
		return nil, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrKeyNotFound
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode value payload: %w", err)
	}
	return []byte(encoded), nil
}

func (s *RedisRESTStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	redisKey, err := s.redisKey(namespace, key)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, []any{"SET", redisKey, string(value)})
	return err
}

func (s *RedisRESTStore) List(ctx context.Context, namespace, prefix string) ([]string, error) {
	if strings.TrimSpace(namespace) == "" {
		return nil, errors.New("namespace is empty")
	}
	pattern := s.keyPrefix + namespace + ":" + prefix + "*"

	resp, err := s.exec(ctx, []any{"KEYS", pattern})
	if err != nil {
		return nil, err
	}

	var full []string
	if err := json.Unmarshal(resp.Result, &full); err != nil {
		return nil, fmt.Errorf("decode keys payload: %w", err)
	}

	stripped := make([]string, 0, len(full))
	for _, k := range full {
		stripped = append(stripped, strings.TrimPrefix(k, s.keyPrefix+namespace+":"))
	}
	sort.Strings(stripped)
	return stripped, nil
}

func (s *RedisRESTStore) redisKey(namespace, key string) (string, error) {
	if strings.TrimSpace(namespace) == "" {
		return "", errors.New("namespace is empty")
	}
	if strings.TrimSpace(key) == "" {
		return "", errors.New("key is empty")
	}
	return s.keyPrefix + namespace + ":" + key, nil
}

func (s *RedisRESTStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if s == nil {
		return nil, errors.New("nil store")
	}
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}
