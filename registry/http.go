package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/adambraimbridge/origami-build-service-v3/auth"
	"github.com/adambraimbridge/origami-build-service-v3/cache"
	obshttp "github.com/adambraimbridge/origami-build-service-v3/http"
	"github.com/adambraimbridge/origami-build-service-v3/observability"
)

// SessionHeader carries the cache policy's session id on registry requests.
const SessionHeader = "X-Origami-Session-Id"

// HTTPRegistry reads version records from a registry over HTTP:
//
//	GET <base>/packages/<name>            {"versions": [Record, ...]}
//	GET <base>/packages/<name>/<version>  Record
//
// Responses are kept in an optional response cache.
type HTTPRegistry struct {
	baseURL string
	client  *obshttp.Client
	cache   *cache.MultiTierCache
	auth    auth.Authenticator
	logger  observability.Logger
}

// HTTPOptions configures an HTTPRegistry.
type HTTPOptions struct {
	BaseURL string
	Client  *obshttp.Client
	Cache   *cache.MultiTierCache // nil disables response caching
	Auth    auth.Authenticator    // nil sends no credentials
	Logger  observability.Logger
}

// NewHTTPRegistry creates an HTTP registry client.
func NewHTTPRegistry(opts HTTPOptions) (*HTTPRegistry, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid registry URL %q", opts.BaseURL)
	}
	client := opts.Client
	if client == nil {
		client = obshttp.NewClient(obshttp.DefaultConfig())
	}
	return &HTTPRegistry{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		client:  client,
		cache:   opts.Cache,
		auth:    opts.Auth,
		logger:  observability.OrNull(opts.Logger),
	}, nil
}

// URL returns the registry base URL.
func (r *HTTPRegistry) URL() string {
	return r.baseURL
}

// ListVersions implements Registry.
func (r *HTTPRegistry) ListVersions(ctx context.Context, name string) ([]Record, error) {
	body, err := r.fetch(ctx, "versions/"+name, r.baseURL+"/packages/"+url.PathEscape(name), "package "+name)
	if err != nil {
		return nil, err
	}

	var listing struct {
		Versions []Record `json:"versions"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decode versions of %s: %w", name, err)
	}
	return listing.Versions, nil
}

// GetVersion implements Registry.
func (r *HTTPRegistry) GetVersion(ctx context.Context, name, version string) (Record, error) {
	endpoint := r.baseURL + "/packages/" + url.PathEscape(name) + "/" + url.PathEscape(version)
	body, err := r.fetch(ctx, "version/"+name+"@"+version, endpoint, "package "+name+" "+version)
	if err != nil {
		return Record{}, err
	}

	var record Record
	if err := json.Unmarshal(body, &record); err != nil {
		return Record{}, fmt.Errorf("decode %s %s: %w", name, version, err)
	}
	return record, nil
}

func (r *HTTPRegistry) fetch(ctx context.Context, key, endpoint, what string) ([]byte, error) {
	if r.cache != nil {
		data, ok, err := r.cache.Get(ctx, r.baseURL, key)
		if err != nil {
			r.logger.WarnContext(ctx, "Reading cached registry response {Key} failed: {Error}", key, err)
		} else if ok {
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if policy := cache.PolicyFrom(ctx); policy != nil && policy.SessionID != "" {
		req.Header.Set(SessionHeader, policy.SessionID)
	}
	if r.auth != nil {
		if err := r.auth.Authenticate(req); err != nil {
			return nil, fmt.Errorf("authenticate %s: %w", what, err)
		}
	}

	resp, err := r.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", what, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp, what); err != nil {
		return nil, err
	}
	data, err := readDocument(resp.Body, what)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, r.baseURL, key, data); err != nil {
			r.logger.WarnContext(ctx, "Caching registry response {Key} failed: {Error}", key, err)
		}
	}
	return data, nil
}

// HTTPObjectStore serves archives from <base>/<location>.
type HTTPObjectStore struct {
	baseURL string
	client  *obshttp.Client
}

// NewHTTPObjectStore creates an object store client.
func NewHTTPObjectStore(baseURL string, client *obshttp.Client) *HTTPObjectStore {
	if client == nil {
		client = obshttp.NewClient(obshttp.DefaultConfig())
	}
	return &HTTPObjectStore{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

// Open implements ObjectStore. The caller closes the returned body.
func (s *HTTPObjectStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	segments := strings.Split(strings.TrimPrefix(location, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}

	resp, err := s.client.Get(ctx, s.baseURL+"/"+strings.Join(segments, "/"))
	if err != nil {
		return nil, fmt.Errorf("fetch object %s: %w", location, err)
	}
	if err := statusError(resp, "object "+location); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}
