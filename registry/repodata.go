package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/adambraimbridge/origami-build-service-v3/auth"
	obshttp "github.com/adambraimbridge/origami-build-service-v3/http"
	"github.com/adambraimbridge/origami-build-service-v3/observability"
)

const (
	// DefaultCatalogURL is the Origami repo-data API.
	DefaultCatalogURL = "https://origami-repo-data.ft.com/v1"

	// DefaultCodeURL is the npm registry component archives are packed from.
	DefaultCodeURL = "https://registry.npmjs.org"

	catalogConcurrency = 8
)

// RepoDataCatalog lists components from a repo-data API:
//
//	GET <base>/repos                      [{"id", "name", "type"}, ...]
//	GET <base>/repos/<id>/versions        [{"version", "manifests": {"package": {...}}}, ...]
//
// The API authenticates with an API key and secret pair.
type RepoDataCatalog struct {
	baseURL string
	client  *obshttp.Client
	auth    auth.Authenticator
	logger  observability.Logger
}

// RepoDataOptions configures a RepoDataCatalog.
type RepoDataOptions struct {
	BaseURL string
	Client  *obshttp.Client
	Auth    auth.Authenticator
	Logger  observability.Logger
}

// NewRepoDataCatalog creates a catalog client.
func NewRepoDataCatalog(opts RepoDataOptions) (*RepoDataCatalog, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid catalog URL %q", opts.BaseURL)
	}
	client := opts.Client
	if client == nil {
		client = obshttp.NewClient(obshttp.DefaultConfig())
	}
	return &RepoDataCatalog{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		client:  client,
		auth:    opts.Auth,
		logger:  observability.OrNull(opts.Logger),
	}, nil
}

type repo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type repoVersion struct {
	Version   string `json:"version"`
	Manifests struct {
		Package *manifestDependencies `json:"package"`
		Bower   *manifestDependencies `json:"bower"`
	} `json:"manifests"`
}

type manifestDependencies struct {
	Dependencies json.RawMessage `json:"dependencies"`
}

// dependencies prefers the package.json manifest and falls back to bower.json.
func (v repoVersion) dependencies() json.RawMessage {
	if m := v.Manifests.Package; m != nil && len(m.Dependencies) > 0 {
		return m.Dependencies
	}
	if m := v.Manifests.Bower; m != nil {
		return m.Dependencies
	}
	return nil
}

// Components implements Catalog. Components are returned in the order the
// API lists repositories, each repository's versions in API order.
func (c *RepoDataCatalog) Components(ctx context.Context) ([]Component, error) {
	var repos []repo
	if err := c.getJSON(ctx, c.baseURL+"/repos", "repositories", &repos); err != nil {
		return nil, err
	}

	perRepo := make([][]Component, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogConcurrency)
	for i, r := range repos {
		if r.ID == "" || r.Name == "" {
			c.logger.WarnContext(ctx, "Skipping repository without id or name: {Repository}", r)
			continue
		}
		g.Go(func() error {
			var versions []repoVersion
			endpoint := c.baseURL + "/repos/" + url.PathEscape(r.ID) + "/versions"
			if err := c.getJSON(gctx, endpoint, "versions of "+r.Name, &versions); err != nil {
				return err
			}
			for _, v := range versions {
				if v.Version == "" {
					continue
				}
				perRepo[i] = append(perRepo[i], Component{Name: r.Name, Version: v.Version, Dependencies: v.dependencies()})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var components []Component
	for _, list := range perRepo {
		components = append(components, list...)
	}
	c.logger.DebugContext(ctx, "Catalog lists {Count} versions of {Repositories} repositories", len(components), len(repos))
	return components, nil
}

func (c *RepoDataCatalog) getJSON(ctx context.Context, endpoint, what string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		if err := c.auth.Authenticate(req); err != nil {
			return fmt.Errorf("authenticate %s: %w", what, err)
		}
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", what, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp, what); err != nil {
		return err
	}
	data, err := readDocument(resp.Body, what)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}

// NPMCodeFetcher downloads the tarball npm publishes for each version:
//
//	GET <base>/<name>/-/<basename>-<version>.tgz
type NPMCodeFetcher struct {
	baseURL string
	client  *obshttp.Client
}

// NewNPMCodeFetcher creates a fetcher for the npm registry at baseURL.
func NewNPMCodeFetcher(baseURL string, client *obshttp.Client) *NPMCodeFetcher {
	if client == nil {
		client = obshttp.NewClient(obshttp.DefaultConfig())
	}
	return &NPMCodeFetcher{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

// TarballURL returns where npm serves name at version.
func (f *NPMCodeFetcher) TarballURL(name, version string) string {
	return f.baseURL + "/" + name + "/-/" + path.Base(name) + "-" + url.PathEscape(version) + ".tgz"
}

// Fetch implements CodeFetcher. The caller closes the returned body.
func (f *NPMCodeFetcher) Fetch(ctx context.Context, name, version string) (io.ReadCloser, error) {
	what := "code of " + name + " " + version
	resp, err := f.client.Get(ctx, f.TarballURL(name, version))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", what, err)
	}
	if err := statusError(resp, what); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}
