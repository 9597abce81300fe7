package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/otterscale/fluxstrap/internal/config"
	"github.com/otterscale/fluxstrap/internal/core"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// Client performs the one-shot HTTP reads used by the release and CRD
// sources.
type Client struct {
	http      *http.Client
	userAgent string
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithUserAgent sets the User-Agent header. The GitHub API rejects
// anonymous user agents.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient returns a Client. No timeout is configured: cancellation
// is driven by the caller's context.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:      &http.Client{},
		userAgent: "fluxstrap",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig is a Wire provider for Client.
func NewClientFromConfig(conf *config.Config) *Client {
	return NewClient(WithUserAgent(conf.FluxUserAgent()))
}

// Releases implements core.ReleaseSource for a project that publishes
// its install bundle as a GitHub release asset.
type Releases struct {
	client      *Client
	latestURL   string
	downloadURL string
	artifact    string
}

var _ core.ReleaseSource = (*Releases)(nil)

// NewReleases returns a release source. latestURL is the API endpoint
// returning the latest release metadata; bundles are downloaded from
// <downloadURL>/<version>/<artifact>.
func NewReleases(client *Client, latestURL, downloadURL, artifact string) *Releases {
	return &Releases{
		client:      client,
		latestURL:   latestURL,
		downloadURL: strings.TrimRight(downloadURL, "/"),
		artifact:    strings.TrimLeft(artifact, "/"),
	}
}

// NewFluxReleases is a Wire provider returning the release source for
// the configured GitOps controller project.
func NewFluxReleases(client *Client, conf *config.Config) *Releases {
	return NewReleases(client, conf.FluxReleaseAPIURL(), conf.FluxDownloadURL(), conf.FluxArtifact())
}

type latestReleaseResponse struct {
	TagName string `json:"tag_name"`
}

// LatestVersion asks the releases API for the latest tag. The tag must
// be a semantic version; anything else is reported as a resolution
// failure instead of being guessed at.
func (r *Releases) LatestVersion(ctx context.Context) (core.ReleaseVersion, error) {
	body, err := r.client.get(ctx, r.latestURL, "application/vnd.github+json")
	if err != nil {
		return "", &core.ErrResolution{Source: r.latestURL, Err: err}
	}

	var payload latestReleaseResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &core.ErrResolution{Source: r.latestURL, Err: fmt.Errorf("decode release metadata: %w", err)}
	}

	tag := strings.TrimSpace(payload.TagName)
	if tag == "" {
		return "", &core.ErrResolution{Source: r.latestURL, Err: errors.New("release metadata has no tag_name")}
	}
	if _, err := semver.NewVersion(tag); err != nil {
		return "", &core.ErrResolution{Source: r.latestURL, Err: fmt.Errorf("invalid release tag %q: %w", tag, err)}
	}

	return core.ReleaseVersion(tag), nil
}

// BundleURL substitutes version into the download template.
func (r *Releases) BundleURL(version core.ReleaseVersion) string {
	return r.downloadURL + "/" + string(version) + "/" + r.artifact
}

// FetchBundle downloads the release bundle for version.
func (r *Releases) FetchBundle(ctx context.Context, version core.ReleaseVersion) (core.ManifestBundle, error) {
	url := r.BundleURL(version)
	body, err := r.client.get(ctx, url, "")
	if err != nil {
		return core.ManifestBundle{}, &core.ErrFetch{URL: url, StatusCode: statusCode(err), Err: err}
	}
	return core.ManifestBundle{Source: url, Content: body}, nil
}

// CRDs implements core.CRDSource for a CRD set published at a fixed
// location.
type CRDs struct {
	client *Client
	url    string
}

var _ core.CRDSource = (*CRDs)(nil)

func NewCRDs(client *Client, url string) *CRDs {
	return &CRDs{client: client, url: url}
}

// NewCompanionCRDs is a Wire provider returning the CRD source for the
// configured companion controller.
func NewCompanionCRDs(client *Client, conf *config.Config) *CRDs {
	return NewCRDs(client, conf.CompanionCRDsURL())
}

func (c *CRDs) URL() string {
	return c.url
}

func (c *CRDs) FetchCRDs(ctx context.Context) (core.ManifestBundle, error) {
	body, err := c.client.get(ctx, c.url, "")
	if err != nil {
		return core.ManifestBundle{}, &core.ErrFetch{URL: c.url, StatusCode: statusCode(err), Err: err}
	}
	return core.ManifestBundle{Source: c.url, Content: body}, nil
}
