package core

import (
	"context"
	"strings"
)

// ReleaseSource is the upstream project that publishes versioned
// manifest bundles. Implementations perform exactly one network call
// per method invocation and never retry; retry policy belongs to the
// caller of the use case.
type ReleaseSource interface {
	// LatestVersion returns the tag of the latest published release.
	// Failures are reported as *ErrResolution.
	LatestVersion(ctx context.Context) (ReleaseVersion, error)
	// BundleURL returns the download location of the bundle for
	// version. It is pure and performs no I/O.
	BundleURL(version ReleaseVersion) string
	// FetchBundle downloads the bundle for version. Failures are
	// reported as *ErrFetch.
	FetchBundle(ctx context.Context, version ReleaseVersion) (ManifestBundle, error)
}

// CRDSource serves the companion controller's CRD set from a fixed,
// unversioned location.
type CRDSource interface {
	URL() string
	FetchCRDs(ctx context.Context) (ManifestBundle, error)
}

// ManifestDecoder splits a bundle into its resource documents,
// preserving encounter order. A malformed document rejects the whole
// bundle with *ErrParse and a nil slice.
type ManifestDecoder interface {
	Decompose(bundle ManifestBundle) ([]ResourceDocument, error)
}

type ReleaseUseCase struct {
	source ReleaseSource
}

func NewReleaseUseCase(source ReleaseSource) *ReleaseUseCase {
	return &ReleaseUseCase{
		source: source,
	}
}

// Resolve returns pinned verbatim when it is set. Otherwise it asks
// the release source for the latest published version exactly once.
func (uc *ReleaseUseCase) Resolve(ctx context.Context, pinned string) (ReleaseVersion, error) {
	if strings.TrimSpace(pinned) != "" {
		return ReleaseVersion(pinned), nil
	}
	return uc.source.LatestVersion(ctx)
}

// BundleURL exposes the download URL for version without fetching it.
func (uc *ReleaseUseCase) BundleURL(version ReleaseVersion) string {
	return uc.source.BundleURL(version)
}

// Fetch downloads the bundle for version.
func (uc *ReleaseUseCase) Fetch(ctx context.Context, version ReleaseVersion) (ManifestBundle, error) {
	return uc.source.FetchBundle(ctx, version)
}
