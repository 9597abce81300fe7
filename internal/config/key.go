// Package config provides unified configuration loading from files,
// environment variables, and CLI flags using viper and pflag.
//
// Resolution order (highest wins):
//  1. CLI flags
//  2. Environment variables (prefix FLUXSTRAP_)
//  3. Config file (config.yaml in . or /etc/fluxstrap/)
//  4. Compiled defaults
package config

// Viper keys for the GitOps controller release.
const (
	keyFluxVersion       = "flux.version"
	keyFluxReleaseAPIURL = "flux.release_api_url"
	keyFluxDownloadURL   = "flux.download_url"
	keyFluxArtifact      = "flux.artifact"
	keyFluxUserAgent     = "flux.user_agent"
)

// Viper keys for the bootstrap resources.
const (
	keyRepoURL       = "repo.url"
	keyRepoBranch    = "repo.branch"
	keyRepoPath      = "repo.path"
	keyRepoSecret    = "repo.secret"
	keyRepoInterval  = "repo.interval"
	keySyncName      = "sync.name"
	keySyncNamespace = "sync.namespace"
)

// Viper keys for the companion controller CRD set.
const (
	keyCompanionEnabled   = "companion.enabled"
	keyCompanionCRDsURL   = "companion.crds_url"
	keyCompanionNamespace = "companion.namespace"
)

// Viper keys for cluster access and apply behaviour.
const (
	keyKubeConfig          = "kube.config"
	keyApplyFieldManager   = "apply.field_manager"
	keyApplyMaxRequestSize = "apply.max_request_bytes"
	keyApplyCRDTimeout     = "apply.crd_timeout"
	keyMetricsAddress      = "metrics.address"
	keyLogLevel            = "log.level"
)
