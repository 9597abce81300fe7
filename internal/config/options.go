package config

import (
	"strings"
	"time"
)

// Option describes a single configuration entry: its viper key, the
// corresponding CLI flag name, the compiled default, and a
// human-readable description shown in --help output.
type Option struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

// Upstream defaults.
const (
	DefaultFluxReleaseAPIURL = "https://api.github.com/repos/fluxcd/flux2/releases/latest"
	DefaultFluxDownloadURL   = "https://github.com/fluxcd/flux2/releases/download"
	DefaultFluxArtifact      = "install.yaml"
	DefaultCompanionCRDsURL  = "https://raw.githubusercontent.com/aws/eks-charts/master/stable/aws-load-balancer-controller/crds/crds.yaml"
)

// ReleaseOptions defines the entries shared by every command that
// resolves and plans a release.
var ReleaseOptions = []Option{
	{Key: keyFluxVersion, Flag: toFlag(keyFluxVersion), Default: "", Description: "Pinned Flux release (empty resolves the latest release)"},
	{Key: keyFluxReleaseAPIURL, Flag: toFlag(keyFluxReleaseAPIURL), Default: DefaultFluxReleaseAPIURL, Description: "Latest release metadata endpoint"},
	{Key: keyFluxDownloadURL, Flag: toFlag(keyFluxDownloadURL), Default: DefaultFluxDownloadURL, Description: "Release download base url"},
	{Key: keyFluxArtifact, Flag: toFlag(keyFluxArtifact), Default: DefaultFluxArtifact, Description: "Release artifact name"},
	{Key: keyFluxUserAgent, Flag: toFlag(keyFluxUserAgent), Default: "fluxstrap", Description: "User-Agent sent to the release endpoints"},
	{Key: keyRepoURL, Flag: toFlag(keyRepoURL), Default: "", Description: "Git repository url to sync from"},
	{Key: keyRepoBranch, Flag: toFlag(keyRepoBranch), Default: "main", Description: "Git repository branch"},
	{Key: keyRepoPath, Flag: toFlag(keyRepoPath), Default: "", Description: "Path in the repository to start the sync from"},
	{Key: keyRepoSecret, Flag: toFlag(keyRepoSecret), Default: "github-keypair", Description: "Secret holding the repository credentials"},
	{Key: keyRepoInterval, Flag: toFlag(keyRepoInterval), Default: 10 * time.Minute, Description: "Reconcile interval"},
	{Key: keySyncName, Flag: toFlag(keySyncName), Default: "flux-system", Description: "Name of the bootstrap resources"},
	{Key: keySyncNamespace, Flag: toFlag(keySyncNamespace), Default: "flux-system", Description: "Namespace of the bootstrap resources"},
	{Key: keyCompanionEnabled, Flag: toFlag(keyCompanionEnabled), Default: true, Description: "Install the companion controller CRDs"},
	{Key: keyCompanionCRDsURL, Flag: toFlag(keyCompanionCRDsURL), Default: DefaultCompanionCRDsURL, Description: "Companion controller CRD manifest url"},
	{Key: keyCompanionNamespace, Flag: toFlag(keyCompanionNamespace), Default: "kube-system", Description: "Companion controller install namespace"},
	{Key: keyLogLevel, Flag: toFlag(keyLogLevel), Default: "info", Description: "Log level (debug, info, warn, error)"},
}

// ApplyOptions defines the entries only used when talking to a
// cluster.
var ApplyOptions = []Option{
	{Key: keyKubeConfig, Flag: "kubeconfig", Default: "", Description: "Path to a kubeconfig file (defaults to in-cluster, then ~/.kube/config)"},
	{Key: keyApplyFieldManager, Flag: toFlag(keyApplyFieldManager), Default: "fluxstrap", Description: "Server-side apply field manager"},
	{Key: keyApplyMaxRequestSize, Flag: toFlag(keyApplyMaxRequestSize), Default: 3 * 1024 * 1024, Description: "Largest request body sent for a single object"},
	{Key: keyApplyCRDTimeout, Flag: toFlag(keyApplyCRDTimeout), Default: 60 * time.Second, Description: "How long to wait for a CRD to become established"},
	{Key: keyMetricsAddress, Flag: toFlag(keyMetricsAddress), Default: "", Description: "Serve Prometheus metrics on this address while running (empty disables)"},
}

// toFlag converts a viper key like "flux.release_api_url" into a CLI
// flag like "flux-release-api-url" by lower-casing and replacing dots
// and underscores with hyphens.
func toFlag(key string) string {
	flag := strings.ToLower(key)
	flag = strings.ReplaceAll(flag, ".", "-")
	flag = strings.ReplaceAll(flag, "_", "-")
	return flag
}
