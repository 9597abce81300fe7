package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func newTestConfig(t *testing.T, args ...string) *Config {
	t.Helper()
	conf, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := conf.BindFlags(fs, ReleaseOptions); err != nil {
		t.Fatalf("BindFlags(ReleaseOptions): %v", err)
	}
	if err := conf.BindFlags(fs, ApplyOptions); err != nil {
		t.Fatalf("BindFlags(ApplyOptions): %v", err)
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return conf
}

func TestDefaults(t *testing.T) {
	conf := newTestConfig(t)

	if conf.FluxVersion() != "" {
		t.Errorf("FluxVersion = %q, want empty", conf.FluxVersion())
	}
	if conf.FluxReleaseAPIURL() != DefaultFluxReleaseAPIURL {
		t.Errorf("FluxReleaseAPIURL = %q", conf.FluxReleaseAPIURL())
	}
	if conf.FluxDownloadURL() != DefaultFluxDownloadURL {
		t.Errorf("FluxDownloadURL = %q", conf.FluxDownloadURL())
	}
	if conf.FluxArtifact() != "install.yaml" {
		t.Errorf("FluxArtifact = %q", conf.FluxArtifact())
	}
	if conf.RepoBranch() != "main" {
		t.Errorf("RepoBranch = %q", conf.RepoBranch())
	}
	if conf.RepoSecret() != "github-keypair" {
		t.Errorf("RepoSecret = %q", conf.RepoSecret())
	}
	if conf.RepoInterval() != 10*time.Minute {
		t.Errorf("RepoInterval = %v", conf.RepoInterval())
	}
	if conf.SyncName() != "flux-system" || conf.SyncNamespace() != "flux-system" {
		t.Errorf("sync = %s/%s", conf.SyncNamespace(), conf.SyncName())
	}
	if !conf.CompanionEnabled() {
		t.Error("CompanionEnabled = false, want true")
	}
	if conf.CompanionNamespace() != "kube-system" {
		t.Errorf("CompanionNamespace = %q", conf.CompanionNamespace())
	}
	if conf.ApplyMaxRequestBytes() != 3*1024*1024 {
		t.Errorf("ApplyMaxRequestBytes = %d", conf.ApplyMaxRequestBytes())
	}
	if conf.ApplyCRDTimeout() != time.Minute {
		t.Errorf("ApplyCRDTimeout = %v", conf.ApplyCRDTimeout())
	}
	if conf.MetricsAddress() != "" {
		t.Errorf("MetricsAddress = %q, want empty", conf.MetricsAddress())
	}
	if conf.LogLevel() != slog.LevelInfo {
		t.Errorf("LogLevel = %v", conf.LogLevel())
	}
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("FLUXSTRAP_FLUX_VERSION", "v2.1.0")
	t.Setenv("FLUXSTRAP_REPO_URL", "ssh://git@github.com/example/fleet.git")
	t.Setenv("FLUXSTRAP_COMPANION_ENABLED", "false")
	t.Setenv("FLUXSTRAP_LOG_LEVEL", "debug")

	conf := newTestConfig(t)

	if conf.FluxVersion() != "v2.1.0" {
		t.Errorf("FluxVersion = %q", conf.FluxVersion())
	}
	if conf.RepoURL() != "ssh://git@github.com/example/fleet.git" {
		t.Errorf("RepoURL = %q", conf.RepoURL())
	}
	if conf.CompanionEnabled() {
		t.Error("CompanionEnabled = true, want false")
	}
	if conf.LogLevel() != slog.LevelDebug {
		t.Errorf("LogLevel = %v", conf.LogLevel())
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("FLUXSTRAP_REPO_BRANCH", "develop")

	conf := newTestConfig(t, "--repo-branch=release", "--repo-interval=1m", "--kubeconfig=/tmp/kc", "--apply-max-request-bytes=1024")

	if conf.RepoBranch() != "release" {
		t.Errorf("RepoBranch = %q, want flag value", conf.RepoBranch())
	}
	if conf.RepoInterval() != time.Minute {
		t.Errorf("RepoInterval = %v", conf.RepoInterval())
	}
	if conf.KubeConfig() != "/tmp/kc" {
		t.Errorf("KubeConfig = %q", conf.KubeConfig())
	}
	if conf.ApplyMaxRequestBytes() != 1024 {
		t.Errorf("ApplyMaxRequestBytes = %d", conf.ApplyMaxRequestBytes())
	}
}

func TestInvalidLogLevelFallsBackToInfo(t *testing.T) {
	t.Setenv("FLUXSTRAP_LOG_LEVEL", "chatty")
	if got := newTestConfig(t).LogLevel(); got != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", got)
	}
}

func TestToFlag(t *testing.T) {
	tests := map[string]string{
		keyFluxReleaseAPIURL:   "flux-release-api-url",
		keyCompanionCRDsURL:    "companion-crds-url",
		keyApplyMaxRequestSize: "apply-max-request-bytes",
	}
	for key, want := range tests {
		if got := toFlag(key); got != want {
			t.Errorf("toFlag(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestBindFlags_UnsupportedType(t *testing.T) {
	conf, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	err = conf.BindFlags(fs, []Option{{Key: "x.y", Flag: "x-y", Default: 1.5}})
	if err == nil {
		t.Fatal("expected error for float default")
	}
}
