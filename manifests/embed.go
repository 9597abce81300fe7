// Package manifests embeds the YAML templates for the resources that
// point the freshly installed GitOps controller at its repository.
// Keeping them in a top-level directory (rather than internal/) makes
// them easy to inspect and update without diving into Go packages.
package manifests

import "embed"

// Bootstrap holds the GitRepository and Kustomization templates.
// Files are accessed via the "bootstrap/" prefix.
//
//go:embed bootstrap/*.yaml
var Bootstrap embed.FS
