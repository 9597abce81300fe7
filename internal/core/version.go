package core

// Version is the build-time binary version (e.g. "v1.2.3").
// It is a distinct type so that Wire can distinguish it from plain
// strings when injecting dependencies.
type Version string

// ReleaseVersion identifies one published release of the upstream
// GitOps controller bundle (e.g. "v2.1.0"). It is treated as an opaque
// tag: once resolved for a run it is never re-resolved.
type ReleaseVersion string

func (v ReleaseVersion) String() string {
	return string(v)
}
