package kubernetes

import (
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// isTransient reports whether err is worth retrying while waiting for
// a CRD to settle. Authentication and authorization failures are
// permanent; everything else is assumed to clear up.
func isTransient(err error) bool {
	switch {
	case err == nil:
		return true
	case apierrors.IsUnauthorized(err), apierrors.IsForbidden(err):
		return false
	case apierrors.IsBadRequest(err), apierrors.IsMethodNotSupported(err):
		return false
	default:
		return true
	}
}
