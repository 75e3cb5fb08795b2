// Package version reports the build identity of the viewkit binary.
//
// The release values are stamped at link time:
//
//	go build -ldflags "-X github.com/kbukum/viewkit/version.Version=1.2.0 \
//	    -X github.com/kbukum/viewkit/version.Commit=$(git rev-parse --short HEAD)"
//
// Anything left unset is filled from the module build info when the
// binary was built from a VCS checkout.
package version
