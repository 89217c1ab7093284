//go:build !gcp

package archive

import "fmt"

// newGCSBackend is a stub used when the binary is built without the "gcp"
// tag: a gs:// archive URL then fails fast at New() rather than silently
// dropping replication.
func newGCSBackend(bucket, prefix string) (Replicator, error) {
	return nil, fmt.Errorf("archive: gs:// archive urls require building with -tags gcp")
}
