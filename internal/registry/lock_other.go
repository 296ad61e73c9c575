//go:build !unix

package registry

// lockFile is a no-op without flock; the registry mutex still serializes
// appends within the process.
func lockFile(f any) (func(), error) {
	return func() {}, nil
}
