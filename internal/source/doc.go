// Package source fetches the shell's source tree for a build.
//
// Release installs download the formula's tarball into a download cache,
// verify its SHA256 (and a detached OpenPGP signature when the formula
// names one), then extract it into a staging directory with the archive's
// top-level directory stripped. Head installs shallow-clone the formula's
// development branch with go-git instead.
//
// Every failure is reported as *FetchError naming the stage that failed.
package source
