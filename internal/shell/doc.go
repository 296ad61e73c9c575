// Package shell detects which shell the user currently logs in with, so
// post-install guidance can skip steps that are already done.
package shell
