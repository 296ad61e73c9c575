package source

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type tarEntry struct {
	name     string
	body     string
	mode     int64
	typeflag byte
	linkname string
}

func buildTarGz(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: e.mode, Typeflag: e.typeflag, Linkname: e.linkname}
		if hdr.Typeflag == 0 {
			hdr.Typeflag = tar.TypeReg
		}
		if hdr.Mode == 0 {
			hdr.Mode = 0o644
		}
		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func writeTarGz(t *testing.T, entries []tarEntry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.tar.gz")
	require.NoError(t, os.WriteFile(path, buildTarGz(t, entries), 0o644))
	return path
}

// leiziTarball mimics a GitHub source archive.
func leiziTarball(t *testing.T) []byte {
	return buildTarGz(t, []tarEntry{
		{name: "leizi-shell-1.4.0/", typeflag: tar.TypeDir, mode: 0o755},
		{name: "leizi-shell-1.4.0/CMakeLists.txt", body: "project(leizi)\n"},
		{name: "leizi-shell-1.4.0/src/main.cpp", body: "int main() {}\n"},
		{name: "leizi-shell-1.4.0/scripts/gen.sh", body: "#!/bin/sh\n", mode: 0o755},
	})
}
