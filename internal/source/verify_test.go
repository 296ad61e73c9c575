package source

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // ProtonMail's maintained fork
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SHA256("abc"), the FIPS 180-2 test vector.
const abcSHA256 = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

func TestVerifySHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	assert.NoError(t, VerifySHA256(path, abcSHA256))
	assert.NoError(t, VerifySHA256(path, strings.ToUpper(abcSHA256)))

	err := VerifySHA256(path, strings.Repeat("0", 64))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Contains(t, err.Error(), abcSHA256)
}

type testKey struct {
	entity *openpgp.Entity
	public string
}

func newTestKey(t *testing.T) testKey {
	t.Helper()
	entity, err := openpgp.NewEntity("Leizi Release", "", "release@example.com", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.Serialize(w))
	require.NoError(t, w.Close())

	return testKey{entity: entity, public: buf.String()}
}

func (k testKey) sign(t *testing.T, data []byte) []byte {
	t.Helper()
	var sig bytes.Buffer
	require.NoError(t, openpgp.ArmoredDetachSign(&sig, k.entity, bytes.NewReader(data), nil))
	return sig.Bytes()
}

func TestVerifySignature(t *testing.T) {
	key := newTestKey(t)
	other := newTestKey(t)
	dir := t.TempDir()

	archive := filepath.Join(dir, "leizi.tar.gz")
	data := []byte("release archive")
	require.NoError(t, os.WriteFile(archive, data, 0o644))

	goodSig := filepath.Join(dir, "good.asc")
	require.NoError(t, os.WriteFile(goodSig, key.sign(t, data), 0o644))

	tamperedSig := filepath.Join(dir, "tampered.asc")
	require.NoError(t, os.WriteFile(tamperedSig, key.sign(t, []byte("other archive")), 0o644))

	assert.NoError(t, VerifySignature(archive, goodSig, key.public))
	assert.Error(t, VerifySignature(archive, tamperedSig, key.public))
	assert.Error(t, VerifySignature(archive, goodSig, other.public), "wrong key must not verify")
	assert.Error(t, VerifySignature(archive, goodSig, "not a key"))
}
