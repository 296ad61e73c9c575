package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // ProtonMail's maintained fork
)

// FileSHA256 returns the hex SHA256 of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifySHA256 checks path against the expected hex digest.
func VerifySHA256(path, expected string) error {
	actual, err := FileSHA256(path)
	if err != nil {
		return fmt.Errorf("calculate checksum: %w", err)
	}
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("%w:\nactual:   %s\nexpected: %s", ErrChecksumMismatch, actual, expected)
	}
	return nil
}

// VerifySignature checks a detached signature (armored or binary) over
// the file at path against an armored public key.
func VerifySignature(path, signaturePath, armoredKey string) error {
	keyring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armoredKey))
	if err != nil {
		return fmt.Errorf("read signing key: %w", err)
	}
	if len(keyring) == 0 {
		return fmt.Errorf("signing key is empty")
	}

	signed, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer signed.Close()

	sig, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sig.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, signed, sig, nil)
	if err != nil {
		if _, serr := signed.Seek(0, io.SeekStart); serr != nil {
			return serr
		}
		if _, serr := sig.Seek(0, io.SeekStart); serr != nil {
			return serr
		}
		_, err = openpgp.CheckDetachedSignature(keyring, signed, sig, nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}
