// Package sign produces and checks clearsigned RECORD manifests. The
// manifest carries a digest for every member, so a signature over it
// covers the whole archive the same way an InRelease file covers an apt
// repository.
package sign

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"

	"github.com/open-edge-platform/wheel-patcher/internal/wheel"
)

// signingEntity returns the first entity in the armored keyring that
// carries a private key.
func signingEntity(armoredKey string) (*openpgp.Entity, error) {
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armoredKey))
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		if e.PrivateKey != nil {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no private key in keyring")
}

// Manifest extracts the wheel's RECORD and returns it clearsigned with
// the first private key of the armored keyring.
func Manifest(wheelPath, armoredKey string) ([]byte, error) {
	rf, err := wheel.ReadRecord(wheelPath)
	if err != nil {
		return nil, err
	}
	signer, err := signingEntity(armoredKey)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	w, err := clearsign.Encode(&out, signer.PrivateKey, nil)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(rf.Raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// PublicKey exports the armored public key of the keyring's signing
// entity for distribution next to signed wheels.
func PublicKey(armoredKey string) ([]byte, error) {
	signer, err := signingEntity(armoredKey)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, err
	}
	if err := signer.Serialize(w); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// VerifyManifest checks the clearsigned manifest against the public key
// and confirms the signed payload matches the wheel's current RECORD. A
// wheel that verifies is bit-for-bit the one that was signed, member
// digests included.
func VerifyManifest(wheelPath string, signature, armoredPub []byte) error {
	block, _ := clearsign.Decode(signature)
	if block == nil {
		return fmt.Errorf("no clearsigned block in signature")
	}

	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armoredPub))
	if err != nil {
		return fmt.Errorf("reading public key: %w", err)
	}
	if _, err := openpgp.CheckDetachedSignature(keyring, bytes.NewReader(block.Bytes), block.ArmoredSignature.Body, nil); err != nil {
		return fmt.Errorf("signature check failed: %w", err)
	}

	rf, err := wheel.ReadRecord(wheelPath)
	if err != nil {
		return err
	}
	if !bytes.Equal(withTrailingNewline(block.Plaintext), withTrailingNewline(rf.Raw)) {
		return fmt.Errorf("signed manifest does not match the RECORD in %s", wheelPath)
	}
	return nil
}

// withTrailingNewline canonicalizes the final line ending, which
// clearsigning restores even when the signed input lacked one.
func withTrailingNewline(b []byte) []byte {
	if len(b) == 0 || b[len(b)-1] != '\n' {
		return append(append([]byte(nil), b...), '\n')
	}
	return b
}
