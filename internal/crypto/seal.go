package crypto

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"
)

// seal encrypts plaintext to the single recipient that owns the archive.
func seal(plaintext []byte, to age.Recipient) ([]byte, error) {
	var out bytes.Buffer
	w, err := age.Encrypt(&out, to)
	if err != nil {
		return nil, fmt.Errorf("failed to seal payload: %w", err)
	}
	if _, err := io.Copy(w, bytes.NewReader(plaintext)); err != nil {
		return nil, fmt.Errorf("failed to seal payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to seal payload: %w", err)
	}
	return out.Bytes(), nil
}

// open reverses seal. A payload sealed to another identity fails here.
func open(ciphertext []byte, with age.Identity) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), with)
	if err != nil {
		return nil, fmt.Errorf("failed to open payload: %w", err)
	}
	return io.ReadAll(r)
}
