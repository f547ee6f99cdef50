package crypto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/roea-ai/botmind/pkg/types"
)

// PayloadVersion is the current encrypted payload format version.
const PayloadVersion = 1

// PayloadService seals task parameters to the daemon's own identity.
type PayloadService struct {
	keys *KeyManager
}

// NewPayloadService creates a PayloadService. keys must be initialized.
func NewPayloadService(keys *KeyManager) *PayloadService {
	return &PayloadService{keys: keys}
}

// EncryptParams seals a parameter map.
func (ps *PayloadService) EncryptParams(params map[string]string) (*types.EncryptedPayload, error) {
	plaintext, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	identity := ps.keys.Identity()
	if identity == nil {
		return nil, fmt.Errorf("identity not initialized")
	}

	ciphertext, err := seal(plaintext, identity.Recipient())
	if err != nil {
		return nil, err
	}
	return &types.EncryptedPayload{
		Version:    PayloadVersion,
		Recipient:  ps.keys.PublicKeyHint(),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// DecryptParams opens a payload produced by EncryptParams.
func (ps *PayloadService) DecryptParams(payload *types.EncryptedPayload) (map[string]string, error) {
	if payload == nil {
		return nil, fmt.Errorf("payload is nil")
	}
	if payload.Version != PayloadVersion {
		return nil, fmt.Errorf("unsupported payload version %d", payload.Version)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	identity := ps.keys.Identity()
	if identity == nil {
		return nil, fmt.Errorf("identity not initialized")
	}
	plaintext, err := open(ciphertext, identity)
	if err != nil {
		return nil, err
	}

	var params map[string]string
	if err := json.Unmarshal(plaintext, &params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return params, nil
}
