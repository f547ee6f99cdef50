package types

// EncryptedPayload contains age-encrypted data.
type EncryptedPayload struct {
	Version    int    `json:"v"` // Payload format version
	Recipient  string `json:"r"` // age public key hint
	Ciphertext string `json:"c"` // base64 age ciphertext
}
