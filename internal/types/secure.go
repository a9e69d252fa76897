package types

// SecretString prevents accidental logging or serialization of sensitive
// values such as the OAuth client secret. String() and MarshalJSON() return
// a redacted placeholder; call Unmask() where the raw value is genuinely
// needed (e.g. building a token request body).
type SecretString string

const redacted = "***REDACTED***"

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redacted
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Unmask returns the raw plaintext value of the secret.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether the secret has a non-empty value.
func (s SecretString) IsSet() bool {
	return len(s) > 0
}
