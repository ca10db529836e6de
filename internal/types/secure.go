package types

// redacted replaces secret values in logs and serialized output.
const redacted = "***REDACTED***"

// SecretString is a string type that prevents accidental logging or
// serialization of sensitive values. String() and MarshalJSON() return a
// redacted placeholder; call Unmask() where the raw value is genuinely
// needed, such as a connection string or an Authorization header.
type SecretString string

func (s SecretString) String() string {
	return redacted
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}
