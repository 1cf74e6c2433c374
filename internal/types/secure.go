package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"` + redactedPlaceholder + `"`)

// SecretString holds a credential (database URL, Redis URL, cron secret) and
// redacts it wherever it would otherwise be printed or serialized.
// Call Unmask only at the point the raw value is handed to a driver or
// compared against a request header.
type SecretString string

// String implements fmt.Stringer with the redacted placeholder.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// GoString keeps %#v from leaking the value as well.
func (s SecretString) GoString() string {
	return redactedPlaceholder
}

// MarshalJSON implements json.Marshaler with the redacted placeholder.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw value.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether a non-empty secret was configured.
func (s SecretString) IsSet() bool {
	return s != ""
}
