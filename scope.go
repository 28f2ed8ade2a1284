package nestor

import (
	"encoding/json"
	"fmt"
)

// Scope specifies the lifetime of a provider instance.
type Scope int

const (
	// Singleton providers are constructed once, during bootstrap, and shared
	// by every consumer for the lifetime of the application.
	// A singleton that depends on a Request provider becomes request scoped itself.
	Singleton Scope = iota

	// Request providers are constructed once per context id and shared by
	// every consumer resolving within that context.
	Request

	// Transient providers are constructed once per consumer. Repeated
	// resolutions by the same consumer in the same context share an instance.
	Transient
)

// String returns the string representation of the Scope.
func (s Scope) String() string {
	switch s {
	case Singleton:
		return "Singleton"
	case Request:
		return "Request"
	case Transient:
		return "Transient"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// IsValid checks if the scope is valid.
func (s Scope) IsValid() bool {
	return s >= Singleton && s <= Transient
}

// MarshalText implements encoding.TextMarshaler.
func (s Scope) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, ScopeError{Value: int(s)}
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Scope) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Singleton", "singleton", "DEFAULT", "default":
		*s = Singleton
	case "Request", "request", "REQUEST":
		*s = Request
	case "Transient", "transient", "TRANSIENT":
		*s = Transient
	default:
		return ScopeError{Value: string(text)}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Scope) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scope) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	return s.UnmarshalText([]byte(str))
}
