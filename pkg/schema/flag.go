package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Flag is a boolean that accepts the spellings catalog files actually use:
// true/false and 1/0. Anything else is rejected rather than guessed.
type Flag bool

var _ yaml.Unmarshaler = (*Flag)(nil)

func (f *Flag) UnmarshalYAML(value *yaml.Node) error {
	var b bool
	if err := value.Decode(&b); err == nil {
		*f = Flag(b)
		return nil
	}
	var n int
	if err := value.Decode(&n); err == nil {
		switch n {
		case 0:
			*f = false
		case 1:
			*f = true
		default:
			return fmt.Errorf("invalid flag value %d", n)
		}
		return nil
	}
	return fmt.Errorf("invalid flag value %q", value.Value)
}
