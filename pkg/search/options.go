package search

import (
	"errors"
	"fmt"
)

// Searchable record fields.
const (
	KeyName         = "name"
	KeyPath         = "path"
	KeyFullPath     = "full_path"
	KeyPathSegments = "path_segments"
	KeyDescription  = "description"
	KeyTags         = "tags"
	KeyHostname     = "running_status.hostname"
)

// AllKeys lists every searchable field.
var AllKeys = []string{
	KeyName,
	KeyPath,
	KeyFullPath,
	KeyPathSegments,
	KeyDescription,
	KeyTags,
	KeyHostname,
}

// Options tunes the fuzzy matcher.
type Options struct {
	// Tokenize splits the query and the field text on whitespace and
	// accepts a field when any query token matches any text token.
	Tokenize bool `json:"tokenize" yaml:"tokenize" mapstructure:"tokenize"`

	// Threshold is the highest score (0 is a perfect match, 1 a complete
	// miss) that still counts as a match.
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`

	// Location is the position in the text where a match is expected.
	Location int `json:"location" yaml:"location" mapstructure:"location"`

	// Distance scales how far from Location a match may start. Each
	// Distance characters away add 1 to the score. Zero rejects any match
	// that does not start exactly at Location.
	Distance int `json:"distance" yaml:"distance" mapstructure:"distance"`

	// MinMatchCharLength is the shortest query (or query token) considered.
	MinMatchCharLength int `json:"min_match_char_length" yaml:"min_match_char_length" mapstructure:"min_match_char_length"`

	// MaxPatternLength truncates longer queries. At most 32.
	MaxPatternLength int `json:"max_pattern_length" yaml:"max_pattern_length" mapstructure:"max_pattern_length"`

	// Keys are the record fields searched.
	Keys []string `json:"keys" yaml:"keys" mapstructure:"keys"`
}

// DefaultOptions returns a tight matcher: tokenized, threshold 0.1,
// matches expected at the start of a field within 10 characters.
func DefaultOptions() Options {
	return Options{
		Tokenize:           true,
		Threshold:          0.1,
		Location:           0,
		Distance:           10,
		MinMatchCharLength: 1,
		MaxPatternLength:   32,
		Keys:               append([]string(nil), AllKeys...),
	}
}

// Validate checks the options for errors.
func (o *Options) Validate() error {
	if o.Threshold < 0 || o.Threshold > 1 {
		return fmt.Errorf("threshold must be within [0, 1], got %v", o.Threshold)
	}

	if o.Location < 0 {
		return fmt.Errorf("location must not be negative, got %d", o.Location)
	}

	if o.Distance < 0 {
		return fmt.Errorf("distance must not be negative, got %d", o.Distance)
	}

	if o.MinMatchCharLength < 1 {
		return fmt.Errorf("min_match_char_length must be at least 1, got %d", o.MinMatchCharLength)
	}

	if o.MaxPatternLength < o.MinMatchCharLength {
		return fmt.Errorf(
			"max_pattern_length (%d) must not be below min_match_char_length (%d)",
			o.MaxPatternLength, o.MinMatchCharLength,
		)
	}

	if o.MaxPatternLength > maxPatternBits {
		return fmt.Errorf("max_pattern_length must not exceed %d, got %d", maxPatternBits, o.MaxPatternLength)
	}

	if len(o.Keys) == 0 {
		return errors.New("at least one search key is required")
	}

	for _, k := range o.Keys {
		if !isKnownKey(k) {
			return fmt.Errorf("unknown search key %q", k)
		}
	}

	return nil
}

func isKnownKey(key string) bool {
	for _, k := range AllKeys {
		if k == key {
			return true
		}
	}

	return false
}
