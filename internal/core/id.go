package core

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// ID is the canonical identifier for categories and transactions.
// Numeric ids coming from older stores are folded into their decimal string
// form on decode, so "1", 1 and 1.0 all become "1".
type ID string

// NewID returns a fresh random identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// NormalizeID returns the canonical form of a raw identifier. Only decimal
// integers are rewritten (leading zeros and a zero fraction dropped, so "01"
// and "1.0" become "1"); every other string is kept verbatim.
func NormalizeID(raw string) ID {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac && (frac == "" || strings.Trim(frac, "0") != "") {
		return ID(s)
	}
	if canon, ok := canonicalInteger(intPart); ok {
		return ID(canon)
	}
	return ID(s)
}

// canonicalInteger strips leading zeros from an optionally signed run of
// decimal digits. Arbitrary lengths are kept exact.
func canonicalInteger(s string) (string, bool) {
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", false
		}
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0", true
	}
	if neg {
		return "-" + s, true
	}
	return s, true
}

func (id ID) String() string { return string(id) }

// IsZero reports whether id is empty, i.e. "uncategorized" for a reference.
func (id ID) IsZero() bool { return NormalizeID(string(id)) == "" }

// Equal compares two ids by their canonical form.
func (id ID) Equal(other ID) bool {
	return NormalizeID(string(id)) == NormalizeID(string(other))
}

// Normalize returns the canonical form of id.
func (id ID) Normalize() ID { return NormalizeID(string(id)) }

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = NormalizeID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = NormalizeID(n.String())
	return nil
}

// MarshalJSON always writes the canonical string form.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id.Normalize()))
}
