package session

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	idDateLayout = "2006-01-02"
	idTimeLayout = "150405"

	minIDLength   = 20
	randomIDChars = 12
)

var randomPart = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// NewID returns a session ID for a conversation started at now.
func NewID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:randomIDChars]
	return now.Format(idDateLayout) + "_" + now.Format(idTimeLayout) + "_" + random
}

// ValidateID checks that id has the form YYYY-MM-DD_HHMMSS_random.
func ValidateID(id string) error {
	if len(id) < minIDLength {
		return &ValidationError{ID: id, Reason: fmt.Sprintf("shorter than %d characters", minIDLength)}
	}

	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		return &ValidationError{ID: id, Reason: "expected three parts separated by '_'"}
	}
	if _, err := time.Parse(idDateLayout, parts[0]); err != nil {
		return &ValidationError{ID: id, Reason: "invalid date"}
	}
	if _, err := time.Parse(idTimeLayout, parts[1]); err != nil {
		return &ValidationError{ID: id, Reason: "invalid time"}
	}
	if !randomPart.MatchString(parts[2]) {
		return &ValidationError{ID: id, Reason: "invalid random part"}
	}
	return nil
}

// CreatedAt returns the start time encoded in a valid id, in UTC.
func CreatedAt(id string) (time.Time, error) {
	if err := ValidateID(id); err != nil {
		return time.Time{}, err
	}
	parts := strings.SplitN(id, "_", 3)
	return time.Parse(idDateLayout+"_"+idTimeLayout, parts[0]+"_"+parts[1])
}
