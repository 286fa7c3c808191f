package validation

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the wire format of rating dates.
const DateLayout = "2006-01-02"

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Errors maps form field names to a short message.
type Errors map[string]string

// Add records a message for field unless one is already present.
func (e Errors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// Empty reports whether no field failed.
func (e Errors) Empty() bool { return len(e) == 0 }

func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	return email != "" && emailRegex.MatchString(email) && len(email) <= 200
}

func ValidateRequired(v string) bool {
	return strings.TrimSpace(v) != ""
}

func ValidateName(name string) bool {
	name = strings.TrimSpace(name)
	return len(name) >= 2 && len(name) <= 200
}

func ValidateRating(rating int) bool {
	return rating >= 1 && rating <= 5
}

func ValidateDate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

// ValidateImageURL accepts an empty value or an absolute http(s) URL.
func ValidateImageURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
