package model

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// namePattern restricts topic, producer and consumer names to URL-safe characters.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// ValidateName checks a topic, producer or consumer name.
func ValidateName(name string) error {
	return validation.Validate(name,
		validation.Required,
		validation.Length(1, 255),
		validation.Match(namePattern),
	)
}

// Registration describes a named participant bound to a topic.
// An empty Topic is allowed (a producer without a construction topic).
type Registration struct {
	Name  string
	Topic string
}

// Validate checks the registration.
func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255), validation.Match(namePattern)),
		validation.Field(&r.Topic, validation.Length(0, 255), validation.Match(namePattern)),
	)
}
