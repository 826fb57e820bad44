// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package validation wraps go-playground/validator with the custom rules
// used by request DTOs and turns violations into one readable message each.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ().\-/]{2,}$`)

// New returns a validator with the "phone" and "notblank" rules registered.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		// whitespace-only counts as blank so merge-patch requests can carry it
		phone := strings.TrimSpace(fl.Field().String())
		return phone == "" || phonePattern.MatchString(phone)
	})
	return v
}

// Struct validates s and returns one message per violated constraint, or
// nil when s is valid.
func Struct(v *validator.Validate, s any) []string {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, message(fe))
	}
	return msgs
}

func message(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "phone":
		return fmt.Sprintf("%s must be a valid phone number", field)
	case "uuid":
		return fmt.Sprintf("%s must be a valid identifier", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

// fieldPath drops the top-level struct name: "CreateContactRequest.FirstName"
// becomes "FirstName", nested paths keep their parents.
func fieldPath(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.StructField()
}

// IsID reports whether s is a record identifier in the canonical
// 8-4-4-4-12 hex form. Case and surrounding whitespace are ignored; braced,
// urn:uuid: and undashed forms are rejected.
func IsID(s string) bool {
	id := NormalizeID(s)
	u, err := uuid.Parse(id)
	return err == nil && u.String() == id
}

// NormalizeID trims and lower-cases an identifier so it compares equal to
// the stored form.
func NormalizeID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
