package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/haivivi/mlptask/pkg/storage"
)

// ErrInvalid is matched by every validation error returned by Load and
// Validate. Problems with the storage section also match
// storage.ErrConfiguration.
var ErrInvalid = errors.New("config: invalid")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateS3, StorageConfig{})
	return v
}

// validateS3 requires the s3 connection fields when the s3 kind is
// selected.
func validateS3(sl validator.StructLevel) {
	s := sl.Current().Interface().(StorageConfig)
	if s.Type != string(storage.KindS3) {
		return
	}
	for _, f := range []struct{ name, field, v string }{
		{"s3.bucket", "Bucket", s.S3.Bucket},
		{"s3.access_key", "AccessKey", s.S3.AccessKey},
		{"s3.secret_key", "SecretKey", s.S3.SecretKey},
		{"s3.endpoint", "Endpoint", s.S3.Endpoint},
	} {
		if f.v == "" {
			sl.ReportError(f.v, f.name, f.field, "required_for_s3", "")
		}
	}
}

// Validate checks every field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	msgs := make([]string, 0, len(verrs))
	storageErr := false
	for _, fe := range verrs {
		// Namespace is "Config.storage.type"; drop the root type name.
		_, ns, _ := strings.Cut(fe.Namespace(), ".")
		if strings.HasPrefix(ns, "storage.") {
			storageErr = true
		}
		msgs = append(msgs, describe(ns, fe))
	}
	msg := strings.Join(msgs, "; ")
	if storageErr {
		return fmt.Errorf("%w: %w: %s", ErrInvalid, storage.ErrConfiguration, msg)
	}
	return fmt.Errorf("%w: %s", ErrInvalid, msg)
}

func describe(ns string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_unless", "required_for_s3":
		return ns + " is required"
	case "oneof":
		return fmt.Sprintf("%s %q must be one of [%s]", ns, fe.Value(), fe.Param())
	case "url":
		return fmt.Sprintf("%s %q is not a URL", ns, fe.Value())
	}
	return fmt.Sprintf("%s failed %q", ns, fe.Tag())
}
