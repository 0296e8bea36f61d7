package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	perrors "podrunner/internal/errors"
	"podrunner/pkg/activation"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their YAML names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// Parse reads and validates a container request YAML file.
func Parse(filePath string) (*activation.ContainerRequest, error) {
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, perrors.NewRequestError(
			fmt.Sprintf("Container request file not found: %s", filePath),
			"", "Check the --file path", err)
	}
	if err != nil {
		return nil, perrors.NewRequestError("Failed to read container request file", err.Error(), "", err)
	}

	return ParseBytes(data)
}

// ParseBytes decodes and validates a container request. Unknown keys are
// rejected so typos do not silently drop settings.
func ParseBytes(data []byte) (*activation.ContainerRequest, error) {
	var request activation.ContainerRequest

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&request); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, perrors.NewRequestError("Container request is empty", "",
				"Provide at least imageUrl", err)
		}
		return nil, perrors.NewRequestError("Failed to parse container request - malformed YAML",
			err.Error(), "", err)
	}

	if err := validate.Struct(&request); err != nil {
		verr := formatValidationError(err)
		return nil, perrors.NewRequestError("Invalid container request", verr.Error(), "", verr)
	}

	return &request, nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var errorMessages []string
		for _, e := range validationErrors {
			errorMessages = append(errorMessages, formatFieldError(e))
		}

		if len(errorMessages) == 1 {
			return fmt.Errorf("validation error: %s", errorMessages[0])
		}

		result := "validation errors:\n"
		for _, msg := range errorMessages {
			result += fmt.Sprintf("  - %s\n", msg)
		}
		return fmt.Errorf("%s", result)
	}
	return fmt.Errorf("validation failed: %w", err)
}

// formatFieldError formats a single validation error into a user-friendly message.
func formatFieldError(e validator.FieldError) string {
	field := trimRoot(e.Namespace())
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("field '%s' is required but missing", field)
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", field, e.Param())
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s", field, e.Param())
	default:
		return fmt.Sprintf("field '%s' failed validation (%s)", field, tag)
	}
}

// trimRoot drops the struct name from a validator namespace.
func trimRoot(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
