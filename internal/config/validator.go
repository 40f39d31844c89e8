package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidateConfig validates the entire configuration and returns all validation errors
func (c *Config) ValidateConfig() error {
	var validationErrors ValidationErrors

	// Validate general config
	if c.General != nil {
		if err := validate.Struct(c.General); err != nil {
			validationErrors = append(validationErrors, convertValidatorErrors(err, "general", "")...)
		}
	}

	// Validate network control config
	if c.NetworkControl == nil {
		validationErrors = append(validationErrors, ValidationError{
			FieldPath: "network_control",
			Message:   "configuration must contain a 'network_control' section",
		})
		return validationErrors
	}

	if err := validate.Struct(c.NetworkControl); err != nil {
		validationErrors = append(validationErrors, convertValidatorErrors(err, "network_control", "")...)
	}

	validationErrors = append(validationErrors, c.validateNetworkControl()...)

	// Validate DHCP config (optional section, defaults apply when absent)
	if c.DHCP != nil {
		if err := validate.Struct(c.DHCP); err != nil {
			validationErrors = append(validationErrors, convertValidatorErrors(err, "dhcp", "")...)
		}
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}

	return nil
}

func (c *Config) validateNetworkControl() ValidationErrors {
	var validationErrors ValidationErrors

	nc := c.NetworkControl

	// Check duplicate interfaces
	seen := make(map[string]bool)
	for _, iface := range nc.Interfaces {
		if seen[iface] {
			validationErrors = append(validationErrors, ValidationError{
				ItemName:  iface,
				FieldPath: "network_control.interfaces",
				Message:   fmt.Sprintf("duplicate interface: %s", iface),
			})
		}
		seen[iface] = true
	}

	// The loopback interface never gets policy routing.
	if seen["lo"] {
		validationErrors = append(validationErrors, ValidationError{
			ItemName:  "lo",
			FieldPath: "network_control.interfaces",
			Message:   "the loopback interface cannot be managed",
		})
	}

	// The private table range must stay clear of the reserved kernel tables
	// (253 default, 254 main, 255 local).
	base := nc.GetBaseTableID()
	if base <= 255 {
		validationErrors = append(validationErrors, ValidationError{
			FieldPath: "network_control.base_table_id",
			Message:   fmt.Sprintf("base table ID %d overlaps reserved kernel tables, must be > 255", base),
		})
	}

	return validationErrors
}

// convertValidatorErrors converts go-playground/validator errors to our ValidationError format
func convertValidatorErrors(err error, fieldPrefix string, itemName string) ValidationErrors {
	var validationErrors ValidationErrors

	var validatorErrs validator.ValidationErrors
	if errors.As(err, &validatorErrs) {
		for _, e := range validatorErrs {
			fieldPath := fieldPrefix
			if e.Field() != "" {
				// e.Field() returns the TOML tag name because of the registered TagNameFunc
				fieldName := e.Field()

				if fieldPrefix != "" {
					fieldPath = fieldPrefix + "." + fieldName
				} else {
					fieldPath = fieldName
				}
			}

			message := getValidationMessage(e)

			validationErrors = append(validationErrors, ValidationError{
				ItemName:  itemName,
				FieldPath: fieldPath,
				Message:   message,
			})
		}
	}

	return validationErrors
}
