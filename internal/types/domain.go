package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EncryptedObjectRef identifies a single ciphertext object in the object store
// together with everything needed to decrypt it. It is a value type and is
// never modified after construction.
type EncryptedObjectRef struct {
	Bucket            string `json:"bucket" yaml:"bucket" validate:"required"`
	RemotePath        string `json:"remote_path" yaml:"remote_path" validate:"required"`
	EncryptionContext string `json:"-" yaml:"context" validate:"required"`
	Region            string `json:"region" yaml:"region" validate:"required"`
}

// String identifies the object without the encryption context.
func (r EncryptedObjectRef) String() string {
	return fmt.Sprintf("s3://%s/%s (%s)", r.Bucket, r.RemotePath, r.Region)
}

var refValidator = validator.New()

// Validate checks that every field is set. Whitespace-only values count as
// empty. The returned error is a validation AppError listing the missing
// fields.
func (r EncryptedObjectRef) Validate() error {
	trimmed := EncryptedObjectRef{
		Bucket:            strings.TrimSpace(r.Bucket),
		RemotePath:        strings.TrimSpace(r.RemotePath),
		EncryptionContext: strings.TrimSpace(r.EncryptionContext),
		Region:            strings.TrimSpace(r.Region),
	}
	err := refValidator.Struct(trimmed)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewAppError(ErrCodeInternalUnexpected, "validating object reference", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return NewAppErrorWithDetails(
		ErrCodeValidationMissingField,
		fmt.Sprintf("object reference is missing %s", strings.Join(fields, ", ")),
		nil,
		map[string]any{"fields": fields},
	)
}
