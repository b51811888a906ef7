// Package manifest describes several secrets documents in one YAML file and
// applies them in order.
//
//	defaults: {region: us-east-1, bucket: secrets-bucket, context: ctx1}
//	keep_going: false
//	resources:
//	  - name: Decrypt and Download Secrets
//	    action: download
//	    remote_path: secrets/secrets.json
//	    path: /var/cache/s3encrypt/secrets.json
//	  - name: Decrypt JSON Secrets In Memory
//	    action: decrypt
//	    remote_path: secrets/secrets.json
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"s3encrypt/internal/types"
)

// Action selects what is done with a resource.
type Action string

const (
	// ActionDownload writes the plaintext to the resource path.
	ActionDownload Action = "download"
	// ActionDecrypt parses the plaintext in memory.
	ActionDecrypt Action = "decrypt"
)

// Defaults apply to every resource that leaves the field empty.
type Defaults struct {
	Region  string `yaml:"region"`
	Bucket  string `yaml:"bucket"`
	Context string `yaml:"context"`
}

// Resource is one secrets document.
type Resource struct {
	Name       string `yaml:"name" validate:"required"`
	Action     Action `yaml:"action" validate:"required,oneof=download decrypt"`
	Region     string `yaml:"region"`
	Bucket     string `yaml:"bucket"`
	Context    string `yaml:"context"`
	RemotePath string `yaml:"remote_path"`
	Path       string `yaml:"path" validate:"required_if=Action download,omitempty,startswith=/"`
}

// Manifest is a parsed manifest file.
type Manifest struct {
	Defaults Defaults `yaml:"defaults"`
	// KeepGoing makes Apply try every resource instead of stopping at the
	// first failure.
	KeepGoing bool       `yaml:"keep_going"`
	Resources []Resource `yaml:"resources" validate:"required,min=1,dive"`
}

// Ref resolves the object reference of a resource against d.
func (r Resource) Ref(d Defaults) types.EncryptedObjectRef {
	return types.EncryptedObjectRef{
		Bucket:            strings.TrimSpace(firstNonEmpty(r.Bucket, d.Bucket)),
		RemotePath:        strings.TrimSpace(r.RemotePath),
		EncryptionContext: strings.TrimSpace(firstNonEmpty(r.Context, d.Context)),
		Region:            strings.TrimSpace(firstNonEmpty(r.Region, d.Region)),
	}
}

var manifestValidator = validator.New()

// Load reads and validates a manifest file.
func Load(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeIORead,
			"reading manifest "+path, err, map[string]any{"path": path})
	}
	return Parse(data)
}

// Parse decodes and validates a manifest document. Unknown fields are
// rejected.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, invalid("manifest is empty", nil)
		}
		return nil, invalid("manifest is not valid YAML", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest after applying defaults. Every resource must
// resolve to a complete object reference and download paths must be
// distinct.
func (m *Manifest) Validate() error {
	if err := manifestValidator.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return invalid("validating manifest", err)
		}
		problems := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
		return types.NewAppErrorWithDetails(types.ErrCodeValidationManifest,
			"invalid manifest: "+strings.Join(problems, "; "), nil,
			map[string]any{"problems": problems})
	}

	paths := make(map[string]string)
	for i, r := range m.Resources {
		if err := r.Ref(m.Defaults).Validate(); err != nil {
			return types.NewAppErrorWithDetails(types.ErrCodeValidationManifest,
				fmt.Sprintf("resource %d (%s): %s", i, r.Name, err.Error()), err,
				map[string]any{"resource": r.Name})
		}
		if r.Action != ActionDownload {
			continue
		}
		clean := filepath.Clean(r.Path)
		if other, dup := paths[clean]; dup {
			return types.NewAppErrorWithDetails(types.ErrCodeValidationManifest,
				fmt.Sprintf("resources %q and %q both download to %s", other, r.Name, clean), nil,
				map[string]any{"resource": r.Name, "path": clean})
		}
		paths[clean] = r.Name
	}
	return nil
}

func invalid(message string, err error) error {
	return types.NewAppError(types.ErrCodeValidationManifest, message, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
