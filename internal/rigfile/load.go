package rigfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"rig-solver/internal/rig"
)

var (
	// ErrUnknownType is returned for a constraint type name the registry
	// does not know.
	ErrUnknownType = errors.New("rigfile: unknown constraint type")
	// ErrUnresolved is returned for a reference to a missing datablock,
	// bone or reference field.
	ErrUnresolved = errors.New("rigfile: unresolved reference")
	// ErrInvalid wraps document validation failures.
	ErrInvalid = errors.New("rigfile: invalid document")
)

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("rigfile: %s: unsupported format %q", path, ext)
	}
}

// Parse decodes and validates a document. JSON is read as YAML; TOML is
// converted to its YAML form first so every format goes through the same
// field names and enum decoders.
func Parse(data []byte, format Format) (*Document, error) {
	if format == FormatTOML {
		var generic map[string]any
		if err := toml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("rigfile: parse toml: %w", err)
		}
		var err error
		if data, err = yaml.Marshal(generic); err != nil {
			return nil, fmt.Errorf("rigfile: convert toml: %w", err)
		}
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("rigfile: parse %s: %w", format, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints that do not need name resolution.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Load reads a rig file. Paths inside the document are relative to it.
func Load(path string) (*rig.Rig, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("rigfile: expand %s: %w", path, err)
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rigfile: read %s: %w", path, err)
	}
	doc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("rigfile: %s: %w", path, err)
	}
	r, err := Build(doc, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("rigfile: %s: %w", path, err)
	}
	return r, nil
}

// LoadAll loads several rig files concurrently. The first failure cancels
// the remaining loads.
func LoadAll(ctx context.Context, paths []string) ([]*rig.Rig, error) {
	rigs := make([]*rig.Rig, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := Load(p)
			if err != nil {
				return err
			}
			rigs[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rigs, nil
}
