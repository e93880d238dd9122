package teianalytics

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog is returned for metadata documents that fail validation.
var ErrInvalidCatalog = errors.New("invalid metadata catalog")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("uid", func(fl validator.FieldLevel) bool {
		return isValidIdentifier(fl.Field().String())
	})

	return v
}

// Catalog is the metadata the request parser resolves uids against.
type Catalog struct {
	TrackedEntityTypes []*TrackedEntityTypeMeta `yaml:"trackedEntityTypes" validate:"required,dive"`
	Programs           []*ProgramMeta           `yaml:"programs" validate:"dive"`

	trackedEntityTypes map[string]*TrackedEntityTypeMeta
	programs           map[string]*ProgramMeta
}

type TrackedEntityTypeMeta struct {
	UID        string      `yaml:"uid" validate:"required,uid"`
	Name       string      `yaml:"name" validate:"required"`
	Attributes []*ItemMeta `yaml:"attributes" validate:"dive"`

	attributes map[string]*ItemMeta
}

type ProgramMeta struct {
	UID               string              `yaml:"uid" validate:"required,uid"`
	Name              string              `yaml:"name" validate:"required"`
	TrackedEntityType string              `yaml:"trackedEntityType" validate:"required,uid"`
	Stages            []*ProgramStageMeta `yaml:"stages" validate:"dive"`

	stages map[string]*ProgramStageMeta
}

type ProgramStageMeta struct {
	UID          string      `yaml:"uid" validate:"required,uid"`
	Name         string      `yaml:"name" validate:"required"`
	DataElements []*ItemMeta `yaml:"dataElements" validate:"dive"`

	dataElements map[string]*ItemMeta
}

// ItemMeta describes an attribute or a data element.
type ItemMeta struct {
	UID       string    `yaml:"uid" validate:"required,uid"`
	Code      string    `yaml:"code"`
	Name      string    `yaml:"name" validate:"required"`
	ValueType ValueType `yaml:"valueType" validate:"required,oneof=TEXT LONG_TEXT NUMBER INTEGER INTEGER_POSITIVE INTEGER_ZERO_OR_POSITIVE PERCENTAGE BOOLEAN TRUE_ONLY DATE DATETIME ORGANISATION_UNIT AGE"`
}

// LoadCatalogFile reads a YAML catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	return ParseCatalog(data)
}

// ParseCatalog decodes, validates and indexes a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	if err := validate.Struct(c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	if err := c.index(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Catalog) index() error {
	c.trackedEntityTypes = make(map[string]*TrackedEntityTypeMeta, len(c.TrackedEntityTypes))
	for _, tet := range c.TrackedEntityTypes {
		if _, ok := c.trackedEntityTypes[tet.UID]; ok {
			return fmt.Errorf("%w: duplicate tracked entity type %s", ErrInvalidCatalog, tet.UID)
		}
		c.trackedEntityTypes[tet.UID] = tet

		attributes, err := indexItems(tet.Attributes)
		if err != nil {
			return err
		}
		tet.attributes = attributes
	}

	c.programs = make(map[string]*ProgramMeta, len(c.Programs))
	for _, p := range c.Programs {
		if _, ok := c.programs[p.UID]; ok {
			return fmt.Errorf("%w: duplicate program %s", ErrInvalidCatalog, p.UID)
		}
		if _, ok := c.trackedEntityTypes[p.TrackedEntityType]; !ok {
			return fmt.Errorf("%w: program %s refers to unknown tracked entity type %s",
				ErrInvalidCatalog, p.UID, p.TrackedEntityType)
		}
		c.programs[p.UID] = p

		p.stages = make(map[string]*ProgramStageMeta, len(p.Stages))
		for _, s := range p.Stages {
			if _, ok := p.stages[s.UID]; ok {
				return fmt.Errorf("%w: duplicate stage %s in program %s", ErrInvalidCatalog, s.UID, p.UID)
			}
			p.stages[s.UID] = s

			dataElements, err := indexItems(s.DataElements)
			if err != nil {
				return err
			}
			s.dataElements = dataElements
		}
	}

	return nil
}

func indexItems(items []*ItemMeta) (map[string]*ItemMeta, error) {
	index := make(map[string]*ItemMeta, len(items))
	for _, item := range items {
		if _, ok := index[item.UID]; ok {
			return nil, fmt.Errorf("%w: duplicate item %s", ErrInvalidCatalog, item.UID)
		}
		index[item.UID] = item
	}

	return index, nil
}

func (c *Catalog) TrackedEntityType(uid string) (*TrackedEntityTypeMeta, bool) {
	tet, ok := c.trackedEntityTypes[uid]
	return tet, ok
}

func (c *Catalog) Program(uid string) (*ProgramMeta, bool) {
	p, ok := c.programs[uid]
	return p, ok
}

// IsDataElement reports whether uid is a data element of any stage.
func (c *Catalog) IsDataElement(uid string) bool {
	for _, p := range c.Programs {
		for _, s := range p.Stages {
			if _, ok := s.dataElements[uid]; ok {
				return true
			}
		}
	}

	return false
}

func (t *TrackedEntityTypeMeta) Attribute(uid string) (*ItemMeta, bool) {
	a, ok := t.attributes[uid]
	return a, ok
}

func (p *ProgramMeta) Stage(uid string) (*ProgramStageMeta, bool) {
	s, ok := p.stages[uid]
	return s, ok
}

func (s *ProgramStageMeta) DataElement(uid string) (*ItemMeta, bool) {
	de, ok := s.dataElements[uid]
	return de, ok
}

// queryItem converts the metadata into the query item of the given type.
func (i *ItemMeta) queryItem(itemType DimensionObjectType) *QueryItem {
	return &QueryItem{
		UID:       i.UID,
		Code:      i.Code,
		Name:      i.Name,
		ValueType: i.ValueType,
		ItemType:  itemType,
	}
}
