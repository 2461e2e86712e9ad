// Package catalog holds the bundled predefined attributes, domains,
// per-domain value suggestions and example prompts.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/PabloGalante/promptlab/internal/domain"
)

//go:embed catalog.yaml
var bundled []byte

const customDescription = "Custom attribute."

// AttributeInfo describes a predefined attribute key.
type AttributeInfo struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

type domainValues struct {
	Domain    string   `yaml:"domain"`
	Attribute string   `yaml:"attribute"`
	Options   []string `yaml:"options"`
}

type example struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	domain.Template `yaml:",inline"`
}

type file struct {
	DefaultDomain string          `yaml:"defaultDomain"`
	Attributes    []AttributeInfo `yaml:"attributes"`
	Domains       []domain.Domain `yaml:"domains"`
	DomainValues  []domainValues  `yaml:"domainValues"`
	Examples      []example       `yaml:"examples"`
}

type valueKey struct {
	domain    string
	attribute string
}

type Catalog struct {
	defaultDomain string
	attributes    []AttributeInfo
	descriptions  map[string]string
	domains       []domain.Domain
	values        map[valueKey][]string
	examples      []domain.ExamplePrompt
}

var (
	defaultCatalog *Catalog
	once           sync.Once
)

// Default returns the catalog bundled with the binary.
func Default() *Catalog {
	once.Do(func() {
		c, err := Parse(bundled)
		if err != nil {
			panic(fmt.Sprintf("catalog: bundled catalog is invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Parse decodes and checks a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	c := &Catalog{
		defaultDomain: f.DefaultDomain,
		attributes:    f.Attributes,
		descriptions:  make(map[string]string, len(f.Attributes)),
		domains:       f.Domains,
		values:        make(map[valueKey][]string),
	}

	for _, a := range f.Attributes {
		c.descriptions[a.Name] = a.Description
	}

	known := make(map[string]bool, len(f.Domains))
	for _, d := range f.Domains {
		if d.ID == "" {
			return nil, fmt.Errorf("domain %q has no id", d.Name)
		}
		if known[d.ID] {
			return nil, fmt.Errorf("duplicate domain id %q", d.ID)
		}
		known[d.ID] = true
	}
	if c.defaultDomain != "" && !known[c.defaultDomain] {
		return nil, fmt.Errorf("default domain %q is not defined", c.defaultDomain)
	}

	for _, v := range f.DomainValues {
		if !known[v.Domain] {
			return nil, fmt.Errorf("value options reference unknown domain %q", v.Domain)
		}
		c.values[valueKey{v.Domain, v.Attribute}] = v.Options
	}

	ids := make(map[string]bool, len(f.Examples))
	for _, e := range f.Examples {
		if e.ID == "" || ids[e.ID] {
			return nil, fmt.Errorf("example %q has a missing or duplicate id", e.Name)
		}
		ids[e.ID] = true
		c.examples = append(c.examples, domain.ExamplePrompt{ID: e.ID, Name: e.Name, Template: e.Template})
	}

	return c, nil
}

func (c *Catalog) PredefinedAttributes() []AttributeInfo {
	return append([]AttributeInfo(nil), c.attributes...)
}

// Describe returns the predefined description for name, or a generic one.
func (c *Catalog) Describe(name string) string {
	if d, ok := c.descriptions[name]; ok {
		return d
	}
	return customDescription
}

func (c *Catalog) Domains() []domain.Domain {
	return append([]domain.Domain(nil), c.domains...)
}

// DefaultDomain is the domain selected for new workbenches and loaded examples.
func (c *Catalog) DefaultDomain() string {
	return c.defaultDomain
}

func (c *Catalog) Domain(id string) (domain.Domain, error) {
	for _, d := range c.domains {
		if d.ID == id {
			return d, nil
		}
	}
	return domain.Domain{}, fmt.Errorf("domain %q: %w", id, domain.ErrNotFound)
}

// ValueOptions returns the suggested values for an attribute in a domain.
func (c *Catalog) ValueOptions(domainID, attribute string) []string {
	return c.values[valueKey{domainID, attribute}]
}

func (c *Catalog) Examples() []domain.ExamplePrompt {
	return append([]domain.ExamplePrompt(nil), c.examples...)
}

func (c *Catalog) Example(id string) (domain.ExamplePrompt, error) {
	for _, e := range c.examples {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.ExamplePrompt{}, fmt.Errorf("example %q: %w", id, domain.ErrNotFound)
}

// NewAttribute builds an attribute the way the attribute form does.
// When the domain suggests values for name, the attribute becomes a select.
func (c *Catalog) NewAttribute(domainID, name, value string) (domain.Attribute, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(value) == "" {
		return domain.Attribute{}, &domain.ValidationError{Message: "Attribute name and value are required."}
	}

	attr := domain.Attribute{
		Name:        name,
		Value:       value,
		Description: c.Describe(name),
		ValueType:   domain.ValueTypeText,
	}
	if opts := c.ValueOptions(domainID, name); len(opts) > 0 {
		attr.ValueType = domain.ValueTypeSelect
		attr.ValueOptions = append([]string(nil), opts...)
	}
	return attr, nil
}
