// Package seed loads a YAML catalog of sweets into the ledger.
package seed

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Catalog is the file format:
//
//	sweets:
//	  - name: Gulab Jamun
//	    category: Indian Sweets
//	    price: "50.00"
//	    quantity: 100
//	    unit: piece
//	    image_file: images/gulab-jamun.png
type Catalog struct {
	Sweets []Entry `yaml:"sweets"`
}

type Entry struct {
	Name      string  `yaml:"name"`
	Category  string  `yaml:"category"`
	Price     Decimal `yaml:"price"`
	Quantity  Decimal `yaml:"quantity"`
	Unit      string  `yaml:"unit"`
	Image     string  `yaml:"image"`
	ImageFile string  `yaml:"image_file"`
}

// Decimal reads a YAML scalar without going through float64.
type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", n.Line)
	}
	v, err := decimal.NewFromString(strings.TrimSpace(n.Value))
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	d.Decimal = v
	return nil
}

// LoadCatalog parses path and inlines every image_file as a data URL, resolved relative to the catalog.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read catalog: %w", err)
	}
	c, err := ParseCatalog(raw)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i := range c.Sweets {
		e := &c.Sweets[i]
		if e.ImageFile == "" {
			continue
		}
		file := e.ImageFile
		if !filepath.IsAbs(file) {
			file = filepath.Join(base, file)
		}
		url, err := DataURL(file)
		if err != nil {
			return nil, fmt.Errorf("seed: %s: %w", e.Name, err)
		}
		e.Image = url
	}
	return c, nil
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("seed: parse catalog: %w", err)
	}
	for i, e := range c.Sweets {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("seed: entry %d has no name", i)
		}
	}
	return &c, nil
}

// DataURL encodes a file as data:<mime>;base64,<payload>.
func DataURL(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	typ := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if typ == "" {
		typ = "application/octet-stream"
	}
	return "data:" + typ + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}
