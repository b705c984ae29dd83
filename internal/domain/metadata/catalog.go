package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hjson/hjson-go/v4"
	"gopkg.in/yaml.v2"

	"github.com/ehr/formula-engine/internal/expression"
)

// Catalog formats.
const (
	FormatYAML  = "yaml"
	FormatHJSON = "hjson"
)

// Catalog is the file form of a metadata set: entries grouped under their
// class name, e.g.
//
//	dataElement:
//	  - uid: deA
//	    name: ANC 1st visit
//	constant:
//	  - {uid: pop, name: Population share, value: 0.2}
type Catalog map[string][]CatalogEntry

type CatalogEntry struct {
	UID         string   `json:"uid" yaml:"uid"`
	Name        string   `json:"name" yaml:"name"`
	Code        string   `json:"code,omitempty" yaml:"code,omitempty"`
	Value       *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	MemberCount *int     `json:"member_count,omitempty" yaml:"member_count,omitempty"`
}

// FormatFromPath picks the catalog format from a file extension. JSON is
// read as HJSON, which is a superset.
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hjson", ".json":
		return FormatHJSON, nil
	}
	return "", fmt.Errorf("unsupported catalog file %s: want .yaml, .yml, .hjson or .json", path)
}

func LoadCatalog(path string) (Catalog, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data, format)
}

func ParseCatalog(data []byte, format string) (Catalog, error) {
	var c Catalog
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse yaml catalog: %w", err)
		}
	case FormatHJSON, "json":
		var raw interface{}
		if err := hjson.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse hjson catalog: %w", err)
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("normalise hjson catalog: %w", err)
		}
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("decode hjson catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown catalog format %q", format)
	}
	return c, nil
}

// Objects validates the catalog and returns its objects ordered by class,
// then uid.
func (c Catalog) Objects() ([]*Object, error) {
	var objs []*Object
	for key, entries := range c {
		class, err := expression.ParseObjectClass(key)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		seen := make(map[string]bool, len(entries))
		for _, e := range entries {
			if seen[e.UID] {
				return nil, fmt.Errorf("catalog: duplicate %s %s", class, e.UID)
			}
			seen[e.UID] = true
			o := &Object{Class: class, UID: e.UID, Name: e.Name, Code: e.Code, Value: e.Value, MemberCount: e.MemberCount}
			if err := o.Validate(); err != nil {
				return nil, fmt.Errorf("catalog: %w", err)
			}
			objs = append(objs, o)
		}
	}

	rank := make(map[expression.ObjectClass]int, len(expression.ObjectClasses))
	for i, class := range expression.ObjectClasses {
		rank[class] = i
	}
	sort.Slice(objs, func(i, j int) bool {
		if objs[i].Class != objs[j].Class {
			return rank[objs[i].Class] < rank[objs[j].Class]
		}
		return objs[i].UID < objs[j].UID
	})
	return objs, nil
}

// Snapshot validates the catalog and indexes it.
func (c Catalog) Snapshot() (*Snapshot, error) {
	objs, err := c.Objects()
	if err != nil {
		return nil, err
	}
	return NewSnapshot(objs), nil
}
