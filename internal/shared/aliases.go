package shared

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rental_insights/internal/domain"
)

// aliasFile is the on-disk alias registry:
//
//	properties:
//	  - name: Beach House
//	    aliases: ["Beach House - Unit A", "BH Unit A"]
type aliasFile struct {
	Properties []struct {
		Name    string   `yaml:"name"`
		Aliases []string `yaml:"aliases"`
	} `yaml:"properties"`
}

// LoadAliases reads the alias registry at path. An empty path yields an
// empty table.
func LoadAliases(path string) (domain.AliasTable, error) {
	if path == "" {
		return domain.NewAliasTable(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.AliasTable{}, fmt.Errorf("read aliases %s: %w", path, err)
	}
	return ParseAliases(data)
}

func ParseAliases(data []byte) (domain.AliasTable, error) {
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.AliasTable{}, fmt.Errorf("decode aliases: %w", err)
	}
	entries := make(map[string][]string, len(f.Properties))
	for _, p := range f.Properties {
		if p.Name == "" {
			continue
		}
		entries[p.Name] = append(entries[p.Name], p.Aliases...)
	}
	return domain.NewAliasTable(entries), nil
}
