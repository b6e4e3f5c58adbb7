package checkpoint

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed regions.yaml
var regionCatalog []byte

type catalogEntry struct {
	Type       string `yaml:"type"`
	Code       string `yaml:"code"`
	Name       string `yaml:"name"`
	ParentCode string `yaml:"parent_code"`
}

// LoadCatalog returns the built-in administrative region catalog used to
// seed checkpoints. The file ships with the binary; editing it and
// redeploying adds new regions without touching existing checkpoints.
func LoadCatalog() ([]Region, error) {
	var entries []catalogEntry
	if err := yaml.Unmarshal(regionCatalog, &entries); err != nil {
		return nil, fmt.Errorf("parse region catalog: %w", err)
	}
	regions := make([]Region, 0, len(entries))
	for i, e := range entries {
		if e.Type == "" || e.Code == "" || e.Name == "" {
			return nil, fmt.Errorf("region catalog entry %d: type, code and name are required", i)
		}
		regions = append(regions, Region{
			Type:       e.Type,
			Code:       e.Code,
			Name:       e.Name,
			ParentCode: e.ParentCode,
		})
	}
	return regions, nil
}
