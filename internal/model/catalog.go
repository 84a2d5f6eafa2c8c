package model

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the declarative input document: the target list plus the
// license map and denylist it's evaluated against, all three typically
// checked into the same catalog repository as separate files.
type Catalog struct {
	Targets []*Target `yaml:"targets"`
}

// LoadCatalog reads a YAML (or JSON, a valid subset of YAML) catalog
// file into a Target slice.
func LoadCatalog(path string) ([]*Target, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return c.Targets, nil
}

// LoadLicenseMap reads a YAML/JSON license map file.
func LoadLicenseMap(path string) (LicenseMap, error) {
	var lm LicenseMap
	b, err := os.ReadFile(path)
	if err != nil {
		return lm, err
	}
	err = yaml.Unmarshal(b, &lm)
	return lm, err
}

// LoadDenylist reads a YAML/JSON denylist file. A missing path is not an
// error: it returns an empty Denylist, since a catalog without a
// denylist is a valid (if permissive) configuration.
func LoadDenylist(path string) (Denylist, error) {
	var dl Denylist
	if path == "" {
		return dl, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return dl, nil
	}
	if err != nil {
		return dl, err
	}
	err = yaml.Unmarshal(b, &dl)
	return dl, err
}
