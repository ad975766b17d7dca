package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Department is one municipal ward office that can own reports.
type Department struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
	City string `yaml:"city" json:"city"`
}

// Directory is a read-only lookup of jurisdiction codes.
type Directory struct {
	byCode map[string]Department
}

var defaultDepartments = []Department{
	{Code: "KTM-W01", Name: "Kathmandu - Ward 1 (Central)", City: "Kathmandu"},
	{Code: "KTM-W02", Name: "Kathmandu - Ward 2 (Thamel)", City: "Kathmandu"},
	{Code: "KTM-W03", Name: "Kathmandu - Ward 3 (Maharajgunj)", City: "Kathmandu"},
	{Code: "PKR-W05", Name: "Pokhara - Ward 5 (Lakeside)", City: "Pokhara"},
	{Code: "PKR-W06", Name: "Pokhara - Ward 6 (Baidam)", City: "Pokhara"},
	{Code: "LAL-W03", Name: "Lalitpur - Ward 3 (Pulchowk)", City: "Lalitpur"},
	{Code: "LAL-W04", Name: "Lalitpur - Ward 4 (Jhamsikhel)", City: "Lalitpur"},
}

// NewDirectory builds a directory from departments. Duplicate codes are rejected.
func NewDirectory(departments []Department) (*Directory, error) {
	d := &Directory{byCode: make(map[string]Department, len(departments))}
	for _, dep := range departments {
		if dep.Code == "" {
			return nil, fmt.Errorf("department %q has no code", dep.Name)
		}
		if _, dup := d.byCode[dep.Code]; dup {
			return nil, fmt.Errorf("duplicate department code %s", dep.Code)
		}
		d.byCode[dep.Code] = dep
	}
	return d, nil
}

// DefaultDirectory returns the built-in ward list.
func DefaultDirectory() *Directory {
	d, _ := NewDirectory(defaultDepartments)
	return d
}

// LoadDirectory reads a YAML list of departments. An empty path yields the defaults.
func LoadDirectory(path string) (*Directory, error) {
	if path == "" {
		return DefaultDirectory(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read departments file: %w", err)
	}
	var file struct {
		Departments []Department `yaml:"departments"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse departments file: %w", err)
	}
	if len(file.Departments) == 0 {
		return nil, fmt.Errorf("departments file %s lists no departments", path)
	}
	return NewDirectory(file.Departments)
}

// Known reports whether code is a registered jurisdiction.
func (d *Directory) Known(code string) bool {
	if d == nil || code == "" {
		return false
	}
	_, ok := d.byCode[code]
	return ok
}

// Lookup returns the department for code.
func (d *Directory) Lookup(code string) (Department, bool) {
	if d == nil {
		return Department{}, false
	}
	dep, ok := d.byCode[code]
	return dep, ok
}

// All returns every department sorted by code.
func (d *Directory) All() []Department {
	out := make([]Department, 0, len(d.byCode))
	for _, dep := range d.byCode {
		out = append(out, dep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
