// Package approvers holds the static approver directory and the filtering,
// favorites and selection logic built over it.
package approvers

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"prismakit/internal/logging"
)

//go:embed approvers.yaml
var embedded []byte

// Approver is one person who can sign off on an order.
type Approver struct {
	ID             string   `yaml:"id" json:"id"`
	FirstName      string   `yaml:"first_name" json:"firstName"`
	LastName       string   `yaml:"last_name" json:"lastName"`
	Email          string   `yaml:"email" json:"email"`
	Client         string   `yaml:"client" json:"client"`
	BusinessUnit   string   `yaml:"business_unit" json:"businessUnit"`
	Specialty      string   `yaml:"specialty,omitempty" json:"specialty,omitempty"`
	CompanyUserIDs []string `yaml:"company_user_ids" json:"companyUserIds"`
}

// FullName returns "First Last".
func (a Approver) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// HasCompanyUserID reports whether id is one of a's affiliations.
func (a Approver) HasCompanyUserID(id string) bool {
	for _, c := range a.CompanyUserIDs {
		if c == id {
			return true
		}
	}
	return false
}

type table struct {
	Approvers []Approver `yaml:"approvers"`
}

// Directory is the loaded approver table. It is read-only once built.
type Directory struct {
	list []Approver
	byID map[string]int
}

// Load reads the directory from path, or the embedded table when path is
// empty.
func Load(path string) (*Directory, error) {
	data := embedded
	source := "embedded table"
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read approvers: %w", err)
		}
		data = raw
		source = path
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	logging.Approvers("Loaded %d approvers from %s", d.Len(), source)
	return d, nil
}

// Parse builds a directory from YAML. IDs must be present and unique.
func Parse(data []byte) (*Directory, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse approvers: %w", err)
	}
	return New(t.Approvers)
}

// New builds a directory from list, keeping its order.
func New(list []Approver) (*Directory, error) {
	d := &Directory{
		list: make([]Approver, len(list)),
		byID: make(map[string]int, len(list)),
	}
	for i, a := range list {
		if a.ID == "" {
			return nil, fmt.Errorf("approver %d (%s) has no id", i, a.Email)
		}
		if _, dup := d.byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate approver id %q", a.ID)
		}
		a.CompanyUserIDs = append([]string(nil), a.CompanyUserIDs...)
		d.list[i] = a
		d.byID[a.ID] = i
	}
	return d, nil
}

// All returns a copy of every approver in table order.
func (d *Directory) All() []Approver {
	return append([]Approver(nil), d.list...)
}

func (d *Directory) Len() int { return len(d.list) }

// Get returns the approver with id.
func (d *Directory) Get(id string) (Approver, bool) {
	i, ok := d.byID[id]
	if !ok {
		return Approver{}, false
	}
	return d.list[i], true
}

// Contains reports whether id is in the directory.
func (d *Directory) Contains(id string) bool {
	_, ok := d.byID[id]
	return ok
}

// index is the table position of id, used to keep derived lists in table
// order.
func (d *Directory) index(id string) (int, bool) {
	i, ok := d.byID[id]
	return i, ok
}
