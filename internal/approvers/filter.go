package approvers

import (
	"sort"
	"strings"
)

// Criteria selects a subset of approvers. Zero values disable a filter.
type Criteria struct {
	Query         string          `json:"query,omitempty"`
	FavoritesOnly bool            `json:"favoritesOnly,omitempty"`
	Favorites     map[string]bool `json:"-"`
	// BusinessUnits, Functions and Clients match any selected value.
	BusinessUnits []string `json:"businessUnits,omitempty"`
	Functions     []string `json:"functions,omitempty"`
	Clients       []string `json:"clients,omitempty"`
	// CompanyUserIDs must all be present on an approver.
	CompanyUserIDs []string `json:"companyUserIds,omitempty"`
}

// Filter returns the approvers matching every active part of c, in list
// order.
func Filter(list []Approver, c Criteria) []Approver {
	query := strings.ToLower(strings.TrimSpace(c.Query))
	units := toSet(c.BusinessUnits)
	functions := toSet(c.Functions)
	clients := toSet(c.Clients)

	out := make([]Approver, 0, len(list))
	for _, a := range list {
		if query != "" &&
			!strings.Contains(strings.ToLower(a.FirstName), query) &&
			!strings.Contains(strings.ToLower(a.LastName), query) &&
			!strings.Contains(strings.ToLower(a.Email), query) {
			continue
		}
		if c.FavoritesOnly && !c.Favorites[a.ID] {
			continue
		}
		if len(units) > 0 && !units[a.BusinessUnit] {
			continue
		}
		if len(functions) > 0 && !functions[a.Specialty] {
			continue
		}
		if len(clients) > 0 && !clients[a.Client] {
			continue
		}
		if !hasAll(a, c.CompanyUserIDs) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func hasAll(a Approver, ids []string) bool {
	for _, id := range ids {
		if !a.HasCompanyUserID(id) {
			return false
		}
	}
	return true
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	s := make(map[string]bool, len(values))
	for _, v := range values {
		s[v] = true
	}
	return s
}

// FacetValues lists the distinct values available for each facet.
type FacetValues struct {
	BusinessUnits  []string `json:"businessUnits"`
	Functions      []string `json:"functions"`
	Clients        []string `json:"clients"`
	CompanyUserIDs []string `json:"companyUserIds"`
}

// Facets returns the sorted distinct facet values present in list. Empty
// values are skipped.
func Facets(list []Approver) FacetValues {
	units := map[string]bool{}
	functions := map[string]bool{}
	clients := map[string]bool{}
	ids := map[string]bool{}
	for _, a := range list {
		units[a.BusinessUnit] = true
		functions[a.Specialty] = true
		clients[a.Client] = true
		for _, id := range a.CompanyUserIDs {
			ids[id] = true
		}
	}
	return FacetValues{
		BusinessUnits:  sortedKeys(units),
		Functions:      sortedKeys(functions),
		Clients:        sortedKeys(clients),
		CompanyUserIDs: sortedKeys(ids),
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
