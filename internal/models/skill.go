package models

// Skill is a catalog entry.
type Skill struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
}

// Profile is the catalog's snapshot of what an actor teaches and wants.
type Profile struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name,omitempty" yaml:"name"`
	Teaches    []string `json:"teaches" yaml:"teaches"`
	Wants      []string `json:"wants" yaml:"wants"`
	Reputation float64  `json:"reputation" yaml:"reputation"`
	Active     bool     `json:"active" yaml:"active"`
}

// CounterpartyPage is a page of counterparty candidates.
type CounterpartyPage struct {
	Users      []Profile `json:"users"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	TotalPages int       `json:"total_pages"`
}
