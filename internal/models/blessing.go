package models

import "strings"

// Relationship is who the greeting is addressed to
type Relationship string

const (
	RelationshipElder     Relationship = "elder"
	RelationshipColleague Relationship = "colleague"
	RelationshipLeader    Relationship = "leader"
	RelationshipFriend    Relationship = "friend"
	RelationshipPartner   Relationship = "partner"
	RelationshipCustomer  Relationship = "customer"
)

// Relationships lists every accepted relationship in display order
var Relationships = []Relationship{
	RelationshipElder,
	RelationshipColleague,
	RelationshipLeader,
	RelationshipFriend,
	RelationshipPartner,
	RelationshipCustomer,
}

// Style is one of the three variants generated in parallel per round
type Style string

const (
	StyleNormal   Style = "normal"
	StyleLiterary Style = "literary"
	StyleAbstract Style = "abstract"
)

// Styles lists the variants in the order they are presented
var Styles = []Style{StyleNormal, StyleLiterary, StyleAbstract}

// Length bounds the size of the generated greeting
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// Lengths lists every accepted length
var Lengths = []Length{LengthShort, LengthMedium, LengthLong}

var styleLabels = map[Style]string{
	StyleNormal:   "版本一",
	StyleLiterary: "版本二",
	StyleAbstract: "版本三",
}

// Valid reports whether r is one of the known relationships
func (r Relationship) Valid() bool {
	for _, v := range Relationships {
		if r == v {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known styles
func (s Style) Valid() bool {
	_, ok := styleLabels[s]
	return ok
}

// Label is the user-facing name of the variant
func (s Style) Label() string {
	return styleLabels[s]
}

// Valid reports whether l is one of the known lengths
func (l Length) Valid() bool {
	for _, v := range Lengths {
		if l == v {
			return true
		}
	}
	return false
}

// GenerationRequest describes a single greeting to generate.
// Optional free-text fields are empty when absent.
type GenerationRequest struct {
	Relationship Relationship `json:"relationship"`
	Style        Style        `json:"style"`
	Length       Length       `json:"length"`
	Name         string       `json:"name,omitempty"`
	Note         string       `json:"note,omitempty"`
	Reference    string       `json:"reference,omitempty"`
}

// NewGenerationRequest normalizes and validates raw input
func NewGenerationRequest(relationship, style, length, name, note, reference string) (GenerationRequest, error) {
	req := GenerationRequest{
		Relationship: Relationship(strings.TrimSpace(relationship)),
		Style:        Style(strings.TrimSpace(style)),
		Length:       Length(strings.TrimSpace(length)),
		Name:         name,
		Note:         note,
		Reference:    reference,
	}.Normalize()

	if err := req.Validate(); err != nil {
		return GenerationRequest{}, err
	}
	return req, nil
}

// Normalize trims the optional fields so whitespace-only input counts as absent
func (r GenerationRequest) Normalize() GenerationRequest {
	r.Name = strings.TrimSpace(r.Name)
	r.Note = strings.TrimSpace(r.Note)
	r.Reference = strings.TrimSpace(r.Reference)
	return r
}

// Validate checks the categorical fields against their closed enumerations
func (r GenerationRequest) Validate() error {
	if r.Relationship == "" || r.Style == "" || r.Length == "" {
		return &ValidationError{Field: "relationship, style, length", Reason: ReasonMissing}
	}
	if !r.Relationship.Valid() {
		return &ValidationError{Field: "relationship", Value: string(r.Relationship), Reason: ReasonUnknown}
	}
	if !r.Style.Valid() {
		return &ValidationError{Field: "style", Value: string(r.Style), Reason: ReasonUnknown}
	}
	if !r.Length.Valid() {
		return &ValidationError{Field: "length", Value: string(r.Length), Reason: ReasonUnknown}
	}
	return nil
}

// WithStyle returns a copy of the request targeting another variant
func (r GenerationRequest) WithStyle(s Style) GenerationRequest {
	r.Style = s
	return r
}

// HasPersonalization reports whether any optional field is present
func (r GenerationRequest) HasPersonalization() bool {
	return r.Name != "" || r.Note != "" || r.Reference != ""
}

// ModelInfo describes a server-side model a client may select
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}
