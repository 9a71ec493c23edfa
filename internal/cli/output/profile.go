package output

import (
	"slices"
	"strconv"
	"time"

	"github.com/marmos91/ldapauth/pkg/authprovider"
)

// ProfileView is the printable result of a credential check.
type ProfileView struct {
	Identity    string            `json:"identity" yaml:"identity"`
	PrincipalID string            `json:"principal_id" yaml:"principal_id"`
	Attributes  map[string]string `json:"attributes" yaml:"attributes"`
	DurationMs  float64           `json:"duration_ms" yaml:"duration_ms"`
}

// NewProfileView builds a view of profile as returned for identity.
func NewProfileView(identity string, profile *authprovider.Profile, took time.Duration) *ProfileView {
	attrs := profile.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &ProfileView{
		Identity:    identity,
		PrincipalID: profile.PrincipalID,
		Attributes:  attrs,
		DurationMs:  float64(took.Microseconds()) / 1000,
	}
}

// Headers implements TableRenderer.
func (v *ProfileView) Headers() []string {
	return []string{"Attribute", "Value"}
}

// Rows implements TableRenderer. The principal comes first, then the
// attributes in name order.
func (v *ProfileView) Rows() [][]string {
	rows := [][]string{{"dn", v.PrincipalID}}

	names := make([]string, 0, len(v.Attributes))
	for name := range v.Attributes {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		rows = append(rows, []string{name, v.Attributes[name]})
	}
	return rows
}

// Summary returns the key-value lines printed above the table.
func (v *ProfileView) Summary() [][2]string {
	return [][2]string{
		{"Identity", v.Identity},
		{"Principal", v.PrincipalID},
		{"Attributes", strconv.Itoa(len(v.Attributes))},
		{"Time", strconv.FormatFloat(v.DurationMs, 'f', 1, 64) + " ms"},
	}
}
