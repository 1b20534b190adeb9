// Package campaign assembles validated run configurations from form input.
package campaign

import (
	"fmt"
	"slices"
	"strings"
)

// Bank is one entry of the bank catalog.
type Bank struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var bankCatalog = []Bank{
	{Code: "2", Label: "2 - MeuCashCard"},
	{Code: "33", Label: "33 - Santander"},
	{Code: "74", Label: "74 - Banco do Brasil"},
	{Code: "243", Label: "243 - Banco Master"},
	{Code: "318", Label: "318 - BMG"},
	{Code: "335", Label: "335 - Banco Digio"},
	{Code: "389", Label: "389 - Banco Mercantil"},
	{Code: "422", Label: "422 - Banco Safra"},
	{Code: "465", Label: "465 - Capital Consig"},
	{Code: "604", Label: "604 - Banco Industrial"},
	{Code: "623", Label: "623 - Banco PAN"},
	{Code: "643", Label: "643 - Banco Pine"},
	{Code: "654", Label: "654 - Banco DigiMais"},
	{Code: "707", Label: "707- Banco Daycoval"},
	{Code: "955", Label: "955 - Banco Olé"},
	{Code: "6613", Label: "6613 - VemCard"},
}

// Banks returns the bank catalog in display order.
func Banks() []Bank {
	return slices.Clone(bankCatalog)
}

// ResolveBank maps a catalog label or a bare catalog code to the bank code.
func ResolveBank(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, b := range bankCatalog {
		if s == b.Label || s == b.Code {
			return b.Code, nil
		}
	}
	return "", fmt.Errorf("%w: unknown bank %q", ErrInvalidBank, s)
}

// Teams lists the outreach teams a campaign can be labelled for.
var Teams = []string{"outbound", "csapp", "csativacao", "cscdx", "csport", "outbound_virada"}

// DefaultTeam is used when a request names no team.
const DefaultTeam = "outbound"

// ValidTeam reports whether team is in the catalog.
func ValidTeam(team string) bool {
	return slices.Contains(Teams, team)
}
