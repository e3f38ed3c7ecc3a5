package extract

import (
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
)

// ErrUnknownLayout is returned for senders no layout is registered for.
var ErrUnknownLayout = errors.New("no layout for sender")

// Layout is a vendor-specific combination of pairing mode and rule set.
type Layout struct {
	Name    string
	Domains []string // Sender domains, subdomains included
	Mode    PairingMode
	Sign    Sign
	Tags    []string // Elements whose text forms chunks; empty means every text node
	Rules   RuleSet
}

// chase alerts render each field as a label cell followed by a value cell.
var chase = Layout{
	Name:    "chase",
	Domains: []string{"chase.com"},
	Mode:    HeaderValue,
	Sign:    DebitNegative,
	Tags:    []string{"td"},
	Rules: RuleSet{
		{Label: "Account ending in", Field: FieldAccount, Apply: SetMaskedAccount},
		{Label: "Account", Field: FieldAccount, Apply: SetMaskedAccount},
		{Label: "Made on", Field: FieldPostedDate, Apply: SetDateBeforeAt},
		{Label: "Date", Field: FieldPostedDate, Apply: SetDateBeforeAt},
		{Label: "Description", Field: FieldDescription, Apply: SetDescription},
		{Label: "Merchant", Field: FieldDescription, Apply: SetDescription},
		{Label: "Amount", Field: FieldAmount, Apply: SetAmount},
	},
}

// capitalone alerts are self-describing blocks of text. Order matters:
// the amount rule runs before the description fallback.
var capitalone = Layout{
	Name:    "capitalone",
	Domains: []string{"capitalone.com"},
	Mode:    Unpaired,
	Sign:    DebitNegative,
	Tags:    []string{"p", "td"},
	Rules: RuleSet{
		{Field: FieldAmount, Apply: SetAmount},
		{Field: FieldAccount, Apply: SetAccountEndingIn},
		{Field: FieldPostedDate, Apply: SetDate},
		// TODO: the fallback depends on block order in the source markup;
		// revisit once a second unpaired vendor is added.
		{Field: FieldDescription, Apply: ClaimDescription},
	},
}

var layouts = []Layout{chase, capitalone}

// Layouts returns the registered layouts sorted by name.
func Layouts() []Layout {
	out := make([]Layout, len(layouts))
	copy(out, layouts)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ForDomain returns the layout registered for a sender domain.
func ForDomain(domain string) (Layout, error) {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		return Layout{}, fmt.Errorf("%w: empty domain", ErrUnknownLayout)
	}
	for _, l := range layouts {
		for _, d := range l.Domains {
			if domain == d || strings.HasSuffix(domain, "."+d) {
				return l, nil
			}
		}
	}
	return Layout{}, fmt.Errorf("%w: %s", ErrUnknownLayout, domain)
}

// ForSender accepts a bare domain, an address, or a display-name address
// such as "Chase <no.reply.alerts@chase.com>".
func ForSender(sender string) (Layout, error) {
	return ForDomain(SenderDomain(sender))
}

// SenderDomain extracts the domain part of a sender.
func SenderDomain(sender string) string {
	sender = strings.TrimSpace(sender)
	if !strings.Contains(sender, "@") {
		return sender
	}
	if addr, err := mail.ParseAddress(sender); err == nil {
		sender = addr.Address
	}
	return sender[strings.LastIndex(sender, "@")+1:]
}
