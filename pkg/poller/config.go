package poller

import (
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
)

// DefaultInterval is how often the portal is polled.
const DefaultInterval = 12 * time.Hour

// Configured registers the poller flags and returns a Poller over portal that
// is set up once lflag.Configure is called.
func Configured(portal Portal) *Poller {
	p := New(portal)

	interval := lflag.Duration("scan-interval", DefaultInterval, "How often to refresh accounts and meters from the portal")
	accounts := map[string]bool{}
	lflag.JSON(&accounts, "accounts", accounts, "JSON map of account code (company_account) to whether it is polled")
	accountsDefault := lflag.Bool("accounts-default", true, "Whether accounts missing from -accounts are polled")

	lflag.Do(func() {
		if *interval <= 0 {
			panic(fmt.Sprintf("scan-interval must be positive: %s", *interval))
		}
		p.interval = *interval
		p.accountFilter = accounts
		p.accountsDefault = *accountsDefault
	})

	return p
}

// SetAccounts overrides which accounts are polled. Codes missing from filter
// fall back to def.
func (p *Poller) SetAccounts(filter map[string]bool, def bool) {
	if filter == nil {
		filter = map[string]bool{}
	}
	p.accountFilter = filter
	p.accountsDefault = def
}

// SetInterval overrides how often Run refreshes.
func (p *Poller) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}
