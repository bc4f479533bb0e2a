package preflight

import (
	"ytarchive/internal/config"
	"ytarchive/internal/store"
)

// AccountStatus combines ledger state with credential readiness for display.
type AccountStatus struct {
	Name        string
	Role        store.Role
	DailyCap    int
	Consumed    int
	Remaining   int
	Provisioned bool
	Ready       bool
	Detail      string
}

// Accounts reports every configured account alongside its ledger row. Configured
// accounts missing from the ledger are listed as unprovisioned; ledger rows without
// a configured credential are listed as orphaned.
func Accounts(cfg *config.Config, ledger []*store.QuotaAccount) []AccountStatus {
	byName := make(map[string]*store.QuotaAccount, len(ledger))
	for _, acct := range ledger {
		byName[acct.Name] = acct
	}

	var out []AccountStatus
	seen := make(map[string]bool)
	add := func(name string, role store.Role, ready Result) {
		seen[name] = true
		status := AccountStatus{Name: name, Role: role, Ready: ready.Passed, Detail: ready.Detail}
		if acct, ok := byName[name]; ok {
			status.Provisioned = true
			status.DailyCap = acct.DailyCap
			status.Consumed = acct.ConsumedUnits
			status.Remaining = acct.Remaining()
		} else {
			status.Detail = "not provisioned"
		}
		out = append(out, status)
	}

	if cfg != nil {
		if name := cfg.Credentials.ReaderAccount; name != "" {
			ready := Result{Passed: cfg.Source.APIKey != "", Detail: "api key"}
			if !ready.Passed {
				ready.Detail = "api key missing"
			}
			add(name, store.RoleReader, ready)
		}
		for _, up := range cfg.Credentials.Uploaders {
			add(up.Name, store.RoleUpload, CheckToken(up.Name, up.Name, up.TokenFile))
		}
	}
	for _, acct := range ledger {
		if seen[acct.Name] {
			continue
		}
		out = append(out, AccountStatus{
			Name:        acct.Name,
			Role:        acct.Role,
			DailyCap:    acct.DailyCap,
			Consumed:    acct.ConsumedUnits,
			Remaining:   acct.Remaining(),
			Provisioned: true,
			Detail:      "orphaned (no configured credential)",
		})
	}
	return out
}
