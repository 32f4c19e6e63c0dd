package email

import (
	"sort"
	"strings"
)

// Provider is a preset IMAP endpoint for a well-known mail service.
type Provider struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	TLS  bool   `json:"tls"`
}

var providers = map[string]Provider{
	"gmail":   {Host: "imap.gmail.com", Port: 993, TLS: true},
	"outlook": {Host: "outlook.office365.com", Port: 993, TLS: true},
	"yahoo":   {Host: "imap.mail.yahoo.com", Port: 993, TLS: true},
	"icloud":  {Host: "imap.mail.me.com", Port: 993, TLS: true},
}

// Providers returns a copy of the preset table keyed by provider name.
func Providers() map[string]Provider {
	out := make(map[string]Provider, len(providers))
	for k, v := range providers {
		out[k] = v
	}
	return out
}

// ProviderNames returns the preset names in sorted order.
func ProviderNames() []string {
	names := make([]string, 0, len(providers))
	for k := range providers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// LookupProvider finds a preset by name, case-insensitively.
func LookupProvider(name string) (Provider, bool) {
	p, ok := providers[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}
