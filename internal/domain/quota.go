package domain

import "strings"

// QuotaScope is the quota bucket a request falls into.
type QuotaScope string

const (
	// ScopeDirect covers one-to-one direct-message conversations.
	ScopeDirect QuotaScope = "dm"
	// ScopeGroup covers shared group contexts (a guild, a channel).
	ScopeGroup QuotaScope = "guild"
)

// Label returns the scope name as shown to users (e.g. in limit messages).
func (s QuotaScope) Label() string {
	return strings.ToUpper(string(s))
}
