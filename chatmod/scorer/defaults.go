package scorer

// DefaultRules returns the stock matching lists. Deployments are expected to
// extend these via daemon flags.
func DefaultRules() Rules {
	return Rules{
		BannedKeywords: []string{
			"free nitro", "verify account", "steam gift", "claim your prize",
		},
		SuspiciousDomains: []string{
			"bit.ly", "tinyurl", "grabify", "iplogger",
			"free-nitro", "discord-gift", "steam-nitro",
		},
		BroadcastMentions: []string{"@everyone", "@here"},
		MaxMentions:       5,
	}
}
