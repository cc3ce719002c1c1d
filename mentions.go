package main

import (
	"regexp"
	"strings"
)

// mentionPattern matches "@" followed by word characters. Both parse forms
// below must tokenize identically; they differ only in case folding and
// whether the "@" prefix is kept.
var mentionPattern = regexp.MustCompile(`@(\w+)`)

// parseMentions extracts mention tokens verbatim ("@Bob"), in first-occurrence
// order, duplicates included. This form is stored on the message. Always
// returns a non-nil slice, like mentionNames.
func parseMentions(text string) []string {
	tokens := mentionPattern.FindAllString(text, -1)
	if tokens == nil {
		return []string{}
	}
	return tokens
}

// mentionNames extracts lower-cased mention names without the "@" prefix
// ("bob"), the form used for resolution.
func mentionNames(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.ToLower(m[1]))
	}
	return names
}

// isBroadcastMention reports whether a lower-cased mention name is one of the
// reserved all-hands tokens.
func isBroadcastMention(name string) bool {
	return name == "all" || name == "everyone"
}

// resolveMention finds the agent a lower-cased mention name refers to.
// Matching is by display name, case-insensitive. When bySessionKey is set
// (squad-chat mentions only) the second ':'-separated segment of the session
// key is accepted as an alias, so "agent:alpha:f3d1" answers to "@alpha". No
// match resolves to nil, never an error: free text may contain "@" that is
// not a mention.
func resolveMention(agents []Agent, name string, bySessionKey bool) *Agent {
	for i := range agents {
		if strings.EqualFold(agents[i].Name, name) {
			return &agents[i]
		}
		if bySessionKey && strings.EqualFold(sessionKeyAlias(agents[i].SessionKey), name) {
			return &agents[i]
		}
	}
	return nil
}

// sessionKeyAlias extracts the mention alias from a session key: the segment
// after the first ':'. Keys without a ':' have no alias.
func sessionKeyAlias(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// findOverseer resolves the triage role: an explicit special_role assignment
// wins, otherwise the first agent (in registration order) whose role text
// contains "overseer" or "coordinator". Nil when nobody qualifies.
func findOverseer(agents []Agent) *Agent {
	return findSpecialRole(agents, "overseer", func(a *Agent) bool {
		role := strings.ToLower(a.Role)
		return strings.Contains(role, "overseer") || strings.Contains(role, "coordinator")
	})
}

// findNagger resolves the QA role: explicit assignment first, then the first
// agent whose role text contains "qa" or whose name contains "nagger".
func findNagger(agents []Agent) *Agent {
	return findSpecialRole(agents, "nagger", func(a *Agent) bool {
		return strings.Contains(strings.ToLower(a.Role), "qa") ||
			strings.Contains(strings.ToLower(a.Name), "nagger")
	})
}

func findSpecialRole(agents []Agent, role string, textMatch func(*Agent) bool) *Agent {
	for i := range agents {
		if agents[i].SpecialRole == role {
			return &agents[i]
		}
	}
	for i := range agents {
		if textMatch(&agents[i]) {
			return &agents[i]
		}
	}
	return nil
}
