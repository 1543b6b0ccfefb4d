package domain

// GuestResolution is the lookup outcome for one mentioned guest
type GuestResolution struct {
	MentionID string
	Email     string // Empty when unresolved
	Reason    string // Why the lookup failed, for logs only
}

// Resolved reports whether an email address was found
func (g GuestResolution) Resolved() bool {
	return g.Email != ""
}

// Unresolved builds a failed resolution for a mention
func Unresolved(mentionID, reason string) GuestResolution {
	return GuestResolution{MentionID: mentionID, Reason: reason}
}
