package enums

import "fmt"

// InvitationStatus captures the lifecycle of a channel invitation.
type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusRevoked  InvitationStatus = "revoked"
)

var validInvitationStatuses = []InvitationStatus{
	InvitationStatusPending,
	InvitationStatusAccepted,
	InvitationStatusRevoked,
}

// String implements fmt.Stringer.
func (s InvitationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known InvitationStatus.
func (s InvitationStatus) IsValid() bool {
	for _, candidate := range validInvitationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s InvitationStatus) IsTerminal() bool {
	return s == InvitationStatusAccepted || s == InvitationStatusRevoked
}

// ParseInvitationStatus converts raw input into an InvitationStatus.
func ParseInvitationStatus(value string) (InvitationStatus, error) {
	for _, candidate := range validInvitationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invitation status %q", value)
}
