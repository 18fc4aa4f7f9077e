package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeMatchRequest    NotificationType = "match_request"
	NotificationTypeMatchDecision   NotificationType = "match_decision"
	NotificationTypeGhostWarning    NotificationType = "ghost_warning"
	NotificationTypePurchaseUpdate  NotificationType = "purchase_update"
	NotificationTypePayoutReleased  NotificationType = "payout_released"
	NotificationTypeDisputeOpened   NotificationType = "dispute_opened"
	NotificationTypeTrustAdjustment NotificationType = "trust_adjustment"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeMatchRequest,
	NotificationTypeMatchDecision,
	NotificationTypeGhostWarning,
	NotificationTypePurchaseUpdate,
	NotificationTypePayoutReleased,
	NotificationTypeDisputeOpened,
	NotificationTypeTrustAdjustment,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
