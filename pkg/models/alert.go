package models

import "time"

// AlertType describes the condition an alert rule watches for.
type AlertType string

const (
	AlertPriceDrop      AlertType = "PRICE_DROP"
	AlertPriceIncrease  AlertType = "PRICE_INCREASE"
	AlertStockAvailable AlertType = "STOCK_AVAILABLE"
)

// Channel is a notification delivery channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelPush     Channel = "push"
	ChannelWhatsApp Channel = "whatsapp"
)

// AlertRule belongs to exactly one product and one user. Once TriggeredAt is
// set the rule is done: it is excluded from evaluation and never fires again.
// The per-channel sent flags are each independently idempotent.
type AlertRule struct {
	ID           int64      `json:"id"`
	ProductID    int64      `json:"product_id"`
	UserID       int64      `json:"user_id"`
	Type         AlertType  `json:"alert_type"`
	TargetPrice  float64    `json:"target_price"`
	Active       bool       `json:"is_active"`
	TriggeredAt  *time.Time `json:"triggered_at,omitempty"`
	EmailSent    bool       `json:"email_sent"`
	PushSent     bool       `json:"push_sent"`
	WhatsAppSent bool       `json:"whatsapp_sent"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Sent reports whether the given channel was already dispatched for this
// rule's trigger.
func (a *AlertRule) Sent(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return a.EmailSent
	case ChannelPush:
		return a.PushSent
	case ChannelWhatsApp:
		return a.WhatsAppSent
	}
	return false
}

// MarkSent records a successful dispatch on the given channel.
func (a *AlertRule) MarkSent(ch Channel) {
	switch ch {
	case ChannelEmail:
		a.EmailSent = true
	case ChannelPush:
		a.PushSent = true
	case ChannelWhatsApp:
		a.WhatsAppSent = true
	}
}

// NotificationPrefs holds a user's channel opt-ins and addresses. Email needs
// no address; push requires a device token and WhatsApp a phone number.
type NotificationPrefs struct {
	UserID          int64  `json:"user_id"`
	Email           string `json:"email"`
	EmailEnabled    bool   `json:"email_notifications"`
	PushEnabled     bool   `json:"push_notifications"`
	WhatsAppEnabled bool   `json:"whatsapp_notifications"`
	DeviceToken     string `json:"fcm_token,omitempty"`
	WhatsAppNumber  string `json:"whatsapp_number,omitempty"`
}

// ChannelReady reports whether a channel is both enabled and addressable.
func (p NotificationPrefs) ChannelReady(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelPush:
		return p.PushEnabled && p.DeviceToken != ""
	case ChannelWhatsApp:
		return p.WhatsAppEnabled && p.WhatsAppNumber != ""
	}
	return false
}

// Channels lists every delivery channel in dispatch order.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelPush, ChannelWhatsApp}
}
