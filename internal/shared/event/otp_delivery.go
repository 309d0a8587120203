package event

import "time"

// OTPDeliveryDestination is the queue OTPDeliveryMessage jobs travel on.
const OTPDeliveryDestination string = "otp.deliver"
const OTPDeliveryDestinationConsumerNotification string = "otp.deliver.notification"

// OTPDeliveryJobType tags OTPDeliveryMessage jobs on the queue.
const OTPDeliveryJobType string = OTPDeliveryDestination

// OTPDeliveryMessage asks the notification module to deliver a passcode.
// Code is the only place the plaintext survives issuance.
type OTPDeliveryMessage struct {
	EventID    int64     `json:"event_id"`
	Channel    string    `json:"channel"`
	Identifier string    `json:"identifier"`
	Purpose    string    `json:"purpose"`
	Code       string    `json:"code"`
	ExpiresAt  time.Time `json:"expires_at"`
}
