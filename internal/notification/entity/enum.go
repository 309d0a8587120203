package entity

import "strings"

// Channel is stored as smallint in otp_delivery_logs.channel.
type Channel int16

const (
	ChannelUnknown Channel = iota
	ChannelEmail
	ChannelSMS
)

var channelNames = [...]string{ChannelUnknown: "unknown", ChannelEmail: "email", ChannelSMS: "sms"}

// ChannelFromString maps job channels to a Channel. "phone" is the name the
// otp module publishes; "sms" is accepted for hand-written jobs.
func ChannelFromString(raw string) Channel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "email":
		return ChannelEmail
	case "phone", "sms":
		return ChannelSMS
	}
	return ChannelUnknown
}

func (c Channel) String() string {
	if c < 0 || int(c) >= len(channelNames) {
		return channelNames[ChannelUnknown]
	}
	return channelNames[c]
}

// DeliveryStatus moves queued -> sent or queued -> failed, never back.
type DeliveryStatus int16

const (
	DeliveryStatusUnknown DeliveryStatus = iota
	DeliveryStatusQueued
	DeliveryStatusSent
	DeliveryStatusFailed
)

var statusNames = [...]string{
	DeliveryStatusUnknown: "unknown",
	DeliveryStatusQueued:  "queued",
	DeliveryStatusSent:    "sent",
	DeliveryStatusFailed:  "failed",
}

func (s DeliveryStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return statusNames[DeliveryStatusUnknown]
	}
	return statusNames[s]
}
