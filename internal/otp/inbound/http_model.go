package inbound

import (
	"net/http"
	"time"
)

type RequestOTPRequest struct {
	Channel    string         `json:"channel"`
	Identifier string         `json:"identifier"`
	Purpose    string         `json:"purpose"`
	UserID     *int64         `json:"user_id,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

type RequestOTPResponse struct {
	EventID         int64     `json:"event_id,string"`
	Channel         string    `json:"channel"`
	Identifier      string    `json:"identifier"`
	ExpiresAt       time.Time `json:"expires_at"`
	CooldownSeconds int       `json:"cooldown_seconds"`
}

func (RequestOTPResponse) StatusCode() int {
	return http.StatusAccepted
}

func (RequestOTPResponse) Message() string {
	return "OTP request accepted"
}

type VerifyOTPRequest struct {
	Channel    string `json:"channel"`
	Identifier string `json:"identifier"`
	Purpose    string `json:"purpose"`
	UserID     *int64 `json:"user_id,omitempty"`
	Code       string `json:"code"`
}

type VerifyOTPResponse struct {
	EventID    int64  `json:"event_id,string"`
	Channel    string `json:"channel"`
	Identifier string `json:"identifier"`
	Purpose    string `json:"purpose"`
	UserID     *int64 `json:"user_id,omitempty"`
	Currency   string `json:"currency,omitempty"`
}

func (VerifyOTPResponse) Message() string {
	return "OTP verified"
}
