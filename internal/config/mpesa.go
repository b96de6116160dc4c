package config

import "time"

// MpesaConfig carries the Daraja credentials and endpoints.  The gateway is
// considered configured only when every credential and the callback URL
// are present; otherwise payment initiation is refused.
type MpesaConfig struct {
    ConsumerKey       string
    ConsumerSecret    string
    ShortCode         string
    Passkey           string
    CallbackURL       string
    BaseURL           string
    Timeout           time.Duration
    CallbackTokenHash string // bcrypt hash of the token embedded in CallbackURL
}

// LoadMpesaConfig reads MPESA_* variables.  The base URL defaults to the
// sandbox unless APP_ENV is prod.
func LoadMpesaConfig() MpesaConfig {
    base := "https://sandbox.safaricom.co.ke"
    if envStr("APP_ENV", "") == "prod" {
        base = "https://api.safaricom.co.ke"
    }
    return MpesaConfig{
        ConsumerKey:       envStr("MPESA_CONSUMER_KEY", ""),
        ConsumerSecret:    envStr("MPESA_CONSUMER_SECRET", ""),
        ShortCode:         envStr("MPESA_BUSINESS_SHORT_CODE", ""),
        Passkey:           envStr("MPESA_PASSKEY", ""),
        CallbackURL:       envStr("MPESA_CALLBACK_URL", ""),
        BaseURL:           envStr("MPESA_BASE_URL", base),
        Timeout:           envDur("MPESA_TIMEOUT", 15*time.Second),
        CallbackTokenHash: envStr("MPESA_CALLBACK_TOKEN_HASH", ""),
    }
}

// Configured reports whether STK push can be attempted.
func (m MpesaConfig) Configured() bool {
    return m.ConsumerKey != "" && m.ConsumerSecret != "" && m.ShortCode != "" && m.Passkey != "" && m.CallbackURL != ""
}
