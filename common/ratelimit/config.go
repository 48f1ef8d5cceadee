package ratelimit

import "github.com/lyzr/mediacatalog/common/config"

// Policy is a fixed-window limit
type Policy struct {
	Limit         int64 // Requests allowed per window
	WindowSeconds int   // Window length in seconds
}

// DefaultUserPolicy applies to engagement writes when nothing is configured
var DefaultUserPolicy = Policy{
	Limit:         120,
	WindowSeconds: 60,
}

// GlobalConfig contains service-wide limits
type GlobalConfig struct {
	Limit         int64
	WindowSeconds int
}

// DefaultGlobalConfig is the service-wide ceiling across all callers
var DefaultGlobalConfig = GlobalConfig{
	Limit:         10000,
	WindowSeconds: 60,
}

// UserPolicyFromConfig builds the per-caller policy, falling back to defaults
// for unset fields
func UserPolicyFromConfig(cfg config.RateLimitConfig) Policy {
	p := DefaultUserPolicy
	if cfg.UserLimit > 0 {
		p.Limit = cfg.UserLimit
	}
	if cfg.WindowSeconds > 0 {
		p.WindowSeconds = cfg.WindowSeconds
	}
	return p
}
