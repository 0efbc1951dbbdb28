package policy

import "time"

type Action string

const (
	ActionNone Action = ""
	ActionMute Action = "mute"
	ActionKick Action = "kick"
	ActionBan  Action = "ban"
)

// Policy is a guild's strike escalation configuration. A nil or non-positive
// threshold disables that step. BanDuration of 0 means permanent bans.
type Policy struct {
	MuteThreshold *int
	KickThreshold *int
	BanThreshold  *int
	MuteDuration  time.Duration
	BanDuration   time.Duration
}

// Decide returns the escalation fired by reaching the given strike count.
// Thresholds trigger only on an exact match, so an action fires once, on the
// warning that reaches its configured count. When several thresholds share a
// value the most severe action wins.
func Decide(p Policy, strikes int) Action {
	switch {
	case triggered(p.BanThreshold, strikes):
		return ActionBan
	case triggered(p.KickThreshold, strikes):
		return ActionKick
	case triggered(p.MuteThreshold, strikes):
		return ActionMute
	default:
		return ActionNone
	}
}

func triggered(threshold *int, strikes int) bool {
	return threshold != nil && *threshold > 0 && strikes == *threshold
}
