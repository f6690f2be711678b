package guildmodels

import "fmt"

//ScopeAllChannels is the external app rule scope covering every channel in the guild
const ScopeAllChannels = "all"

//SpamRule configures the sliding-window message rate limit
type SpamRule struct {
	Enabled bool   `gorethink:"enabled" json:"enabled" yaml:"enabled"`
	Action  Action `gorethink:"action" json:"action" yaml:"action,omitempty"`
}

//PermState is the three-valued state of a single permission within a channel overwrite.
//Unset (inherited) is distinct from an explicit allow.
type PermState string

const (
	//PermUnset means the overwrite neither allows nor denies the permission
	PermUnset PermState = "unset"
	//PermAllow means the overwrite explicitly allows the permission
	PermAllow PermState = "allow"
	//PermDeny means the overwrite explicitly denies the permission
	PermDeny PermState = "deny"
)

//PermStateOf extracts the state of the permission bit perm from an overwrite's allow and deny masks
func PermStateOf(allow, deny, perm int64) PermState {
	switch {
	case deny&perm != 0:
		return PermDeny
	case allow&perm != 0:
		return PermAllow
	default:
		return PermUnset
	}
}

//Apply returns allow and deny masks with perm set to the receiver's state and every other bit untouched
func (s PermState) Apply(allow, deny, perm int64) (int64, int64) {
	allow &^= perm
	deny &^= perm
	switch s {
	case PermAllow:
		allow |= perm
	case PermDeny:
		deny |= perm
	}
	return allow, deny
}

//Valid returns true for the three known states
func (s PermState) Valid() bool {
	return s == PermUnset || s == PermAllow || s == PermDeny
}

//ExternalAppRule configures the external application lockdown and holds the state needed to undo it
type ExternalAppRule struct {
	Enabled bool   `gorethink:"enabled" json:"enabled" yaml:"enabled"`
	Action  Action `gorethink:"action" json:"action" yaml:"action,omitempty"`
	//Either a channel ID or ScopeAllChannels
	Scope string `gorethink:"scope" json:"scope" yaml:"scope,omitempty"`
	//Channels whose overwrites were actually changed
	Channels IDSet `gorethink:"channels" json:"channels" yaml:"channels,omitempty"`
	//channel ID -> prior state of the permission for the everyone role
	PermissionSnapshot map[string]PermState `gorethink:"permission_snapshot" json:"permission_snapshot" yaml:"permission_snapshot,omitempty"`
}

//Restricts returns true if the lockdown applies to messages in the given channel
func (r ExternalAppRule) Restricts(channelID string) bool {
	if !r.Enabled {
		return false
	}
	return r.Scope == ScopeAllChannels || r.Channels.Has(channelID)
}

//Disable turns the rule off, emptying the channels and the snapshot together
func (r *ExternalAppRule) Disable() {
	*r = ExternalAppRule{PermissionSnapshot: make(map[string]PermState)}
}

func (r *ExternalAppRule) normalize() []string {
	var notes []string
	if r.PermissionSnapshot == nil {
		r.PermissionSnapshot = make(map[string]PermState)
	}
	if !r.Enabled {
		if len(r.Channels) > 0 || len(r.PermissionSnapshot) > 0 {
			notes = append(notes, "dropped leftover lockdown snapshot from a disabled external app rule")
		}
		r.Disable()
		return notes
	}
	if !containsAction(AntiraidActions, r.Action) {
		notes = append(notes, fmt.Sprintf("external app rule has unknown action %q; enforcement disabled until reconfigured", r.Action))
		r.Action = ActionNone
	}
	for chID, state := range r.PermissionSnapshot {
		if !state.Valid() {
			notes = append(notes, fmt.Sprintf("snapshot for channel %v had unknown state %q; treating as unset", chID, state))
			r.PermissionSnapshot[chID] = PermUnset
		}
	}
	//every restricted channel needs a snapshot entry and vice versa
	for _, chID := range r.Channels {
		if _, ok := r.PermissionSnapshot[chID]; !ok {
			notes = append(notes, fmt.Sprintf("restricted channel %v had no snapshot; it will be restored to unset", chID))
			r.PermissionSnapshot[chID] = PermUnset
		}
	}
	for chID := range r.PermissionSnapshot {
		r.Channels.Add(chID)
	}
	return notes
}

func (r ExternalAppRule) clone() ExternalAppRule {
	c := r
	c.Channels = r.Channels.Clone()
	c.PermissionSnapshot = make(map[string]PermState, len(r.PermissionSnapshot))
	for k, v := range r.PermissionSnapshot {
		c.PermissionSnapshot[k] = v
	}
	return c
}
