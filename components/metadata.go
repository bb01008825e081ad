package components

// String returns the display name for a State.
func (s State) String() string {
	names := StateNames()
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// StateNames returns the display names for all states.
// The order matches the State constants.
func StateNames() []string {
	return []string{
		"idle", "traveling", "mining", "trading-buy", "trading-sell", "returning",
		"ratting", "raiding", "engaging", "pursuing", "intercepting", "tackling",
		"disengaging", "surveying", "repairing", "docking", "fleeing",
	}
}

// ParseState returns the State with the given display name.
func ParseState(name string) (State, bool) {
	for i, n := range StateNames() {
		if n == name {
			return State(i), true
		}
	}
	return StateIdle, false
}

// String returns the display name for a Role.
func (r Role) String() string {
	names := RoleNames()
	if int(r) < len(names) {
		return names[r]
	}
	return "unknown"
}

// RoleNames returns the display names for all roles.
func RoleNames() []string {
	return []string{"none", "miner", "hauler", "ratter", "raider", "bomber", "surveyor", "logistics"}
}

// ParseRole returns the Role with the given display name.
func ParseRole(name string) (Role, bool) {
	for i, n := range RoleNames() {
		if n == name {
			return Role(i), true
		}
	}
	return RoleNone, false
}

// String returns the capability tag used by the equipment system.
func (c Capability) String() string {
	names := CapabilityNames()
	if int(c) < len(names) {
		return names[c]
	}
	return "unknown"
}

// CapabilityNames returns the tags for all capabilities.
func CapabilityNames() []string {
	return []string{
		"tackle", "propulsion-boost", "repair-shield", "repair-armor",
		"weapon", "mining", "survey", "remote-repair",
	}
}

// ParseCapability returns the Capability with the given tag.
func ParseCapability(tag string) (Capability, bool) {
	for i, n := range CapabilityNames() {
		if n == tag {
			return Capability(i), true
		}
	}
	return 0, false
}

// ParseEffect returns the tackle Effect with the given name.
func ParseEffect(name string) Effect {
	switch name {
	case "warp-disrupt":
		return EffectWarpDisrupt
	case "web":
		return EffectWeb
	case "energy-drain":
		return EffectEnergyDrain
	}
	return EffectNone
}

// String returns the display name for a TaskKind.
func (k TaskKind) String() string {
	switch k {
	case TaskMine:
		return "mine"
	case TaskHaul:
		return "haul"
	case TaskHunt:
		return "hunt"
	case TaskRaid:
		return "raid"
	case TaskSurvey:
		return "survey"
	case TaskRepair:
		return "repair"
	}
	return "none"
}
