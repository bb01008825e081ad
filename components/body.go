package components

// SectorID identifies a sector. Zero is never a valid sector.
type SectorID uint16

// Kind classifies entities in a sector.
type Kind uint8

const (
	KindShip Kind = iota // Autonomous agent ship
	KindPlayer
	KindAsteroid
	KindStation
	KindGate
	KindPlanet
)

// Static reports whether entities of this kind never move and can never be tackled.
func (k Kind) Static() bool {
	switch k {
	case KindAsteroid, KindStation, KindGate, KindPlanet:
		return true
	}
	return false
}

// Body holds the physical classification of an entity.
type Body struct {
	Kind   Kind     `inspect:"label"`
	Sector SectorID `inspect:"label"`
	Radius float32  `inspect:"skip"`
}

// Role selects which behavior an agent runs when it has no explicit task.
type Role uint8

const (
	RoleNone Role = iota
	RoleMiner
	RoleHauler
	RoleRatter
	RoleRaider
	RoleBomber
	RoleSurveyor
	RoleLogistics
)

// Identity carries the stable identity of a ship or station.
type Identity struct {
	ID      uint32 `inspect:"label"`
	Faction uint16 `inspect:"label"`
	Role    Role   `inspect:"label"`
	Class   string `inspect:"label"`
	Home    uint32 `inspect:"label"` // Home station ID, 0 if none
}
