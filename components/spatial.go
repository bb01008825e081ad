package components

// Position represents an entity's position within its sector.
type Position struct {
	X, Y float32 `inspect:"label,fmt:%.0f"`
}

// Motion holds heading and speed, both current and desired.
// State handlers only write the desired values; MovementSystem integrates them.
type Motion struct {
	Heading        float32 `inspect:"angle"`
	DesiredHeading float32 `inspect:"angle"`
	Speed          float32 `inspect:"bar,max:300"`
	DesiredSpeed   float32 `inspect:"bar,max:300"`
	MaxSpeed       float32 `inspect:"label,fmt:%.0f"`
	TurnRate       float32 `inspect:"skip"`           // radians per second
	BoostFactor    float32 `inspect:"label,fmt:%.2f"` // >1 while a propulsion module cycles
	Warping        bool    `inspect:"bool"`           // charging a gate jump
}
