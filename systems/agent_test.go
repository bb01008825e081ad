package systems

import (
	"math"
	"testing"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/components"
)

const tick = float32(0.1)

func TestEngagingBeyondTriggerStartsPursuit(t *testing.T) {
	h := newHarness()
	ratter := h.ship(1, components.RoleRatter, 1000, 1000, components.StateEngaging)
	pirate := h.ship(3, components.RoleRaider, 2200, 1000, components.StateIdle)
	h.behMap.Get(ratter).Target = pirate

	h.step(tick)

	b := h.behMap.Get(ratter)
	if b.State != components.StatePursuing {
		t.Fatalf("state = %s, want pursuing", b.State)
	}
	if b.ChaseStart != h.now {
		t.Errorf("ChaseStart = %v, want %v", b.ChaseStart, h.now)
	}
}

func TestEngagingInRangeOrbitsAndFires(t *testing.T) {
	h := newHarness()
	ratter := h.ship(1, components.RoleRatter, 1000, 1000, components.StateEngaging)
	pirate := h.ship(3, components.RoleRaider, 1400, 1000, components.StateIdle)
	h.behMap.Get(ratter).Target = pirate

	h.step(tick)

	if got := h.state(ratter); got != components.StateEngaging {
		t.Fatalf("state = %s, want engaging", got)
	}
	if h.behMap.Get(ratter).ChaseStart != 0 {
		t.Error("chase clock must stay clear while engaging")
	}
	weaponActive := false
	for _, m := range h.modMap.Get(ratter).Slots {
		if m.Tag == components.CapWeapon && m.Active && m.Target == pirate {
			weaponActive = true
		}
	}
	if !weaponActive {
		t.Error("expected weapon locked on target")
	}
}

func TestPursuitBudgetExceededFallsBackToTask(t *testing.T) {
	h := newHarness()
	rec := &fakeRecorder{}
	h.sys.SetRecorder(rec)

	ratter := h.ship(1, components.RoleRatter, 1000, 1000, components.StatePursuing)
	pirate := h.ship(3, components.RoleRaider, 3000, 1000, components.StateIdle)
	b := h.behMap.Get(ratter)
	b.Task = &components.Task{Kind: components.TaskHunt}
	b.Target = pirate
	b.ChaseStart = h.now + float64(tick) - 80 // 80s elapsed against the 75s guild budget

	h.step(tick)
	if b.State != components.StateDisengaging {
		t.Fatalf("state = %s, want disengaging", b.State)
	}
	if b.ChaseStart != 0 {
		t.Errorf("ChaseStart = %v, want 0 after leaving pursuit", b.ChaseStart)
	}
	if len(rec.chases) != 1 || math.Abs(rec.chases[0]-80) > 1e-6 {
		t.Errorf("recorded chases = %v, want [80]", rec.chases)
	}

	h.step(tick)
	if b.State != components.StateRatting {
		t.Fatalf("state = %s, want ratting", b.State)
	}
	if !b.Target.IsZero() {
		t.Error("target should be cleared on fallback")
	}
}

func TestPursuitFallbackWithoutTaskIsIdle(t *testing.T) {
	h := newHarness()
	ratter := h.ship(1, components.RoleRatter, 1000, 1000, components.StateDisengaging)

	h.step(tick)
	if got := h.state(ratter); got != components.StateIdle {
		t.Errorf("state = %s, want idle", got)
	}
}

func TestPursuitBackInRangeReturnsToEngaging(t *testing.T) {
	h := newHarness()
	ratter := h.ship(1, components.RoleRatter, 1000, 1000, components.StateTackling)
	pirate := h.ship(3, components.RoleRaider, 1500, 1000, components.StateIdle)
	b := h.behMap.Get(ratter)
	b.Target = pirate
	b.ChaseStart = 90

	h.step(tick)
	if b.State != components.StateEngaging {
		t.Fatalf("state = %s, want engaging", b.State)
	}
	if b.ChaseStart != 0 {
		t.Error("chase clock should clear when back in range")
	}
}

func TestPursuitTacklesInsideCloseRange(t *testing.T) {
	h := newHarness()
	ratter := h.ship(1, components.RoleRatter, 1000, 1000, components.StatePursuing)
	pirate := h.ship(3, components.RoleRaider, 1900, 1000, components.StateIdle)
	b := h.behMap.Get(ratter)
	b.Target = pirate
	b.ChaseStart = 95

	h.step(tick)
	if b.State != components.StateTackling {
		t.Fatalf("state = %s, want tackling", b.State)
	}
	if b.ChaseStart != 95 {
		t.Errorf("ChaseStart = %v, chase clock must survive sub-state changes", b.ChaseStart)
	}
}

func TestPursuitInterceptsEscapingTarget(t *testing.T) {
	h := newHarness()
	h.travel.canWarp = true
	ratter := h.ship(1, components.RoleRatter, 1000, 1000, components.StatePursuing)
	pirate := h.ship(3, components.RoleRaider, 4000, 1000, components.StateIdle)
	_, mot, _, _, _, _ := h.ships.Get(pirate)
	mot.Warping = true
	b := h.behMap.Get(ratter)
	b.Target = pirate
	b.ChaseStart = 95

	h.step(tick)
	if b.State != components.StateIntercepting {
		t.Fatalf("state = %s, want intercepting", b.State)
	}
	if h.travel.warps != 1 {
		t.Errorf("warps = %d, want 1", h.travel.warps)
	}
}

func TestFleeDominatesTackling(t *testing.T) {
	h := newHarness()
	ratter := h.ship(1, components.RoleRatter, 1000, 1000, components.StateTackling)
	pirate := h.ship(3, components.RoleRaider, 1500, 1000, components.StateIdle)
	b := h.behMap.Get(ratter)
	b.Target = pirate
	b.ChaseStart = 90
	for i := range h.modMap.Get(ratter).Slots {
		h.modMap.Get(ratter).Slots[i].Active = true
		h.modMap.Get(ratter).Slots[i].Target = pirate
	}
	hp := h.hpMap.Get(ratter)
	hp.Hull = hp.MaxHull * 0.15

	h.step(tick)

	if b.State != components.StateFleeing {
		t.Fatalf("state = %s, want fleeing", b.State)
	}
	if !b.Target.IsZero() {
		t.Error("fleeing must clear the engaged target")
	}
	if b.ChaseStart != 0 {
		t.Error("fleeing must clear the chase clock")
	}
	if h.modMap.Get(ratter).AnyActive() {
		t.Error("fleeing must deactivate all modules")
	}
	if b.Threat != pirate {
		t.Error("the pirate should be remembered as the threat")
	}
}

func TestFleePreCheckAppliesToEveryState(t *testing.T) {
	for s := components.State(0); s < components.NumStates; s++ {
		t.Run(s.String(), func(t *testing.T) {
			h := newHarness()
			e := h.ship(1, components.RoleHauler, 1000, 1000, s)
			hp := h.hpMap.Get(e)
			hp.Hull = hp.MaxHull * 0.1

			h.step(tick)
			if got := h.state(e); got != components.StateFleeing {
				t.Errorf("state = %s, want fleeing", got)
			}
		})
	}
}

func TestRaidPrefersPriorityOverDistance(t *testing.T) {
	h := newHarness()
	raider := h.ship(3, components.RoleRaider, 5000, 5000, components.StateRaiding)
	miner := h.ship(1, components.RoleMiner, 5800, 5000, components.StateIdle)
	h.ship(1, components.RoleHauler, 5200, 5000, components.StateIdle)

	h.step(tick)

	b := h.behMap.Get(raider)
	if b.State != components.StateEngaging {
		t.Fatalf("state = %s, want engaging", b.State)
	}
	if b.Target != miner {
		t.Error("raider should pick the miner over the nearer hauler")
	}
}

func TestRaidTieBreaksOnDistance(t *testing.T) {
	h := newHarness()
	raider := h.ship(3, components.RoleRaider, 5000, 5000, components.StateRaiding)
	h.ship(1, components.RoleHauler, 5900, 5000, components.StateIdle)
	near := h.ship(1, components.RoleHauler, 5300, 5000, components.StateIdle)
	h.ship(1, components.RoleLogistics, 5100, 5000, components.StateIdle) // not a raid target

	h.step(tick)
	if got := h.behMap.Get(raider).Target; got != near {
		t.Error("equal priority should go to the nearer hauler")
	}
}

func TestRaidPriority(t *testing.T) {
	tests := []struct {
		kind components.Kind
		role components.Role
		want int
	}{
		{components.KindShip, components.RoleMiner, 3},
		{components.KindShip, components.RoleHauler, 2},
		{components.KindPlayer, components.RoleNone, 2},
		{components.KindShip, components.RoleRatter, 1},
		{components.KindShip, components.RoleSurveyor, 0},
		{components.KindStation, components.RoleNone, 0},
	}
	for _, tt := range tests {
		if got := RaidPriority(tt.kind, tt.role); got != tt.want {
			t.Errorf("RaidPriority(%d, %s) = %d, want %d", tt.kind, tt.role, got, tt.want)
		}
	}
}

func TestRattingPatrolsWithoutTargets(t *testing.T) {
	h := newHarness()
	ratter := h.ship(1, components.RoleRatter, 1000, 1000, components.StateRatting)

	h.step(tick)
	b := h.behMap.Get(ratter)
	if b.State != components.StateRatting {
		t.Fatalf("state = %s, want ratting", b.State)
	}
	if !b.HasPatrol || !b.HasAnchor {
		t.Error("expected a patrol point and leash anchor")
	}
	if b.Anchor.X != 1000 || b.Anchor.Y != 1000 {
		t.Errorf("first anchor = %+v, want the starting position", b.Anchor)
	}
}

func TestDockWhileFleeingRestoresAndResumes(t *testing.T) {
	h := newHarness()
	h.station(10, 1, 1100, 1000)
	miner := h.ship(1, components.RoleMiner, 1000, 1000, components.StateFleeing)
	b := h.behMap.Get(miner)
	b.Task = &components.Task{Kind: components.TaskMine}
	hp := h.hpMap.Get(miner)
	hp.Shield, hp.Armor, hp.Hull = 0, 0, hp.MaxHull*0.1

	h.step(tick)
	if b.State != components.StateDocking {
		t.Fatalf("state = %s, want docking", b.State)
	}
	if hp.Damaged() {
		t.Error("docking should restore shield, armor and hull")
	}

	for i := 0; i < 200 && b.State == components.StateDocking; i++ {
		h.step(tick)
	}
	if b.State != components.StateMining {
		t.Fatalf("state after undock = %s, want mining", b.State)
	}
	if b.Task == nil || b.Task.Kind != components.TaskMine {
		t.Error("task should survive docking")
	}
	pos := h.posMap.Get(miner)
	if d := h.q.Space().Distance(pos.X, pos.Y, 1100, 1000); math.Abs(float64(d-400)) > 1 {
		t.Errorf("undocked %v from the station, want 400", d)
	}
}

func TestFleeingPointedUsesPropulsion(t *testing.T) {
	h := newHarness()
	hauler := h.ship(1, components.RoleHauler, 1000, 1000, components.StateFleeing)
	h.station(10, 1, 9000, 9000)
	h.disMap.Get(hauler).Pointed = true
	h.travel.canWarp = true

	h.step(tick)
	if h.travel.warps != 0 {
		t.Error("a pointed ship must not warp")
	}
	active := false
	for _, m := range h.modMap.Get(hauler).Slots {
		if m.Tag == components.CapPropulsion && m.Active {
			active = true
		}
	}
	if !active {
		t.Error("expected propulsion boost while pointed")
	}
}

func TestFleeingWarpsWhenClear(t *testing.T) {
	h := newHarness()
	h.ship(1, components.RoleHauler, 1000, 1000, components.StateFleeing)
	h.station(10, 1, 9000, 9000)
	h.travel.canWarp = true

	h.step(tick)
	if h.travel.warps != 1 {
		t.Errorf("warps = %d, want 1", h.travel.warps)
	}
}

func TestAssignTaskWithoutRouteGoesIdle(t *testing.T) {
	h := newHarness()
	miner := h.ship(1, components.RoleMiner, 1000, 1000, components.StateIdle)
	h.q.Rebuild()

	h.sys.AssignTask(miner, components.Task{Kind: components.TaskMine, Sector: 3})
	b := h.behMap.Get(miner)
	if b.State != components.StateIdle || b.Task != nil {
		t.Errorf("state = %s task = %v, want idle with no task", b.State, b.Task)
	}
}

func TestTravelingWithoutGateDropsTask(t *testing.T) {
	h := newHarness()
	h.travel.routes[[2]components.SectorID{1, 2}] = []components.SectorID{2}
	miner := h.ship(1, components.RoleMiner, 1000, 1000, components.StateIdle)
	h.q.Rebuild()

	h.sys.AssignTask(miner, components.Task{Kind: components.TaskMine, Sector: 2})
	if got := h.state(miner); got != components.StateTraveling {
		t.Fatalf("state = %s, want traveling", got)
	}

	h.step(tick)
	b := h.behMap.Get(miner)
	if b.State != components.StateIdle || b.Task != nil {
		t.Errorf("state = %s task = %v, want idle with no task", b.State, b.Task)
	}
}

func TestTravelingJumpsAndDispatchesOnArrival(t *testing.T) {
	h := newHarness()
	h.travel.routes[[2]components.SectorID{1, 2}] = []components.SectorID{2}
	h.gate(2, 1100, 1000)
	ratter := h.ship(1, components.RoleRatter, 1000, 1000, components.StateIdle)
	h.q.Rebuild()
	h.sys.AssignTask(ratter, components.Task{Kind: components.TaskHunt, Sector: 2})

	h.step(tick)
	h.step(tick)
	if len(h.travel.jumps) != 1 || h.travel.jumps[0].dest != 2 {
		t.Fatalf("jumps = %+v, want one jump to sector 2", h.travel.jumps)
	}
	if got := h.state(ratter); got != components.StateTraveling {
		t.Fatalf("state = %s, want traveling until rematerialized", got)
	}

	h.bodyMap.Get(ratter).Sector = 2
	h.sys.SectorChanged(ratter)
	if got := h.state(ratter); got != components.StateRatting {
		t.Errorf("state = %s, want ratting", got)
	}
}

func TestMiningFullCargoReturnsAndDocks(t *testing.T) {
	h := newHarness()
	h.station(10, 1, 1200, 1000)
	miner := h.ship(1, components.RoleMiner, 1000, 1000, components.StateMining)
	h.behMap.Get(miner).Task = &components.Task{Kind: components.TaskMine}
	c := h.cargoMap.Get(miner)
	c.Ore = c.Capacity

	h.step(tick)
	if got := h.state(miner); got != components.StateReturning {
		t.Fatalf("state = %s, want returning", got)
	}
	h.step(tick)
	if got := h.state(miner); got != components.StateDocking {
		t.Fatalf("state = %s, want docking", got)
	}
	if h.econ.sold != 1 || !c.Empty() {
		t.Error("cargo should be sold before docking")
	}
}

func TestHaulLoopAlternatesBuyAndSell(t *testing.T) {
	h := newHarness()
	h.station(10, 1, 1100, 1000)
	h.station(11, 1, 1200, 1000)
	hauler := h.ship(1, components.RoleHauler, 1000, 1000, components.StateTradingBuy)
	h.behMap.Get(hauler).Task = &components.Task{Kind: components.TaskHaul, BuyStation: 10, SellStation: 11}
	c := h.cargoMap.Get(hauler)

	want := []components.State{
		components.StateTradingSell,
		components.StateTradingBuy,
		components.StateTradingSell,
	}
	for i, w := range want {
		h.step(tick)
		if got := h.state(hauler); got != w {
			t.Fatalf("tick %d: state = %s, want %s", i+1, got, w)
		}
	}
	if h.econ.sold != 1 {
		t.Errorf("sales = %d, want 1", h.econ.sold)
	}
	if c.Goods != c.Capacity {
		t.Errorf("goods = %v, want a full hold after the second buy", c.Goods)
	}
	if h.behMap.Get(hauler).Task == nil {
		t.Error("haul task should survive the loop")
	}
}

func TestHaulRoutesToBuyStationSector(t *testing.T) {
	h := newHarness()
	h.travel.routes[[2]components.SectorID{1, 2}] = []components.SectorID{2}
	buy := h.station(10, 1, 5000, 5000)
	h.bodyMap.Get(buy).Sector = 2
	h.station(11, 1, 1200, 1000)
	hauler := h.ship(1, components.RoleHauler, 1000, 1000, components.StateTradingBuy)
	task := &components.Task{Kind: components.TaskHaul, BuyStation: 10, SellStation: 11}
	h.behMap.Get(hauler).Task = task

	h.step(tick)
	b := h.behMap.Get(hauler)
	if b.State != components.StateTraveling {
		t.Fatalf("state = %s, want traveling", b.State)
	}
	if len(b.Route) != 1 || b.Route[0] != 2 || b.RouteIndex != 0 {
		t.Errorf("route = %v@%d, want [2]@0", b.Route, b.RouteIndex)
	}
	if b.Task != task {
		t.Error("task should be kept while travelling to the buy leg")
	}
	if h.econ.sold != 0 || !h.cargoMap.Get(hauler).Empty() {
		t.Error("no trade should happen before reaching the buy station")
	}
}

func TestReturningWithoutStationRoutesHome(t *testing.T) {
	tests := []struct {
		name      string
		home      uint32
		wantState components.State
		wantRoute []components.SectorID
	}{
		{"home in another sector", 10, components.StateTraveling, []components.SectorID{2}},
		{"no home station", 0, components.StateIdle, nil},
		{"home station gone", 99, components.StateIdle, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.travel.routes[[2]components.SectorID{1, 2}] = []components.SectorID{2}
			home := h.station(10, 1, 5000, 5000)
			h.bodyMap.Get(home).Sector = 2
			miner := h.ship(1, components.RoleMiner, 1000, 1000, components.StateReturning)
			_, _, _, id, _, b := h.ships.Get(miner)
			id.Home = tt.home
			b.Task = &components.Task{Kind: components.TaskMine}
			h.cargoMap.Get(miner).Ore = 200

			h.step(tick)
			if b.State != tt.wantState {
				t.Fatalf("state = %s, want %s", b.State, tt.wantState)
			}
			if len(b.Route) != len(tt.wantRoute) {
				t.Fatalf("route = %v, want %v", b.Route, tt.wantRoute)
			}
			for i := range tt.wantRoute {
				if b.Route[i] != tt.wantRoute[i] {
					t.Errorf("route = %v, want %v", b.Route, tt.wantRoute)
				}
			}
			if h.econ.sold != 0 {
				t.Error("nothing should be sold without a station in reach")
			}
		})
	}
}

func TestMiningInRangeCallsEconomy(t *testing.T) {
	h := newHarness()
	rock := h.asteroid(1200, 1000, 400)
	miner := h.ship(1, components.RoleMiner, 1000, 1000, components.StateMining)
	h.behMap.Get(miner).Task = &components.Task{Kind: components.TaskMine}

	h.step(tick)
	if h.econ.mined != 1 {
		t.Errorf("mined = %d, want 1", h.econ.mined)
	}
	if h.behMap.Get(miner).Target != rock {
		t.Error("miner should lock the asteroid")
	}
}

func TestMiningWithNoAsteroidsDropsTask(t *testing.T) {
	h := newHarness()
	miner := h.ship(1, components.RoleMiner, 1000, 1000, components.StateMining)
	h.behMap.Get(miner).Task = &components.Task{Kind: components.TaskMine}

	h.step(tick)
	b := h.behMap.Get(miner)
	if b.State != components.StateIdle || b.Task != nil {
		t.Errorf("state = %s, want idle with task cleared", b.State)
	}
}

func TestStaleTargetIsDropped(t *testing.T) {
	h := newHarness()
	ratter := h.ship(1, components.RoleRatter, 1000, 1000, components.StateEngaging)
	pirate := h.ship(3, components.RoleRaider, 1200, 1000, components.StateIdle)
	b := h.behMap.Get(ratter)
	b.Task = &components.Task{Kind: components.TaskHunt}
	b.Target = pirate

	h.w.RemoveEntity(pirate)
	h.step(tick)
	if b.State != components.StateRatting {
		t.Errorf("state = %s, want ratting after target vanished", b.State)
	}
}

func TestRepairingLocksMostDamagedAlly(t *testing.T) {
	h := newHarness()
	logi := h.ship(1, components.RoleLogistics, 1000, 1000, components.StateRepairing)
	light := h.ship(1, components.RoleMiner, 1300, 1000, components.StateIdle)
	heavy := h.ship(1, components.RoleHauler, 1400, 1000, components.StateIdle)
	h.hpMap.Get(light).Shield = 0
	hp := h.hpMap.Get(heavy)
	hp.Shield, hp.Armor = 0, 0

	h.step(tick)
	if got := h.behMap.Get(logi).Target; got != heavy {
		t.Error("logistics should lock the most damaged ally")
	}
}

func TestSurveyingRotatesTargets(t *testing.T) {
	h := newHarness()
	first := h.asteroid(1200, 1000, 100)
	h.asteroid(3000, 1000, 100)
	scout := h.ship(1, components.RoleSurveyor, 1000, 1000, components.StateSurveying)

	for i := 0; i < 200; i++ {
		h.step(tick)
		if h.behMap.Get(scout).Surveyed == first {
			break
		}
	}
	b := h.behMap.Get(scout)
	if b.Surveyed != first {
		t.Fatal("expected the first asteroid to finish surveying")
	}
	h.step(tick)
	if b.Target == first {
		t.Error("surveyor should move on to another target")
	}
}

// TestInvariantsHoldUnderLoad runs a mixed sector through the full system
// order and checks the chase clock and flee invariants after every tick.
func TestInvariantsHoldUnderLoad(t *testing.T) {
	h := newHarness()
	h.station(10, 1, 10000, 10000)
	for i := 0; i < 8; i++ {
		h.asteroid(9000+float32(i)*300, 9000, 400)
	}
	hunt := components.Task{Kind: components.TaskHunt}
	raid := components.Task{Kind: components.TaskRaid}
	mine := components.Task{Kind: components.TaskMine}
	var all []ecs.Entity
	for i := 0; i < 3; i++ {
		off := float32(i) * 400
		all = append(all,
			h.ship(1, components.RoleRatter, 9500+off, 9500, components.StateIdle),
			h.ship(3, components.RoleRaider, 10500+off, 10500, components.StateIdle),
			h.ship(1, components.RoleMiner, 9200+off, 9100, components.StateIdle),
		)
	}
	h.q.Rebuild()
	for i, e := range all {
		switch i % 3 {
		case 0:
			h.sys.AssignTask(e, hunt)
		case 1:
			h.sys.AssignTask(e, raid)
		case 2:
			h.sys.AssignTask(e, mine)
		}
	}

	flee := float32(h.cfg.Agent.FleeThreshold)
	beh := ecs.NewFilter2[components.Behavior, components.Health](h.w)
	for n := 0; n < 1500; n++ {
		h.step(tick)

		query := beh.Query()
		for query.Next() {
			b, hp := query.Get()
			if (b.ChaseStart != 0) != b.State.Chasing() {
				t.Fatalf("tick %d: ChaseStart=%v in state %s", n, b.ChaseStart, b.State)
			}
			if hp.HullFraction() <= flee && b.State != components.StateFleeing {
				t.Fatalf("tick %d: hull %.2f in state %s", n, hp.HullFraction(), b.State)
			}
		}

		h.tackle.Update(tick)
		h.modules.Update(tick)
		h.movement.Update(tick)
	}
}
