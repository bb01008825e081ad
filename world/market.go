package world

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/config"
)

// Market settles mining, trade and docking. Wallets are keyed by agent ID
// and station stock by station ID; both survive entity churn.
type Market struct {
	world *ecs.World
	cfg   config.MarketConfig

	cargoMap *ecs.Map[components.Cargo]
	rockMap  *ecs.Map[components.Asteroid]
	hpMap    *ecs.Map[components.Health]
	capMap   *ecs.Map[components.Capacitor]
	modMap   *ecs.Map[components.Modules]
	idMap    *ecs.Map[components.Identity]
	stMap    *ecs.Map[components.Station]

	wallets map[uint32]float64
	stock   map[uint32]float32

	OreMined    float64
	OreSold     float64
	GoodsBought float64
	GoodsSold   float64
	Docks       int
}

// NewMarket creates a market with empty wallets.
func NewMarket(w *ecs.World, cfg config.MarketConfig) *Market {
	return &Market{
		world:    w,
		cfg:      cfg,
		cargoMap: ecs.NewMap[components.Cargo](w),
		rockMap:  ecs.NewMap[components.Asteroid](w),
		hpMap:    ecs.NewMap[components.Health](w),
		capMap:   ecs.NewMap[components.Capacitor](w),
		modMap:   ecs.NewMap[components.Modules](w),
		idMap:    ecs.NewMap[components.Identity](w),
		stMap:    ecs.NewMap[components.Station](w),
		wallets:  make(map[uint32]float64),
		stock:    make(map[uint32]float32),
	}
}

// HandleMine moves ore from the asteroid into the hold at the combined
// strength of the ship's active mining modules, in units per second.
func (m *Market) HandleMine(e, asteroid ecs.Entity, dt float32) {
	if !m.live(e) || !m.world.Alive(asteroid) || !m.cargoMap.Has(e) || !m.rockMap.Has(asteroid) {
		return
	}
	var rate float32
	if m.modMap.Has(e) {
		for _, mod := range m.modMap.Get(e).Slots {
			if mod.Tag == components.CapMining && mod.Active {
				rate += mod.Strength
			}
		}
	}
	rock := m.rockMap.Get(asteroid)
	cargo := m.cargoMap.Get(e)
	amount := min(rate*dt, rock.Ore, cargo.Free())
	if amount <= 0 {
		return
	}
	rock.Ore -= amount
	cargo.Ore += amount
	m.OreMined += float64(amount)
}

// HandleBuy fills the free hold with station goods, on credit if needed.
func (m *Market) HandleBuy(e, station ecs.Entity) {
	if !m.live(e) || !m.cargoMap.Has(e) {
		return
	}
	sid, ok := m.stationID(station)
	if !ok {
		return
	}
	cargo := m.cargoMap.Get(e)
	amount := min(cargo.Free(), m.Stock(sid))
	if amount <= 0 {
		return
	}
	cargo.Goods += amount
	m.stock[sid] -= amount
	m.wallets[m.agentID(e)] -= float64(amount) * m.cfg.GoodsBuyPrice
	m.GoodsBought += float64(amount)
}

// HandleSell empties the hold into the station.
func (m *Market) HandleSell(e, station ecs.Entity) {
	if !m.live(e) || !m.cargoMap.Has(e) {
		return
	}
	sid, ok := m.stationID(station)
	if !ok {
		return
	}
	cargo := m.cargoMap.Get(e)
	id := m.agentID(e)
	if cargo.Ore > 0 {
		m.wallets[id] += float64(cargo.Ore) * m.cfg.OrePrice
		m.OreSold += float64(cargo.Ore)
		cargo.Ore = 0
	}
	if cargo.Goods > 0 {
		m.wallets[id] += float64(cargo.Goods) * m.cfg.GoodsSellPrice
		m.stock[sid] = m.Stock(sid) + cargo.Goods
		m.GoodsSold += float64(cargo.Goods)
		cargo.Goods = 0
	}
}

// HandleDockAndRepair restores every health layer and refills the capacitor.
func (m *Market) HandleDockAndRepair(e, station ecs.Entity) {
	if !m.live(e) {
		return
	}
	if m.hpMap.Has(e) {
		m.hpMap.Get(e).Restore()
	}
	if m.capMap.Has(e) {
		c := m.capMap.Get(e)
		c.Energy = c.Max
	}
	m.Docks++
}

// Update restocks stations toward their starting stock.
func (m *Market) Update(dt float32) {
	limit := float32(m.cfg.StationStock)
	for sid, s := range m.stock {
		if s < limit {
			m.stock[sid] = min(limit, s+float32(m.cfg.StockRegen)*dt)
		}
	}
}

// Stock returns the goods a station holds. Unknown stations start full.
func (m *Market) Stock(station uint32) float32 {
	if s, ok := m.stock[station]; ok {
		return s
	}
	s := float32(m.cfg.StationStock)
	m.stock[station] = s
	return s
}

// Wallet returns an agent's credit balance.
func (m *Market) Wallet(id uint32) float64 { return m.wallets[id] }

// SetWallet overwrites an agent's balance, used when restoring a save.
func (m *Market) SetWallet(id uint32, credits float64) { m.wallets[id] = credits }

func (m *Market) live(e ecs.Entity) bool {
	return !e.IsZero() && m.world.Alive(e)
}

func (m *Market) stationID(e ecs.Entity) (uint32, bool) {
	if e.IsZero() || !m.world.Alive(e) || !m.stMap.Has(e) {
		return 0, false
	}
	return m.stMap.Get(e).ID, true
}

func (m *Market) agentID(e ecs.Entity) uint32 {
	if !m.idMap.Has(e) {
		return 0
	}
	return m.idMap.Get(e).ID
}
