package hsm

// Settings bounds table capacity, buy-ins, and timeouts. Absolute chip cap
// and seat capacity are enforced by the table actor at JoinTable time; the
// HSM itself only enforces invariants about seated players.
type Settings struct {
	Capacity      int
	MinBuyInBB    uint64 // multiple of big blind
	MaxBuyInBB    uint64
	ChipCap       uint64 // absolute cap per seat, <= 100,000
	ActionTimeout int    // seconds
	StepTimeout   int    // seconds
	Schedule      BlindSchedule `json:"-"`
}

// DefaultSettings mirrors the defaults named in spec §5/§6.3.
func DefaultSettings() Settings {
	return Settings{
		Capacity:      9,
		MinBuyInBB:    20,
		MaxBuyInBB:    100,
		ChipCap:       100_000,
		ActionTimeout: 30,
		StepTimeout:   1,
		Schedule:      StaticBlinds{},
	}
}
