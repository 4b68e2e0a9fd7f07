package service

// State holds the service-wide mutable state: the traffic stats plus the
// cumulative totals the compression ratio is derived from. One State is
// created at server start and shared by reference with every connection
// worker; the Server's mutex guards all access.
type State struct {
	stats Stats

	// Cumulative bytes entering and leaving the compressor across all
	// successful compress requests; used only to recompute the ratio.
	totalRaw        int
	totalCompressed int

	// Reserved for surfacing internal faults through Ping; currently always
	// zero.
	internalError uint16
}

func NewState() *State {
	return &State{}
}

func (st *State) InternalError() uint16 {
	return st.internalError
}

func (st *State) UpdateRead(n int) {
	st.stats.UpdateRead(n)
}

func (st *State) UpdateSent(n int) {
	st.stats.UpdateSent(n)
}

// UpdateRatio folds one compress result into the cumulative totals and
// refreshes the stats ratio.
func (st *State) UpdateRatio(raw, compressed int) {
	st.totalRaw += raw
	st.totalCompressed += compressed
	st.stats.SetRatio(st.totalCompressed, st.totalRaw)
}

// Reset zeroes the stats and the cumulative totals.
func (st *State) Reset() {
	st.stats.Reset()
	st.totalRaw = 0
	st.totalCompressed = 0
}

// EncodeStats serializes the current stats into dst (StatsSize bytes).
func (st *State) EncodeStats(dst []byte) {
	st.stats.EncodeTo(dst)
}

// Snapshot is a copy of the observable state, safe to hand out once the
// Server's lock has been released.
type Snapshot struct {
	Read            uint32 `json:"read"`
	Sent            uint32 `json:"sent"`
	Ratio           uint8  `json:"ratio"`
	TotalRaw        int    `json:"total_raw"`
	TotalCompressed int    `json:"total_compressed"`
}

func (st *State) Snapshot() Snapshot {
	return Snapshot{
		Read:            st.stats.Read(),
		Sent:            st.stats.Sent(),
		Ratio:           st.stats.Ratio(),
		TotalRaw:        st.totalRaw,
		TotalCompressed: st.totalCompressed,
	}
}
