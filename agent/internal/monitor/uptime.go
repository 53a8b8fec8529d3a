package monitor

// uptimeWindow is the number of recent cycle outcomes tracked for uptime %.
const uptimeWindow = 20

// uptime is a sliding window of cycle outcomes.
type uptime struct {
	history []bool // newest last
}

func (u *uptime) record(ok bool) {
	if len(u.history) >= uptimeWindow {
		u.history = u.history[1:]
	}
	u.history = append(u.history, ok)
}

// pct returns the share of successful cycles in the window. Before the first
// cycle it is 100.
func (u *uptime) pct() float64 {
	if len(u.history) == 0 {
		return 100
	}
	var ok int
	for _, s := range u.history {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(u.history)) * 100
}
