package adapter

import "fmt"

// CounterCollection is where the per-collection autonumber counters live;
// each counter's document id is the managed collection's path.
const CounterCollection = "autonumbers"

// Counter is the shape of one autonumber counter document.
type Counter struct {
	// Current is the last assigned number; the next code is Current+1.
	Current int64
	// Length is the zero-padded width of assigned codes; the counter is
	// exhausted once Current reaches 10^Length - 1.
	Length int
	// Status gates assignment; a disabled counter fails creates.
	Status bool
	// Field names the document field assigned codes are written to.
	Field string
}

// Max returns the largest assignable number for this counter's width.
func (c Counter) Max() int64 {
	max := int64(1)
	for i := 0; i < c.Length; i++ {
		max *= 10
	}
	return max - 1
}

// Format zero-pads n to the counter's width.
func (c Counter) Format(n int64) string {
	return fmt.Sprintf("%0*d", c.Length, n)
}

func (c Counter) toData() map[string]any {
	return map[string]any{
		"current": c.Current,
		"length":  int64(c.Length),
		"status":  c.Status,
		"field":   c.Field,
	}
}

func counterFromData(data map[string]any) Counter {
	c := Counter{}
	c.Current, _ = asInt64(data["current"])
	length, _ := asInt64(data["length"])
	c.Length = int(length)
	c.Status, _ = data["status"].(bool)
	c.Field, _ = data["field"].(string)
	return c
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
