package window

import "time"

// Item is one positioned row.
type Item[T any] struct {
	Key     string
	Index   int
	Height  float64
	Top     float64 // Sum of the heights of every preceding item
	Visible bool
	Data    T
}

// Direction is the sign of the last scroll delta.
type Direction string

const (
	DirectionIdle Direction = "idle"
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ScrollMetrics describes the most recent scroll event.
type ScrollMetrics struct {
	ScrollTop float64
	Velocity  float64 // Pixels per millisecond
	Direction Direction
}

// Behavior selects how ScrollToItem moves.
type Behavior string

const (
	BehaviorAuto   Behavior = "auto"
	BehaviorSmooth Behavior = "smooth"
)

// Surface is the rendering side of the window.
type Surface interface {
	// ScrollTo moves the viewport so that top is at its upper edge.
	ScrollTo(top float64, smooth bool)

	// Vibrate plays a haptic pattern.
	Vibrate(pattern []time.Duration)

	// Measure returns the rendered height of a mounted item.
	Measure(key string) (float64, bool)
}

// Config configures a Window.
type Config struct {
	ItemHeight      float64       // Height estimate for unmeasured items
	BufferSize      int           // Extra rows rendered above and below the viewport
	ContainerHeight float64       // Viewport height
	Overscan        int           // Additional rows beyond the buffer
	Comfort         bool          // Comfort mode: eased scrolling
	ScrollDebounce  time.Duration // Idle time before scrolling ends
	MaxScrollStep   float64       // Comfort mode cap on pixels moved per frame
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ItemHeight:      200,
		BufferSize:      5,
		ContainerHeight: 600,
		Overscan:        3,
		ScrollDebounce:  150 * time.Millisecond,
		MaxScrollStep:   48,
	}
}

// margin is the padding added above and below the viewport.
func (c Config) margin() float64 {
	return float64(c.BufferSize+c.Overscan) * c.ItemHeight
}

// easeFactor is the share of the remaining distance covered per frame by
// comfort scrolling.
const easeFactor = 0.2

// NopSurface ignores every call and measures nothing.
type NopSurface struct{}

func (NopSurface) ScrollTo(float64, bool)          {}
func (NopSurface) Vibrate([]time.Duration)         {}
func (NopSurface) Measure(string) (float64, bool) { return 0, false }
