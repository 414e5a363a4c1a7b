package sensor

import (
	"fmt"
	"strings"
	"time"

	"github.com/nicktill/thermonest/pkg/errdefs"
)

// Window is one of the fixed look-back ranges a client may select.
// The zero value is not a valid window.
type Window int

const (
	Window1h Window = iota + 1
	Window6h
	Window12h
	Window24h
	Window7d
	Window14d
	Window30d
)

// Class groups windows by how their data is bucketed for charts.
type Class int

const (
	ClassShort Class = iota + 1
	ClassMid
	ClassLong
)

type windowInfo struct {
	name     string
	duration time.Duration
	class    Class
}

var windowTable = map[Window]windowInfo{
	Window1h:  {"1h", time.Hour, ClassShort},
	Window6h:  {"6h", 6 * time.Hour, ClassMid},
	Window12h: {"12h", 12 * time.Hour, ClassMid},
	Window24h: {"24h", 24 * time.Hour, ClassMid},
	Window7d:  {"168h", 7 * 24 * time.Hour, ClassLong},
	Window14d: {"336h", 14 * 24 * time.Hour, ClassLong},
	Window30d: {"720h", 30 * 24 * time.Hour, ClassLong},
}

// windowTokens is the allow-list of accepted spellings. Nothing outside
// this map is ever turned into a Window.
var windowTokens = map[string]Window{
	"1h":   Window1h,
	"6h":   Window6h,
	"12h":  Window12h,
	"24h":  Window24h,
	"168h": Window7d,
	"336h": Window14d,
	"720h": Window30d,
	"7d":   Window7d,
	"14d":  Window14d,
	"30d":  Window30d,
}

// Windows returns every valid window, shortest first.
func Windows() []Window {
	return []Window{Window1h, Window6h, Window12h, Window24h, Window7d, Window14d, Window30d}
}

// LiveWindow is the only window with a recurring push subscription.
const LiveWindow = Window1h

// ParseWindow validates a client supplied token such as "-6h", "6h" or "7d".
func ParseWindow(token string) (Window, error) {
	w, ok := windowTokens[strings.TrimPrefix(token, "-")]
	if !ok {
		return 0, fmt.Errorf("%w: %q is not one of -1h, -6h, -12h, -24h, -168h, -336h, -720h", errdefs.ErrInvalidRange, token)
	}
	return w, nil
}

// Valid reports whether w is an enumerated window.
func (w Window) Valid() bool {
	_, ok := windowTable[w]
	return ok
}

// String returns the unsigned token, e.g. "6h".
func (w Window) String() string {
	if info, ok := windowTable[w]; ok {
		return info.name
	}
	return fmt.Sprintf("Window(%d)", int(w))
}

// Token returns the negative-duration form used as a store range start, e.g. "-6h".
func (w Window) Token() string {
	return "-" + w.String()
}

// Duration returns the look-back length.
func (w Window) Duration() time.Duration {
	return windowTable[w].duration
}

// Class returns the bucketing class.
func (w Window) Class() Class {
	return windowTable[w].class
}

// Live reports whether w is the live window.
func (w Window) Live() bool {
	return w == LiveWindow
}

// Start returns the first instant covered by w when viewed at now.
func (w Window) Start(now time.Time) time.Time {
	return now.Add(-w.Duration())
}

// MarshalText implements encoding.TextMarshaler.
func (w Window) MarshalText() ([]byte, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("%w: %d", errdefs.ErrInvalidRange, int(w))
	}
	return []byte(w.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *Window) UnmarshalText(b []byte) error {
	parsed, err := ParseWindow(string(b))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
