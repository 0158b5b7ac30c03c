package packet

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Writer is the push-side sink a Router dispatches packets into — a sorted
// queue, almost always (§4.1).
type Writer interface {
	Write(p *Packet) error
}

// Reader is the pull-side source every downstream stage consumes from.
type Reader interface {
	// Read returns the next packet, or (nil, nil) if none is currently
	// available (§4.5 "no packet available" — downstream interprets this
	// as a gap, not an error).
	Read() (*Packet, error)
}

// Router dispatches incoming packets to named sub-queues by flag (§2
// Packet Router). It is the single point where the push (network) and pull
// (audio) contexts meet: Route is called from the network context, and the
// registered Writers are expected to be thread-safe for single-producer
// single-consumer use (SortedQueue satisfies this).
type Router struct {
	routes map[Flags]Writer
	log    zerolog.Logger
}

// NewRouter creates a Router with an expected number of routes (purely a
// sizing hint, matching the teacher's map-with-capacity-hint idiom).
func NewRouter(expectedRoutes int) *Router {
	return &Router{
		routes: make(map[Flags]Writer, expectedRoutes),
		log:    zerolog.Nop(),
	}
}

func (r *Router) SetLogger(log zerolog.Logger) {
	r.log = log.With().Str("component", "packet.Router").Logger()
}

// AddRoute registers w as the destination for packets whose Flags has flag
// set. Registering the same flag twice is a programmer error.
func (r *Router) AddRoute(flag Flags, w Writer) error {
	if _, exists := r.routes[flag]; exists {
		return fmt.Errorf("packet: route for flag %d already registered", flag)
	}
	r.routes[flag] = w
	return nil
}

// Route dispatches p to the writer registered for the flag combination it
// carries. A packet matching no route is dropped and logged at debug level
// (§7 Transient packet-level failure); Route then returns nil.
func (r *Router) Route(p *Packet) error {
	for flag, w := range r.routes {
		if p.Flags.Has(flag) {
			return w.Write(p)
		}
	}
	r.log.Debug().Uint8("flags", uint8(p.Flags)).Msg("packet matched no route, dropping")
	return nil
}
