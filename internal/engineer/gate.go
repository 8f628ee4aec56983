package engineer

import (
	"sync/atomic"

	"github.com/sjawhar/pit-radio/internal/session"
)

// Gate publishes the session state to the announcement pipeline and the
// HTTP status endpoint. Only the engineer loop writes it.
type Gate struct {
	state atomic.Int32
}

func NewGate() *Gate {
	return &Gate{}
}

func (g *Gate) Live() bool {
	return g.State() == session.Live
}

func (g *Gate) State() session.State {
	return session.State(g.state.Load())
}

func (g *Gate) set(s session.State) {
	g.state.Store(int32(s))
}
