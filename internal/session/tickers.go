package session

import (
	"time"

	"github.com/mudlink/mudlink/internal/script"
	"github.com/mudlink/mudlink/pkg/protocol"
)

// SetTickers cancels every running ticker and re-arms from the new set.
// Disabled tickers and non-positive intervals are never scheduled.
func (s *Session) SetTickers(tickers []protocol.Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTickersLocked()
	s.tickers = tickers
	if s.closed {
		return
	}

	stop := make(chan struct{})
	s.tickerStop = stop
	for _, t := range tickers {
		if !t.Enabled || t.Interval <= 0 {
			continue
		}
		go s.runTicker(t, stop)
	}
}

func (s *Session) stopTickersLocked() {
	if s.tickerStop != nil {
		close(s.tickerStop)
		s.tickerStop = nil
	}
}

// runTicker emits the ticker's command through the alias expander on each
// interval. Tickers survive browser absence but stay quiet while the MUD
// socket is down.
func (s *Session) runTicker(t protocol.Ticker, stop chan struct{}) {
	tick := time.NewTicker(time.Duration(t.Interval) * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			s.mu.Lock()
			if s.mud == nil || s.closed {
				s.mu.Unlock()
				continue
			}
			for _, expanded := range script.ExpandAliases(t.Command, s.aliases) {
				s.dispatchLocked(expanded)
			}
			s.mu.Unlock()
		}
	}
}
