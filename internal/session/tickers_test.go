package session

import (
	"testing"
	"time"

	"github.com/mudlink/mudlink/pkg/protocol"
)

func TestSetTickersSkipsDisabledAndZeroInterval(t *testing.T) {
	s, _, mud := testSession(t)
	s.SetTickers([]protocol.Ticker{
		{ID: "t1", Command: "save", Interval: 0, Enabled: true},
		{ID: "t2", Command: "look", Interval: 60, Enabled: false},
	})

	time.Sleep(30 * time.Millisecond)
	if got := mud.sent(); len(got) != 0 {
		t.Fatalf("unscheduled tickers wrote %q", got)
	}
}

func TestSetTickersCancelsPrevious(t *testing.T) {
	s, _, _ := testSession(t)
	s.SetTickers([]protocol.Ticker{{ID: "t1", Command: "save", Interval: 60, Enabled: true}})

	s.mu.Lock()
	old := s.tickerStop
	s.mu.Unlock()

	s.SetTickers(nil)

	select {
	case <-old:
	default:
		t.Fatal("previous ticker set must be cancelled")
	}
}

func TestCloseStopsTickers(t *testing.T) {
	s, _, _ := testSession(t)
	s.SetTickers([]protocol.Ticker{{ID: "t1", Command: "save", Interval: 60, Enabled: true}})

	s.mu.Lock()
	stop := s.tickerStop
	s.mu.Unlock()

	s.Close()
	select {
	case <-stop:
	case <-time.After(time.Second):
		t.Fatal("Close must cancel tickers")
	}
}
