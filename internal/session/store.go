package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mudlink/mudlink/internal/discord"
	"github.com/mudlink/mudlink/pkg/protocol"
)

const (
	// sessionTimeout removes a session whose browser has been gone this long.
	// Wizard sessions are exempt.
	sessionTimeout = 15 * time.Minute

	sweepInterval = time.Minute
)

// Store is the process-wide session registry, keyed by token and by the
// (user, character) pair so a character can only be driven from one session.
type Store struct {
	mu         sync.Mutex
	byToken    map[string]*Session
	byUserChar map[string]string // userID+"/"+characterID -> token

	webhooks *discord.Sender
}

func NewStore(webhooks *discord.Sender) *Store {
	return &Store{
		byToken:    make(map[string]*Session),
		byUserChar: make(map[string]string),
		webhooks:   webhooks,
	}
}

func userCharKey(userID, characterID string) string {
	return userID + "/" + characterID
}

// Auth resolves an auth frame to a session and attaches the browser to it.
//
// Same token: the new browser takes the session over, the old browser (if
// any) is told and cut loose, and the backlog is discarded in favor of a
// fresh stat snapshot. Different token for the same (user, character): the
// old session is evicted entirely. Otherwise a new session is created.
func (st *Store) Auth(conn BrowserConn, in protocol.Inbound) *Session {
	st.mu.Lock()

	// Anonymous auths carry no (user, character) identity and never
	// contend for the character slot.
	identified := in.UserID != "" && in.CharacterID != ""
	if identified {
		key := userCharKey(in.UserID, in.CharacterID)
		if oldToken, ok := st.byUserChar[key]; ok && oldToken != in.Token {
			if old := st.byToken[oldToken]; old != nil {
				old.Send(protocol.Outbound{Type: protocol.TypeSessionTaken})
				st.deleteLocked(old)
				old.Close()
				slog.Info("session.evicted", "token", short(oldToken), "user", in.UserID)
			}
		}
	}

	s, resumed := st.byToken[in.Token], false
	if s != nil {
		resumed = true
	} else {
		s = newSession(in.Token, st.webhooks, st.Remove)
		st.byToken[in.Token] = s
	}
	s.UserID = in.UserID
	s.CharacterID = in.CharacterID
	s.CharacterName = in.CharacterName
	s.IsWizard = in.IsWizard
	if identified {
		st.byUserChar[userCharKey(in.UserID, in.CharacterID)] = in.Token
	}
	st.mu.Unlock()

	s.attachBrowser(conn, resumed)
	return s
}

// attachBrowser swaps the browser connection in. On a resume the buffered
// backlog is discarded: the browser gets a session_resumed frame and, when
// vitals have been seen, one fresh mip_stats snapshot instead of a replay.
func (s *Session) attachBrowser(conn BrowserConn, resumed bool) {
	s.mu.Lock()
	old := s.ws
	s.ws = conn
	s.disconnectedAt = time.Time{}
	s.explicitDisconnect = false
	s.buffer = nil
	s.bufferOverflow = false

	if old != nil {
		old.Send(protocol.Outbound{Type: protocol.TypeSessionTaken})
	}
	if resumed {
		s.sendLocked(protocol.Outbound{Type: protocol.TypeSessionResumed, MudConnected: s.mud != nil})
		if stats := s.mip.Stats(); stats.HP.Max > 0 {
			snap := stats
			s.sendLocked(protocol.Outbound{Type: protocol.TypeMIPStats, Stats: &snap})
		}
	} else {
		s.sendLocked(protocol.Outbound{Type: protocol.TypeSessionNew})
	}
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	slog.Info("session.attached", "token", short(s.Token), "resumed", resumed)
}

// Remove deletes a session from the registry and closes it.
func (st *Store) Remove(s *Session) {
	st.mu.Lock()
	st.deleteLocked(s)
	st.mu.Unlock()
	s.Close()
}

func (st *Store) deleteLocked(s *Session) {
	if st.byToken[s.Token] == s {
		delete(st.byToken, s.Token)
	}
	key := userCharKey(s.UserID, s.CharacterID)
	if st.byUserChar[key] == s.Token {
		delete(st.byUserChar, key)
	}
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.byToken)
}

// Info is one row of the admin session listing.
type Info struct {
	UserID        string `json:"userId"`
	CharacterName string `json:"characterName"`
	Server        string `json:"server,omitempty"`
	MudConnected  bool   `json:"mudConnected"`
	BrowserOnline bool   `json:"browserOnline"`
}

// List snapshots every session for the admin endpoint. Tokens are not
// included.
func (st *Store) List() []Info {
	st.mu.Lock()
	sessions := make([]*Session, 0, len(st.byToken))
	for _, s := range st.byToken {
		sessions = append(sessions, s)
	}
	st.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		infos = append(infos, Info{
			UserID:        s.UserID,
			CharacterName: s.CharacterName,
			Server:        ServerTag(s.targetHost),
			MudConnected:  s.mud != nil,
			BrowserOnline: s.ws != nil,
		})
		s.mu.Unlock()
	}
	return infos
}

// Broadcast sends an announcement to every session with an attached browser.
// Detached sessions are skipped rather than buffered; stale announcements are
// worthless on resume.
func (st *Store) Broadcast(message string) int {
	st.mu.Lock()
	sessions := make([]*Session, 0, len(st.byToken))
	for _, s := range st.byToken {
		sessions = append(sessions, s)
	}
	st.mu.Unlock()

	out := protocol.Outbound{
		Type:      protocol.TypeBroadcast,
		Message:   message,
		Timestamp: time.Now().Unix(),
	}
	n := 0
	for _, s := range sessions {
		s.mu.Lock()
		if s.ws != nil {
			s.sendLocked(out)
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// Run sweeps idle sessions until the context is cancelled.
func (st *Store) Run(ctx context.Context) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			st.sweep(now)
		}
	}
}

func (st *Store) sweep(now time.Time) {
	st.mu.Lock()
	var expired []*Session
	for _, s := range st.byToken {
		s.mu.Lock()
		idle := s.ws == nil && !s.disconnectedAt.IsZero() &&
			now.Sub(s.disconnectedAt) > sessionTimeout && !s.IsWizard
		s.mu.Unlock()
		if idle {
			expired = append(expired, s)
		}
	}
	for _, s := range expired {
		st.deleteLocked(s)
	}
	st.mu.Unlock()

	for _, s := range expired {
		slog.Info("session.expired", "token", short(s.Token), "user", s.UserID)
		s.Close()
	}
}
