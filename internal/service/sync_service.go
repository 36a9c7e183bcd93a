package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"brainduel/internal/cache"
	"brainduel/internal/model"
	"brainduel/internal/repository"
)

// MatchState is the payload pushed to a player on every change of their match
// document: the full current snapshot plus where their client should be.
type MatchState struct {
	Match       *model.Match      `json:"match,omitempty"`
	Destination model.Destination `json:"destination"`
	Round       int               `json:"round,omitempty"`
}

// SyncService subscribes to match change notifications and fans fresh
// snapshots out to every attached player, running each player's session
// pipeline on the way. One watcher per match exists only while at least one
// player is connected.
type SyncService struct {
	matches     repository.MatchRepo
	users       repository.UserRepo
	presence    cache.PresenceCache
	bus         cache.MatchBus
	matchSvc    *MatchService
	roundSvc    *RoundService
	broadcaster Broadcaster
	log         *logrus.Logger

	mu       sync.Mutex
	watchers map[string]*matchWatcher
}

type matchWatcher struct {
	matchID string
	sub     cache.Subscription
	players map[string]bool
}

// NewSyncService creates a new sync service.
func NewSyncService(matches repository.MatchRepo, users repository.UserRepo, presence cache.PresenceCache, bus cache.MatchBus, matchSvc *MatchService, roundSvc *RoundService, log *logrus.Logger) *SyncService {
	return &SyncService{
		matches:  matches,
		users:    users,
		presence: presence,
		bus:      bus,
		matchSvc: matchSvc,
		roundSvc: roundSvc,
		log:      log,
		watchers: make(map[string]*matchWatcher),
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *SyncService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Attach registers a connected player on a match. The current state is pushed
// immediately, then again on every remote change until Detach.
func (s *SyncService) Attach(ctx context.Context, matchID, userID string) {
	s.mu.Lock()
	w := s.watchers[matchID]
	if w == nil {
		w = &matchWatcher{
			matchID: matchID,
			sub:     s.bus.Subscribe(context.Background(), matchID),
			players: make(map[string]bool),
		}
		s.watchers[matchID] = w
		go s.run(w)
	}
	w.players[userID] = true
	s.mu.Unlock()

	s.roundSvc.AttachPlayer(matchID, userID)
	s.markOnline(ctx, userID, true)

	// Subscription contract: fire once immediately with current state.
	s.refreshPlayer(ctx, matchID, userID)
}

// Detach unregisters a player, tears down their round session, and closes the
// watcher once the last player is gone.
func (s *SyncService) Detach(matchID, userID string) {
	s.mu.Lock()
	if w := s.watchers[matchID]; w != nil {
		delete(w.players, userID)
		if len(w.players) == 0 {
			w.sub.Close()
			delete(s.watchers, matchID)
		}
	}
	s.mu.Unlock()

	s.roundSvc.DetachPlayer(matchID, userID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.markOnline(ctx, userID, false)
}

// Heartbeat refreshes the player's presence TTL; called from the socket read
// pump on pongs.
func (s *SyncService) Heartbeat(ctx context.Context, userID string) {
	if err := s.presence.Touch(ctx, userID); err != nil {
		s.log.WithError(err).WithField("userId", userID).Debug("presence touch failed")
	}
}

func (s *SyncService) run(w *matchWatcher) {
	for range w.sub.Changes() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		s.refresh(ctx, w)
		cancel()
	}
}

// refresh reads the document once and fans it out to every attached player.
func (s *SyncService) refresh(ctx context.Context, w *matchWatcher) {
	match, err := s.matches.GetByID(ctx, w.matchID)
	if err != nil {
		s.log.WithError(err).WithField("matchId", w.matchID).Warn("failed to read match on change")
		return
	}

	s.mu.Lock()
	players := make([]string, 0, len(w.players))
	for uid := range w.players {
		players = append(players, uid)
	}
	s.mu.Unlock()

	for _, uid := range players {
		s.push(ctx, match, w.matchID, uid)
	}
}

func (s *SyncService) refreshPlayer(ctx context.Context, matchID, userID string) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		s.log.WithError(err).WithField("matchId", matchID).Warn("failed to read match")
		return
	}
	s.push(ctx, match, matchID, userID)
}

func (s *SyncService) push(ctx context.Context, match *model.Match, matchID, userID string) {
	state := MatchState{
		Match:       match,
		Destination: s.matchSvc.RouteFor(match, userID),
	}
	if match != nil {
		state.Round = match.CurrentRound
	}
	if s.broadcaster != nil {
		s.broadcaster.ToPlayer(matchID, userID, "match_state", state)
	}
	s.roundSvc.HandleSnapshot(ctx, match, userID)
}

func (s *SyncService) markOnline(ctx context.Context, userID string, online bool) {
	var err error
	if online {
		err = s.presence.Touch(ctx, userID)
	} else {
		err = s.presence.Clear(ctx, userID)
	}
	if err != nil {
		s.log.WithError(err).WithField("userId", userID).Debug("presence update failed")
	}
	if err := s.users.SetOnline(ctx, userID, online); err != nil {
		s.log.WithError(err).WithField("userId", userID).Warn("failed to update online flag")
	}
}
