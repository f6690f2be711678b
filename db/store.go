package db

import (
	"context"
	"sync"

	"github.com/callummance/marshal/guildmodels"
	"github.com/sirupsen/logrus"
)

//PolicyStore owns the in-memory policy of every guild and is the only path through which policies are changed.
//Published policies are never modified in place; Mutate works on a copy and swaps it in once it has been saved.
type PolicyStore struct {
	backend Backend

	mu       sync.RWMutex
	policies map[string]*guildmodels.GuildPolicy

	locksMu   sync.Mutex
	saveLocks map[string]*sync.Mutex
}

//NewPolicyStore creates an empty store on top of the given backend. Call Load before use.
func NewPolicyStore(backend Backend) *PolicyStore {
	return &PolicyStore{
		backend:   backend,
		policies:  make(map[string]*guildmodels.GuildPolicy),
		saveLocks: make(map[string]*sync.Mutex),
	}
}

//Load reads every stored policy from the backend, repairing any which break the policy invariants
func (s *PolicyStore) Load(ctx context.Context) error {
	loaded, err := s.backend.LoadPolicies(ctx)
	if err != nil {
		logrus.Errorf("Failed to load guild policies due to error %v", err)
		return &PersistenceError{Op: "load", Err: err}
	}
	policies := make(map[string]*guildmodels.GuildPolicy, len(loaded))
	for _, p := range loaded {
		if p.GuildID == "" {
			logrus.Warnf("Skipping stored policy with no guild id")
			continue
		}
		for _, note := range p.Normalize() {
			logrus.WithField("guild", p.GuildID).Warnf("Repaired stored policy: %v", note)
		}
		policies[p.GuildID] = p
	}
	s.mu.Lock()
	s.policies = policies
	s.mu.Unlock()
	logrus.Infof("Loaded moderation policies for %d guilds", len(policies))
	return nil
}

//Get returns the policy for a guild, or an empty default policy if the guild has never configured anything.
//The result must be treated as read-only; use Mutate to make changes.
func (s *PolicyStore) Get(guildID string) *guildmodels.GuildPolicy {
	s.mu.RLock()
	p, ok := s.policies[guildID]
	s.mu.RUnlock()
	if !ok {
		return guildmodels.DefaultPolicy(guildID)
	}
	return p
}

//Exists returns true if a policy has been stored for the guild
func (s *PolicyStore) Exists(guildID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.policies[guildID]
	return ok
}

//Guilds lists the IDs of every guild with a stored policy
func (s *PolicyStore) Guilds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]string, 0, len(s.policies))
	for gid := range s.policies {
		res = append(res, gid)
	}
	return res
}

//Mutate applies fn to a copy of the guild's policy (a fresh default if none exists yet) and persists the result.
//If fn returns an error nothing is changed. If persisting fails the change is discarded and a *PersistenceError
//is returned.
func (s *PolicyStore) Mutate(ctx context.Context, guildID string, fn func(*guildmodels.GuildPolicy) error) error {
	lock := s.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current, ok := s.policies[guildID]
	s.mu.RUnlock()
	var next *guildmodels.GuildPolicy
	if ok {
		next = current.Clone()
	} else {
		logrus.Infof("Creating new moderation policy for guild %v", guildID)
		next = guildmodels.DefaultPolicy(guildID)
	}
	if err := fn(next); err != nil {
		return err
	}
	if err := s.backend.SavePolicy(ctx, next); err != nil {
		persistenceFailures.Inc()
		logrus.Errorf("Failed to save policy for guild %v due to error %v", guildID, err)
		return &PersistenceError{GuildID: guildID, Op: "save", Err: err}
	}
	s.mu.Lock()
	s.policies[guildID] = next
	s.mu.Unlock()
	policySaves.Inc()
	return nil
}

//Save writes the current policy of a guild to the backend. Guilds without a stored policy are skipped.
func (s *PolicyStore) Save(ctx context.Context, guildID string) error {
	lock := s.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	p, ok := s.policies[guildID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := s.backend.SavePolicy(ctx, p); err != nil {
		persistenceFailures.Inc()
		logrus.Errorf("Failed to save policy for guild %v due to error %v", guildID, err)
		return &PersistenceError{GuildID: guildID, Op: "save", Err: err}
	}
	policySaves.Inc()
	return nil
}

//Summary returns read-only counts describing a guild's policy
func (s *PolicyStore) Summary(guildID string) guildmodels.PolicySummary {
	return s.Get(guildID).Summarize()
}

//Flush saves every stored policy, returning the first error encountered
func (s *PolicyStore) Flush(ctx context.Context) error {
	var firstErr error
	for _, gid := range s.Guilds() {
		if err := s.Save(ctx, gid); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

//Close flushes every policy and then closes the backend
func (s *PolicyStore) Close(ctx context.Context) error {
	logrus.Info("Flushing moderation policies...")
	flushErr := s.Flush(ctx)
	if err := s.backend.Close(); err != nil {
		logrus.Warnf("Failed to close policy backend due to error %v", err)
		if flushErr == nil {
			return err
		}
	}
	return flushErr
}

func (s *PolicyStore) guildLock(guildID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.saveLocks[guildID]
	if !ok {
		l = &sync.Mutex{}
		s.saveLocks[guildID] = l
	}
	return l
}
