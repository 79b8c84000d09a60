package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"github.com/TruWeaveTrader/treasury-pairs/internal/trading"
)

// SchemaVersion is bumped whenever a persisted payload changes shape
const SchemaVersion = 1

const (
	kindParameters = "strategy_parameters"
	kindTrade      = "pairs_trade"
	kindRuntime    = "engine_state"
)

type envelope struct {
	Version int             `json:"version"`
	Kind    string          `json:"kind"`
	SavedAt time.Time       `json:"saved_at"`
	Payload json.RawMessage `json:"payload"`
}

// Snapshots reads and writes the typed strategy snapshots
type Snapshots struct {
	store Store
	now   func() time.Time
}

// NewSnapshots wraps a store
func NewSnapshots(s Store) *Snapshots {
	return &Snapshots{store: s, now: time.Now}
}

func (s *Snapshots) save(ctx context.Context, key, kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	blob, err := json.MarshalIndent(envelope{
		Version: SchemaVersion,
		Kind:    kind,
		SavedAt: s.now().UTC(),
		Payload: payload,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", kind, err)
	}
	return s.store.Save(ctx, key, blob)
}

func (s *Snapshots) load(ctx context.Context, key, kind string, v any) error {
	blob, err := s.store.Load(ctx, key)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return fmt.Errorf("decode %s envelope: %w", kind, err)
	}
	if env.Kind != kind {
		return fmt.Errorf("snapshot %s holds %q, want %q", key, env.Kind, kind)
	}
	if env.Version != SchemaVersion {
		return fmt.Errorf("snapshot %s has schema version %d, want %d", key, env.Version, SchemaVersion)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

// SaveParameters persists the active pair's parameters
func (s *Snapshots) SaveParameters(ctx context.Context, p models.StrategyParameters) error {
	return s.save(ctx, KeyParameters, kindParameters, p)
}

// LoadParameters returns ErrNotFound when none are saved
func (s *Snapshots) LoadParameters(ctx context.Context) (models.StrategyParameters, error) {
	var p models.StrategyParameters
	err := s.load(ctx, KeyParameters, kindParameters, &p)
	return p, err
}

// DeleteParameters removes saved parameters
func (s *Snapshots) DeleteParameters(ctx context.Context) error {
	return s.store.Delete(ctx, KeyParameters)
}

// SaveTrade persists the active trade
func (s *Snapshots) SaveTrade(ctx context.Context, t *trading.PairsTrade) error {
	return s.save(ctx, KeyTrade, kindTrade, t)
}

// LoadTrade returns ErrNotFound when no trade is saved
func (s *Snapshots) LoadTrade(ctx context.Context) (*trading.PairsTrade, error) {
	var t trading.PairsTrade
	if err := s.load(ctx, KeyTrade, kindTrade, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTrade removes the saved trade
func (s *Snapshots) DeleteTrade(ctx context.Context) error {
	return s.store.Delete(ctx, KeyTrade)
}

// RuntimeState is what a running engine publishes about itself
type RuntimeState struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Status    string    `json:"status"`
	Leg1Name  string    `json:"leg1_name,omitempty"`
	Leg2Name  string    `json:"leg2_name,omitempty"`
	Positions int       `json:"positions"`
}

// SaveRuntime publishes the engine's current state
func (s *Snapshots) SaveRuntime(ctx context.Context, st RuntimeState) error {
	return s.save(ctx, KeyRuntime, kindRuntime, st)
}

// LoadRuntime returns ErrNotFound when no engine has published state
func (s *Snapshots) LoadRuntime(ctx context.Context) (RuntimeState, error) {
	var st RuntimeState
	err := s.load(ctx, KeyRuntime, kindRuntime, &st)
	return st, err
}

// DeleteRuntime removes the published engine state
func (s *Snapshots) DeleteRuntime(ctx context.Context) error {
	return s.store.Delete(ctx, KeyRuntime)
}

// Close closes the underlying store
func (s *Snapshots) Close() error {
	return s.store.Close()
}
