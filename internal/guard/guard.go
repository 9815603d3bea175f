// Package guard bounds retries of automated corrective actions whose success
// cannot be queried directly, such as clicking away a splash screen. Every
// attempt is logged; once too many attempts pile up in a short window the
// guard refuses further tries so the session reports a prevented loop
// instead of spinning.
package guard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/api/schemas"
	"github.com/xkilldash9x/cartographer/internal/config"
)

// ErrLoopPrevented is returned when the guard refuses a corrective action.
// Not fatal: the calling workflow decides whether to abandon the action or
// try a different corrective target.
var ErrLoopPrevented = errors.New("loop prevented: too many recent attempts")

// ErrVerificationUnavailable is returned by VerifyEffect when no comparator
// is configured and the assume-success fallback is disabled.
var ErrVerificationUnavailable = errors.New("effect verification unavailable")

// Attempt is one logged corrective-action try.
type Attempt struct {
	ID           string    `json:"id"`
	ActionTarget string    `json:"actionTarget"`
	Coordinates  [2]int    `json:"coordinates"`
	Success      bool      `json:"success"`
	Timestamp    time.Time `json:"timestamp"`
}

// Guard tracks attempts per corrective-action class and verifies effects.
// Like the rest of the session state it has a single owner and is not safe
// for concurrent use.
type Guard struct {
	cfg        config.GuardConfig
	path       string // sidecar log file; empty keeps the log in memory
	comparator Comparator
	entries    map[string][]Attempt
	now        func() time.Time
	log        *zap.Logger
}

// New builds a guard. path points at the persisted attempt log sidecar next
// to the exploration document; comparator may be nil, in which case
// VerifyEffect degrades per the configured fallback.
func New(cfg config.GuardConfig, path string, comparator Comparator, logger *zap.Logger) (*Guard, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guard{
		cfg:        cfg,
		path:       path,
		comparator: comparator,
		entries:    make(map[string][]Attempt),
		now:        time.Now,
		log:        logger.Named("guard"),
	}

	if path != "" {
		if err := g.loadLog(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// ShouldBlock reports whether a corrective action of this class must be
// skipped: cfg.MaxAttempts or more attempts, successful or not, inside the
// trailing window.
func (g *Guard) ShouldBlock(class string, now time.Time) bool {
	cutoff := now.Add(-g.cfg.Window)
	recent := 0
	for _, a := range g.entries[class] {
		if a.Timestamp.After(cutoff) && !a.Timestamp.After(now) {
			recent++
		}
	}
	if recent >= g.cfg.MaxAttempts {
		g.log.Warn("Corrective action blocked",
			zap.String("class", class),
			zap.Int("recent_attempts", recent),
			zap.Duration("window", g.cfg.Window))
		return true
	}
	return false
}

// RecordAttempt appends an attempt to the class's log, trims it to the
// most-recent cap, and persists the log.
func (g *Guard) RecordAttempt(class, target string, x, y int, success bool) (Attempt, error) {
	attempt := Attempt{
		ID:           uuid.NewString(),
		ActionTarget: target,
		Coordinates:  [2]int{x, y},
		Success:      success,
		Timestamp:    g.now().UTC(),
	}

	entries := append(g.entries[class], attempt)
	if limit := g.cfg.AttemptLogCap; limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	g.entries[class] = entries

	if g.path != "" {
		if err := g.saveLog(); err != nil {
			return attempt, err
		}
	}
	return attempt, nil
}

// Attempts returns the logged attempts for a class, oldest first.
func (g *Guard) Attempts(class string) []Attempt {
	out := make([]Attempt, len(g.entries[class]))
	copy(out, g.entries[class])
	return out
}

// VerifyEffect decides whether an attempt counted as successful by comparing
// the screen before and after. With no comparator configured the guard
// degrades to the wait-then-assume-success fallback when it is enabled;
// the fallback optimistically reports success without any evidence, so it
// is disabled unless explicitly configured.
func (g *Guard) VerifyEffect(ctx context.Context, before, after schemas.ImageRef) (bool, error) {
	if g.comparator == nil {
		if g.cfg.AssumeSuccessAfter <= 0 {
			return false, ErrVerificationUnavailable
		}
		g.log.Warn("No effect comparator available, waiting then assuming success",
			zap.Duration("wait", g.cfg.AssumeSuccessAfter))
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(g.cfg.AssumeSuccessAfter):
			return true, nil
		}
	}

	ratio, err := g.comparator.Compare(ctx, before, after)
	if err != nil {
		return false, fmt.Errorf("comparing screens: %w", err)
	}
	changed := ratio >= g.cfg.PixelDiffThreshold
	g.log.Debug("Effect verified",
		zap.Float64("diff_ratio", ratio),
		zap.Float64("threshold", g.cfg.PixelDiffThreshold),
		zap.Bool("changed", changed))
	return changed, nil
}

// -- attempt log persistence --
// The sidecar uses the same write-new-then-rename discipline as the
// document store.

func (g *Guard) loadLog() error {
	data, err := os.ReadFile(g.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading attempt log: %w", err)
	}
	if err := json.Unmarshal(data, &g.entries); err != nil {
		// A broken sidecar only loses retry history; start over loudly.
		g.log.Warn("Attempt log is malformed, starting fresh",
			zap.String("path", g.path), zap.Error(err))
		g.entries = make(map[string][]Attempt)
	}
	return nil
}

func (g *Guard) saveLog() error {
	data, err := json.MarshalIndent(g.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling attempt log: %w", err)
	}

	dir := filepath.Dir(g.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(g.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp attempt log: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing attempt log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing attempt log: %w", err)
	}
	if err := os.Rename(tmpName, g.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing attempt log: %w", err)
	}
	return nil
}
