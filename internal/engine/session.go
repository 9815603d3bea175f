// Package engine runs one application's exploration session: capture,
// detect, merge, commit, schedule, activate, observe, persist, loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/api/schemas"
	"github.com/xkilldash9x/cartographer/internal/config"
	"github.com/xkilldash9x/cartographer/internal/graph"
	"github.com/xkilldash9x/cartographer/internal/guard"
	"github.com/xkilldash9x/cartographer/internal/merge"
	"github.com/xkilldash9x/cartographer/internal/scheduler"
	"github.com/xkilldash9x/cartographer/internal/store"
)

// maxConsecutiveFailures aborts the run when every recent cycle died in the
// same collaborator; one flaky activation should not, a dead browser should.
const maxConsecutiveFailures = 5

// Session drives the exploration of a single target application. Exactly one
// activation is in flight at any time, and both the graph and the schedule
// are reloaded from the persisted document before every decision so that
// out-of-band edits are always picked up.
type Session struct {
	cfg       *config.Config
	log       *zap.Logger
	store     store.DocumentStore
	capturer  schemas.Capturer
	detector  schemas.Detector
	activator schemas.Activator
	policy    schemas.SelectionPolicy // nil selects from config per reload
	merger    *merge.Merger
	guard     *guard.Guard
	appName   string
}

// NewSession wires a session together. policy may be nil, in which case the
// configured policy name decides; the guard may be nil when no corrective
// actions will be attempted.
func NewSession(
	cfg *config.Config,
	docStore store.DocumentStore,
	capturer schemas.Capturer,
	detector schemas.Detector,
	activator schemas.Activator,
	policy schemas.SelectionPolicy,
	gd *guard.Guard,
	logger *zap.Logger,
) (*Session, error) {
	if cfg.Explore.AppName == "" {
		return nil, fmt.Errorf("explore.app_name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		cfg:       cfg,
		log:       logger.With(zap.String("component", "session"), zap.String("app", cfg.Explore.AppName)),
		store:     docStore,
		capturer:  capturer,
		detector:  detector,
		activator: activator,
		policy:    policy,
		merger:    merge.New(cfg.Merge.VerticalTolerancePx, logger),
		guard:     gd,
		appName:   cfg.Explore.AppName,
	}, nil
}

// Bootstrap makes sure a document exists for the application: resuming an
// existing one is a no-op, otherwise the root screen is captured, analyzed
// and persisted.
func (s *Session) Bootstrap(ctx context.Context) error {
	exists, err := s.store.Exists(ctx, s.appName)
	if err != nil {
		return fmt.Errorf("checking for existing document: %w", err)
	}
	if exists {
		s.log.Info("Resuming existing exploration")
		return nil
	}

	s.log.Info("Starting fresh exploration")
	img, err := s.capture(ctx)
	if err != nil {
		return err
	}

	g := graph.New(s.appName, s.log)
	if _, err := g.AddRootScreen(img); err != nil {
		return err
	}
	if err := s.analyzeScreen(ctx, g, schemas.RootScreenID); err != nil {
		return err
	}
	return s.persist(ctx, g)
}

// Run drives the session until the pending set is empty, the iteration cap
// is hit, or the context is cancelled. Cancellation is honored between
// iterations only: an in-flight activation always runs to observation so no
// node is left in an ambiguous state.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Bootstrap(ctx); err != nil {
		return err
	}

	consecutiveFailures := 0
	for iteration := 1; ; iteration++ {
		if limit := s.cfg.Engine.MaxIterations; limit > 0 && iteration > limit {
			s.log.Info("Iteration cap reached, stopping", zap.Int("iterations", limit))
			return nil
		}
		select {
		case <-ctx.Done():
			s.log.Info("Session stopped between iterations")
			return ctx.Err()
		default:
		}

		done, err := s.Step(ctx)
		if err != nil {
			var collab *CollaboratorError
			if errors.As(err, &collab) {
				// The step is abandoned and the node stays pending; the
				// next cycle may retry it. A run of failures means the
				// collaborator itself is down.
				consecutiveFailures++
				if consecutiveFailures >= maxConsecutiveFailures {
					return fmt.Errorf("%d consecutive collaborator failures, last: %w", consecutiveFailures, err)
				}
				s.log.Error("Collaborator failure, abandoning step",
					zap.String("step", collab.Step), zap.Error(collab.Err))
				continue
			}
			return err
		}
		consecutiveFailures = 0
		if done {
			s.log.Info("Exploration complete: no pending nodes remain")
			return nil
		}
	}
}

// Step performs one reload-decide-activate-observe-persist cycle. done is
// true when the scheduler has nothing pending.
func (s *Session) Step(ctx context.Context) (done bool, err error) {
	g, sched, err := s.reload(ctx)
	if err != nil {
		return false, err
	}

	ref, ok := sched.SelectNext(s.policyFor(g))
	if !ok {
		return true, nil
	}

	node, err := g.NodeByRef(ref)
	if err != nil {
		return false, err
	}
	s.log.Info("Activating node",
		zap.String("node", ref.String()),
		zap.String("name", node.DisplayName))

	// An activation runs to completion even if the session is being
	// stopped; only its own timeout can cut it short.
	actCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.activationTimeout())
	result, actErr := s.activator.Activate(actCtx, ref, node)
	cancel()
	if actErr != nil {
		return false, collaboratorErr("activate", actErr)
	}

	if !result.Changed {
		if err := sched.RecordOutcome(ref, graph.Unchanged(), ""); err != nil {
			return false, err
		}
		return false, s.persist(ctx, g)
	}

	destImg, err := s.capture(ctx)
	if err != nil {
		// The observation is lost; leave the node pending for a retry.
		return false, err
	}

	destID := result.DestinationScreenID
	if destID == "" {
		destID = graph.DeriveScreenID(node.DisplayName)
	}
	isNew := !g.HasScreen(destID)

	if err := sched.RecordOutcome(ref, graph.ChangedTo(destID), destImg); err != nil {
		return false, err
	}
	if err := s.persist(ctx, g); err != nil {
		return false, err
	}

	if isNew {
		if err := s.analyzeScreen(ctx, g, destID); err != nil {
			// The transition is already committed; the destination simply
			// has no nodes yet.
			return false, err
		}
		if err := s.persist(ctx, g); err != nil {
			return false, err
		}
	}
	return false, nil
}

// SkipNode marks a pending node manually skipped, recording the operator's
// description of what the element is. The decision is terminal.
func (s *Session) SkipNode(ctx context.Context, ref schemas.NodeRef, description string) error {
	g, sched, err := s.reload(ctx)
	if err != nil {
		return err
	}
	if err := sched.RecordOutcome(ref, graph.ManualSkip(description), ""); err != nil {
		return err
	}
	return s.persist(ctx, g)
}

// DismissObstruction attempts one bounded corrective action, e.g. clicking
// a splash screen away. Success cannot be queried directly, so the guard
// compares captures from before and after and logs the attempt either way.
func (s *Session) DismissObstruction(ctx context.Context, class, target string, x, y int, action func(context.Context) error) error {
	if s.guard == nil {
		return fmt.Errorf("no retry guard configured")
	}
	if s.guard.ShouldBlock(class, time.Now()) {
		return fmt.Errorf("%s on %q: %w", class, target, guard.ErrLoopPrevented)
	}

	before, err := s.capture(ctx)
	if err != nil {
		return err
	}
	if err := action(ctx); err != nil {
		if _, logErr := s.guard.RecordAttempt(class, target, x, y, false); logErr != nil {
			s.log.Error("Failed to persist attempt log", zap.Error(logErr))
		}
		return collaboratorErr("corrective action", err)
	}
	after, err := s.capture(ctx)
	if err != nil {
		// The action already ran; an unverifiable attempt still burns
		// budget, otherwise a dead capturer allows unbounded retries.
		if _, logErr := s.guard.RecordAttempt(class, target, x, y, false); logErr != nil {
			s.log.Error("Failed to persist attempt log", zap.Error(logErr))
		}
		return err
	}

	success, verifyErr := s.guard.VerifyEffect(ctx, before, after)
	if verifyErr != nil {
		s.log.Warn("Could not verify corrective effect, counting as failed",
			zap.String("class", class), zap.Error(verifyErr))
		success = false
	}
	if _, err := s.guard.RecordAttempt(class, target, x, y, success); err != nil {
		return err
	}
	if !success {
		return fmt.Errorf("corrective action %s on %q had no observable effect", class, target)
	}
	return nil
}

// reload discards any in-memory view and rebuilds graph and projections
// from the persisted document.
func (s *Session) reload(ctx context.Context) (*graph.Graph, *scheduler.Scheduler, error) {
	doc, err := s.store.Load(ctx, s.appName)
	if err != nil {
		return nil, nil, err
	}
	g, err := graph.FromDocument(doc, s.log)
	if err != nil {
		return nil, nil, err
	}
	return g, scheduler.New(g, s.log), nil
}

// analyzeScreen detects and merges the elements of a screen whose image is
// already captured, committing them as pending nodes.
func (s *Session) analyzeScreen(ctx context.Context, g *graph.Graph, screenID string) error {
	screen, err := g.Screen(screenID)
	if err != nil {
		return err
	}

	start := time.Now()
	raw, err := s.detector.Detect(ctx, screen.ImageRef)
	if err != nil {
		return collaboratorErr("detect", err)
	}
	merged := s.merger.Merge(raw)

	refs, err := g.AddDetections(screenID, merged, time.Since(start))
	if err != nil {
		return err
	}
	s.log.Info("Screen analyzed",
		zap.String("screen", screenID),
		zap.Int("raw_elements", len(raw)),
		zap.Int("nodes", len(refs)))
	return nil
}

func (s *Session) capture(ctx context.Context) (schemas.ImageRef, error) {
	capCtx, cancel := context.WithTimeout(ctx, s.captureTimeout())
	defer cancel()
	img, err := s.capturer.Capture(capCtx)
	if err != nil {
		return "", collaboratorErr("capture", err)
	}
	return img, nil
}

func (s *Session) persist(ctx context.Context, g *graph.Graph) error {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout())
	defer cancel()
	if err := s.store.Save(saveCtx, g.Document()); err != nil {
		return fmt.Errorf("persisting document: %w", err)
	}
	return nil
}

func (s *Session) policyFor(g *graph.Graph) schemas.SelectionPolicy {
	if s.policy != nil {
		return s.policy
	}
	switch s.cfg.Explore.Policy {
	case "breadth":
		return &scheduler.BreadthFirstPolicy{Graph: g}
	default:
		return scheduler.FIFOPolicy{}
	}
}

func (s *Session) activationTimeout() time.Duration {
	if d := s.cfg.Engine.ActivationTimeout; d > 0 {
		return d
	}
	return 30 * time.Second
}

func (s *Session) captureTimeout() time.Duration {
	if d := s.cfg.Engine.CaptureTimeout; d > 0 {
		return d
	}
	return 30 * time.Second
}

func (s *Session) persistTimeout() time.Duration {
	if d := s.cfg.Engine.PersistTimeout; d > 0 {
		return d
	}
	return 10 * time.Second
}
