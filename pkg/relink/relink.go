// Package relink copies matched assets to canonical names derived from each
// entity's natural key. Originals are never moved or deleted, and an
// existing canonical file is never overwritten.
package relink

import (
	"context"

	"github.com/agentstation/rostersync/pkg/assets"
	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/logging"
	"github.com/agentstation/rostersync/pkg/report"
	"github.com/agentstation/rostersync/pkg/resolver"
	"github.com/agentstation/rostersync/pkg/roster"
)

// Relinker writes canonical copies into a pool.
type Relinker struct {
	Pool     *assets.Pool
	Fallback string
	DryRun   bool
}

// New returns a relinker using the default fallback extension.
func New(pool *assets.Pool, dryRun bool) *Relinker {
	return &Relinker{Pool: pool, Fallback: constants.FallbackExtension, DryRun: dryRun}
}

// CanonicalName is the name a matched asset is linked under.
func (r *Relinker) CanonicalName(e roster.EntityRecord, m resolver.MatchResult) string {
	fallback := r.Fallback
	if fallback == "" {
		fallback = constants.FallbackExtension
	}
	return assets.CanonicalName(e.NaturalKey, m.MatchedAsset.RawName, fallback)
}

// Relink links one entity. Unmatched entities come back unchanged with ok
// false. On a copy failure the entity's AssetRef is left unset and the
// outcome is Failed; the error is returned for logging only.
func (r *Relinker) Relink(ctx context.Context, e roster.EntityRecord, m resolver.MatchResult) (out roster.EntityRecord, o report.Outcome, ok bool, err error) {
	if !m.Matched() {
		return e, report.Outcome{}, false, nil
	}

	canonical := r.CanonicalName(e, m)
	o = report.Outcome{Key: e.NaturalKey}
	ctx = logging.WithOperation(logging.WithAsset(logging.WithEntity(ctx, e.NaturalKey), m.MatchedAsset.RawName), "copy")
	logger := logging.FromContext(ctx).With().Str("canonical", canonical).Logger()

	switch {
	case canonical == m.MatchedAsset.RawName:
		e.AssetRef = canonical
		o.Action, o.Detail = report.Skipped, "already canonical"

	case r.DryRun:
		o.Action, o.Detail = report.Created, "would copy "+m.MatchedAsset.RawName+" to "+canonical

	default:
		err = r.Pool.CopyNoClobber(m.MatchedAsset.RawName, canonical)
		switch {
		case err == nil:
			e.AssetRef = canonical
			o.Action, o.Detail = report.Created, "copied from "+m.MatchedAsset.RawName
			logger.Debug().Msg("Copied asset to canonical name")
		case errors.IsAlreadyExists(err):
			err = nil
			e.AssetRef = canonical
			o.Action, o.Detail = report.Skipped, "canonical file exists"
		default:
			o = report.Fail(e.NaturalKey, err, constants.MaxDetailLength)
			logger.Warn().Err(err).Msg("Relink failed")
		}
	}
	return e, o, true, err
}

// RelinkAll relinks entities in order. entities and matches are parallel.
// Per-entity failures are isolated; only cancellation stops the batch.
func (r *Relinker) RelinkAll(ctx context.Context, entities []roster.EntityRecord, matches []resolver.MatchResult) ([]roster.EntityRecord, []report.Outcome, error) {
	out := make([]roster.EntityRecord, len(entities))
	copy(out, entities)
	outcomes := make([]report.Outcome, 0, len(matches))

	for i := range out {
		if err := ctx.Err(); err != nil {
			return out, outcomes, err
		}
		if i >= len(matches) {
			break
		}
		updated, o, ok, _ := r.Relink(ctx, out[i], matches[i])
		if !ok {
			continue
		}
		out[i] = updated
		outcomes = append(outcomes, o)
	}

	counts := report.Tally(outcomes)
	logging.FromContext(ctx).Info().
		Int("copied", counts[report.Created]).
		Int("skipped", counts[report.Skipped]).
		Int("failed", counts[report.Failed]).
		Bool("dry_run", r.DryRun).
		Msg("Relinked assets")
	return out, outcomes, nil
}
