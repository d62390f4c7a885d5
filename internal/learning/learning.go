// Package learning implements the Learning Store (§4.3): it persists
// resolutions the user confirmed for an (intent, missing-fields)
// ambiguity so the Decision Engine can apply them automatically next
// time, and tracks confidence in each pattern as it is reused.
package learning

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/deskagent/agent/internal/domain"
)

// initialConfidence is the confidence assigned to a freshly learned
// pattern, before any confirmed reuse.
const initialConfidence = 0.6

// confirmBoost is how much confidence grows on each confirmed reuse,
// clamped to 1.0.
const confirmBoost = 0.05

// recallThreshold is the minimum confidence at which a recalled
// pattern is applied automatically rather than merely suggested.
const recallThreshold = 0.5

// Store persists LearningPattern and GraphFixPattern rows in sqlite.
type Store struct {
	db *sqlx.DB
}

// New wraps an already-open sqlite handle (see
// internal/platform/database.Open) for pattern storage.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "sqlite")}
}

// patternRow is the sqlite row shape for learning_patterns.
type patternRow struct {
	PatternID     string         `db:"pattern_id"`
	Intent        string         `db:"intent"`
	MissingFields string         `db:"missing_fields"`
	Resolution    string         `db:"resolution"`
	Confidence    float64        `db:"confidence"`
	UsageCount    int            `db:"usage_count"`
	LastUsed      sql.NullString `db:"last_used"`
	Source        sql.NullString `db:"source"`
	CreatedAt     string         `db:"created_at"`
}

func missingKey(fields []string) string {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func (row patternRow) toDomain() (domain.LearningPattern, error) {
	var resolution map[string]string
	if err := json.Unmarshal([]byte(row.Resolution), &resolution); err != nil {
		return domain.LearningPattern{}, fmt.Errorf("decode resolution: %w", err)
	}

	created, err := time.Parse(time.RFC3339, row.CreatedAt)
	if err != nil {
		return domain.LearningPattern{}, fmt.Errorf("decode created_at: %w", err)
	}

	pattern := domain.LearningPattern{
		PatternID:     row.PatternID,
		Intent:        domain.Intent(row.Intent),
		MissingFields: strings.Split(row.MissingFields, ","),
		Resolution:    resolution,
		Confidence:    row.Confidence,
		UsageCount:    row.UsageCount,
		Source:        row.Source.String,
		CreatedAt:     created,
	}
	if row.LastUsed.Valid && row.LastUsed.String != "" {
		lastUsed, err := time.Parse(time.RFC3339, row.LastUsed.String)
		if err == nil {
			pattern.LastUsed = &lastUsed
		}
	}
	return pattern, nil
}

// Learn records a fresh pattern for (intent, missingFields) with the
// given resolution, replacing any existing pattern for the same key
// (§4.3: re-teaching overwrites rather than accumulates).
func (s *Store) Learn(ctx context.Context, patternID string, intent domain.Intent, missingFields []string, resolution map[string]string, source string) (domain.LearningPattern, error) {
	resolutionJSON, err := json.Marshal(resolution)
	if err != nil {
		return domain.LearningPattern{}, fmt.Errorf("encode resolution: %w", err)
	}
	if source == "" {
		source = "user_confirmation"
	}
	now := time.Now().UTC()

	pattern := domain.LearningPattern{
		PatternID:     patternID,
		Intent:        intent,
		MissingFields: append([]string(nil), missingFields...),
		Resolution:    resolution,
		Confidence:    initialConfidence,
		UsageCount:    1,
		LastUsed:      &now,
		Source:        source,
		CreatedAt:     now,
	}
	sort.Strings(pattern.MissingFields)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO learning_patterns (pattern_id, intent, missing_fields, resolution, confidence, usage_count, last_used, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(intent, missing_fields) DO UPDATE SET
			pattern_id = excluded.pattern_id,
			resolution = excluded.resolution,
			confidence = excluded.confidence,
			usage_count = excluded.usage_count,
			last_used = excluded.last_used,
			source = excluded.source
	`, pattern.PatternID, string(pattern.Intent), missingKey(pattern.MissingFields), string(resolutionJSON),
		pattern.Confidence, pattern.UsageCount, now.Format(time.RFC3339), pattern.Source, now.Format(time.RFC3339))
	if err != nil {
		return domain.LearningPattern{}, fmt.Errorf("save learning pattern: %w", err)
	}

	return pattern, nil
}

// Recall looks up the highest-confidence pattern learned for
// (intent, missingFields). ok is false if no pattern has been taught
// for that exact key.
func (s *Store) Recall(ctx context.Context, intent domain.Intent, missingFields []string) (domain.LearningPattern, bool, error) {
	var row patternRow
	err := s.db.GetContext(ctx, &row, `
		SELECT pattern_id, intent, missing_fields, resolution, confidence, usage_count, last_used, source, created_at
		FROM learning_patterns
		WHERE intent = ? AND missing_fields = ?
		ORDER BY confidence DESC, usage_count DESC
		LIMIT 1
	`, string(intent), missingKey(missingFields))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LearningPattern{}, false, nil
	}
	if err != nil {
		return domain.LearningPattern{}, false, fmt.Errorf("recall learning pattern: %w", err)
	}

	pattern, err := row.toDomain()
	if err != nil {
		return domain.LearningPattern{}, false, err
	}
	return pattern, true, nil
}

// ConfirmUsage bumps a pattern's confidence by confirmBoost (clamped
// to 1.0) and increments its usage count, recording that it was
// applied successfully.
func (s *Store) ConfirmUsage(ctx context.Context, patternID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE learning_patterns
		SET usage_count = usage_count + 1,
		    confidence = MIN(1.0, confidence + ?),
		    last_used = ?
		WHERE pattern_id = ?
	`, confirmBoost, time.Now().UTC().Format(time.RFC3339), patternID)
	if err != nil {
		return fmt.Errorf("confirm learning pattern usage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("confirm learning pattern usage: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("learning pattern %q not found", patternID)
	}
	return nil
}

// ApplyResult describes the outcome of applying a learned pattern to
// a command's blank fields.
type ApplyResult struct {
	Applied    bool
	PatternID  string
	Confidence float64
	Fields     map[string]bool // fields filled from the pattern
}

// ApplyToCommand fills cmd's blank Target/Loc/Destination fields from
// a recalled pattern whose confidence meets recallThreshold, tagging
// each filled field as inferred and recording the pattern used for a
// later ConfirmUsage call (§4.3).
func (s *Store) ApplyToCommand(ctx context.Context, cmd domain.Command) (domain.Command, ApplyResult, error) {
	missing := missingCommandFields(cmd)
	if len(missing) == 0 {
		return cmd, ApplyResult{}, nil
	}

	pattern, ok, err := s.Recall(ctx, cmd.Intent, missing)
	if err != nil {
		return cmd, ApplyResult{}, err
	}
	if !ok || pattern.Confidence < recallThreshold {
		return cmd, ApplyResult{}, nil
	}

	filled := make(map[string]bool)
	for _, field := range missing {
		value, ok := pattern.Resolution[field]
		if !ok || value == "" {
			continue
		}
		switch field {
		case "target":
			cmd.Target = value
		case "loc":
			cmd.Loc = value
		case "destination":
			cmd.Destination = value
		default:
			continue
		}
		cmd.MarkInferred(field)
		filled[field] = true
	}
	if len(filled) == 0 {
		return cmd, ApplyResult{}, nil
	}

	cmd.LearningPatternID = pattern.PatternID
	return cmd, ApplyResult{
		Applied:    true,
		PatternID:  pattern.PatternID,
		Confidence: pattern.Confidence,
		Fields:     filled,
	}, nil
}

// missingCommandFields reports which of target/loc, and destination for
// rename/copy/move, are still blank or the literal placeholder "?".
func missingCommandFields(cmd domain.Command) []string {
	var missing []string
	for _, field := range []string{"target", "loc", "destination"} {
		var value string
		switch field {
		case "target":
			value = cmd.Target
		case "loc":
			value = cmd.Loc
		case "destination":
			if cmd.Intent != domain.IntentRename && cmd.Intent != domain.IntentCopy && cmd.Intent != domain.IntentMove {
				continue
			}
			value = cmd.Destination
		}
		value = strings.TrimSpace(value)
		if value == "" || value == "?" {
			missing = append(missing, field)
		}
	}
	return missing
}

// Stats summarises everything the store has learned.
type Stats struct {
	TotalPatterns  int
	HighConfidence int
	TotalUsages    int
	Intents        []string
}

// Stats computes a snapshot across every learned pattern.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var rows []patternRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT pattern_id, intent, missing_fields, resolution, confidence, usage_count, last_used, source, created_at
		FROM learning_patterns
	`); err != nil {
		return Stats{}, fmt.Errorf("load learning stats: %w", err)
	}

	stats := Stats{}
	seen := make(map[string]bool)
	for _, row := range rows {
		stats.TotalPatterns++
		if row.Confidence >= 0.75 {
			stats.HighConfidence++
		}
		stats.TotalUsages += row.UsageCount
		if !seen[row.Intent] {
			seen[row.Intent] = true
			stats.Intents = append(stats.Intents, row.Intent)
		}
	}
	sort.Strings(stats.Intents)
	return stats, nil
}

// graphFixRow is the sqlite row shape for graph_fix_patterns.
type graphFixRow struct {
	ID            int64  `db:"id"`
	RuleName      string `db:"rule_name"`
	TriggerAction string `db:"trigger_action"`
	FixAction     string `db:"fix_action"`
	UsageCount    int    `db:"usage_count"`
	CreatedAt     string `db:"created_at"`
}

func (row graphFixRow) toDomain() (domain.GraphFixPattern, error) {
	created, err := time.Parse(time.RFC3339, row.CreatedAt)
	if err != nil {
		return domain.GraphFixPattern{}, fmt.Errorf("decode created_at: %w", err)
	}
	return domain.GraphFixPattern{
		ID:            row.ID,
		RuleName:      row.RuleName,
		TriggerAction: row.TriggerAction,
		FixAction:     row.FixAction,
		UsageCount:    row.UsageCount,
		CreatedAt:     created,
	}, nil
}

// LearnGraphFix records that ruleName was broken by triggerAction and
// repaired by fixAction, so the auto-repair stage (§4.8) can recognise
// and prioritise the same fix next time. If an identical (rule,
// trigger, fix) triple already exists its usage count is incremented
// instead of inserting a duplicate row.
func (s *Store) LearnGraphFix(ctx context.Context, ruleName, triggerAction, fixAction string) (domain.GraphFixPattern, error) {
	var existing graphFixRow
	err := s.db.GetContext(ctx, &existing, `
		SELECT id, rule_name, trigger_action, fix_action, usage_count, created_at
		FROM graph_fix_patterns
		WHERE rule_name = ? AND trigger_action = ? AND fix_action = ?
	`, ruleName, triggerAction, fixAction)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		now := time.Now().UTC().Format(time.RFC3339)
		result, execErr := s.db.ExecContext(ctx, `
			INSERT INTO graph_fix_patterns (rule_name, trigger_action, fix_action, usage_count, created_at)
			VALUES (?, ?, ?, 1, ?)
		`, ruleName, triggerAction, fixAction, now)
		if execErr != nil {
			return domain.GraphFixPattern{}, fmt.Errorf("save graph fix pattern: %w", execErr)
		}
		id, idErr := result.LastInsertId()
		if idErr != nil {
			return domain.GraphFixPattern{}, fmt.Errorf("save graph fix pattern: %w", idErr)
		}
		created, _ := time.Parse(time.RFC3339, now)
		return domain.GraphFixPattern{ID: id, RuleName: ruleName, TriggerAction: triggerAction, FixAction: fixAction, UsageCount: 1, CreatedAt: created}, nil
	case err != nil:
		return domain.GraphFixPattern{}, fmt.Errorf("lookup graph fix pattern: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE graph_fix_patterns SET usage_count = usage_count + 1 WHERE id = ?`, existing.ID); err != nil {
		return domain.GraphFixPattern{}, fmt.Errorf("bump graph fix pattern: %w", err)
	}
	existing.UsageCount++
	return existing.toDomain()
}

// GraphFixes returns every recorded graph-fix pattern, optionally
// filtered to one rule name.
func (s *Store) GraphFixes(ctx context.Context, ruleName string) ([]domain.GraphFixPattern, error) {
	var rows []graphFixRow
	var err error
	if ruleName == "" {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT id, rule_name, trigger_action, fix_action, usage_count, created_at
			FROM graph_fix_patterns ORDER BY usage_count DESC
		`)
	} else {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT id, rule_name, trigger_action, fix_action, usage_count, created_at
			FROM graph_fix_patterns WHERE rule_name = ? ORDER BY usage_count DESC
		`, ruleName)
	}
	if err != nil {
		return nil, fmt.Errorf("load graph fix patterns: %w", err)
	}

	out := make([]domain.GraphFixPattern, 0, len(rows))
	for _, row := range rows {
		pattern, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, pattern)
	}
	return out, nil
}
