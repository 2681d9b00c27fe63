package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"focusflow/backend/internal/model"
)

// HistoryRepository stores finished Pomodoro phases and stopwatch runs.
type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) InsertPhaseRecord(ctx context.Context, record *model.PhaseRecord) error {
	if !model.IsValidPhase(record.Phase) || !model.IsValidPhase(record.NextPhase) {
		return fmt.Errorf("insert phase record: invalid phase %q -> %q", record.Phase, record.NextPhase)
	}

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO phase_records (
			id, user_id, phase, next_phase, planned_seconds, actual_seconds,
			outcome, ended_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.UserID,
		record.Phase,
		record.NextPhase,
		record.PlannedSeconds,
		record.ActualSeconds,
		record.Outcome,
		formatTime(record.EndedAt),
		formatTime(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert phase record: %w", err)
	}
	return nil
}

func (r *HistoryRepository) ListPhaseRecords(ctx context.Context, userID string, limit int) ([]model.PhaseRecord, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, user_id, phase, next_phase, planned_seconds, actual_seconds,
		        outcome, ended_at, created_at
		 FROM phase_records
		 WHERE user_id = ?
		 ORDER BY ended_at DESC, rowid DESC
		 LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list phase records: %w", err)
	}
	defer rows.Close()

	records := make([]model.PhaseRecord, 0, limit)
	for rows.Next() {
		record, scanErr := scanPhaseRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phase records: %w", err)
	}
	return records, nil
}

// SummarizeRange aggregates work phases that ended in [from, to).
func (r *HistoryRepository) SummarizeRange(ctx context.Context, userID string, from, to time.Time) (*model.DailySummary, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN phase = 'work' THEN actual_seconds ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN phase = 'work' AND outcome = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN phase = 'work' AND outcome = 'skipped' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN next_phase = 'long_break' THEN 1 ELSE 0 END), 0)
		 FROM phase_records
		 WHERE user_id = ? AND ended_at >= ? AND ended_at < ?`,
		userID,
		formatTime(from),
		formatTime(to),
	)

	summary := model.DailySummary{Day: from.Format("2006-01-02")}
	if err := row.Scan(
		&summary.FocusSeconds,
		&summary.CompletedWork,
		&summary.SkippedWork,
		&summary.CompletedCycles,
	); err != nil {
		return nil, fmt.Errorf("summarize phase records: %w", err)
	}

	if total := summary.CompletedWork + summary.SkippedWork; total > 0 {
		summary.CompletionRate = float64(summary.CompletedWork) / float64(total)
	}
	return &summary, nil
}

func (r *HistoryRepository) InsertTimeEntry(ctx context.Context, entry *model.TimeEntry) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO time_entries (
			id, user_id, project, description, elapsed_seconds, manual, started_at, ended_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.Project,
		entry.Description,
		entry.ElapsedSeconds,
		entry.Manual,
		formatTime(entry.StartedAt),
		formatTime(entry.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("insert time entry: %w", err)
	}
	return nil
}

func (r *HistoryRepository) ListTimeEntries(ctx context.Context, userID string, limit int) ([]model.TimeEntry, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, user_id, project, description, elapsed_seconds, manual, started_at, ended_at
		 FROM time_entries
		 WHERE user_id = ?
		 ORDER BY ended_at DESC, rowid DESC
		 LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.TimeEntry, 0, limit)
	for rows.Next() {
		entry, scanErr := scanTimeEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time entries: %w", err)
	}
	return entries, nil
}

func scanPhaseRecord(s scanner) (*model.PhaseRecord, error) {
	record := model.PhaseRecord{}
	var endedAt string
	var createdAt string
	err := s.Scan(
		&record.ID,
		&record.UserID,
		&record.Phase,
		&record.NextPhase,
		&record.PlannedSeconds,
		&record.ActualSeconds,
		&record.Outcome,
		&endedAt,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan phase record: %w", err)
	}

	parsedEndedAt, err := parseTime(endedAt)
	if err != nil {
		return nil, fmt.Errorf("parse phase record ended_at: %w", err)
	}
	record.EndedAt = parsedEndedAt

	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse phase record created_at: %w", err)
	}
	record.CreatedAt = parsedCreatedAt

	return &record, nil
}

func scanTimeEntry(s scanner) (*model.TimeEntry, error) {
	entry := model.TimeEntry{}
	var startedAt string
	var endedAt string
	if err := s.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Project,
		&entry.Description,
		&entry.ElapsedSeconds,
		&entry.Manual,
		&startedAt,
		&endedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan time entry: %w", err)
	}

	parsedStartedAt, err := parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse time entry started_at: %w", err)
	}
	entry.StartedAt = parsedStartedAt

	parsedEndedAt, err := parseTime(endedAt)
	if err != nil {
		return nil, fmt.Errorf("parse time entry ended_at: %w", err)
	}
	entry.EndedAt = parsedEndedAt

	return &entry, nil
}
