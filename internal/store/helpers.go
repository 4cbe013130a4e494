package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"booksync/internal/config"
)

const runColumns = "id, title, book_source, subtitle_source, status, pipeline_json, quote_count, subtitle_count, match_count, result_ref, error_message, error_kind, created_at, updated_at, finished_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id             string
		title          sql.NullString
		bookSource     sql.NullString
		subtitleSource sql.NullString
		statusStr      string
		pipelineJSON   sql.NullString
		quoteCount     int
		subtitleCount  int
		matchCount     int
		resultRef      sql.NullString
		errorMessage   sql.NullString
		errorKind      sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
		finishedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&bookSource,
		&subtitleSource,
		&statusStr,
		&pipelineJSON,
		&quoteCount,
		&subtitleCount,
		&matchCount,
		&resultRef,
		&errorMessage,
		&errorKind,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:             id,
		Title:          title.String,
		BookSource:     bookSource.String,
		SubtitleSource: subtitleSource.String,
		Status:         Status(statusStr),
		QuoteCount:     quoteCount,
		SubtitleCount:  subtitleCount,
		MatchCount:     matchCount,
		ResultRef:      resultRef.String,
		ErrorMessage:   errorMessage.String,
		ErrorKind:      errorKind.String,
	}
	if pipelineJSON.Valid && pipelineJSON.String != "" {
		var p config.Pipeline
		if err := json.Unmarshal([]byte(pipelineJSON.String), &p); err == nil {
			run.Pipeline = p
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		run.UpdatedAt = updated
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
