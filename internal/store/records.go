package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/blok-blok-studio/leadscraper/internal/model"
)

// Records are persisted whole as JSON; the columns beside the document
// mirror the fields the store filters, matches and sorts on.
const (
	defaultListLimit = 100
	topN             = 10
)

type recordRow struct {
	ID             string
	BusinessName   string
	Phone          string
	Email          string
	Address        string
	City           string
	State          string
	Category       string
	QualityScore   *int
	IsEnriched     bool
	ScrapedAt      time.Time
	LastEnrichedAt *time.Time
	Data           []byte
}

// newRecordRow assigns an id and scrape time when missing and encodes rec.
func newRecordRow(rec model.Record) (recordRow, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.ScrapedAt.IsZero() {
		rec.ScrapedAt = time.Now().UTC()
	}
	return toRow(rec)
}

func toRow(rec model.Record) (recordRow, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return recordRow{}, eris.Wrapf(err, "store: marshal record %s", rec.ID)
	}
	return recordRow{
		ID:             rec.ID,
		BusinessName:   rec.BusinessName,
		Phone:          rec.Phone,
		Email:          strings.ToLower(rec.Email),
		Address:        rec.Address,
		City:           rec.City,
		State:          rec.State,
		Category:       rec.Category,
		QualityScore:   rec.QualityScore,
		IsEnriched:     rec.IsEnriched,
		ScrapedAt:      rec.ScrapedAt,
		LastEnrichedAt: rec.LastEnrichedAt,
		Data:           data,
	}, nil
}

func decodeRecord(data []byte) (model.Record, error) {
	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, eris.Wrap(err, "store: unmarshal record")
	}
	return rec, nil
}

// applyUpdate decodes a stored document, applies u and re-encodes it.
func applyUpdate(id string, data []byte, u model.FieldUpdate) (recordRow, error) {
	rec, err := decodeRecord(data)
	if err != nil {
		return recordRow{}, err
	}
	if _, err := rec.Apply(u); err != nil {
		return recordRow{}, eris.Wrapf(err, "store: apply update to %s", id)
	}
	return toRow(rec)
}

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
