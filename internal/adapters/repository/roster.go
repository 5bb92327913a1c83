package repository

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/umeed-health/asha-service/internal/core/domain"
)

// DecodeRoster reads a JSON array of follow-up rows with YYYY-MM-DD dates,
// the same shape the row API serves
func DecodeRoster(r io.Reader) ([]*domain.FollowUp, error) {
	var rows []followUpRow
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode roster: %w", err)
	}
	items := make([]*domain.FollowUp, 0, len(rows))
	for i, row := range rows {
		f, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("roster entry %d: %w", i, err)
		}
		items = append(items, f)
	}
	return items, nil
}
