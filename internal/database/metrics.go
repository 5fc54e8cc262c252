package database

import (
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// SaveMetric upserts a single counter value.
func SaveMetric(metricName string, value float64) error {
	query := `
	INSERT OR REPLACE INTO metrics (metric_name, metric_value)
	VALUES (?, ?);`
	if _, err := DB.Exec(query, metricName, value); err != nil {
		return fmt.Errorf("failed to save metric %s: %w", metricName, err)
	}
	return nil
}

// GetMetric returns the persisted value for metricName, or 0 when the metric
// has never been saved.
func GetMetric(metricName string) (float64, error) {
	var value float64
	query := `SELECT metric_value FROM metrics WHERE metric_name = ?;`
	err := DB.QueryRow(query, metricName).Scan(&value)
	if err == sql.ErrNoRows {
		log.Debugf("metric %s not found, defaulting to 0", metricName)
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to get metric %s: %w", metricName, err)
	}
	return value, nil
}
