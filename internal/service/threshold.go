package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/aquatracking/aquatracking/internal/domain"
)

var alertNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("aquatracking.alerts"))

// SystemAlertID keys system alerts by (home, day, type): one alert per
// category per rollup, whatever the number of evaluations.
func SystemAlertID(homeID, date, alertType string) string {
	return uuid.NewSHA1(alertNamespace, []byte(homeID+"|"+date+"|"+alertType)).String()
}

// Evaluate compares the rollup total with its thresholds. A total over the
// limit yields one limit_exceeded alert; otherwise a total over the
// recommended value yields one above_recommended alert. TriggeredAt is left
// for the ledger to stamp.
func Evaluate(d *domain.DailyConsumption, home *domain.Home) []domain.Alert {
	label := d.HomeID
	if home != nil && home.Name != "" {
		label = home.Name
	}

	switch {
	case d.LimitLiters != nil && d.TotalLiters > *d.LimitLiters:
		return []domain.Alert{systemAlert(d, domain.AlertLimitExceeded, fmt.Sprintf(
			"%s used %.2f L on %s, %.2f L over the daily limit of %.2f L",
			label, d.TotalLiters, d.Date, d.TotalLiters-*d.LimitLiters, *d.LimitLiters))}
	case d.RecommendedLiters != nil && d.TotalLiters > *d.RecommendedLiters:
		return []domain.Alert{systemAlert(d, domain.AlertAboveRecommended, fmt.Sprintf(
			"%s used %.2f L on %s, %.2f L above the recommended %.2f L",
			label, d.TotalLiters, d.Date, d.TotalLiters-*d.RecommendedLiters, *d.RecommendedLiters))}
	}
	return nil
}

func systemAlert(d *domain.DailyConsumption, alertType, msg string) domain.Alert {
	a := domain.Alert{
		HomeID:  d.HomeID,
		Type:    alertType,
		Message: msg,
		Date:    d.Date,
		Source:  domain.AlertSourceSystem,
	}
	a.ID = SystemAlertID(d.HomeID, d.Date, alertType)
	return a
}
