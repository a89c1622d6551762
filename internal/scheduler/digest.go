package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/changeboard/internal/models"
	"github.com/zulandar/changeboard/internal/notify"
	"gorm.io/gorm"
)

// KindDigest is the notify.Event kind of the daily digest.
const KindDigest = "daily_digest"

// Digest summarises BCR activity over a period.
type Digest struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Submitted   int
	Approved    int
	Rejected    int
	Implemented int
	Breaches    int
	Open        int
}

// Empty reports whether nothing happened during the period.
func (d *Digest) Empty() bool {
	return d.Submitted == 0 && d.Approved == 0 && d.Rejected == 0 && d.Implemented == 0 && d.Breaches == 0
}

// BuildDigest counts activity in [since, until).
func BuildDigest(ctx context.Context, db *gorm.DB, since, until time.Time) (*Digest, error) {
	d := &Digest{PeriodStart: since, PeriodEnd: until}
	db = db.WithContext(ctx)

	counts := []struct {
		dst   *int
		model interface{}
		where string
		args  []interface{}
	}{
		{&d.Submitted, &models.Bcr{}, "created_at >= ? AND created_at < ?", []interface{}{since, until}},
		{&d.Approved, &models.Bcr{}, "decision_at >= ? AND decision_at < ? AND status <> ?", []interface{}{since, until, models.StatusRejected}},
		{&d.Rejected, &models.Bcr{}, "decision_at >= ? AND decision_at < ? AND status = ?", []interface{}{since, until, models.StatusRejected}},
		{&d.Implemented, &models.Bcr{}, "implementation_date >= ? AND implementation_date < ?", []interface{}{since, until}},
		{&d.Breaches, &models.SlaAlert{}, "created_at >= ? AND created_at < ?", []interface{}{since, until}},
		{&d.Open, &models.Bcr{}, "status NOT IN ?", []interface{}{[]string{models.StatusRejected, models.StatusClosed, models.StatusWithdrawn}}},
	}
	for _, c := range counts {
		var n int64
		if err := db.Model(c.model).Where(c.where, c.args...).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("scheduler: digest: %w", err)
		}
		*c.dst = int(n)
	}
	return d, nil
}

// FormatDigest renders d as a chat event.
func FormatDigest(d *Digest, baseURL string) notify.Event {
	lines := []string{
		fmt.Sprintf("Period: %s to %s", d.PeriodStart.Format("Jan 2 15:04"), d.PeriodEnd.Format("Jan 2 15:04")),
		fmt.Sprintf("%d submitted, %d approved, %d rejected, %d implemented",
			d.Submitted, d.Approved, d.Rejected, d.Implemented),
	}
	severity := notify.SeverityInfo
	if d.Breaches > 0 {
		lines = append(lines, fmt.Sprintf("%d new SLA breach(es)", d.Breaches))
		severity = notify.SeverityWarning
	}
	lines = append(lines, fmt.Sprintf("%d open", d.Open))

	return notify.Event{
		Kind:     KindDigest,
		Title:    "Daily Digest",
		Summary:  strings.Join(lines, "\n"),
		Severity: severity,
		URL:      strings.TrimRight(baseURL, "/"),
		Fields: []notify.Field{
			{Name: "Submitted", Value: fmt.Sprint(d.Submitted), Short: true},
			{Name: "Approved", Value: fmt.Sprint(d.Approved), Short: true},
			{Name: "Implemented", Value: fmt.Sprint(d.Implemented), Short: true},
			{Name: "Open", Value: fmt.Sprint(d.Open), Short: true},
		},
	}
}

// SendDigest builds the digest for the 24 hours before now and delivers it.
// A quiet day sends nothing. It reports whether a digest was sent.
func SendDigest(ctx context.Context, db *gorm.DB, n notify.Notifier, baseURL string, now time.Time) (bool, error) {
	d, err := BuildDigest(ctx, db, now.Add(-24*time.Hour), now)
	if err != nil {
		return false, err
	}
	if d.Empty() {
		return false, nil
	}
	if err := n.Notify(ctx, FormatDigest(d, baseURL)); err != nil {
		return false, fmt.Errorf("scheduler: send digest: %w", err)
	}
	return true, nil
}
