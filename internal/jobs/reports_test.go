package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wattflow/backend/internal/config"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/db/repository"
	"github.com/wattflow/backend/internal/testutil"
	"gorm.io/gorm"
)

func TestPreviousMonthBounds(t *testing.T) {
	start, end := previousMonth(time.Date(2024, 8, 10, 15, 30, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), end)

	// Year rollover
	start, end = previousMonth(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), end)
}

type fakeReportPublisher struct {
	reports []*models.Report
}

func (f *fakeReportPublisher) PublishReportGenerated(report *models.Report) {
	f.reports = append(f.reports, report)
}

func newSchedulerFixture(t *testing.T) (*ReportScheduler, *repository.Factory, *gorm.DB, *fakeMail) {
	t.Helper()
	gdb := testutil.NewTestDB(t)
	repos := repository.NewFactory(gdb, testutil.NewLogger())
	mail := &fakeMail{}
	scheduler := NewReportScheduler(repos, mail, &fakeReportPublisher{},
		&config.ReportsConfig{Enabled: true, IntervalHours: 24}, time.UTC, testutil.NewLogger())
	return scheduler, repos, gdb, mail
}

func TestReportSchedulerRunOnce(t *testing.T) {
	scheduler, repos, gdb, mail := newSchedulerFixture(t)
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.25)
	device := testutil.SeedDevice(t, gdb, sub.ID, "meter-01")
	testutil.SeedUser(t, gdb, "manager@acme.test", models.RoleManager, &sub.ID)
	testutil.SeedUser(t, gdb, "viewer@acme.test", models.RoleViewer, &sub.ID)

	// Baseline before July plus readings inside July
	require.NoError(t, repos.Telemetry().Append(ctx, []models.TelemetryPoint{
		{Time: time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC), SubscriptionID: sub.ID, DeviceID: device.ID, Metric: "e", Value: 100},
		{Time: time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC), SubscriptionID: sub.ID, DeviceID: device.ID, Metric: "e", Value: 130},
		{Time: time.Date(2024, 7, 28, 0, 0, 0, 0, time.UTC), SubscriptionID: sub.ID, DeviceID: device.ID, Metric: "e", Value: 150},
	}))

	now := time.Date(2024, 8, 10, 6, 0, 0, 0, time.UTC)
	scheduler.RunOnce(ctx, now)

	reports, err := repos.Report().ListBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	report := reports[0]
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), report.PeriodStart.UTC())
	assert.Equal(t, 50.0, report.TotalConsumed)
	assert.Equal(t, 12.5, report.TotalCost)
	assert.Equal(t, "EUR", report.Currency)
	require.Len(t, report.Items, 1)
	assert.Equal(t, device.ID, report.Items[0].DeviceID)
	assert.Equal(t, 50.0, report.Items[0].Consumed)

	// Only members who manage devices are notified
	require.Len(t, mail.jobs, 1)
	assert.Equal(t, MailTemplateMonthlyReport, mail.jobs[0].Template)
	assert.Equal(t, []string{"manager@acme.test"}, mail.jobs[0].To)

	published := scheduler.publisher.(*fakeReportPublisher).reports
	require.Len(t, published, 1)
	assert.Equal(t, sub.ID, published[0].SubscriptionID)
}

func TestReportSchedulerRunOnceIsIdempotent(t *testing.T) {
	scheduler, repos, gdb, mail := newSchedulerFixture(t)
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.25)
	testutil.SeedDevice(t, gdb, sub.ID, "meter-01")

	now := time.Date(2024, 8, 10, 6, 0, 0, 0, time.UTC)
	scheduler.RunOnce(ctx, now)
	scheduler.RunOnce(ctx, now)

	reports, err := repos.Report().ListBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
	assert.Empty(t, mail.jobs, "no managers, so no mail")
}

func TestReportSchedulerNoBaselineDefaultsToZero(t *testing.T) {
	scheduler, repos, gdb, _ := newSchedulerFixture(t)
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.40)
	device := testutil.SeedDevice(t, gdb, sub.ID, "meter-01")

	// First-ever reading lands inside the period: consumed = last - 0
	require.NoError(t, repos.Telemetry().Append(ctx, []models.TelemetryPoint{
		{Time: time.Date(2024, 7, 20, 0, 0, 0, 0, time.UTC), SubscriptionID: sub.ID, DeviceID: device.ID, Metric: "e", Value: 80},
	}))

	scheduler.RunOnce(ctx, time.Date(2024, 8, 1, 1, 0, 0, 0, time.UTC))

	reports, err := repos.Report().ListBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 80.0, reports[0].TotalConsumed)
	assert.Equal(t, 32.0, reports[0].TotalCost)
}
