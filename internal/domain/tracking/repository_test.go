package tracking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ouredu/request-tracker/internal/domain/tracking"
	"github.com/ouredu/request-tracker/internal/infrastructure/persistence/postgres/connection"
	"github.com/ouredu/request-tracker/internal/infrastructure/persistence/postgres/migrations"
	"github.com/ouredu/request-tracker/pkg/config"
	"github.com/ouredu/request-tracker/pkg/logger"
)

func setupRepo(t *testing.T, dedup bool) tracking.Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	// Each sqlite connection gets its own :memory: database; pin the pool
	// to one connection so every caller sees the same store.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	wrapped := connection.FromGorm(db)
	cfg := config.TrackingConfig{Detail: config.DetailConfig{Dedup: dedup}}
	require.NoError(t, migrations.AutoMigrate(wrapped, cfg, logger.NewLogger().Logger))

	return tracking.NewRepository(wrapped)
}

func summaryEvent(userID, roleID uuid.UUID, at time.Time) tracking.SummaryEvent {
	return tracking.SummaryEvent{
		UserID:    userID,
		RoleID:    roleID,
		RoleName:  "teacher",
		Date:      tracking.DateOf(at),
		Timestamp: at,
		IPAddress: "10.0.0.7",
		UserAgent: "test-agent",
		Device:    tracking.DeviceInfo{DeviceType: "desktop", Browser: "chrome", Platform: "linux"},
	}
}

func detailEvent(summaryID, userID, roleID uuid.UUID, endpoint string, at time.Time) tracking.DetailEvent {
	return tracking.DetailEvent{
		SummaryID: summaryID,
		UserID:    userID,
		RoleID:    roleID,
		RoleName:  "teacher",
		Date:      tracking.DateOf(at),
		Timestamp: at,
		Method:    "GET",
		Endpoint:  endpoint,
		Classification: tracking.Classification{
			Module:    "students",
			Submodule: "grades",
			Label:     "Grades in Students",
		},
	}
}

func TestUpsertSummaryAggregates(t *testing.T) {
	repo := setupRepo(t, true)
	ctx := context.Background()

	userID := uuid.New()
	roleID := uuid.New()
	base := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	// Repeated events for the same identity and day collapse into one row.
	for i := 0; i < 5; i++ {
		_, err := repo.UpsertSummary(ctx, summaryEvent(userID, roleID, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	summary, err := repo.FindSummary(ctx, userID, roleID, tracking.DateOf(base))
	require.NoError(t, err)
	assert.Equal(t, int64(5), summary.AccessCount)
	assert.Equal(t, base, summary.FirstAccess.UTC())
	assert.Equal(t, base.Add(4*time.Minute), summary.LastAccess.UTC())
	assert.Equal(t, "desktop", summary.DeviceType)
}

func TestUpsertSummaryConcurrent(t *testing.T) {
	repo := setupRepo(t, true)
	ctx := context.Background()

	userID := uuid.New()
	roleID := uuid.New()
	base := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	const n = 20
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.UpsertSummary(ctx, summaryEvent(userID, roleID, base.Add(time.Duration(i)*time.Second)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// N concurrent writers collapse into exactly one row with the full count.
	summary, err := repo.FindSummary(ctx, userID, roleID, tracking.DateOf(base))
	require.NoError(t, err)
	assert.Equal(t, int64(n), summary.AccessCount)
	assert.Equal(t, base, summary.FirstAccess.UTC())
	assert.Equal(t, base.Add((n-1)*time.Second), summary.LastAccess.UTC())

	countS, _, err := repo.CountOlderThan(ctx, tracking.DateOf(base.AddDate(0, 0, 1)), tracking.DateOf(base))
	require.NoError(t, err)
	assert.Equal(t, int64(1), countS)
}

func TestUpsertSummaryFirstAccessImmutable(t *testing.T) {
	repo := setupRepo(t, true)
	ctx := context.Background()

	userID := uuid.New()
	roleID := uuid.New()
	first := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	created, err := repo.UpsertSummary(ctx, summaryEvent(userID, roleID, first))
	require.NoError(t, err)

	// A later event must not touch first_access or the creation context.
	later := summaryEvent(userID, roleID, first.Add(2*time.Hour))
	later.IPAddress = "192.168.1.1"
	later.Device = tracking.DeviceInfo{DeviceType: "mobile", Browser: "safari", Platform: "ios"}

	updated, err := repo.UpsertSummary(ctx, later)
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, first, updated.FirstAccess.UTC())
	assert.Equal(t, first.Add(2*time.Hour), updated.LastAccess.UTC())
	assert.Equal(t, "10.0.0.7", updated.IPAddress)
	assert.Equal(t, "desktop", updated.DeviceType)
}

func TestUpsertSummaryOutOfOrderLastAccess(t *testing.T) {
	repo := setupRepo(t, true)
	ctx := context.Background()

	userID := uuid.New()
	roleID := uuid.New()
	late := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)

	_, err := repo.UpsertSummary(ctx, summaryEvent(userID, roleID, late))
	require.NoError(t, err)

	// An earlier event arriving afterwards must not move last_access back.
	updated, err := repo.UpsertSummary(ctx, summaryEvent(userID, roleID, late.Add(-time.Hour)))
	require.NoError(t, err)

	assert.Equal(t, late, updated.LastAccess.UTC())
	assert.Equal(t, int64(2), updated.AccessCount)
}

func TestUpsertSummaryIdentityBoundaries(t *testing.T) {
	repo := setupRepo(t, true)
	ctx := context.Background()

	userID := uuid.New()
	teacher := uuid.New()
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	_, err := repo.UpsertSummary(ctx, summaryEvent(userID, teacher, at))
	require.NoError(t, err)
	_, err = repo.UpsertSummary(ctx, summaryEvent(userID, tracking.NoRole, at))
	require.NoError(t, err)
	_, err = repo.UpsertSummary(ctx, summaryEvent(userID, teacher, at.AddDate(0, 0, 1)))
	require.NoError(t, err)

	s1, err := repo.FindSummary(ctx, userID, teacher, tracking.DateOf(at))
	require.NoError(t, err)
	s2, err := repo.FindSummary(ctx, userID, tracking.NoRole, tracking.DateOf(at))
	require.NoError(t, err)

	assert.NotEqual(t, s1.ID, s2.ID)
	assert.Equal(t, int64(1), s1.AccessCount)
	assert.Equal(t, int64(1), s2.AccessCount)
}

func TestUpsertDetailDedup(t *testing.T) {
	repo := setupRepo(t, true)
	ctx := context.Background()

	userID := uuid.New()
	roleID := uuid.New()
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	summary, err := repo.UpsertSummary(ctx, summaryEvent(userID, roleID, at))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := repo.UpsertDetail(ctx, detailEvent(summary.ID, userID, roleID, "api/v1/students/grades", at.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	_, err = repo.UpsertDetail(ctx, detailEvent(summary.ID, userID, roleID, "api/v1/students/attendance", at))
	require.NoError(t, err)

	details, err := repo.DetailsForUser(ctx, userID, &roleID, tracking.DateOf(at))
	require.NoError(t, err)
	require.Len(t, details, 2)

	byEndpoint := map[string]tracking.AccessDetail{}
	for _, d := range details {
		byEndpoint[d.Endpoint] = d
	}
	grades := byEndpoint["api/v1/students/grades"]
	assert.Equal(t, int64(3), grades.VisitCount)
	assert.Equal(t, at, grades.FirstVisit.UTC())
	assert.Equal(t, at.Add(2*time.Minute), grades.LastVisit.UTC())
	assert.Equal(t, int64(1), byEndpoint["api/v1/students/attendance"].VisitCount)
}

func TestAppendDetailMode(t *testing.T) {
	repo := setupRepo(t, false)
	ctx := context.Background()

	userID := uuid.New()
	roleID := uuid.New()
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	summary, err := repo.UpsertSummary(ctx, summaryEvent(userID, roleID, at))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := repo.AppendDetail(ctx, detailEvent(summary.ID, userID, roleID, "api/v1/students/grades", at.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	details, err := repo.DetailsForUser(ctx, userID, &roleID, tracking.DateOf(at))
	require.NoError(t, err)
	require.Len(t, details, 3)
	for _, d := range details {
		assert.Equal(t, int64(1), d.VisitCount)
	}
}

func TestManualTrackingInAppendMode(t *testing.T) {
	// Without the dedup index, detail writes must take the append path; the
	// conflict-target upsert would be rejected by the datastore.
	repo := setupRepo(t, false)
	cfg := config.TrackingConfig{
		Enabled: true,
		Detail:  config.DetailConfig{Mode: config.DetailModeAll, Dedup: false},
	}
	svc, err := tracking.NewService(repo, cfg, tracking.NewRegistry())
	require.NoError(t, err)

	ctx := context.Background()
	userID := uuid.New()
	roleID := uuid.New()
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		_, err := svc.TrackModuleAccess(ctx, userID, roleID, "teacher", "students", "grades", "", "", at.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	_, err = svc.TrackAccess(ctx, userID, roleID, "teacher", "reports", "", at)
	require.NoError(t, err)

	details, err := repo.DetailsForUser(ctx, userID, &roleID, tracking.DateOf(at))
	require.NoError(t, err)
	require.Len(t, details, 3)
	for _, d := range details {
		assert.Equal(t, int64(1), d.VisitCount)
	}

	summary, err := repo.FindSummary(ctx, userID, roleID, tracking.DateOf(at))
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.AccessCount)
}

func TestLastAndFirstAccess(t *testing.T) {
	repo := setupRepo(t, true)
	ctx := context.Background()

	userID := uuid.New()
	roleID := uuid.New()
	day1 := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 30, 17, 0, 0, 0, time.UTC)

	_, err := repo.UpsertSummary(ctx, summaryEvent(userID, roleID, day1))
	require.NoError(t, err)
	_, err = repo.UpsertSummary(ctx, summaryEvent(userID, roleID, day2))
	require.NoError(t, err)

	last, err := repo.LastAccess(ctx, userID, nil)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, day2, last.UTC())

	first, err := repo.FirstAccess(ctx, userID, nil)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, day1, first.UTC())

	// Unknown users yield nil, not an error.
	last, err = repo.LastAccess(ctx, uuid.New(), nil)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestModuleBreakdownAndVisitors(t *testing.T) {
	repo := setupRepo(t, true)
	ctx := context.Background()

	user1 := uuid.New()
	user2 := uuid.New()
	roleID := uuid.New()
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	s1, err := repo.UpsertSummary(ctx, summaryEvent(user1, roleID, at))
	require.NoError(t, err)
	s2, err := repo.UpsertSummary(ctx, summaryEvent(user2, roleID, at))
	require.NoError(t, err)

	// user1 visits two endpoints in students, one twice
	_, err = repo.UpsertDetail(ctx, detailEvent(s1.ID, user1, roleID, "api/v1/students/grades", at))
	require.NoError(t, err)
	_, err = repo.UpsertDetail(ctx, detailEvent(s1.ID, user1, roleID, "api/v1/students/grades", at.Add(time.Minute)))
	require.NoError(t, err)
	_, err = repo.UpsertDetail(ctx, detailEvent(s1.ID, user1, roleID, "api/v1/students/attendance", at))
	require.NoError(t, err)
	// user2 visits one
	_, err = repo.UpsertDetail(ctx, detailEvent(s2.ID, user2, roleID, "api/v1/students/grades", at))
	require.NoError(t, err)

	usage, err := repo.ModuleBreakdown(ctx, user1, &roleID, nil, nil)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, "students", usage[0].Module)
	assert.Equal(t, int64(2), usage[0].UniqueEndpoints)
	assert.Equal(t, int64(3), usage[0].TotalVisits)

	day := tracking.DateOf(at)
	visitors, err := repo.UsersByModule(ctx, "students", nil, nil, day, day, 10)
	require.NoError(t, err)
	require.Len(t, visitors, 2)
	assert.Equal(t, user1, visitors[0].UserID)
	assert.Equal(t, int64(3), visitors[0].TotalVisits)
	assert.Equal(t, user2, visitors[1].UserID)
}

func TestDeleteRangeCascades(t *testing.T) {
	repo := setupRepo(t, true)
	ctx := context.Background()

	userID := uuid.New()
	roleID := uuid.New()
	inRange := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	outOfRange := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	s1, err := repo.UpsertSummary(ctx, summaryEvent(userID, roleID, inRange))
	require.NoError(t, err)
	_, err = repo.UpsertDetail(ctx, detailEvent(s1.ID, userID, roleID, "api/v1/students/grades", inRange))
	require.NoError(t, err)

	s2, err := repo.UpsertSummary(ctx, summaryEvent(userID, roleID, outOfRange))
	require.NoError(t, err)
	_, err = repo.UpsertDetail(ctx, detailEvent(s2.ID, userID, roleID, "api/v1/students/grades", outOfRange))
	require.NoError(t, err)

	summaries, details, err := repo.DeleteRange(ctx, tracking.DateOf(inRange.AddDate(0, 0, -1)), tracking.DateOf(inRange.AddDate(0, 0, 1)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), summaries)
	assert.Equal(t, int64(1), details)

	// The out-of-range day survives intact.
	_, err = repo.FindSummary(ctx, userID, roleID, tracking.DateOf(outOfRange))
	require.NoError(t, err)
	remaining, err := repo.DetailsForUser(ctx, userID, &roleID, tracking.DateOf(outOfRange))
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	_, err = repo.FindSummary(ctx, userID, roleID, tracking.DateOf(inRange))
	assert.ErrorIs(t, err, tracking.ErrSummaryNotFound)
}

func TestDeleteOlderThanRetention(t *testing.T) {
	repo := setupRepo(t, true)
	ctx := context.Background()

	userID := uuid.New()
	roleID := uuid.New()
	old := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	mid := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	fresh := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{old, mid, fresh} {
		s, err := repo.UpsertSummary(ctx, summaryEvent(userID, roleID, at))
		require.NoError(t, err)
		_, err = repo.UpsertDetail(ctx, detailEvent(s.ID, userID, roleID, "api/v1/students/grades", at))
		require.NoError(t, err)
	}

	// Summaries older than June 1, details older than August 15.
	summaryCutoff := tracking.DateOf(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	detailCutoff := tracking.DateOf(time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))

	countS, countD, err := repo.CountOlderThan(ctx, summaryCutoff, detailCutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), countS)
	assert.Equal(t, int64(2), countD)

	summaries, details, err := repo.DeleteOlderThan(ctx, summaryCutoff, detailCutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summaries)
	assert.Equal(t, int64(2), details)

	// The freshest day keeps both rows.
	remaining, err := repo.DetailsForUser(ctx, userID, &roleID, tracking.DateOf(fresh))
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
	// The middle day keeps its summary but lost its detail.
	_, err = repo.FindSummary(ctx, userID, roleID, tracking.DateOf(mid))
	require.NoError(t, err)
	midDetails, err := repo.DetailsForUser(ctx, userID, &roleID, tracking.DateOf(mid))
	require.NoError(t, err)
	assert.Empty(t, midDetails)
}
