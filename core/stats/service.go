package stats

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
)

const (
	popularCoursesLimit = 5
	recentUsersLimit    = 5
	monthsBack          = 6
)

type (
	// Repository reads aggregates for the admin dashboard.
	// Progress figures always come from the stored enrollment progress.
	Repository interface {
		GetTotals(ctx context.Context, exec ...core.DBExecutor) (Totals, error)
		QueryPopularCourses(ctx context.Context, limit int, exec ...core.DBExecutor) ([]PopularCourse, error)
		QueryRecentUsers(ctx context.Context, limit int, exec ...core.DBExecutor) ([]RecentUser, error)
		QueryEnrollmentDates(ctx context.Context, since time.Time, exec ...core.DBExecutor) ([]time.Time, error)
		QueryEnrollmentDetails(ctx context.Context, exec ...core.DBExecutor) ([]EnrollmentDetail, error)
	}

	Service interface {
		Overview(ctx context.Context) (Overview, error)
		EnrollmentReport(ctx context.Context) (EnrollmentReport, error)
	}

	service struct {
		repo    Repository
		nowFunc func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo, nowFunc: time.Now}
}

func (svc *service) Overview(ctx context.Context) (Overview, error) {
	totals, err := svc.repo.GetTotals(ctx)
	if err != nil {
		return Overview{}, errors.Wrap(err, "getting totals")
	}
	popular, err := svc.repo.QueryPopularCourses(ctx, popularCoursesLimit)
	if err != nil {
		return Overview{}, errors.Wrap(err, "querying popular courses")
	}
	recent, err := svc.repo.QueryRecentUsers(ctx, recentUsersLimit)
	if err != nil {
		return Overview{}, errors.Wrap(err, "querying recent users")
	}

	months := lastMonths(svc.nowFunc().UTC(), monthsBack)
	dates, err := svc.repo.QueryEnrollmentDates(ctx, months[0])
	if err != nil {
		return Overview{}, errors.Wrap(err, "querying enrollment dates")
	}

	ov := Overview{
		Courses:            totals.Courses,
		Users:              totals.Users,
		Enrollments:        totals.Enrollments,
		PopularCourses:     popular,
		RecentUsers:        recent,
		MonthlyEnrollments: countByMonth(months, dates),
	}
	if totals.Enrollments > 0 {
		ov.CompletionRate = round2(100 * float64(totals.CompletedEnrollments) / float64(totals.Enrollments))
	}
	if totals.Courses > 0 {
		ov.AvgStudentsPerCourse = round2(float64(totals.Enrollments) / float64(totals.Courses))
	}
	if ov.PopularCourses == nil {
		ov.PopularCourses = []PopularCourse{}
	}
	if ov.RecentUsers == nil {
		ov.RecentUsers = []RecentUser{}
	}
	return ov, nil
}

func (svc *service) EnrollmentReport(ctx context.Context) (EnrollmentReport, error) {
	details, err := svc.repo.QueryEnrollmentDetails(ctx)
	if err != nil {
		return EnrollmentReport{}, errors.Wrap(err, "querying enrollment details")
	}
	if details == nil {
		details = []EnrollmentDetail{}
	}
	return EnrollmentReport{Enrollments: details, Summary: summarize(details)}, nil
}

func summarize(details []EnrollmentDetail) EnrollmentSummary {
	sum := EnrollmentSummary{TotalEnrollments: len(details)}
	if len(details) == 0 {
		return sum
	}

	students := make(map[int]struct{}, len(details))
	var progress int
	for _, d := range details {
		students[d.UserID] = struct{}{}
		progress += d.Progress
		if d.Completed {
			sum.CompletedCourses++
		}
	}
	sum.TotalStudents = len(students)
	sum.AvgProgress = round2(float64(progress) / float64(len(details)))
	return sum
}

// lastMonths returns the first instant of the n months ending with the month of now, oldest first.
func lastMonths(now time.Time, n int) []time.Time {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	months := make([]time.Time, n)
	for i := 0; i < n; i++ {
		months[i] = first.AddDate(0, i-n+1, 0)
	}
	return months
}

func countByMonth(months []time.Time, dates []time.Time) []MonthlyCount {
	counts := make([]MonthlyCount, len(months))
	idx := make(map[string]int, len(months))
	for i, m := range months {
		key := m.Format("2006-01")
		counts[i] = MonthlyCount{Month: key}
		idx[key] = i
	}
	for _, d := range dates {
		if i, ok := idx[d.UTC().Format("2006-01")]; ok {
			counts[i].Total++
		}
	}
	return counts
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
