package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core/course"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/enrollment"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/user"
	sqlxrepos "github.com/JAVIERMONRA/proyecto-cursos-online/storage/database/sqlx"
	testutil "github.com/JAVIERMONRA/proyecto-cursos-online/tests"
)

func TestEnrollmentRepository(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := sqlxrepos.NewEnrollmentRepository(db)
	courseRepo := sqlxrepos.NewCourseRepository(db)
	ctx := context.Background()

	usr := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "Ana", "ana@test.cd", "", user.RoleStudent)
	c := testutil.CreateCourse(t, courseRepo, "Go", course.StatusActive, 1, 1)
	other := testutil.CreateCourse(t, courseRepo, "Otro", course.StatusActive, 1)
	lessons := testutil.LessonIDs(c)

	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	e, err := repo.CreateEnrollment(ctx, enrollment.Enrollment{UserID: usr.ID, CourseID: c.ID, EnrolledAt: t0})
	require.NoError(t, err)
	require.NotZero(t, e.ID)

	_, err = repo.CreateEnrollment(ctx, enrollment.Enrollment{UserID: usr.ID, CourseID: c.ID, EnrolledAt: t0})
	assert.Equal(t, enrollment.ErrAlreadyEnrolled, err)

	t.Run("lock", func(t *testing.T) {
		tx, err := db.Beginx()
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()

		locked, err := repo.LockEnrollment(ctx, usr.ID, c.ID, tx)
		require.NoError(t, err)
		assert.Equal(t, e.ID, locked.ID)

		_, err = repo.LockEnrollment(ctx, usr.ID, other.ID, tx)
		assert.Equal(t, enrollment.ErrNotEnrolled, err)
	})

	t.Run("lessons", func(t *testing.T) {
		ok, err := repo.CourseHasLesson(ctx, c.ID, lessons[1])
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = repo.CourseHasLesson(ctx, other.ID, lessons[1])
		require.NoError(t, err)
		assert.False(t, ok)

		total, err := repo.CountLessons(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, total)

		for i := 0; i < 2; i++ {
			require.NoError(t, repo.UpsertLessonProgress(ctx, e.ID, lessons[0], t0))
		}
		done, err := repo.CountCompletedLessons(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, done)

		ids, err := repo.CompletedLessonIDs(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, map[int]bool{lessons[0]: true}, ids)
	})

	t.Run("progress", func(t *testing.T) {
		t1, t2 := t0.Add(time.Hour), t0.Add(2*time.Hour)

		e.Progress, e.Completed = 50, false
		e, err := repo.UpdateProgress(ctx, e, t1)
		require.NoError(t, err)
		assert.False(t, e.CompletedAt.Valid)

		e.Progress, e.Completed = 100, true
		e, err = repo.UpdateProgress(ctx, e, t1)
		require.NoError(t, err)
		require.True(t, e.CompletedAt.Valid)
		assert.True(t, t1.Equal(e.CompletedAt.Time))

		// stays put while completed
		e, err = repo.UpdateProgress(ctx, e, t2)
		require.NoError(t, err)
		assert.True(t, t1.Equal(e.CompletedAt.Time))

		stored, err := repo.GetEnrollment(ctx, usr.ID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, stored.Progress)
		assert.True(t, stored.Completed)
		assert.True(t, t1.Equal(stored.CompletedAt.Time))
		assert.True(t, t0.Equal(stored.EnrolledAt))

		_, err = repo.UpdateProgress(ctx, enrollment.Enrollment{ID: 9999}, t2)
		assert.Equal(t, enrollment.ErrNotEnrolled, err)
	})

	t.Run("certificate", func(t *testing.T) {
		_, err := repo.GetCertificateDetail(ctx, usr.ID, c.ID)
		assert.Equal(t, enrollment.ErrCertificateNotFound, err)

		inserted, err := repo.InsertCertificate(ctx, enrollment.Certificate{EnrollmentID: e.ID, Code: "CERT-1", IssuedAt: t0})
		require.NoError(t, err)
		assert.True(t, inserted)
		inserted, err = repo.InsertCertificate(ctx, enrollment.Certificate{EnrollmentID: e.ID, Code: "CERT-2", IssuedAt: t0})
		require.NoError(t, err)
		assert.False(t, inserted)

		cert, err := repo.GetCertificate(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "CERT-1", cert.Code)

		detail, err := repo.GetCertificateDetail(ctx, usr.ID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana", detail.StudentName)
		assert.Equal(t, "ana@test.cd", detail.StudentEmail)
		assert.Equal(t, "Go", detail.CourseTitle)

		certs, err := repo.QueryCertificates(ctx, usr.ID)
		require.NoError(t, err)
		require.Len(t, certs, 1)
		assert.Equal(t, c.ID, certs[0].CourseID)
	})

	t.Run("my courses", func(t *testing.T) {
		mine, err := repo.QueryMyCourses(ctx, usr.ID)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, "Go", mine[0].Title)
		assert.Equal(t, 100, mine[0].Progress)
		assert.True(t, mine[0].Completed)
	})

	t.Run("delete", func(t *testing.T) {
		cnt, err := repo.DeleteEnrollment(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, cnt)

		_, err = repo.GetEnrollment(ctx, usr.ID, c.ID)
		assert.Equal(t, enrollment.ErrNotEnrolled, err)
		done, err := repo.CountCompletedLessons(ctx, e.ID)
		require.NoError(t, err)
		assert.Zero(t, done)
		_, err = repo.GetCertificate(ctx, e.ID)
		assert.Error(t, err)
	})
}
