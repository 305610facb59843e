package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/stats"
)

type statsRepository struct {
	exec core.DBExecutor
}

var _ stats.Repository = (*statsRepository)(nil) // interface compliance check

func NewStatsRepository(exec core.DBExecutor) *statsRepository {
	return &statsRepository{exec: exec}
}

func (repo statsRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.GetExec(repo.exec, svcExec)
}

func (repo statsRepository) GetTotals(ctx context.Context, exec ...core.DBExecutor) (stats.Totals, error) {
	var row struct {
		Courses     int `db:"cursos"`
		Users       int `db:"usuarios"`
		Enrollments int `db:"inscripciones"`
		Completed   int `db:"completadas"`
	}
	err := getContext(ctx, repo.getExec(exec), &row, `
		SELECT
			(SELECT COUNT(*) FROM cursos) AS cursos,
			(SELECT COUNT(*) FROM usuarios) AS usuarios,
			(SELECT COUNT(*) FROM inscripciones) AS inscripciones,
			(SELECT COUNT(*) FROM inscripciones WHERE completado = TRUE) AS completadas`,
	)
	if err != nil {
		return stats.Totals{}, errors.Wrap(err, "counting totals")
	}
	return stats.Totals{
		Courses:              row.Courses,
		Users:                row.Users,
		Enrollments:          row.Enrollments,
		CompletedEnrollments: row.Completed,
	}, nil
}

func (repo statsRepository) QueryPopularCourses(ctx context.Context, limit int, exec ...core.DBExecutor) ([]stats.PopularCourse, error) {
	var rows []struct {
		CourseID    int    `db:"id"`
		Title       string `db:"titulo"`
		Enrollments int    `db:"inscripciones"`
	}
	err := selectContext(ctx, repo.getExec(exec), &rows, `
		SELECT c.id, c.titulo, COUNT(i.id) AS inscripciones
		FROM cursos c
		LEFT JOIN inscripciones i ON i.curso_id = c.id
		GROUP BY c.id, c.titulo
		ORDER BY inscripciones DESC, c.id
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying popular courses")
	}
	courses := make([]stats.PopularCourse, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, stats.PopularCourse{CourseID: r.CourseID, Title: r.Title, Enrollments: r.Enrollments})
	}
	return courses, nil
}

func (repo statsRepository) QueryRecentUsers(ctx context.Context, limit int, exec ...core.DBExecutor) ([]stats.RecentUser, error) {
	var rows []struct {
		ID        int       `db:"id"`
		Name      string    `db:"nombre"`
		Email     string    `db:"email"`
		CreatedAt time.Time `db:"creado_en"`
	}
	err := selectContext(ctx, repo.getExec(exec), &rows,
		"SELECT id, nombre, email, creado_en FROM usuarios ORDER BY creado_en DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying recent users")
	}
	users := make([]stats.RecentUser, 0, len(rows))
	for _, r := range rows {
		users = append(users, stats.RecentUser{ID: r.ID, Name: r.Name, Email: r.Email, CreatedAt: r.CreatedAt.UTC()})
	}
	return users, nil
}

func (repo statsRepository) QueryEnrollmentDates(ctx context.Context, since time.Time, exec ...core.DBExecutor) ([]time.Time, error) {
	var dates []time.Time
	err := selectContext(ctx, repo.getExec(exec), &dates,
		"SELECT fecha_inscripcion FROM inscripciones WHERE fecha_inscripcion >= ?",
		since.UTC(),
	)
	return dates, errors.Wrap(err, "querying enrollment dates")
}

func (repo statsRepository) QueryEnrollmentDetails(ctx context.Context, exec ...core.DBExecutor) ([]stats.EnrollmentDetail, error) {
	var rows []struct {
		enrollmentRow
		Name        string `db:"nombre"`
		Email       string `db:"email"`
		CourseTitle string `db:"titulo"`
	}
	err := selectContext(ctx, repo.getExec(exec), &rows, `
		SELECT i.id, i.usuario_id, i.curso_id, i.progreso, i.completado, i.fecha_inscripcion, i.fecha_completado,
		       u.nombre, u.email, c.titulo
		FROM inscripciones i
		JOIN usuarios u ON u.id = i.usuario_id
		JOIN cursos c ON c.id = i.curso_id
		ORDER BY i.fecha_inscripcion DESC, i.id DESC`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollment details")
	}
	details := make([]stats.EnrollmentDetail, 0, len(rows))
	for _, r := range rows {
		e := r.toEnrollment()
		details = append(details, stats.EnrollmentDetail{
			ID:          e.ID,
			UserID:      e.UserID,
			Name:        r.Name,
			Email:       r.Email,
			CourseID:    e.CourseID,
			CourseTitle: r.CourseTitle,
			Progress:    e.Progress,
			Completed:   e.Completed,
			EnrolledAt:  e.EnrolledAt,
			CompletedAt: e.CompletedAt,
		})
	}
	return details, nil
}
