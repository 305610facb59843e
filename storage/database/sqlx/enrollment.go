package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/enrollment"
)

const enrollmentColumns = "id, usuario_id, curso_id, progreso, completado, fecha_inscripcion, fecha_completado"

type enrollmentRow struct {
	ID          int       `db:"id"`
	UserID      int       `db:"usuario_id"`
	CourseID    int       `db:"curso_id"`
	Progress    int       `db:"progreso"`
	Completed   bool      `db:"completado"`
	EnrolledAt  time.Time `db:"fecha_inscripcion"`
	CompletedAt null.Time `db:"fecha_completado"`
}

func (r enrollmentRow) toEnrollment() enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:          r.ID,
		UserID:      r.UserID,
		CourseID:    r.CourseID,
		Progress:    r.Progress,
		Completed:   r.Completed,
		EnrolledAt:  r.EnrolledAt.UTC(),
		CompletedAt: utcNullTime(r.CompletedAt),
	}
}

type myCourseRow struct {
	courseRow
	Progress   int       `db:"progreso"`
	Completed  bool      `db:"completado"`
	EnrolledAt time.Time `db:"fecha_inscripcion"`
}

type certificateRow struct {
	ID           int       `db:"id"`
	EnrollmentID int       `db:"inscripcion_id"`
	Code         string    `db:"codigo"`
	IssuedAt     time.Time `db:"fecha_emision"`
}

type certificateDetailRow struct {
	Code         string    `db:"codigo"`
	IssuedAt     time.Time `db:"fecha_emision"`
	StudentName  string    `db:"nombre"`
	StudentEmail string    `db:"email"`
	CourseTitle  string    `db:"titulo"`
	CourseID     int       `db:"curso_id"`
}

type enrollmentRepository struct {
	exec core.DBExecutor
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(exec core.DBExecutor) *enrollmentRepository {
	return &enrollmentRepository{exec: exec}
}

func (repo enrollmentRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.GetExec(repo.exec, svcExec)
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, userID, courseID int, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	var row enrollmentRow
	err := getContext(ctx, repo.getExec(exec), &row,
		"SELECT "+enrollmentColumns+" FROM inscripciones WHERE usuario_id = ? AND curso_id = ?",
		userID, courseID,
	)
	if err == sql.ErrNoRows {
		return enrollment.Enrollment{}, enrollment.ErrNotEnrolled
	}
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "finding enrollment")
	}
	return row.toEnrollment(), nil
}

// LockEnrollment reads the enrollment and holds its row lock until the transaction ends.
// sqlite serializes writers on its own, so only postgres takes a row lock.
func (repo enrollmentRepository) LockEnrollment(ctx context.Context, userID, courseID int, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	exe := repo.getExec(exec)
	var row enrollmentRow
	err := getContext(ctx, exe, &row, forUpdate(exe,
		"SELECT "+enrollmentColumns+" FROM inscripciones WHERE usuario_id = ? AND curso_id = ?"),
		userID, courseID,
	)
	if err == sql.ErrNoRows {
		return enrollment.Enrollment{}, enrollment.ErrNotEnrolled
	}
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "locking enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	err := getContext(ctx, repo.getExec(exec), &e.ID, `
		INSERT INTO inscripciones (usuario_id, curso_id, progreso, completado, fecha_inscripcion)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (usuario_id, curso_id) DO NOTHING
		RETURNING id`,
		e.UserID, e.CourseID, e.Progress, e.Completed, e.EnrolledAt.UTC(),
	)
	if err == sql.ErrNoRows {
		return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
	}
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (repo enrollmentRepository) DeleteEnrollment(ctx context.Context, enrollmentID int, exec ...core.DBExecutor) (int, error) {
	exe := repo.getExec(exec)
	if _, err := execContext(ctx, exe, "DELETE FROM progreso_lecciones WHERE inscripcion_id = ?", enrollmentID); err != nil {
		return 0, errors.Wrap(err, "deleting lesson progress")
	}
	if _, err := execContext(ctx, exe, "DELETE FROM certificados WHERE inscripcion_id = ?", enrollmentID); err != nil {
		return 0, errors.Wrap(err, "deleting certificate")
	}
	cnt, err := execContext(ctx, exe, "DELETE FROM inscripciones WHERE id = ?", enrollmentID)
	return cnt, errors.Wrap(err, "deleting enrollment")
}

func (repo enrollmentRepository) QueryMyCourses(ctx context.Context, userID int, exec ...core.DBExecutor) ([]enrollment.MyCourse, error) {
	var rows []myCourseRow
	err := selectContext(ctx, repo.getExec(exec), &rows, `
		SELECT c.id, c.titulo, c.descripcion, c.nivel, c.duracion, c.estado, c.profesor_id, c.creado_en, c.actualizado_en,
		       i.progreso, i.completado, i.fecha_inscripcion
		FROM inscripciones i
		JOIN cursos c ON c.id = i.curso_id
		WHERE i.usuario_id = ?
		ORDER BY i.fecha_inscripcion DESC, i.id DESC`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolled courses")
	}
	courses := make([]enrollment.MyCourse, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, enrollment.MyCourse{
			Course:     r.toCourse(),
			Progress:   r.Progress,
			Completed:  r.Completed,
			EnrolledAt: r.EnrolledAt.UTC(),
		})
	}
	return courses, nil
}

func (repo enrollmentRepository) CourseHasLesson(ctx context.Context, courseID, lessonID int, exec ...core.DBExecutor) (bool, error) {
	var cnt int
	err := getContext(ctx, repo.getExec(exec), &cnt, `
		SELECT COUNT(*)
		FROM lecciones l
		JOIN secciones s ON s.id = l.seccion_id
		WHERE l.id = ? AND s.curso_id = ?`,
		lessonID, courseID,
	)
	if err != nil {
		return false, errors.Wrap(err, "checking lesson")
	}
	return cnt > 0, nil
}

func (repo enrollmentRepository) UpsertLessonProgress(ctx context.Context, enrollmentID, lessonID int, at time.Time, exec ...core.DBExecutor) error {
	_, err := execContext(ctx, repo.getExec(exec), `
		INSERT INTO progreso_lecciones (inscripcion_id, leccion_id, completado, fecha_completado)
		VALUES (?, ?, TRUE, ?)
		ON CONFLICT (inscripcion_id, leccion_id) DO UPDATE SET completado = TRUE`,
		enrollmentID, lessonID, at.UTC(),
	)
	return errors.Wrap(err, "upserting lesson progress")
}

func (repo enrollmentRepository) CountLessons(ctx context.Context, courseID int, exec ...core.DBExecutor) (int, error) {
	var cnt int
	err := getContext(ctx, repo.getExec(exec), &cnt, `
		SELECT COUNT(*)
		FROM lecciones l
		JOIN secciones s ON s.id = l.seccion_id
		WHERE s.curso_id = ?`,
		courseID,
	)
	return cnt, errors.Wrap(err, "counting lessons")
}

func (repo enrollmentRepository) CountCompletedLessons(ctx context.Context, enrollmentID int, exec ...core.DBExecutor) (int, error) {
	var cnt int
	err := getContext(ctx, repo.getExec(exec), &cnt,
		"SELECT COUNT(*) FROM progreso_lecciones WHERE inscripcion_id = ? AND completado = TRUE",
		enrollmentID,
	)
	return cnt, errors.Wrap(err, "counting completed lessons")
}

func (repo enrollmentRepository) CompletedLessonIDs(ctx context.Context, enrollmentID int, exec ...core.DBExecutor) (map[int]bool, error) {
	var ids []int
	err := selectContext(ctx, repo.getExec(exec), &ids,
		"SELECT leccion_id FROM progreso_lecciones WHERE inscripcion_id = ? AND completado = TRUE",
		enrollmentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying completed lessons")
	}
	done := make(map[int]bool, len(ids))
	for _, id := range ids {
		done[id] = true
	}
	return done, nil
}

func (repo enrollmentRepository) UpdateProgress(ctx context.Context, e enrollment.Enrollment, at time.Time, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	switch {
	case !e.Completed:
		e.CompletedAt = null.Time{}
	case !e.CompletedAt.Valid:
		e.CompletedAt = null.TimeFrom(at.UTC())
	}

	cnt, err := execContext(ctx, repo.getExec(exec),
		"UPDATE inscripciones SET progreso = ?, completado = ?, fecha_completado = ? WHERE id = ?",
		e.Progress, e.Completed, e.CompletedAt, e.ID,
	)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "updating progress")
	}
	if cnt == 0 {
		return enrollment.Enrollment{}, enrollment.ErrNotEnrolled
	}
	return e, nil
}

func (repo enrollmentRepository) InsertCertificate(ctx context.Context, c enrollment.Certificate, exec ...core.DBExecutor) (bool, error) {
	cnt, err := execContext(ctx, repo.getExec(exec), `
		INSERT INTO certificados (inscripcion_id, codigo, fecha_emision)
		VALUES (?, ?, ?)
		ON CONFLICT (inscripcion_id) DO NOTHING`,
		c.EnrollmentID, c.Code, c.IssuedAt.UTC(),
	)
	if err != nil {
		return false, errors.Wrap(err, "inserting certificate")
	}
	return cnt == 1, nil
}

func (repo enrollmentRepository) GetCertificate(ctx context.Context, enrollmentID int, exec ...core.DBExecutor) (enrollment.Certificate, error) {
	var row certificateRow
	err := getContext(ctx, repo.getExec(exec), &row,
		"SELECT id, inscripcion_id, codigo, fecha_emision FROM certificados WHERE inscripcion_id = ?",
		enrollmentID,
	)
	if err == sql.ErrNoRows {
		return enrollment.Certificate{}, enrollment.ErrCertificateNotFound
	}
	if err != nil {
		return enrollment.Certificate{}, errors.Wrap(err, "finding certificate")
	}
	return enrollment.Certificate{
		ID:           row.ID,
		EnrollmentID: row.EnrollmentID,
		Code:         row.Code,
		IssuedAt:     row.IssuedAt.UTC(),
	}, nil
}

func (repo enrollmentRepository) GetCertificateDetail(ctx context.Context, userID, courseID int, exec ...core.DBExecutor) (enrollment.CertificateDetail, error) {
	var row certificateDetailRow
	err := getContext(ctx, repo.getExec(exec), &row, `
		SELECT ce.codigo, ce.fecha_emision, u.nombre, u.email, c.titulo, c.id AS curso_id
		FROM certificados ce
		JOIN inscripciones i ON i.id = ce.inscripcion_id
		JOIN usuarios u ON u.id = i.usuario_id
		JOIN cursos c ON c.id = i.curso_id
		WHERE i.usuario_id = ? AND i.curso_id = ?`,
		userID, courseID,
	)
	if err == sql.ErrNoRows {
		return enrollment.CertificateDetail{}, enrollment.ErrCertificateNotFound
	}
	if err != nil {
		return enrollment.CertificateDetail{}, errors.Wrap(err, "finding certificate")
	}
	return enrollment.CertificateDetail{
		Code:         row.Code,
		IssuedAt:     row.IssuedAt.UTC(),
		StudentName:  row.StudentName,
		StudentEmail: row.StudentEmail,
		CourseTitle:  row.CourseTitle,
		CourseID:     row.CourseID,
	}, nil
}

func (repo enrollmentRepository) QueryCertificates(ctx context.Context, userID int, exec ...core.DBExecutor) ([]enrollment.CertificateSummary, error) {
	var rows []struct {
		Code        string    `db:"codigo"`
		IssuedAt    time.Time `db:"fecha_emision"`
		CourseTitle string    `db:"titulo"`
		CourseID    int       `db:"curso_id"`
	}
	err := selectContext(ctx, repo.getExec(exec), &rows, `
		SELECT ce.codigo, ce.fecha_emision, c.titulo, c.id AS curso_id
		FROM certificados ce
		JOIN inscripciones i ON i.id = ce.inscripcion_id
		JOIN cursos c ON c.id = i.curso_id
		WHERE i.usuario_id = ?
		ORDER BY ce.fecha_emision DESC, ce.id DESC`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying certificates")
	}
	certs := make([]enrollment.CertificateSummary, 0, len(rows))
	for _, r := range rows {
		certs = append(certs, enrollment.CertificateSummary{
			Code:        r.Code,
			IssuedAt:    r.IssuedAt.UTC(),
			CourseTitle: r.CourseTitle,
			CourseID:    r.CourseID,
		})
	}
	return certs, nil
}
