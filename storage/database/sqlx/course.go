package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/course"
)

const courseColumns = "id, titulo, descripcion, nivel, duracion, estado, profesor_id, creado_en, actualizado_en"

var courseOrderings = map[string]string{
	"id":        "id",
	"titulo":    "titulo",
	"nivel":     "nivel",
	"estado":    "estado",
	"createdAt": "creado_en",
	"updatedAt": "actualizado_en",
}

type courseRow struct {
	ID          int       `db:"id"`
	Title       string    `db:"titulo"`
	Description string    `db:"descripcion"`
	Level       string    `db:"nivel"`
	Duration    string    `db:"duracion"`
	Status      string    `db:"estado"`
	TeacherID   null.Int  `db:"profesor_id"`
	CreatedAt   time.Time `db:"creado_en"`
	UpdatedAt   time.Time `db:"actualizado_en"`
}

func (r courseRow) toCourse() course.Course {
	return course.Course{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Level:       r.Level,
		Duration:    r.Duration,
		Status:      r.Status,
		TeacherID:   r.TeacherID,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type sectionRow struct {
	ID          int    `db:"id"`
	CourseID    int    `db:"curso_id"`
	Subtitle    string `db:"subtitulo"`
	Description string `db:"descripcion"`
	Order       int    `db:"orden"`
}

func (r sectionRow) toSection() course.Section {
	return course.Section{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Subtitle:    r.Subtitle,
		Description: r.Description,
		Order:       r.Order,
	}
}

type lessonRow struct {
	ID        int    `db:"id"`
	SectionID int    `db:"seccion_id"`
	Title     string `db:"titulo"`
	Content   string `db:"contenido"`
	Order     int    `db:"orden"`
	Duration  int    `db:"duracion"`
}

func (r lessonRow) toLesson() course.Lesson {
	return course.Lesson(r)
}

type fileRow struct {
	ID           int       `db:"id"`
	SectionID    int       `db:"seccion_id"`
	OriginalName string    `db:"nombre_original"`
	Path         string    `db:"ruta"`
	MimeType     string    `db:"tipo_mime"`
	Size         int64     `db:"tamano"`
	CreatedAt    time.Time `db:"creado_en"`
}

func (r fileRow) toFile() course.File {
	return course.File{
		ID:           r.ID,
		SectionID:    r.SectionID,
		OriginalName: r.OriginalName,
		Path:         r.Path,
		MimeType:     r.MimeType,
		Size:         r.Size,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type courseRepository struct {
	exec core.DBExecutor
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{exec: exec}
}

func (repo courseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.GetExec(repo.exec, svcExec)
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	err := getContext(ctx, repo.getExec(exec), &c.ID, `
		INSERT INTO cursos (titulo, descripcion, nivel, duracion, estado, profesor_id, creado_en, actualizado_en)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		c.Title, c.Description, c.Level, c.Duration, c.Status, c.TeacherID, c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Search != "" {
			val := likePattern(filter.Search)
			where = append(where, `(LOWER(titulo) LIKE ? ESCAPE '\' OR LOWER(descripcion) LIKE ? ESCAPE '\')`)
			args = append(args, val, val)
		}
		if filter.Status != "" {
			where = append(where, "estado = ?")
			args = append(args, filter.Status)
		}
		if filter.Level != "" {
			where = append(where, "LOWER(nivel) = ?")
			args = append(args, strings.ToLower(filter.Level))
		}
	}

	q := "SELECT " + courseColumns + " FROM cursos"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += orderBy(ordering, courseOrderings, "creado_en DESC, id DESC")

	var rows []courseRow
	if err := selectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.toCourse())
	}
	return courses, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id int, exec ...core.DBExecutor) (course.Course, error) {
	var row courseRow
	err := getContext(ctx, repo.getExec(exec), &row, "SELECT "+courseColumns+" FROM cursos WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return course.Course{}, course.ErrNotFound
	}
	if err != nil {
		return course.Course{}, errors.Wrap(err, "finding course")
	}
	return row.toCourse(), nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	cnt, err := execContext(ctx, repo.getExec(exec), `
		UPDATE cursos
		SET titulo = ?, descripcion = ?, nivel = ?, duracion = ?, estado = ?, profesor_id = ?, actualizado_en = ?
		WHERE id = ?`,
		c.Title, c.Description, c.Level, c.Duration, c.Status, c.TeacherID, c.UpdatedAt.UTC(), c.ID,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if cnt == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id int, exec ...core.DBExecutor) (int, error) {
	cnt, err := execContext(ctx, repo.getExec(exec), "DELETE FROM cursos WHERE id = ?", id)
	return cnt, errors.Wrap(err, "deleting course")
}

func (repo courseRepository) CreateSection(ctx context.Context, s course.Section, exec ...core.DBExecutor) (course.Section, error) {
	err := getContext(ctx, repo.getExec(exec), &s.ID, `
		INSERT INTO secciones (curso_id, subtitulo, descripcion, orden)
		VALUES (?, ?, ?, ?)
		RETURNING id`,
		s.CourseID, s.Subtitle, s.Description, s.Order,
	)
	if err != nil {
		return course.Section{}, errors.Wrap(err, "inserting section")
	}
	return s, nil
}

func (repo courseRepository) GetSection(ctx context.Context, courseID, sectionID int, exec ...core.DBExecutor) (course.Section, error) {
	var row sectionRow
	err := getContext(ctx, repo.getExec(exec), &row, `
		SELECT id, curso_id, subtitulo, descripcion, orden
		FROM secciones
		WHERE id = ? AND curso_id = ?`,
		sectionID, courseID,
	)
	if err == sql.ErrNoRows {
		return course.Section{}, course.ErrSectionNotFound
	}
	if err != nil {
		return course.Section{}, errors.Wrap(err, "finding section")
	}
	return row.toSection(), nil
}

func (repo courseRepository) UpdateSection(ctx context.Context, s course.Section, exec ...core.DBExecutor) (course.Section, error) {
	cnt, err := execContext(ctx, repo.getExec(exec),
		"UPDATE secciones SET subtitulo = ?, descripcion = ?, orden = ? WHERE id = ?",
		s.Subtitle, s.Description, s.Order, s.ID,
	)
	if err != nil {
		return course.Section{}, errors.Wrap(err, "updating section")
	}
	if cnt == 0 {
		return course.Section{}, course.ErrSectionNotFound
	}
	return s, nil
}

func (repo courseRepository) QuerySections(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]course.Section, error) {
	var rows []sectionRow
	err := selectContext(ctx, repo.getExec(exec), &rows, `
		SELECT id, curso_id, subtitulo, descripcion, orden
		FROM secciones
		WHERE curso_id = ?
		ORDER BY orden, id`,
		courseID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	sections := make([]course.Section, 0, len(rows))
	for _, r := range rows {
		sections = append(sections, r.toSection())
	}
	return sections, nil
}

func (repo courseRepository) CreateLesson(ctx context.Context, l course.Lesson, exec ...core.DBExecutor) (course.Lesson, error) {
	err := getContext(ctx, repo.getExec(exec), &l.ID, `
		INSERT INTO lecciones (seccion_id, titulo, contenido, orden, duracion)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		l.SectionID, l.Title, l.Content, l.Order, l.Duration,
	)
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return l, nil
}

func (repo courseRepository) QueryLessons(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]course.Lesson, error) {
	var rows []lessonRow
	err := selectContext(ctx, repo.getExec(exec), &rows, `
		SELECT l.id, l.seccion_id, l.titulo, l.contenido, l.orden, l.duracion
		FROM lecciones l
		JOIN secciones s ON s.id = l.seccion_id
		WHERE s.curso_id = ?
		ORDER BY l.orden, l.id`,
		courseID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	lessons := make([]course.Lesson, 0, len(rows))
	for _, r := range rows {
		lessons = append(lessons, r.toLesson())
	}
	return lessons, nil
}

func (repo courseRepository) MaxLessonOrder(ctx context.Context, sectionID int, exec ...core.DBExecutor) (int, error) {
	var max int
	err := getContext(ctx, repo.getExec(exec), &max,
		"SELECT COALESCE(MAX(orden), 0) FROM lecciones WHERE seccion_id = ?", sectionID)
	return max, errors.Wrap(err, "getting max lesson order")
}

func (repo courseRepository) CreateFile(ctx context.Context, f course.File, exec ...core.DBExecutor) (course.File, error) {
	err := getContext(ctx, repo.getExec(exec), &f.ID, `
		INSERT INTO archivos (seccion_id, nombre_original, ruta, tipo_mime, tamano, creado_en)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		f.SectionID, f.OriginalName, f.Path, f.MimeType, f.Size, f.CreatedAt.UTC(),
	)
	if err != nil {
		return course.File{}, errors.Wrap(err, "inserting file")
	}
	return f, nil
}

func (repo courseRepository) QueryFiles(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]course.File, error) {
	var rows []fileRow
	err := selectContext(ctx, repo.getExec(exec), &rows, `
		SELECT f.id, f.seccion_id, f.nombre_original, f.ruta, f.tipo_mime, f.tamano, f.creado_en
		FROM archivos f
		JOIN secciones s ON s.id = f.seccion_id
		WHERE s.curso_id = ?
		ORDER BY f.id`,
		courseID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying files")
	}
	files := make([]course.File, 0, len(rows))
	for _, r := range rows {
		files = append(files, r.toFile())
	}
	return files, nil
}
