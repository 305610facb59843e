package course

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
)

var (
	// errors
	ErrNotFound                 = errors.New("Curso no encontrado")
	ErrSectionNotFound          = errors.New("Sección no encontrada")
	ErrTitleDescriptionRequired = errors.New("Título y descripción son requeridos")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		GetCourse(ctx context.Context, id int, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		DeleteCourse(ctx context.Context, id int, exec ...core.DBExecutor) (int, error)

		CreateSection(ctx context.Context, s Section, exec ...core.DBExecutor) (Section, error)
		// GetSection returns ErrSectionNotFound unless the section belongs to the course.
		GetSection(ctx context.Context, courseID, sectionID int, exec ...core.DBExecutor) (Section, error)
		UpdateSection(ctx context.Context, s Section, exec ...core.DBExecutor) (Section, error)
		// QuerySections returns the sections of a course ordered by Section.Order, without lessons nor files.
		QuerySections(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]Section, error)

		CreateLesson(ctx context.Context, l Lesson, exec ...core.DBExecutor) (Lesson, error)
		// QueryLessons returns every lesson of a course ordered by Lesson.Order.
		QueryLessons(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]Lesson, error)
		MaxLessonOrder(ctx context.Context, sectionID int, exec ...core.DBExecutor) (int, error)

		CreateFile(ctx context.Context, f File, exec ...core.DBExecutor) (File, error)
		QueryFiles(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]File, error)
	}

	// FileStore persists section attachments outside of the database.
	FileStore interface {
		// Save stores the content of r and returns its public path and size.
		Save(ctx context.Context, filename string, r io.Reader) (path string, size int64, err error)
		Remove(path string) error
	}

	Service interface {
		Create(ctx context.Context, nc NewCourse) (Course, error)
		// CreateWithSections creates a Course with its Sections, Lessons and Files in one transaction.
		// Stored files are removed again when the transaction fails.
		CreateWithSections(ctx context.Context, nc NewCourse, sections []NewSection) (CourseDetail, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		GetByID(ctx context.Context, id int) (Course, error)
		GetDetail(ctx context.Context, id int) (CourseDetail, error)
		Update(ctx context.Context, id int, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, id int) error
		UpdateSection(ctx context.Context, courseID, sectionID int, us UpdateSection) (Section, error)
		AddLesson(ctx context.Context, courseID, sectionID int, nl NewLesson) (Lesson, error)
	}

	service struct {
		db    core.DB
		repo  Repository
		files FileStore
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, files FileStore) Service {
	return &service{
		db:    db,
		repo:  repo,
		files: files,
	}
}

func (svc *service) newCourse(nc NewCourse) Course {
	now := time.Now().UTC()
	return Course{
		Title:       nc.Title,
		Description: nc.Description,
		Level:       nc.Level,
		Duration:    nc.Duration,
		Status:      StatusActive,
		TeacherID:   null.IntFromPtr(nc.TeacherID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (svc *service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	c, err := svc.repo.CreateCourse(ctx, svc.newCourse(nc))
	return c, errors.Wrap(err, "creating course")
}

func (svc *service) CreateWithSections(ctx context.Context, nc NewCourse, sections []NewSection) (CourseDetail, error) {
	stored, err := svc.storeUploads(ctx, sections)
	if err != nil {
		return CourseDetail{}, err
	}

	var courseID int
	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		c, err := svc.repo.CreateCourse(ctx, svc.newCourse(nc), tx)
		if err != nil {
			return errors.Wrap(err, "creating course")
		}
		courseID = c.ID

		for i, ns := range sections {
			order := i + 1
			if ns.Order != nil {
				order = *ns.Order
			}
			s, err := svc.repo.CreateSection(ctx, Section{
				CourseID:    c.ID,
				Subtitle:    ns.Subtitle,
				Description: ns.Description,
				Order:       order,
			}, tx)
			if err != nil {
				return errors.Wrapf(err, "creating section %d", i)
			}

			for j, nl := range ns.Lessons {
				if _, err = svc.repo.CreateLesson(ctx, newLesson(s.ID, j+1, nl), tx); err != nil {
					return errors.Wrapf(err, "creating lesson %d of section %d", j, i)
				}
			}

			for _, f := range stored[i] {
				f.SectionID = s.ID
				if _, err = svc.repo.CreateFile(ctx, f, tx); err != nil {
					return errors.Wrapf(err, "creating file of section %d", i)
				}
			}
		}
		return nil
	})
	if err != nil {
		svc.removeStored(stored)
		return CourseDetail{}, err
	}
	return svc.GetDetail(ctx, courseID)
}

// storeUploads saves the uploads of every section, indexed like sections.
func (svc *service) storeUploads(ctx context.Context, sections []NewSection) ([][]File, error) {
	stored := make([][]File, len(sections))
	for i, ns := range sections {
		for _, up := range ns.Files {
			f, err := svc.storeUpload(ctx, up)
			if err != nil {
				svc.removeStored(stored)
				return nil, errors.Wrapf(err, "storing file %q", up.Filename)
			}
			stored[i] = append(stored[i], f)
		}
	}
	return stored, nil
}

func (svc *service) storeUpload(ctx context.Context, up Upload) (File, error) {
	r, err := up.Open()
	if err != nil {
		return File{}, err
	}
	defer func() { _ = r.Close() }()

	path, size, err := svc.files.Save(ctx, up.Filename, r)
	if err != nil {
		return File{}, err
	}
	return File{
		OriginalName: up.Filename,
		Path:         path,
		MimeType:     up.MimeType,
		Size:         size,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (svc *service) removeStored(stored [][]File) {
	for _, files := range stored {
		for _, f := range files {
			_ = svc.files.Remove(f.Path)
		}
	}
}

func newLesson(sectionID, defaultOrder int, nl NewLesson) Lesson {
	order := defaultOrder
	if nl.Order != nil {
		order = *nl.Order
	}
	return Lesson{
		SectionID: sectionID,
		Title:     nl.Title,
		Content:   nl.Content,
		Order:     order,
		Duration:  nl.Duration,
	}
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id int) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) GetDetail(ctx context.Context, id int) (CourseDetail, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return CourseDetail{}, err
	}
	sections, err := svc.repo.QuerySections(ctx, id)
	if err != nil {
		return CourseDetail{}, errors.Wrap(err, "querying sections")
	}
	lessons, err := svc.repo.QueryLessons(ctx, id)
	if err != nil {
		return CourseDetail{}, errors.Wrap(err, "querying lessons")
	}
	files, err := svc.repo.QueryFiles(ctx, id)
	if err != nil {
		return CourseDetail{}, errors.Wrap(err, "querying files")
	}
	return CourseDetail{Course: c, Sections: AssembleSections(sections, lessons, files)}, nil
}

// AssembleSections attaches lessons and files to their sections, keeping the order of each slice.
func AssembleSections(sections []Section, lessons []Lesson, files []File) []Section {
	idx := make(map[int]int, len(sections))
	for i := range sections {
		idx[sections[i].ID] = i
		sections[i].Lessons = []Lesson{}
		sections[i].Files = []File{}
	}
	for _, l := range lessons {
		if i, ok := idx[l.SectionID]; ok {
			sections[i].Lessons = append(sections[i].Lessons, l)
		}
	}
	for _, f := range files {
		if i, ok := idx[f.SectionID]; ok {
			sections[i].Files = append(sections[i].Files, f)
		}
	}
	if sections == nil {
		sections = []Section{}
	}
	return sections
}

func (svc *service) Update(ctx context.Context, id int, uc UpdateCourse) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	c = uc.apply(c)
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}

func (svc *service) Delete(ctx context.Context, id int) error {
	cnt, err := svc.repo.DeleteCourse(ctx, id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if cnt == 0 {
		return ErrNotFound
	}
	return nil
}

func (svc *service) UpdateSection(ctx context.Context, courseID, sectionID int, us UpdateSection) (Section, error) {
	s, err := svc.repo.GetSection(ctx, courseID, sectionID)
	if err != nil {
		return Section{}, err
	}
	return svc.repo.UpdateSection(ctx, us.apply(s))
}

func (svc *service) AddLesson(ctx context.Context, courseID, sectionID int, nl NewLesson) (Lesson, error) {
	var l Lesson
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetSection(ctx, courseID, sectionID, tx); err != nil {
			return err
		}
		maxOrder, err := svc.repo.MaxLessonOrder(ctx, sectionID, tx)
		if err != nil {
			return errors.Wrap(err, "getting max lesson order")
		}
		l, err = svc.repo.CreateLesson(ctx, newLesson(sectionID, maxOrder+1, nl), tx)
		return errors.Wrap(err, "creating lesson")
	})
	return l, err
}
