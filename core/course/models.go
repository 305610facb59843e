package course

import (
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
)

// Statuses
const (
	StatusActive   = "activo"
	StatusArchived = "archivado"
)

type (
	Course struct {
		ID          int       `json:"id"`
		Title       string    `json:"titulo"`
		Description string    `json:"descripcion"`
		Level       string    `json:"nivel"`
		Duration    string    `json:"duracion"`
		Status      string    `json:"estado"`
		TeacherID   null.Int  `json:"profesorId"`
		CreatedAt   time.Time `json:"createdAt"` // UTC
		UpdatedAt   time.Time `json:"updatedAt"` // UTC
	}

	Section struct {
		ID          int      `json:"id"`
		CourseID    int      `json:"cursoId"`
		Subtitle    string   `json:"subtitulo"`
		Description string   `json:"descripcion"`
		Order       int      `json:"orden"`
		Lessons     []Lesson `json:"lecciones"`
		Files       []File   `json:"archivos"`
	}

	Lesson struct {
		ID        int    `json:"id"`
		SectionID int    `json:"seccionId"`
		Title     string `json:"titulo"`
		Content   string `json:"contenido"`
		Order     int    `json:"orden"`
		Duration  int    `json:"duracion"` // minutes
	}

	// File is an attachment of a Section, stored by a FileStore under Path.
	File struct {
		ID           int       `json:"id"`
		SectionID    int       `json:"seccionId"`
		OriginalName string    `json:"nombreOriginal"`
		Path         string    `json:"ruta"`
		MimeType     string    `json:"tipoMime"`
		Size         int64     `json:"tamano"`
		CreatedAt    time.Time `json:"createdAt"` // UTC
	}

	// CourseDetail is a Course with its Sections, their Lessons and Files, all in display order.
	CourseDetail struct {
		Course
		Sections []Section `json:"secciones"`
	}
)

func (c Course) IsActive() bool { return c.Status == StatusActive }

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string `json:"titulo" validate:"required,notblank"`
	Description string `json:"descripcion" validate:"required,notblank"`
	Level       string `json:"nivel"`
	Duration    string `json:"duracion"`
	TeacherID   *int   `json:"profesorId"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Level = core.CleanString(nc.Level)
	nc.Duration = core.CleanString(nc.Duration)

	if err := validate.Struct(nc); err != nil {
		if vErrs, ok := err.(validator.ValidationErrors); ok {
			flds := make([]core.FieldError, 0, len(vErrs))
			for _, fe := range vErrs {
				flds = append(flds, core.FieldError{Field: fe.Field(), Error: ErrTitleDescriptionRequired.Error()})
			}
			return core.NewValidationError(ErrTitleDescriptionRequired, flds...)
		}
		return err
	}
	return nil
}

// NewSection contains information needed to create a Section along with its Lessons and Files.
type NewSection struct {
	Subtitle    string      `json:"subtitulo" validate:"required,notblank"`
	Description string      `json:"descripcion"`
	Order       *int        `json:"orden"`
	Lessons     []NewLesson `json:"lecciones" validate:"dive"`
	Files       []Upload    `json:"-"`
}

type NewLesson struct {
	Title    string `json:"titulo" validate:"required,notblank"`
	Content  string `json:"contenido"`
	Order    *int   `json:"orden"`
	Duration int    `json:"duracion" validate:"gte=0"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	return validate.Struct(nl)
}

// Upload is a file received along with a NewSection, not yet persisted.
type Upload struct {
	Filename string
	MimeType string
	Open     func() (io.ReadCloser, error)
}

// ValidateSections cleans and validates the sections of a course created in one go.
func ValidateSections(validate *validator.Validate, sections []NewSection) error {
	for i := range sections {
		sections[i].Subtitle = core.CleanString(sections[i].Subtitle)
		sections[i].Description = core.CleanString(sections[i].Description)
		for j := range sections[i].Lessons {
			sections[i].Lessons[j].Title = core.CleanString(sections[i].Lessons[j].Title)
		}
		if err := validate.Struct(sections[i]); err != nil {
			return err
		}
	}
	return nil
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Title       *string `json:"titulo" validate:"omitempty,notblank"`
	Description *string `json:"descripcion" validate:"omitempty,notblank"`
	Level       *string `json:"nivel"`
	Duration    *string `json:"duracion"`
	Status      *string `json:"estado" validate:"omitempty,oneof=activo archivado"`
}

func (uc UpdateCourse) Validate(validate *validator.Validate) error { return validate.Struct(uc) }

func (uc UpdateCourse) apply(c Course) Course {
	if uc.Title != nil {
		c.Title = core.CleanString(*uc.Title)
	}
	if uc.Description != nil {
		c.Description = core.CleanString(*uc.Description)
	}
	if uc.Level != nil {
		c.Level = core.CleanString(*uc.Level)
	}
	if uc.Duration != nil {
		c.Duration = core.CleanString(*uc.Duration)
	}
	if uc.Status != nil {
		c.Status = *uc.Status
	}
	return c
}

type UpdateSection struct {
	Subtitle    *string `json:"subtitulo" validate:"omitempty,notblank"`
	Description *string `json:"descripcion"`
	Order       *int    `json:"orden"`
}

func (us UpdateSection) Validate(validate *validator.Validate) error { return validate.Struct(us) }

func (us UpdateSection) apply(s Section) Section {
	if us.Subtitle != nil {
		s.Subtitle = core.CleanString(*us.Subtitle)
	}
	if us.Description != nil {
		s.Description = core.CleanString(*us.Description)
	}
	if us.Order != nil {
		s.Order = *us.Order
	}
	return s
}

type QueryFilter struct {
	Search string `query:"search"`
	Status string `query:"estado"`
	Level  string `query:"nivel"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Level = core.CleanString(qf.Level)
}
