package enrollment

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core/course"
)

type (
	Enrollment struct {
		ID          int       `json:"id"`
		UserID      int       `json:"usuarioId"`
		CourseID    int       `json:"cursoId"`
		Progress    int       `json:"progreso"`
		Completed   bool      `json:"completado"`
		EnrolledAt  time.Time `json:"fechaInscripcion"` // UTC
		CompletedAt null.Time `json:"fechaCompletado"`  // UTC; set on the transition to completed only
	}

	Certificate struct {
		ID           int       `json:"-"`
		EnrollmentID int       `json:"-"`
		Code         string    `json:"codigo"`
		IssuedAt     time.Time `json:"fechaEmision"` // UTC
	}

	// CertificateDetail is a Certificate along with what is printed on it.
	CertificateDetail struct {
		Code         string    `json:"codigo"`
		IssuedAt     time.Time `json:"fechaEmision"`
		StudentName  string    `json:"nombre"`
		StudentEmail string    `json:"-"`
		CourseTitle  string    `json:"titulo"`
		CourseID     int       `json:"-"`
	}

	CertificateSummary struct {
		Code        string    `json:"codigo"`
		IssuedAt    time.Time `json:"fechaEmision"`
		CourseTitle string    `json:"titulo"`
		CourseID    int       `json:"cursoId"`
	}

	// ProgressResult is the outcome of MarkLessonCompleted.
	ProgressResult struct {
		Progress    int         `json:"progreso"`
		Completed   bool        `json:"completado"`
		Certificate null.String `json:"certificado"` // set iff Completed
		Issued      bool        `json:"-"`           // the certificate was issued by this call
	}

	LessonProgress struct {
		course.Lesson
		Completed bool `json:"completado"`
	}

	SectionProgress struct {
		ID          int              `json:"id"`
		Subtitle    string           `json:"subtitulo"`
		Description string           `json:"descripcion"`
		Order       int              `json:"orden"`
		Lessons     []LessonProgress `json:"lecciones"`
	}

	// CourseProgress is a course outline annotated with one enrollment's progress.
	CourseProgress struct {
		ID          int               `json:"id"`
		Title       string            `json:"titulo"`
		Description string            `json:"descripcion"`
		Progress    int               `json:"progreso"`
		Completed   bool              `json:"completado"`
		Sections    []SectionProgress `json:"secciones"`
	}

	// MyCourse is a course seen from one of its enrolled students.
	MyCourse struct {
		course.Course
		Progress   int       `json:"progreso"`
		Completed  bool      `json:"completado"`
		EnrolledAt time.Time `json:"fechaInscripcion"`
	}
)

// ComputeProgress returns round(100 * done / total), or 0 for a course without lessons.
func ComputeProgress(done, total int) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	if done > total {
		done = total
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

// NewCertificateCode returns an opaque code made of the user, the course, the issue time and a random part.
func NewCertificateCode(userID, courseID int, at time.Time) string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("CERT-%d-%d-%d-%s", userID, courseID, at.UnixMilli(), random)
}

func buildCourseProgress(detail course.CourseDetail, e Enrollment, done map[int]bool) CourseProgress {
	cp := CourseProgress{
		ID:          detail.ID,
		Title:       detail.Title,
		Description: detail.Description,
		Progress:    e.Progress,
		Completed:   e.Completed,
		Sections:    make([]SectionProgress, 0, len(detail.Sections)),
	}
	for _, s := range detail.Sections {
		sp := SectionProgress{
			ID:          s.ID,
			Subtitle:    s.Subtitle,
			Description: s.Description,
			Order:       s.Order,
			Lessons:     make([]LessonProgress, 0, len(s.Lessons)),
		}
		for _, l := range s.Lessons {
			sp.Lessons = append(sp.Lessons, LessonProgress{Lesson: l, Completed: done[l.ID]})
		}
		cp.Sections = append(cp.Sections, sp)
	}
	return cp
}
