package stats

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type (
	PopularCourse struct {
		CourseID    int    `json:"cursoId"`
		Title       string `json:"titulo"`
		Enrollments int    `json:"inscripciones"`
	}

	RecentUser struct {
		ID        int       `json:"id"`
		Name      string    `json:"nombre"`
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"fechaRegistro"`
	}

	MonthlyCount struct {
		Month string `json:"mes"` // YYYY-MM
		Total int    `json:"total"`
	}

	Totals struct {
		Courses              int
		Users                int
		Enrollments          int
		CompletedEnrollments int
	}

	Overview struct {
		Courses              int             `json:"cursos"`
		Users                int             `json:"usuarios"`
		Enrollments          int             `json:"inscripciones"`
		PopularCourses       []PopularCourse `json:"cursosPopulares"`
		RecentUsers          []RecentUser    `json:"usuariosRecientes"`
		MonthlyEnrollments   []MonthlyCount  `json:"inscripcionesMensuales"`
		CompletionRate       float64         `json:"tasaCompletado"` // % of enrollments completed
		AvgStudentsPerCourse float64         `json:"promedioEstudiantesPorCurso"`
	}

	EnrollmentDetail struct {
		ID          int       `json:"id"`
		UserID      int       `json:"usuarioId"`
		Name        string    `json:"nombre"`
		Email       string    `json:"email"`
		CourseID    int       `json:"cursoId"`
		CourseTitle string    `json:"cursoTitulo"`
		Progress    int       `json:"progreso"`
		Completed   bool      `json:"completado"`
		EnrolledAt  time.Time `json:"fechaInscripcion"`
		CompletedAt null.Time `json:"fechaCompletado"`
	}

	EnrollmentSummary struct {
		TotalStudents    int     `json:"totalEstudiantes"`
		TotalEnrollments int     `json:"totalInscripciones"`
		AvgProgress      float64 `json:"promedioProgreso"`
		CompletedCourses int     `json:"cursosCompletados"`
	}

	EnrollmentReport struct {
		Enrollments []EnrollmentDetail `json:"inscripciones"`
		Summary     EnrollmentSummary  `json:"estadisticas"`
	}
)
