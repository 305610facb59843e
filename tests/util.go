package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core/course"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/user"
	"github.com/JAVIERMONRA/proyecto-cursos-online/storage/database"
)

// OpenDB returns a migrated sqlite database living in a temporary directory, closed on cleanup.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(context.Background(), db, database.EngineSQLite); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd == "" {
		// unusable password
		pwd = uuid.NewString()
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateCourse creates a course with one section per lessonsPerSection entry, holding that many lessons.
func CreateCourse(
	t *testing.T,
	repo course.Repository,
	title, status string,
	lessonsPerSection ...int,
) course.CourseDetail {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	c, err := repo.CreateCourse(ctx, course.Course{
		Title:       title,
		Description: "Descripción de " + title,
		Level:       "Básico",
		Duration:    "4 semanas",
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}

	detail := course.CourseDetail{Course: c}
	for i, n := range lessonsPerSection {
		s, err := repo.CreateSection(ctx, course.Section{
			CourseID: c.ID,
			Subtitle: fmt.Sprintf("Sección %d", i+1),
			Order:    i + 1,
		})
		if err != nil {
			t.Fatalf("CreateCourse() failed: %v", err)
		}
		for j := 0; j < n; j++ {
			l, err := repo.CreateLesson(ctx, course.Lesson{
				SectionID: s.ID,
				Title:     fmt.Sprintf("Lección %d.%d", i+1, j+1),
				Order:     j + 1,
				Duration:  10,
			})
			if err != nil {
				t.Fatalf("CreateCourse() failed: %v", err)
			}
			s.Lessons = append(s.Lessons, l)
		}
		detail.Sections = append(detail.Sections, s)
	}
	return detail
}

// LessonIDs returns the IDs of every lesson of detail, in display order.
func LessonIDs(detail course.CourseDetail) []int {
	var ids []int
	for _, s := range detail.Sections {
		for _, l := range s.Lessons {
			ids = append(ids, l.ID)
		}
	}
	return ids
}
