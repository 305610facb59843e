package enrollment

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/course"
)

var (
	// errors
	ErrAlreadyEnrolled     = errors.New("Ya estás inscrito en este curso")
	ErrNotEnrolled         = errors.New("No estás inscrito en este curso")
	ErrCourseUnavailable   = errors.New("El curso no está disponible")
	ErrLessonNotFound      = errors.New("Lección no encontrada")
	ErrCertificateNotFound = errors.New("No hay certificado disponible. Completa el curso primero.")
)

type (
	Repository interface {
		// GetEnrollment returns ErrNotEnrolled when the user is not enrolled in the course.
		GetEnrollment(ctx context.Context, userID, courseID int, exec ...core.DBExecutor) (Enrollment, error)
		// LockEnrollment is GetEnrollment holding the enrollment row until exec's transaction ends.
		LockEnrollment(ctx context.Context, userID, courseID int, exec ...core.DBExecutor) (Enrollment, error)
		// CreateEnrollment returns ErrAlreadyEnrolled when the (user, course) pair exists.
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		// DeleteEnrollment removes an enrollment with its lesson progress and certificate.
		DeleteEnrollment(ctx context.Context, enrollmentID int, exec ...core.DBExecutor) (int, error)
		QueryMyCourses(ctx context.Context, userID int, exec ...core.DBExecutor) ([]MyCourse, error)

		CourseHasLesson(ctx context.Context, courseID, lessonID int, exec ...core.DBExecutor) (bool, error)
		UpsertLessonProgress(ctx context.Context, enrollmentID, lessonID int, at time.Time, exec ...core.DBExecutor) error
		CountLessons(ctx context.Context, courseID int, exec ...core.DBExecutor) (int, error)
		CountCompletedLessons(ctx context.Context, enrollmentID int, exec ...core.DBExecutor) (int, error)
		// CompletedLessonIDs returns the set of lessons completed within an enrollment.
		CompletedLessonIDs(ctx context.Context, enrollmentID int, exec ...core.DBExecutor) (map[int]bool, error)
		// UpdateProgress stores e.Progress and e.Completed. CompletedAt is set to `at` on the transition
		// to completed, kept while completed and cleared otherwise.
		UpdateProgress(ctx context.Context, e Enrollment, at time.Time, exec ...core.DBExecutor) (Enrollment, error)

		// InsertCertificate inserts c unless its enrollment already has a certificate; reports whether it did.
		InsertCertificate(ctx context.Context, c Certificate, exec ...core.DBExecutor) (bool, error)
		GetCertificate(ctx context.Context, enrollmentID int, exec ...core.DBExecutor) (Certificate, error)
		// GetCertificateDetail returns ErrCertificateNotFound when there is no certificate yet.
		GetCertificateDetail(ctx context.Context, userID, courseID int, exec ...core.DBExecutor) (CertificateDetail, error)
		QueryCertificates(ctx context.Context, userID int, exec ...core.DBExecutor) ([]CertificateSummary, error)
	}

	// Service is the Enrollment & Progress Tracker.
	Service interface {
		Enroll(ctx context.Context, userID, courseID int) (Enrollment, error)
		Unenroll(ctx context.Context, userID, courseID int) error
		ListMyCourses(ctx context.Context, userID int) ([]MyCourse, error)
		// MarkLessonCompleted records the lesson as done, recomputes the enrollment progress and issues
		// the certificate once the course is completed. All of it happens in a single transaction.
		MarkLessonCompleted(ctx context.Context, userID, courseID, lessonID int) (ProgressResult, error)
		GetCourseProgress(ctx context.Context, userID, courseID int) (CourseProgress, error)
		GetCertificate(ctx context.Context, userID, courseID int) (CertificateDetail, error)
		ListCertificates(ctx context.Context, userID int) ([]CertificateSummary, error)
		CertificatePDF(ctx context.Context, userID, courseID int) ([]byte, CertificateDetail, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		courseSvc course.Service
		mailSvc   core.EmailService
		logger    core.Logger
		nowFunc   func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, courseSvc course.Service, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		db:        db,
		repo:      repo,
		courseSvc: courseSvc,
		mailSvc:   mailSvc,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

func (svc *service) now() time.Time {
	return svc.nowFunc().UTC()
}

func (svc *service) Enroll(ctx context.Context, userID, courseID int) (Enrollment, error) {
	c, err := svc.courseSvc.GetByID(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if !c.IsActive() {
		return Enrollment{}, ErrCourseUnavailable
	}
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: svc.now(),
	})
}

func (svc *service) Unenroll(ctx context.Context, userID, courseID int) error {
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		e, err := svc.repo.GetEnrollment(ctx, userID, courseID, tx)
		if err != nil {
			return err
		}
		cnt, err := svc.repo.DeleteEnrollment(ctx, e.ID, tx)
		if err != nil {
			return errors.Wrap(err, "deleting enrollment")
		}
		if cnt == 0 {
			return ErrNotEnrolled
		}
		return nil
	})
}

func (svc *service) ListMyCourses(ctx context.Context, userID int) ([]MyCourse, error) {
	return svc.repo.QueryMyCourses(ctx, userID)
}

func (svc *service) MarkLessonCompleted(ctx context.Context, userID, courseID, lessonID int) (ProgressResult, error) {
	var res ProgressResult
	now := svc.now()

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		// completions of the same enrollment run one at a time so each count sees the previous ones
		e, err := svc.repo.LockEnrollment(ctx, userID, courseID, tx)
		if err != nil {
			return err
		}
		ok, err := svc.repo.CourseHasLesson(ctx, courseID, lessonID, tx)
		if err != nil {
			return errors.Wrap(err, "checking lesson")
		}
		if !ok {
			return ErrLessonNotFound
		}

		if err = svc.repo.UpsertLessonProgress(ctx, e.ID, lessonID, now, tx); err != nil {
			return errors.Wrap(err, "upserting lesson progress")
		}

		total, err := svc.repo.CountLessons(ctx, courseID, tx)
		if err != nil {
			return errors.Wrap(err, "counting lessons")
		}
		done, err := svc.repo.CountCompletedLessons(ctx, e.ID, tx)
		if err != nil {
			return errors.Wrap(err, "counting completed lessons")
		}
		e.Progress = ComputeProgress(done, total)
		e.Completed = e.Progress == 100

		if e, err = svc.repo.UpdateProgress(ctx, e, now, tx); err != nil {
			return errors.Wrap(err, "updating progress")
		}
		res = ProgressResult{Progress: e.Progress, Completed: e.Completed}
		if !e.Completed {
			return nil
		}

		// the unique enrollment constraint makes concurrent issuance insert at most one row
		issued, err := svc.repo.InsertCertificate(ctx, Certificate{
			EnrollmentID: e.ID,
			Code:         NewCertificateCode(userID, courseID, now),
			IssuedAt:     now,
		}, tx)
		if err != nil {
			return errors.Wrap(err, "inserting certificate")
		}
		cert, err := svc.repo.GetCertificate(ctx, e.ID, tx)
		if err != nil {
			return errors.Wrap(err, "getting certificate")
		}
		res.Certificate = null.StringFrom(cert.Code)
		res.Issued = issued
		return nil
	})
	if err != nil {
		return ProgressResult{}, err
	}

	if res.Issued {
		svc.sendCertificateMail(ctx, userID, courseID)
	}
	return res, nil
}

func (svc *service) sendCertificateMail(ctx context.Context, userID, courseID int) {
	cert, err := svc.repo.GetCertificateDetail(ctx, userID, courseID)
	if err != nil {
		svc.logger.Error("sending certificate email", errors.Wrap(err, "getting certificate detail"))
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: cert.StudentName, Address: cert.StudentEmail}},
		Subject:      fmt.Sprintf("Certificado: %s", cert.CourseTitle),
		TemplateName: "certificate_issued",
		TemplateData: map[string]interface{}{
			"Name":        cert.StudentName,
			"CourseTitle": cert.CourseTitle,
			"CourseID":    courseID,
			"Code":        cert.Code,
		},
	}
	pdf, err := RenderCertificatePDF(cert)
	if err == nil {
		err = msg.Attach(bytes.NewReader(pdf), CertificateFilename(cert), "application/pdf")
	}
	if err != nil {
		// the email still goes out, without the PDF
		svc.logger.Error("attaching certificate PDF", errors.Wrap(err, "attaching certificate PDF"))
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *service) GetCourseProgress(ctx context.Context, userID, courseID int) (CourseProgress, error) {
	detail, err := svc.courseSvc.GetDetail(ctx, courseID)
	if err != nil {
		return CourseProgress{}, err
	}
	e, err := svc.repo.GetEnrollment(ctx, userID, courseID)
	if err != nil {
		return CourseProgress{}, err
	}
	done, err := svc.repo.CompletedLessonIDs(ctx, e.ID)
	if err != nil {
		return CourseProgress{}, errors.Wrap(err, "querying completed lessons")
	}
	return buildCourseProgress(detail, e, done), nil
}

func (svc *service) GetCertificate(ctx context.Context, userID, courseID int) (CertificateDetail, error) {
	return svc.repo.GetCertificateDetail(ctx, userID, courseID)
}

func (svc *service) ListCertificates(ctx context.Context, userID int) ([]CertificateSummary, error) {
	return svc.repo.QueryCertificates(ctx, userID)
}

func (svc *service) CertificatePDF(ctx context.Context, userID, courseID int) ([]byte, CertificateDetail, error) {
	cert, err := svc.repo.GetCertificateDetail(ctx, userID, courseID)
	if err != nil {
		return nil, CertificateDetail{}, err
	}
	pdf, err := RenderCertificatePDF(cert)
	if err != nil {
		return nil, CertificateDetail{}, errors.Wrap(err, "rendering certificate")
	}
	return pdf, cert, nil
}
