package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/student"
)

const (
	parentColumns  = `id, name, phone_number, email, created_at`
	studentColumns = `id, school_id, parent_id, name, grade, rfid_tag_id, is_active, created_at`
)

var errTagTaken = core.NewConflictError("A student with this RFID tag already exists")

type (
	parentRow struct {
		ID          string      `db:"id"`
		Name        string      `db:"name"`
		PhoneNumber null.String `db:"phone_number"`
		Email       null.String `db:"email"`
		CreatedAt   time.Time   `db:"created_at"`
	}

	studentRow struct {
		ID        string      `db:"id"`
		SchoolID  string      `db:"school_id"`
		ParentID  string      `db:"parent_id"`
		Name      string      `db:"name"`
		Grade     null.String `db:"grade"`
		RFIDTagID null.String `db:"rfid_tag_id"`
		IsActive  bool        `db:"is_active"`
		CreatedAt time.Time   `db:"created_at"`
	}

	contactRow struct {
		studentRow
		ParentName        string      `db:"parent_name"`
		ParentPhoneNumber null.String `db:"parent_phone_number"`
		ParentEmail       null.String `db:"parent_email"`
		ParentCreatedAt   time.Time   `db:"parent_created_at"`
	}
)

func boilParent(p student.Parent) parentRow {
	return parentRow{
		ID:          p.ID,
		Name:        p.Name,
		PhoneNumber: null.NewString(p.PhoneNumber, p.PhoneNumber != ""),
		Email:       null.NewString(p.Email, p.Email != ""),
		CreatedAt:   p.CreatedAt,
	}
}

func boilStudent(s student.Student) studentRow {
	return studentRow{
		ID:        s.ID,
		SchoolID:  s.SchoolID,
		ParentID:  s.ParentID,
		Name:      s.Name,
		Grade:     null.NewString(s.Grade, s.Grade != ""),
		RFIDTagID: null.StringFromPtr(s.RFIDTagID),
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt,
	}
}

func (row studentRow) unboil() student.Student {
	return student.Student{
		ID:        row.ID,
		SchoolID:  row.SchoolID,
		ParentID:  row.ParentID,
		Name:      row.Name,
		Grade:     row.Grade.String,
		RFIDTagID: row.RFIDTagID.Ptr(),
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func (row contactRow) unboil() student.Contact {
	return student.Contact{
		Student: row.studentRow.unboil(),
		Parent: student.Parent{
			ID:          row.ParentID,
			Name:        row.ParentName,
			PhoneNumber: row.ParentPhoneNumber.String,
			Email:       row.ParentEmail.String,
			CreatedAt:   row.ParentCreatedAt.UTC(),
		},
	}
}

type StudentRepository struct {
	repository
}

var _ student.Repository = (*StudentRepository)(nil)

func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{repository{db: db}}
}

func (repo *StudentRepository) CreateParent(ctx context.Context, p student.Parent, exec ...core.DBExecutor) (student.Parent, error) {
	p.ID = uuid.NewString()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`INSERT INTO parents (`+parentColumns+`) VALUES (:id, :name, :phone_number, :email, :created_at)`, boilParent(p))
	if err != nil {
		return student.Parent{}, mapErr(err, nil, nil, "inserting parent")
	}
	return p, nil
}

func (repo *StudentRepository) CreateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	if !validIDs(s.ParentID) {
		return student.Student{}, student.ErrParentNotFound
	}
	s.ID = uuid.NewString()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO students (`+studentColumns+`)
		VALUES (:id, :school_id, :parent_id, :name, :grade, :rfid_tag_id, :is_active, :created_at)`, boilStudent(s))
	if isForeignKeyViolation(err) {
		return student.Student{}, student.ErrParentNotFound
	}
	if err != nil {
		return student.Student{}, mapErr(err, nil, errTagTaken, "inserting student")
	}
	return s, nil
}

func (repo *StudentRepository) getStudent(ctx context.Context, exec []core.DBExecutor, cond string, arg interface{}) (student.Student, error) {
	var row studentRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+studentColumns+` FROM students WHERE `+cond, arg); err != nil {
		return student.Student{}, mapErr(err, student.ErrNotFound, nil, "selecting student")
	}
	return row.unboil(), nil
}

func (repo *StudentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	if !validIDs(id) {
		return student.Student{}, student.ErrNotFound
	}
	return repo.getStudent(ctx, exec, "id = $1", id)
}

func (repo *StudentRepository) GetActiveStudentByRFIDTag(ctx context.Context, tag string, exec ...core.DBExecutor) (student.Student, error) {
	return repo.getStudent(ctx, exec, "rfid_tag_id = $1 AND is_active", tag)
}

func (repo *StudentRepository) GetContact(ctx context.Context, studentID string, exec ...core.DBExecutor) (student.Contact, error) {
	if !validIDs(studentID) {
		return student.Contact{}, student.ErrNotFound
	}
	var row contactRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT
		s.id, s.school_id, s.parent_id, s.name, s.grade, s.rfid_tag_id, s.is_active, s.created_at,
		p.name AS parent_name, p.phone_number AS parent_phone_number, p.email AS parent_email,
		p.created_at AS parent_created_at
		FROM students s JOIN parents p ON p.id = s.parent_id
		WHERE s.id = $1`, studentID)
	if err != nil {
		return student.Contact{}, mapErr(err, student.ErrNotFound, nil, "selecting student contact")
	}
	return row.unboil(), nil
}
