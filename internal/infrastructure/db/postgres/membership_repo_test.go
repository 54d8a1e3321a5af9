package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/grepdeck/authgate/internal/domain"
)

func newMembershipMock(t *testing.T) (*MembershipRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMembershipRepo(db), mock
}

func TestMembershipRepo_EnsureInserts(t *testing.T) {
	repo, mock := newMembershipMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO org_memberships")).
		WithArgs("u-1", int64(1), domain.OrgRoleMember).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Ensure(context.Background(), domain.OrgMembership{UserID: "u-1", OrgID: 1, Role: domain.OrgRoleMember})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMembershipRepo_EnsureIsIdempotent(t *testing.T) {
	repo, mock := newMembershipMock(t)

	// ON CONFLICT DO NOTHING reports zero affected rows; still a success.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO org_memberships")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Ensure(context.Background(), domain.OrgMembership{UserID: "u-1", OrgID: 1, Role: domain.OrgRoleMember})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMembershipRepo_EnsureDefaultsRole(t *testing.T) {
	repo, mock := newMembershipMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO org_memberships")).
		WithArgs("u-1", int64(1), domain.OrgRoleMember).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Ensure(context.Background(), domain.OrgMembership{UserID: "u-1", OrgID: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMembershipRepo_EnsureRequiresUserID(t *testing.T) {
	repo, _ := newMembershipMock(t)

	err := repo.Ensure(context.Background(), domain.OrgMembership{OrgID: 1})
	if !domain.Is(err, "missing_field") {
		t.Fatalf("expected missing_field, got %v", err)
	}
}

func TestMembershipRepo_EnsureDBFailure(t *testing.T) {
	repo, mock := newMembershipMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO org_memberships")).
		WillReturnError(errors.New("connection refused"))

	err := repo.Ensure(context.Background(), domain.OrgMembership{UserID: "u-1", OrgID: 1})
	if !domain.Is(err, "db_unavailable") {
		t.Fatalf("expected db_unavailable, got %v", err)
	}
}
