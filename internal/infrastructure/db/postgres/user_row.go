package postgres

import (
	"database/sql"
	"time"

	"github.com/grepdeck/authgate/internal/domain"
)

// userRow mirrors the users table. Nullable columns stay sql.Null* here and
// collapse to zero values at the domain boundary.
type userRow struct {
	ID        string
	Email     string
	Name      sql.NullString
	Image     sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ur userRow) toDomain() domain.User {
	return domain.User{
		ID:        ur.ID,
		Email:     ur.Email,
		Name:      ur.Name.String,
		Image:     ur.Image.String,
		CreatedAt: ur.CreatedAt,
		UpdatedAt: ur.UpdatedAt,
	}
}
