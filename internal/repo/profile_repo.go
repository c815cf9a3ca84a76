package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/studyhub/internal/model"
	"github.com/xxxsen/studyhub/internal/pkg/dbutil"
	appErr "github.com/xxxsen/studyhub/internal/pkg/errors"
)

type ProfileRepo struct {
	db *sql.DB
}

func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) Create(ctx context.Context, profile *model.Profile) error {
	data := map[string]interface{}{
		"id":             profile.ID,
		"gender":         profile.Gender,
		"date_of_birth":  profile.DateOfBirth,
		"about":          profile.About,
		"contact_number": profile.ContactNumber,
		"ctime":          profile.Ctime,
		"mtime":          profile.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("profiles", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildSelect("profiles", where, []string{"id", "gender", "date_of_birth", "about", "contact_number", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var p model.Profile
	if err := row.Scan(&p.ID, &p.Gender, &p.DateOfBirth, &p.About, &p.ContactNumber, &p.Ctime, &p.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
