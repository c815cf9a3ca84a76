package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/studyhub/internal/model"
	"github.com/xxxsen/studyhub/internal/pkg/dbutil"
	appErr "github.com/xxxsen/studyhub/internal/pkg/errors"
)

const consumeOTPSQL = `DELETE FROM otps WHERE id = ? AND code_hash = ? RETURNING id`

type OTPRepo struct {
	db *sql.DB
}

func NewOTPRepo(db *sql.DB) *OTPRepo {
	return &OTPRepo{db: db}
}

func (r *OTPRepo) Create(ctx context.Context, otp *model.OTP) error {
	data := map[string]interface{}{
		"id":        otp.ID,
		"email":     otp.Email,
		"code_hash": otp.CodeHash,
		"ctime":     otp.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("otps", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *OTPRepo) DeleteByEmail(ctx context.Context, email string) error {
	sqlStr, args, err := builder.BuildDelete("otps", map[string]interface{}{"email": email})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *OTPRepo) LatestByEmail(ctx context.Context, email string) (*model.OTP, error) {
	where := map[string]interface{}{"email": email, "_orderby": "ctime desc", "_limit": []uint{0, 1}}
	sqlStr, args, err := builder.BuildSelect("otps", where, []string{"id", "email", "code_hash", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	var otp model.OTP
	if err := rows.Scan(&otp.ID, &otp.Email, &otp.CodeHash, &otp.Ctime); err != nil {
		return nil, err
	}
	return &otp, nil
}

// Consume deletes the record only if it still carries codeHash. The delete
// and the match happen in one statement, so two racing verifiers cannot both
// succeed: the loser sees ErrNotFound.
func (r *OTPRepo) Consume(ctx context.Context, id, codeHash string) error {
	sqlStr, args := dbutil.Finalize(consumeOTPSQL, []interface{}{id, codeHash})
	var deleted string
	err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&deleted)
	if err == sql.ErrNoRows {
		return appErr.ErrNotFound
	}
	return err
}

// DeleteBefore removes records created before cutoff (unix milliseconds).
func (r *OTPRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args, err := builder.BuildDelete("otps", map[string]interface{}{"ctime <": cutoff})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
