package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/face-keeper/internal/model"
)

// UserDocument implements repository.DocumentStore on the face_users table.
// Every Save replaces the table contents inside one transaction.
type UserDocument struct{ db *DB }

// NewUserDocument constructs a user document repository.
func NewUserDocument(db *DB) *UserDocument { return &UserDocument{db: db} }

// Load selects all users in insertion order. The table always exists after
// migrations, so an empty table is an empty document.
func (r *UserDocument) Load(ctx context.Context) ([]model.User, error) {
	const q = `
SELECT username, password, face_vector
FROM face_users ORDER BY position`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.Username, &u.Password, &u.FaceVector); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Save replaces the stored snapshot with users.
func (r *UserDocument) Save(ctx context.Context, users []model.User) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM face_users`); err != nil {
		return err
	}
	const ins = `INSERT INTO face_users (position, username, password, face_vector) VALUES ($1,$2,$3,$4)`
	for i, u := range users {
		if _, err = tx.Exec(ctx, ins, int64(i), u.Username, u.Password, u.FaceVector); err != nil {
			return fmt.Errorf("user[%d]: %w", i, err)
		}
	}
	return nil
}
