package users

import (
	"context"
	"database/sql"
	"errors"
	"iter"

	"github.com/jonwraymond/dbops/sqlstore"
)

// SQLite is the Repository for sqlstore connections.
var SQLite Repository[*sqlstore.Conn] = sqliteRepo{}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS users (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	age   INTEGER NOT NULL
)`

const sqliteUpsert = `INSERT INTO users (id, name, email, age) VALUES (?, ?, ?, ?)
ON CONFLICT(email) DO UPDATE SET name = excluded.name, age = excluded.age`

type sqliteRepo struct{}

func (sqliteRepo) CreateTable(ctx context.Context, c *sqlstore.Conn) error {
	_, err := c.Exec(ctx, sqliteSchema)
	return err
}

func (sqliteRepo) Seed(ctx context.Context, c *sqlstore.Conn, rows []User) (int, error) {
	n := 0
	for _, u := range withIDs(rows) {
		if _, err := c.Exec(ctx, sqliteUpsert, u.ID, u.Name, u.Email, u.Age); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (sqliteRepo) Get(ctx context.Context, c *sqlstore.Conn, id string) (User, error) {
	var u User
	err := c.QueryRow(ctx, `SELECT id, name, email, age FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Age)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, c.Err(err)
	}
	return u, nil
}

func (r sqliteRepo) List(ctx context.Context, c *sqlstore.Conn) ([]User, error) {
	return r.collect(ctx, c, `SELECT id, name, email, age FROM users ORDER BY name, id`)
}

func (r sqliteRepo) OlderThan(ctx context.Context, c *sqlstore.Conn, age int) ([]User, error) {
	return r.collect(ctx, c, `SELECT id, name, email, age FROM users WHERE age > ? ORDER BY name, id`, age)
}

func (sqliteRepo) UpdateEmail(ctx context.Context, c *sqlstore.Conn, id, email string) error {
	res, err := c.Exec(ctx, `UPDATE users SET email = ? WHERE id = ?`, email, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (sqliteRepo) Stream(ctx context.Context, c *sqlstore.Conn) iter.Seq2[User, error] {
	return func(yield func(User, error) bool) {
		rows, err := c.Query(ctx, `SELECT id, name, email, age FROM users ORDER BY name, id`)
		if err != nil {
			yield(User{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var u User
			if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Age); err != nil {
				yield(User{}, err)
				return
			}
			if !yield(u, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(User{}, c.Err(err))
		}
	}
}

func (sqliteRepo) Ages(ctx context.Context, c *sqlstore.Conn) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		rows, err := c.Query(ctx, `SELECT age FROM users`)
		if err != nil {
			yield(0, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var age int
			if err := rows.Scan(&age); err != nil {
				yield(0, err)
				return
			}
			if !yield(age, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(0, c.Err(err))
		}
	}
}

func (r sqliteRepo) collect(ctx context.Context, c *sqlstore.Conn, query string, args ...any) ([]User, error) {
	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Age); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, c.Err(rows.Err())
}
