package users

import (
	"context"
	"iter"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/jonwraymond/dbops/pgstore"
)

// Postgres is the Repository for pgstore connections.
var Postgres Repository[*pgstore.Conn] = postgresRepo{}

const postgresSchema = `CREATE TABLE IF NOT EXISTS users (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	age   INTEGER NOT NULL
)`

const postgresUpsert = `INSERT INTO users (id, name, email, age) VALUES ($1, $2, $3, $4)
ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, age = EXCLUDED.age`

type postgresRepo struct{}

func (postgresRepo) CreateTable(ctx context.Context, c *pgstore.Conn) error {
	_, err := c.Exec(ctx, postgresSchema)
	return err
}

func (postgresRepo) Seed(ctx context.Context, c *pgstore.Conn, rows []User) (int, error) {
	n := 0
	for _, u := range withIDs(rows) {
		if _, err := c.Exec(ctx, postgresUpsert, u.ID, u.Name, u.Email, u.Age); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (postgresRepo) Get(ctx context.Context, c *pgstore.Conn, id string) (User, error) {
	var u User
	err := pgxscan.Get(ctx, c, &u, `SELECT id, name, email, age FROM users WHERE id = $1`, id)
	if pgxscan.NotFound(err) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, c.Err(err)
	}
	return u, nil
}

func (postgresRepo) List(ctx context.Context, c *pgstore.Conn) ([]User, error) {
	out := []User{}
	if err := pgxscan.Select(ctx, c, &out, `SELECT id, name, email, age FROM users ORDER BY name, id`); err != nil {
		return nil, c.Err(err)
	}
	return out, nil
}

func (postgresRepo) OlderThan(ctx context.Context, c *pgstore.Conn, age int) ([]User, error) {
	out := []User{}
	if err := pgxscan.Select(ctx, c, &out,
		`SELECT id, name, email, age FROM users WHERE age > $1 ORDER BY name, id`, age); err != nil {
		return nil, c.Err(err)
	}
	return out, nil
}

func (postgresRepo) UpdateEmail(ctx context.Context, c *pgstore.Conn, id, email string) error {
	tag, err := c.Exec(ctx, `UPDATE users SET email = $1 WHERE id = $2`, email, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (postgresRepo) Stream(ctx context.Context, c *pgstore.Conn) iter.Seq2[User, error] {
	return func(yield func(User, error) bool) {
		rows, err := c.Query(ctx, `SELECT id, name, email, age FROM users ORDER BY name, id`)
		if err != nil {
			yield(User{}, err)
			return
		}
		defer rows.Close()

		rs := pgxscan.NewRowScanner(rows)
		for rows.Next() {
			var u User
			if err := rs.Scan(&u); err != nil {
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

func (postgresRepo) Ages(ctx context.Context, c *pgstore.Conn) iter.Seq2[int, error] {
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
