package users

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates no user matched.
	ErrNotFound = errors.New("users: not found")

	// ErrNoUsers indicates an aggregate over an empty table.
	ErrNoUsers = errors.New("users: no users")

	// ErrInvalidBatchSize indicates a batch size below one.
	ErrInvalidBatchSize = errors.New("users: batch size must be positive")
)

// User is one row of the users table.
type User struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
	Age   int    `db:"age" json:"age"`
}

// Repository is the set of queries available on a handle of type C.
//
// Contract:
// - Concurrency: implementations are stateless; C is owned by the caller.
// - Iterators: Stream and Ages hold an open cursor until the loop ends and
//   must be consumed inside the call that owns the handle.
type Repository[C any] interface {
	// CreateTable creates the users table if it does not exist.
	CreateTable(ctx context.Context, c C) error

	// Seed upserts rows keyed by email and returns how many were written.
	// Rows without an ID get a new UUID.
	Seed(ctx context.Context, c C, rows []User) (int, error)

	// Get returns the user with id, or ErrNotFound.
	Get(ctx context.Context, c C, id string) (User, error)

	// List returns every user ordered by name.
	List(ctx context.Context, c C) ([]User, error)

	// OlderThan returns users whose age is greater than age.
	OlderThan(ctx context.Context, c C, age int) ([]User, error)

	// UpdateEmail changes the email of user id, or returns ErrNotFound.
	UpdateEmail(ctx context.Context, c C, id, email string) error

	// Stream yields users one at a time.
	Stream(ctx context.Context, c C) iter.Seq2[User, error]

	// Ages yields only the age column.
	Ages(ctx context.Context, c C) iter.Seq2[int, error]
}

// Batches groups a user stream into slices of n. The last batch may be
// shorter. An error from the stream is yielded on its own and ends the
// sequence.
func Batches(users iter.Seq2[User, error], n int) iter.Seq2[[]User, error] {
	return func(yield func([]User, error) bool) {
		if n < 1 {
			yield(nil, ErrInvalidBatchSize)
			return
		}
		batch := make([]User, 0, n)
		for u, err := range users {
			if err != nil {
				yield(nil, err)
				return
			}
			batch = append(batch, u)
			if len(batch) == n {
				if !yield(batch, nil) {
					return
				}
				batch = make([]User, 0, n)
			}
		}
		if len(batch) > 0 {
			yield(batch, nil)
		}
	}
}

// AverageAge computes the mean of ages in a single pass.
func AverageAge(ages iter.Seq2[int, error]) (float64, error) {
	var total, count int64
	for age, err := range ages {
		if err != nil {
			return 0, err
		}
		total += int64(age)
		count++
	}
	if count == 0 {
		return 0, ErrNoUsers
	}
	return float64(total) / float64(count), nil
}

// ParseCSV reads users from CSV with a header row naming at least the
// name, email and age columns. A user_id or id column, when present, is
// kept; missing IDs are filled by Seed.
func ParseCSV(r io.Reader) ([]User, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("users: read csv header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"name", "email", "age"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("users: csv header missing %q column", required)
		}
	}
	idCol, hasID := col["user_id"]
	if !hasID {
		idCol, hasID = col["id"]
	}

	var out []User
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("users: read csv: %w", err)
		}
		age, err := strconv.ParseFloat(strings.TrimSpace(rec[col["age"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("users: csv line %d: invalid age %q", line, rec[col["age"]])
		}
		u := User{
			Name:  strings.TrimSpace(rec[col["name"]]),
			Email: strings.TrimSpace(rec[col["email"]]),
			Age:   int(age),
		}
		if hasID {
			u.ID = strings.TrimSpace(rec[idCol])
		}
		out = append(out, u)
	}
}

func withIDs(rows []User) []User {
	out := make([]User, len(rows))
	for i, u := range rows {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		out[i] = u
	}
	return out
}
