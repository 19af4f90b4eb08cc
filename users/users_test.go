package users

import (
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqOf(users []User, failAt int, err error) iter.Seq2[User, error] {
	return func(yield func(User, error) bool) {
		for i, u := range users {
			if i == failAt {
				yield(User{}, err)
				return
			}
			if !yield(u, nil) {
				return
			}
		}
	}
}

func names(n int) []User {
	out := make([]User, n)
	for i := range out {
		out[i] = User{Name: string(rune('a' + i)), Age: 20 + i}
	}
	return out
}

func TestBatches(t *testing.T) {
	tests := []struct {
		name  string
		users int
		size  int
		want  []int
	}{
		{"exact", 6, 3, []int{3, 3}},
		{"remainder kept", 7, 3, []int{3, 3, 1}},
		{"larger than input", 2, 5, []int{2}},
		{"empty", 0, 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			for b, err := range Batches(seqOf(names(tt.users), -1, nil), tt.size) {
				require.NoError(t, err)
				got = append(got, len(b))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBatches_InvalidSize(t *testing.T) {
	for _, err := range Batches(seqOf(names(3), -1, nil), 0) {
		assert.ErrorIs(t, err, ErrInvalidBatchSize)
	}
}

func TestBatches_StreamError(t *testing.T) {
	boom := errors.New("boom")
	var batches int
	var last error
	for b, err := range Batches(seqOf(names(5), 3, boom), 2) {
		if err != nil {
			last = err
			continue
		}
		batches++
		assert.Len(t, b, 2)
	}
	assert.Equal(t, 1, batches)
	assert.ErrorIs(t, last, boom)
}

func TestBatches_EarlyBreak(t *testing.T) {
	n := 0
	for range Batches(seqOf(names(10), -1, nil), 2) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestAverageAge(t *testing.T) {
	ages := func(vals ...int) iter.Seq2[int, error] {
		return func(yield func(int, error) bool) {
			for _, v := range vals {
				if !yield(v, nil) {
					return
				}
			}
		}
	}

	avg, err := AverageAge(ages(20, 30, 41))
	require.NoError(t, err)
	assert.InDelta(t, 30.333, avg, 0.001)

	_, err = AverageAge(ages())
	assert.ErrorIs(t, err, ErrNoUsers)

	boom := errors.New("boom")
	_, err = AverageAge(func(yield func(int, error) bool) { yield(0, boom) })
	assert.ErrorIs(t, err, boom)
}

func TestParseCSV(t *testing.T) {
	in := `name,email,age
Alice,alice@example.com,30
 Bob , bob@example.com ,67.0
`
	got, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []User{
		{Name: "Alice", Email: "alice@example.com", Age: 30},
		{Name: "Bob", Email: "bob@example.com", Age: 67},
	}, got)
}

func TestParseCSV_KeepsIDs(t *testing.T) {
	got, err := ParseCSV(strings.NewReader("user_id,name,email,age\nu-1,Carol,carol@example.com,41\n"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u-1", got[0].ID)
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "header"},
		{"missing column", "name,age\nA,1\n", `"email"`},
		{"bad age", "name,email,age\nA,a@x,old\n", "line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWithIDs(t *testing.T) {
	in := []User{{ID: "keep"}, {}}
	out := withIDs(in)
	assert.Equal(t, "keep", out[0].ID)
	assert.Len(t, out[1].ID, 36)
	assert.Empty(t, in[1].ID, "input must not be modified")
}
