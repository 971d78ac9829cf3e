package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"tokokasir/backend/internal/store"
)

func TestMapCommitError(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{code: "40001", want: store.ErrConflict},
		{code: "40P01", want: store.ErrConflict},
		{code: "55P03", want: store.ErrConflict},
		{code: "23503", want: store.ErrNotFound},
	}
	for _, tc := range cases {
		err := mapCommitError(fmt.Errorf("exec: %w", &pgconn.PgError{Code: tc.code, ConstraintName: "sales_cashier_id_fkey"}))
		if !errors.Is(err, tc.want) {
			t.Fatalf("code %s: expected %v, got %v", tc.code, tc.want, err)
		}
	}

	raw := &pgconn.PgError{Code: "22003"}
	if err := mapCommitError(raw); !errors.Is(err, raw) || errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected unrelated error passed through, got %v", err)
	}
}
