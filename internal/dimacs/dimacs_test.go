package dimacs

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lcgkit/solver/internal/kernel/store"
)

type instance struct {
	Variables int
	Clauses   [][]store.Literal
}

func (i *instance) AddVariable() store.VarID {
	v := store.VarID(i.Variables)
	i.Variables++
	return v
}

func (i *instance) AddClause(tmpClause []store.Literal) error {
	clause := make([]store.Literal, len(tmpClause))
	copy(clause, tmpClause)
	i.Clauses = append(i.Clauses, clause)
	return nil
}

var want = instance{
	Variables: 3,
	Clauses: [][]store.Literal{
		{store.PositiveLiteral(0), store.PositiveLiteral(1), store.PositiveLiteral(2)},
		{store.PositiveLiteral(0), store.PositiveLiteral(1), store.NegativeLiteral(2)},
		{store.PositiveLiteral(0), store.NegativeLiteral(1), store.PositiveLiteral(2)},
		{store.NegativeLiteral(0), store.PositiveLiteral(1), store.PositiveLiteral(2)},
		{store.NegativeLiteral(0), store.NegativeLiteral(1), store.PositiveLiteral(2)},
		{store.NegativeLiteral(0), store.PositiveLiteral(1), store.NegativeLiteral(2)},
		{store.PositiveLiteral(0), store.NegativeLiteral(1), store.NegativeLiteral(2)},
		{store.NegativeLiteral(0), store.NegativeLiteral(1), store.NegativeLiteral(2)},
	},
}

func TestParseDIMACS_cnf(t *testing.T) {
	got := instance{}
	gotErr := Load("testdata/test_instance.cnf", false, &got)

	if gotErr != nil {
		t.Errorf("Load(): want no error, got %s", gotErr)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load(): mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDIMACS_gzip(t *testing.T) {
	got := instance{}
	gotErr := Load("testdata/test_instance.cnf.gz", true, &got)

	if gotErr != nil {
		t.Errorf("Load(): want no error, got %s", gotErr)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load(): mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDIMACS_noFile(t *testing.T) {
	got := instance{}
	gotErr := Load("", false, &got)

	if gotErr == nil {
		t.Errorf("Load(): want error, got none")
	}
}

func TestParseDIMACS_gzip_notGzipFile(t *testing.T) {
	got := instance{}
	gotErr := Load("testdata/test_instance.cnf", true, &got)

	if gotErr == nil {
		t.Errorf("Load(): want error, got none")
	}
}
