package report

import (
	"fmt"
	"testing"

	"github.com/mwhitmer/bankmerge/internal/domain"
)

func TestReporter_Result(t *testing.T) {
	r := New()
	if r.Len() != 0 {
		t.Errorf("new reporter Len() = %d", r.Len())
	}

	r.Record(2, fmt.Errorf("bad amount"))
	r.Append([]domain.RecordError{{Record: 5, Message: "missing date"}})

	result := r.Result([]int64{10, 11}, []int64{3})
	if result.BatchID == "" {
		t.Error("batch ID should be set")
	}
	if len(result.Errors) != 2 {
		t.Fatalf("errors = %d, want 2", len(result.Errors))
	}
	if result.Errors[0].Record != 2 || result.Errors[0].Message != "bad amount" {
		t.Errorf("errors[0] = %+v", result.Errors[0])
	}
	if result.Fatal {
		t.Error("partial result must not be fatal")
	}
	if !result.Partial() || result.Clean() {
		t.Errorf("Partial() = %v Clean() = %v", result.Partial(), result.Clean())
	}
	if len(result.Added) != 2 || len(result.Updated) != 1 {
		t.Errorf("added = %v updated = %v", result.Added, result.Updated)
	}
}

func TestReporter_CleanResult(t *testing.T) {
	r := New()
	result := r.Result([]int64{1}, nil)
	if !result.Clean() || result.Partial() || result.Fatal {
		t.Errorf("result = %+v, want clean", result)
	}
}

func TestReporter_Fatal(t *testing.T) {
	r := New()
	r.Record(0, fmt.Errorf("earlier record error"))

	result := r.Fatal(fmt.Errorf("database unavailable"))
	if !result.Fatal {
		t.Error("Fatal() result must be marked fatal")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %d, want single fatal entry", len(result.Errors))
	}
	if result.Errors[0].Record != -1 {
		t.Errorf("fatal error record index = %d, want -1", result.Errors[0].Record)
	}
	if len(result.Added) != 0 || len(result.Updated) != 0 {
		t.Error("fatal result must report nothing applied")
	}
}

func TestReporter_DistinctBatchIDs(t *testing.T) {
	a := New().Result(nil, nil)
	b := New().Result(nil, nil)
	if a.BatchID == b.BatchID {
		t.Error("each reporter must mint a distinct batch ID")
	}
}
