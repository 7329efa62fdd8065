package database

import (
	"testing"

	"github.com/aquatracking/aquatracking/internal/docstore"
)

func TestSelectQuery(t *testing.T) {
	q, args, err := selectQuery("body", "alerts", nil)
	if err != nil {
		t.Fatal(err)
	}
	if q != `SELECT body FROM documents WHERE collection = $1` {
		t.Errorf("unexpected query %q", q)
	}
	if len(args) != 1 || args[0] != "alerts" {
		t.Errorf("unexpected args %v", args)
	}

	q, args, err = selectQuery("count(*)", "alerts", docstore.Filter{"homeId": "H1", "resolved": false})
	if err != nil {
		t.Fatal(err)
	}
	if q != `SELECT count(*) FROM documents WHERE collection = $1 AND body @> $2::jsonb` {
		t.Errorf("unexpected query %q", q)
	}
	if len(args) != 2 || args[1] != `{"homeId":"H1","resolved":false}` {
		t.Errorf("unexpected args %v", args)
	}
}
