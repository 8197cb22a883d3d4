package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/matheus3301/hangouts/internal/bus"
	"github.com/matheus3301/hangouts/internal/hangout"
	"github.com/matheus3301/hangouts/internal/state"
)

func searchServer(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("username") != "alice" {
			http.Error(w, "missing username", http.StatusBadRequest)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFindLocalMatchSkipsServer(t *testing.T) {
	var hits atomic.Int32
	srv := searchServer(t, http.StatusOK, `[]`, &hits)
	st := state.NewStore(bus.New())
	st.Dispatch(state.LoadHangouts{Hangouts: []hangout.Hangout{{Username: "bob"}, {Username: "carol"}}})

	got, err := NewFinder(srv.URL, "alice", st, nil).Find(context.Background(), "BO")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Username != "bob" {
		t.Errorf("Find() = %+v", got)
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times, want 0", hits.Load())
	}
}

func TestFindFallsBackToServer(t *testing.T) {
	var hits atomic.Int32
	srv := searchServer(t, http.StatusOK, `[{"username":"zed","email":"zed@x","state":"","timestamp":0}]`, &hits)
	st := state.NewStore(bus.New())
	st.Dispatch(state.LoadHangouts{Hangouts: []hangout.Hangout{{Username: "bob"}}})

	got, err := NewFinder(srv.URL, "alice", st, nil).Find(context.Background(), "zed")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Email != "zed@x" {
		t.Errorf("Find() = %+v", got)
	}
	cur := st.Current()
	if cur.Loading || cur.NotFound {
		t.Errorf("loading=%v notFound=%v", cur.Loading, cur.NotFound)
	}
	if len(cur.Hangouts) != 1 || cur.Hangouts[0].Username != "zed" {
		t.Errorf("state hangouts = %+v", cur.Hangouts)
	}
}

func TestFindNotFound(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"empty list", http.StatusOK, `[]`},
		{"empty body", http.StatusOK, ``},
		{"404", http.StatusNotFound, `not found`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := searchServer(t, tt.status, tt.body, &hits)
			st := state.NewStore(bus.New())
			st.Dispatch(state.LoadHangouts{Hangouts: []hangout.Hangout{{Username: "bob"}}})

			_, err := NewFinder(srv.URL, "alice", st, nil).Find(context.Background(), "nobody")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Find() error = %v, want ErrNotFound", err)
			}
			cur := st.Current()
			if !cur.NotFound {
				t.Error("NotFound not set")
			}
			if len(cur.Hangouts) != 1 || cur.Hangouts[0].Username != "bob" {
				t.Errorf("hangouts = %+v, want untouched", cur.Hangouts)
			}
		})
	}
}

func TestFindServerError(t *testing.T) {
	var hits atomic.Int32
	srv := searchServer(t, http.StatusInternalServerError, `boom`, &hits)
	st := state.NewStore(bus.New())

	_, err := NewFinder(srv.URL, "alice", st, nil).Find(context.Background(), "zed")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Find() error = %v, want transport error", err)
	}
	cur := st.Current()
	if cur.Loading || cur.Error == nil {
		t.Errorf("loading=%v error=%v", cur.Loading, cur.Error)
	}
}

func TestDecodeSingleObject(t *testing.T) {
	got, err := decode([]byte(` {"username":"zed"} `))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Username != "zed" {
		t.Errorf("decode() = %+v", got)
	}
}
