package vectordb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"go.uber.org/zap"
)

// fakeChroma implements just enough of the Chroma HTTP API for client tests.
func fakeChroma(t *testing.T) (*httptest.Server, *map[string]any) {
	t.Helper()
	var lastBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int64{"nanosecond heartbeat": 1})
	})
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": "family_qa"})
	})
	mux.HandleFunc("/api/v1/collections/col-1/add", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/api/v1/collections/col-1/query", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		_ = json.NewEncoder(w).Encode(QueryResponse{
			IDs:       [][]string{{"v1"}},
			Distances: [][]float64{{0.25}},
			Metadatas: [][]Metadata{{{"member_id": "M1"}}},
			Documents: [][]string{{"doc"}},
		})
	})
	mux.HandleFunc("/api/v1/collections/col-1/get", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		_ = json.NewEncoder(w).Encode(GetResponse{
			IDs:       []string{"v1", "v2"},
			Metadatas: []Metadata{{"member_id": "M1"}, {"member_id": "M2"}},
			Documents: []string{"d1", "d2"},
		})
	})
	mux.HandleFunc("/api/v1/collections/col-1/delete", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		_ = json.NewEncoder(w).Encode([]string{"v1", "v2"})
	})
	return httptest.NewServer(mux), &lastBody
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())
	return NewClient(Config{Host: u.Hostname(), Port: port}, zap.NewNop())
}

func TestEnsureCollectionAndHeartbeat(t *testing.T) {
	srv, lastBody := fakeChroma(t)
	defer srv.Close()
	c := newTestClient(t, srv)

	if err := c.Heartbeat(context.Background()); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if err := c.EnsureCollection(context.Background(), "family_qa"); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if (*lastBody)["get_or_create"] != true {
		t.Error("expected get_or_create in collection request")
	}
}

func TestOperationsRequireCollection(t *testing.T) {
	srv, _ := fakeChroma(t)
	defer srv.Close()
	c := newTestClient(t, srv)

	if err := c.Add(context.Background(), AddRequest{}); err == nil {
		t.Error("Add before EnsureCollection should fail")
	}
	if _, err := c.Query(context.Background(), QueryRequest{}); err == nil {
		t.Error("Query before EnsureCollection should fail")
	}
}

func TestQueryDefaultsInclude(t *testing.T) {
	srv, lastBody := fakeChroma(t)
	defer srv.Close()
	c := newTestClient(t, srv)
	if err := c.EnsureCollection(context.Background(), "family_qa"); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	resp, err := c.Query(context.Background(), QueryRequest{
		QueryEmbeddings: [][]float32{{0.1, 0.2}},
		NResults:        5,
		Where:           Metadata{"member_id": "M1"},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(resp.IDs) != 1 || resp.IDs[0][0] != "v1" {
		t.Errorf("unexpected query response %+v", resp)
	}
	include, _ := (*lastBody)["include"].([]any)
	if len(include) != 3 {
		t.Errorf("expected default include list, got %v", include)
	}
	where, _ := (*lastBody)["where"].(map[string]any)
	if where["member_id"] != "M1" {
		t.Errorf("filter not forwarded: %v", where)
	}
}

func TestDeleteReturnsIDs(t *testing.T) {
	srv, _ := fakeChroma(t)
	defer srv.Close()
	c := newTestClient(t, srv)
	if err := c.EnsureCollection(context.Background(), "family_qa"); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	ids, err := c.Delete(context.Background(), DeleteRequest{Where: Metadata{"member_id": "M1"}})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 deleted ids, got %v", ids)
	}
}

func TestAddSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/collections" {
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "col-1"})
			return
		}
		http.Error(w, `{"error":"dimension mismatch"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()
	c := newTestClient(t, srv)
	if err := c.EnsureCollection(context.Background(), "family_qa"); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	err := c.Add(context.Background(), AddRequest{IDs: []string{"x"}})
	if err == nil {
		t.Fatal("expected error from 422 response")
	}
}
