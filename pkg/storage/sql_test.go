package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSQLStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLStore(filepath.Join(t.TempDir(), "db", "uninotes.db"))
	if err != nil {
		t.Fatalf("NewSQLStore: %v", err)
	}
	defer s.Close()

	if err := s.Set(ctx, "ns1", KeyToken, "t1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "ns1", KeyToken, "t2"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	v, ok, err := s.Get(ctx, "ns1", KeyToken)
	if err != nil || !ok || v != "t2" {
		t.Fatalf("Get = %q %v %v", v, ok, err)
	}

	s.Set(ctx, "ns2", KeyUser, "{}")
	list, err := s.Namespaces(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("Namespaces = %v %v", list, err)
	}

	if err := s.Remove(ctx, "ns1", KeyToken); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "ns1", KeyToken); ok {
		t.Fatal("token survived Remove")
	}

	if err := s.Purge(ctx, "ns2"); err != nil {
		t.Fatal(err)
	}
	list, _ = s.Namespaces(ctx)
	if len(list) != 0 {
		t.Fatalf("after purge = %v", list)
	}
}

func TestSealedStoreEncryptsValues(t *testing.T) {
	ctx := context.Background()
	inner, err := NewSQLStore(filepath.Join(t.TempDir(), "sealed.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer inner.Close()

	s := NewSealed(inner, newTestKey(t))
	if err := s.Set(ctx, "ns", KeyToken, "plain-token"); err != nil {
		t.Fatal(err)
	}

	raw, _, _ := inner.Get(ctx, "ns", KeyToken)
	if raw == "plain-token" || raw == "" {
		t.Fatalf("inner value not sealed: %q", raw)
	}
	v, ok, err := s.Get(ctx, "ns", KeyToken)
	if err != nil || !ok || v != "plain-token" {
		t.Fatalf("Get = %q %v %v", v, ok, err)
	}
}

func TestLatestPerNamespace(t *testing.T) {
	now := time.Now()
	got := latestPerNamespace([]Entry{
		{Namespace: "a", UpdatedAt: now.Add(-time.Hour)},
		{Namespace: "b", UpdatedAt: now.Add(-2 * time.Hour)},
		{Namespace: "a", UpdatedAt: now},
	})
	if len(got) != 2 || got[0].Name != "a" || !got[0].UpdatedAt.Equal(now) {
		t.Fatalf("latestPerNamespace = %v", got)
	}
}

func TestPostgresQueries(t *testing.T) {
	query, args, err := upsertQuery("ns", "token", "v", time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(query, "INSERT INTO storage_entries (namespace,key,value,updated_at) VALUES ($1,$2,$3,$4)") {
		t.Errorf("upsert query = %s", query)
	}
	if !strings.Contains(query, "ON CONFLICT (namespace, key) DO UPDATE") {
		t.Errorf("upsert query lacks conflict clause: %s", query)
	}
	if len(args) != 4 {
		t.Errorf("upsert args = %v", args)
	}

	query, args, err = removeQuery("ns", []string{"user", "token"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(query, "IN ($") || len(args) != 3 {
		t.Errorf("remove query = %s %v", query, args)
	}

	query, _, _ = namespacesQuery()
	if !strings.Contains(query, "GROUP BY namespace") {
		t.Errorf("namespaces query = %s", query)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("UNINOTES_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("UNINOTES_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	p, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	defer p.Purge(ctx, "pgtest")

	if err := p.Set(ctx, "pgtest", KeyToken, "a"); err != nil {
		t.Fatal(err)
	}
	if err := p.Set(ctx, "pgtest", KeyToken, "b"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := p.Get(ctx, "pgtest", KeyToken)
	if err != nil || !ok || v != "b" {
		t.Fatalf("Get = %q %v %v", v, ok, err)
	}
}
