package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mito-cohort-pipeline/internal/domain"
)

func TestNewOntologyResolver_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hp.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"graphs":[{"nodes":[
		{"id":"http://purl.obolibrary.org/obo/HP_0001250","lbl":"Seizure"}
	]}]}`), 0o644))

	bundle, err := NewOntologyResolver(domain.OntologyConfig{Source: path}, domain.CacheConfig{}, newTestLogger())
	require.NoError(t, err)
	defer bundle.Close()

	name, err := bundle.Resolver.ResolveName(context.Background(), "HP:0001250")
	require.NoError(t, err)
	assert.Equal(t, "Seizure", name)
}

func TestNewOntologyResolver_API(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[1,["HP:0000407"],null,[["Sensorineural hearing impairment"]]]`)
	}))
	defer server.Close()

	bundle, err := NewOntologyResolver(domain.OntologyConfig{
		Source:    "API",
		BaseURL:   server.URL,
		Timeout:   5 * time.Second,
		RateLimit: 100,
	}, domain.CacheConfig{MaxItems: 10, TTL: time.Minute}, newTestLogger())
	require.NoError(t, err)
	defer bundle.Close()

	name, err := bundle.Resolver.ResolveName(context.Background(), "HP:0000407")
	require.NoError(t, err)
	assert.Equal(t, "Sensorineural hearing impairment", name)
}

func TestNewOntologyResolver_Errors(t *testing.T) {
	_, err := NewOntologyResolver(domain.OntologyConfig{Source: filepath.Join(t.TempDir(), "absent.json")},
		domain.CacheConfig{}, newTestLogger())
	assert.Error(t, err)
}

func TestNewOntologyResolver_UnreachableRedisFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hp.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"graphs":[{"nodes":[]}]}`), 0o644))

	bundle, err := NewOntologyResolver(domain.OntologyConfig{Source: path},
		domain.CacheConfig{RedisURL: "redis://127.0.0.1:1/0", MaxRetries: -1}, newTestLogger())
	require.NoError(t, err)
	defer bundle.Close()

	name, err := bundle.Resolver.ResolveName(context.Background(), "HP:0001250")
	require.NoError(t, err)
	assert.Empty(t, name)
}
