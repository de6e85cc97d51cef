package index

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/contextual/internal/apperr"
	"github.com/starford/contextual/internal/checksum"
	"github.com/starford/contextual/internal/embedding"
	"github.com/starford/contextual/internal/models"
)

func testEmbedder() *embedding.Service {
	return embedding.NewService(embedding.NewBuilder(embedding.Config{
		Provider:  embedding.ProviderHashing,
		Dimension: 128,
	}))
}

func testDB(t *testing.T) *DB {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	db, err := Open(context.Background(), t.TempDir(), testEmbedder(), WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func mustUpsert(t *testing.T, db *DB, title, body string, tags ...string) string {
	t.Helper()
	ts := make([]models.Tag, len(tags))
	for i, name := range tags {
		ts[i] = models.Tag{Name: name, Manual: true}
	}
	id, changed, err := db.Upsert(context.Background(), models.Document{Title: title, Body: body}, ts)
	require.NoError(t, err, "Upsert(%q)", title)
	require.True(t, changed, "Upsert(%q): expected a write", title)
	return id
}

func queryVec(t *testing.T, text string) []float32 {
	t.Helper()
	v, err := testEmbedder().EmbedFor(context.Background(), text, embedding.RoleQuery)
	require.NoError(t, err)
	return v
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"documents", "document_tags", "document_locations", "vector_journal"} {
		var count int
		assert.NoError(t, db.conn.QueryRow(`SELECT count(*) FROM `+table).Scan(&count), "%s table missing", table)
	}
}

func TestUpsertAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustUpsert(t, db, "hello", "- first point\n- second point", "go")

	doc, err := db.Get(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "- first point\n- second point", doc.Body)
	assert.Equal(t, []models.Tag{{Name: "go", Manual: true}}, doc.Tags)
	assert.Equal(t, 2, db.chunks.Count())

	loc, err := db.Location(ctx, "hello")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, checksum.String(doc.Body), loc.BodyChecksum)
	assert.Len(t, loc.Segments, 2)
}

func TestUpsertIsIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	id := mustUpsert(t, db, "same", "The cat is here. Yes it is.")

	again, changed, err := db.Upsert(ctx, models.Document{Title: "same", Body: "The cat is here. Yes it is."}, nil)
	require.NoError(t, err)
	assert.False(t, changed, "second save of identical body should not write")
	assert.Equal(t, id, again)
	assert.Equal(t, 2, db.chunks.Count())
}

func TestUpsertReplacesOldChunks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	old := mustUpsert(t, db, "note", "One. Two. Three.", "keep")
	id := mustUpsert(t, db, "note", "Only one now.")

	require.NotEqual(t, old, id, "changed body should get a new document id")
	assert.Equal(t, 1, db.chunks.Count())

	doc, err := db.Get(ctx, "note")
	require.NoError(t, err)
	assert.Empty(t, doc.Tags, "tags follow the latest upsert")

	pending, err := db.journaled(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "journal not cleared")
}

func TestDeleteDocument(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustUpsert(t, db, "gone", "Delete me please.", "x")

	ok, err := db.Delete(ctx, "gone")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = db.Get(ctx, "gone")
	assert.ErrorIs(t, err, apperr.ErrDocumentDoesNotExist)
	assert.Equal(t, 0, db.chunks.Count())

	ok, err = db.Delete(ctx, "gone")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSearchTagFilterIsSuperset(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustUpsert(t, db, "a", "cats and dogs", "pets")
	mustUpsert(t, db, "b", "cats in the garden", "pets", "garden")
	mustUpsert(t, db, "c", "cats on the moon", "space")
	mustUpsert(t, db, "d", "cats everywhere")

	filters := [][]string{nil, {"pets"}, {"pets", "garden"}, {"space"}, {"pets", "space"}, {"missing"}}
	for _, filter := range filters {
		hits, err := db.Search(ctx, queryVec(t, "cats"), filter, 10)
		require.NoError(t, err, "Search(%v)", filter)
		for _, h := range hits {
			doc, err := db.Get(ctx, h.Title)
			require.NoError(t, err)
			assert.True(t, doc.HasTags(filter), "filter %v returned %q with tags %+v", filter, h.Title, doc.Tags)
		}
		if len(filter) == 0 {
			assert.Len(t, hits, 4)
		}
	}

	hits, err := db.Search(ctx, queryVec(t, "cats"), []string{"pets", "garden"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].Title)
}

func TestSearchOrdersByDistance(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustUpsert(t, db, "far", "Quantum chromodynamics describes quarks.")
	mustUpsert(t, db, "near", "My note is here. Something else entirely.")

	hits, err := db.Search(ctx, queryVec(t, "my note is here"), nil, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "near", hits[0].Title)
	assert.Equal(t, models.Segment{Start: 0, End: 17}, hits[0].Segment)
	assert.LessOrEqual(t, hits[0].Distance, float32(1e-4), "exact match distance")
	assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance, "hits ordered by ascending distance")
}

func TestSearchExcluding(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustUpsert(t, db, "current", "The cat is here.")
	mustUpsert(t, db, "other", "The cat is there.")

	hits, err := db.SearchExcluding(ctx, queryVec(t, "The cat is here."), "current", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "other", hits[0].Title)
}

func TestSearchSkipsOrphanChunks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustUpsert(t, db, "real", "orphans are filtered")

	vec := queryVec(t, "orphans are filtered")
	require.NoError(t, db.addChunks(ctx, "ghost", "orphans are filtered",
		[]models.Chunk{{Segment: models.Segment{Start: 0, End: 20}, Embedding: vec}}))

	hits, err := db.Search(ctx, vec, nil, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "real", hits[0].Title)
}

func TestRecoverDropsJournaledChunks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustUpsert(t, db, "kept", "This stays indexed.")

	vec := queryVec(t, "interrupted write")
	require.NoError(t, db.journal(ctx, "interrupted", opInsert))
	require.NoError(t, db.addChunks(ctx, "interrupted", "interrupted write",
		[]models.Chunk{{Segment: models.Segment{Start: 0, End: 17}, Embedding: vec}}))

	require.NoError(t, db.Recover(ctx))
	assert.Equal(t, 1, db.chunks.Count())

	pending, err := db.journaled(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSetTags(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustUpsert(t, db, "tagged", "body text")

	want := []models.Tag{{Name: "Math", Manual: false}, {Name: "work", Manual: true}}
	require.NoError(t, db.SetTags(ctx, "tagged", want))

	doc, err := db.Get(ctx, "tagged")
	require.NoError(t, err)
	assert.Equal(t, want, doc.Tags)

	assert.ErrorIs(t, db.SetTags(ctx, "missing", want), apperr.ErrDocumentDoesNotExist)
}

func TestSelectAllAndChecksums(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustUpsert(t, db, "b", "second", "x")
	mustUpsert(t, db, "a", "first")

	docs, err := db.SelectAll(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].Title)
	assert.Equal(t, "b", docs[1].Title)
	assert.Len(t, docs[1].Tags, 1)

	sums, err := db.Checksums(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": checksum.String("first"), "b": checksum.String("second")}, sums)
}

func TestEmptyBodyHasNoChunks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustUpsert(t, db, "blank", "   ")

	assert.Equal(t, 0, db.chunks.Count())
	hits, err := db.Search(ctx, queryVec(t, "anything"), nil, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
