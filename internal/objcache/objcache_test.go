package objcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseDepFile(t *testing.T) {
	dir := t.TempDir()
	dep := filepath.Join(dir, "a.d")
	write(t, dep, "out/a.o: src/a.c src/a.h \\\n  inc/b.h src/a.h\n")

	assert.Equal(t, []string{"inc/b.h", "src/a.c", "src/a.h"}, ParseDepFile(dep))
	assert.Nil(t, ParseDepFile(filepath.Join(dir, "missing.d")))
	assert.Nil(t, ParseDepFile(""))
}

func TestDigestTracksInputs(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.c")
	hdr := filepath.Join(dir, "a.h")
	dep := filepath.Join(dir, "a.d")
	write(t, src, "int a;")
	write(t, hdr, "#define A 1")
	write(t, dep, "a.o: "+src+" "+hdr+"\n")

	base, err := Digest("gcc -c a.c", src, dep)
	require.NoError(t, err)

	again, err := Digest("gcc -c a.c", src, dep)
	require.NoError(t, err)
	assert.Equal(t, base, again)

	flags, err := Digest("gcc -O2 -c a.c", src, dep)
	require.NoError(t, err)
	assert.NotEqual(t, base, flags)

	write(t, hdr, "#define A 2")
	header, err := Digest("gcc -c a.c", src, dep)
	require.NoError(t, err)
	assert.NotEqual(t, base, header)

	_, err = Digest("gcc", filepath.Join(dir, "gone.c"), "")
	assert.Error(t, err)
}

func TestStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "cache", "objects.cbor")
	obj := filepath.Join(dir, "a.o")
	write(t, obj, "")

	s := Load(ctx, path)
	assert.Zero(t, s.Len())
	assert.False(t, s.UpToDate(obj, "d1"))

	s.Record(obj, "d1")
	require.NoError(t, s.Save(ctx))

	loaded := Load(ctx, path)
	assert.True(t, loaded.UpToDate(obj, "d1"))
	assert.False(t, loaded.UpToDate(obj, "d2"))

	require.NoError(t, os.Remove(obj))
	assert.False(t, loaded.UpToDate(obj, "d1"), "a deleted object is rebuilt")
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.cbor")
	write(t, path, "\xff\xfe\x00")
	assert.Zero(t, Load(context.Background(), path).Len())
}
