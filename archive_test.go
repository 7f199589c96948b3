package installer

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePayloadTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helix-install"), []byte("#!/bin/sh\necho install\n"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "README"), []byte("read me"), 0644))
	return dir
}

func TestPayloadRoundTrip(t *testing.T) {
	src := writePayloadTree(t)
	payload, err := BuildPayload(src)
	require.NoError(t, err)

	dst := t.TempDir()
	require.NoError(t, UnpackPayload(payload, dst))

	installed, err := os.ReadFile(filepath.Join(dst, "helix-install"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho install\n", string(installed))

	info, err := os.Stat(filepath.Join(dst, "helix-install"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	readme, err := os.ReadFile(filepath.Join(dst, "docs", "README"))
	require.NoError(t, err)
	assert.Equal(t, "read me", string(readme))
}

func TestSelfExtractorRoundTrip(t *testing.T) {
	payload, err := BuildPayload(writePayloadTree(t))
	require.NoError(t, err)

	stub := "#!/bin/sh\necho stub\nexit 0\n"
	var archive bytes.Buffer
	require.NoError(t, WriteSelfExtractor(&archive, stub, payload))

	extracted, err := ExtractPayload(bytes.NewReader(archive.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, payload, extracted)
}

func TestSelfExtractorPayloadStartsRightAfterSentinel(t *testing.T) {
	var archive bytes.Buffer
	require.NoError(t, WriteSelfExtractor(&archive, "#!/bin/sh\n", []byte("hello")))

	lines := strings.Split(archive.String(), "\n")
	sentinelAt := -1
	for i, line := range lines {
		if line == PayloadSentinel {
			sentinelAt = i
		}
	}
	require.NotEqual(t, -1, sentinelAt)
	// base64("hello") on the very next line, no blank line in between
	assert.Equal(t, "aGVsbG8=", lines[sentinelAt+1])
}

func TestExtractPayloadIgnoresStubEdits(t *testing.T) {
	payload, err := BuildPayload(writePayloadTree(t))
	require.NoError(t, err)

	var archive bytes.Buffer
	require.NoError(t, WriteSelfExtractor(&archive, "#!/bin/sh\nexit 0\n", payload))

	// Inserting lines before the sentinel must not affect extraction: the
	// sentinel is found by content, not by line number.
	edited := "# prepended comment\n# another line\n" + archive.String()
	extracted, err := ExtractPayload(strings.NewReader(edited))
	require.NoError(t, err)
	assert.Equal(t, payload, extracted)
}

func TestExtractPayloadWithoutSentinel(t *testing.T) {
	_, err := ExtractPayload(strings.NewReader("#!/bin/sh\njust a script\n"))
	assert.Error(t, err)
}

func TestExtractPayloadCorruptBase64(t *testing.T) {
	_, err := ExtractPayload(strings.NewReader("stub\n" + PayloadSentinel + "\n!!!not base64!!!\n"))
	assert.Error(t, err)
}

func TestWriteSelfExtractorRejectsSentinelInStub(t *testing.T) {
	stub := "#!/bin/sh\n" + PayloadSentinel + "\n"
	err := WriteSelfExtractor(&bytes.Buffer{}, stub, []byte("x"))
	assert.ErrorIs(t, err, errSentinelConflict)
}

func TestWriteSelfExtractorAddsMissingTrailingNewline(t *testing.T) {
	var archive bytes.Buffer
	require.NoError(t, WriteSelfExtractor(&archive, "#!/bin/sh\nexit 0", []byte("x")))
	assert.Contains(t, archive.String(), "exit 0\n"+PayloadSentinel+"\n")
}

func TestUnpackPayloadRejectsPathEscape(t *testing.T) {
	var raw bytes.Buffer
	gz := gzip.NewWriter(&raw)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "../escape",
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     4,
	}))
	_, err := tw.Write([]byte("evil"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	err = UnpackPayload(raw.Bytes(), t.TempDir())
	assert.Error(t, err)
}
