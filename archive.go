package installer

import (
	"archive/tar"
	"bufio"
	"bytes"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// The self-extracting installer is a two-part container: a shell stub,
// followed by a sentinel line, followed by a base64-encoded tar.gz payload
// starting on the very next line. The stub locates the sentinel in itself by
// exact line match and pipes everything after it through base64 and tar, so
// the writer and the stub must agree on the sentinel string exactly. The
// sentinel is versioned; a future format change bumps the suffix.
const (
	PayloadSentinel = "__HELIX_PAYLOAD_V1__"
	stubTemplate    = "templates/stub.sh"

	base64LineWidth = 76
)

var (
	errNoSentinel       = errors.New("no payload sentinel found, not a self-extracting installer")
	errSentinelConflict = errors.New("stub already contains the payload sentinel")
)

// BuildPayload packs a directory tree into a gzip-compressed tar archive.
// Paths inside the archive are relative to dir.
func BuildPayload(dir string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()
			if _, err := io.Copy(tw, file); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to pack payload")
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnpackPayload extracts a payload produced by BuildPayload into dir.
func UnpackPayload(payload []byte, dir string) error {
	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "payload is not gzip data")
	}
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "corrupt payload archive")
		}
		target := filepath.Join(dir, filepath.FromSlash(header.Name))
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
			return errors.Errorf("payload entry escapes target dir: %s", header.Name)
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			file, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(header.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(file, tr); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteSelfExtractor assembles the container: the stub script, the sentinel
// on its own line, and the base64-encoded payload starting on the next line
// with no extraneous bytes in between.
func WriteSelfExtractor(w io.Writer, stub string, payload []byte) error {
	if hasSentinelLine(stub) {
		return errSentinelConflict
	}
	if !strings.HasSuffix(stub, "\n") {
		stub += "\n"
	}
	if _, err := io.WriteString(w, stub); err != nil {
		return err
	}
	if _, err := io.WriteString(w, PayloadSentinel+"\n"); err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(payload)
	for len(encoded) > 0 {
		n := base64LineWidth
		if n > len(encoded) {
			n = len(encoded)
		}
		if _, err := io.WriteString(w, encoded[:n]+"\n"); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}

// ExtractPayload parses a self-extracting installer and returns the decoded
// payload bytes. The sentinel is matched as an exact full line, so stub edits
// that merely shift line numbers cannot corrupt extraction.
func ExtractPayload(r io.Reader) ([]byte, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024*1024)
	found := false
	var encoded strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if !found {
			if line == PayloadSentinel {
				found = true
			}
			continue
		}
		encoded.WriteString(strings.TrimSpace(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, errNoSentinel
	}
	payload, err := base64.StdEncoding.DecodeString(encoded.String())
	if err != nil {
		return nil, errors.Wrap(err, "corrupt base64 payload")
	}
	return payload, nil
}

// hasSentinelLine reports whether text contains the sentinel as a full line.
func hasSentinelLine(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if line == PayloadSentinel {
			return true
		}
	}
	return false
}
