package installer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	cp "github.com/otiai10/copy"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const checksumManifestName = "SHA256SUMS"

// ReleaseOptions describe one distribution build: which script/asset tree to
// embed and where to put the outputs.
type ReleaseOptions struct {
	PayloadDir string
	OutputDir  string
}

// BuildRelease produces the distributable release directory: the
// self-extracting installer, a plain source tarball of the same payload, and
// a checksum manifest over everything in the output directory.
func BuildRelease(cfg *Config, opts ReleaseOptions) error {
	if _, err := os.Stat(opts.PayloadDir); err != nil {
		return errors.Wrap(err, "payload directory")
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return err
	}

	// Stage a copy so in-tree build leftovers never leak into the payload.
	staging, err := os.MkdirTemp("", "helix-release-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)
	if err := cp.Copy(opts.PayloadDir, staging); err != nil {
		return errors.Wrap(err, "unable to stage payload")
	}

	payload, err := BuildPayload(staging)
	if err != nil {
		return err
	}

	tarballName := fmt.Sprintf("%s-installer-%s.tar.gz", cfg.IconName, cfg.Version)
	if err := os.WriteFile(filepath.Join(opts.OutputDir, tarballName), payload, 0644); err != nil {
		return err
	}
	logrus.Infof("wrote %s (%d bytes)", tarballName, len(payload))

	stub := ExpandVariables(MustGetResource(stubTemplate), MergeVariables(
		cfg.Variables(),
		StringMap{"sentinel": PayloadSentinel},
	))
	runName := fmt.Sprintf("%s-install-%s.run", cfg.IconName, cfg.Version)
	runFile, err := os.OpenFile(filepath.Join(opts.OutputDir, runName), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
	if err != nil {
		return err
	}
	if err := WriteSelfExtractor(runFile, stub, payload); err != nil {
		runFile.Close()
		return err
	}
	if err := runFile.Close(); err != nil {
		return err
	}
	logrus.Infof("wrote %s", runName)

	return WriteChecksumManifest(opts.OutputDir)
}

// WriteChecksumManifest writes one hash-and-filename line per regular file in
// dir (the manifest itself excluded), in the fixed "sha256sum" output format
// so standard tools can verify it too.
func WriteChecksumManifest(dir string) error {
	sums, err := hashDir(dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	sort.Strings(names)
	var out strings.Builder
	for _, name := range names {
		out.WriteString(sums[name] + "  " + name + "\n")
	}
	return os.WriteFile(filepath.Join(dir, checksumManifestName), []byte(out.String()), 0644)
}

// VerifyChecksumManifest checks that every file in dir has exactly one
// manifest entry and that every entry's hash matches the file on disk.
func VerifyChecksumManifest(dir string) error {
	content, err := os.ReadFile(filepath.Join(dir, checksumManifestName))
	if err != nil {
		return errors.Wrap(err, "checksum manifest missing")
	}
	listed := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		if line == "" {
			continue
		}
		hash, name, ok := strings.Cut(line, "  ")
		if !ok {
			return errors.Errorf("malformed manifest line: %q", line)
		}
		if _, dup := listed[name]; dup {
			return errors.Errorf("duplicate manifest entry for %s", name)
		}
		listed[name] = hash
	}
	sums, err := hashDir(dir)
	if err != nil {
		return err
	}
	for name, hash := range sums {
		want, ok := listed[name]
		if !ok {
			return errors.Errorf("%s has no manifest entry", name)
		}
		if want != hash {
			return errors.Errorf("%s: checksum mismatch", name)
		}
		delete(listed, name)
	}
	for name := range listed {
		return errors.Errorf("manifest lists missing file %s", name)
	}
	return nil
}

// hashDir returns the sha256 hex digest of every regular file directly in
// dir, keyed by file name, excluding the manifest itself.
func hashDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sums := map[string]string{}
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == checksumManifestName {
			continue
		}
		file, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		hasher := sha256.New()
		if _, err := io.Copy(hasher, file); err != nil {
			file.Close()
			return nil, err
		}
		file.Close()
		sums[entry.Name()] = hex.EncodeToString(hasher.Sum(nil))
	}
	return sums, nil
}
