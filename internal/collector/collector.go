// Package collector gathers the files an operation produced and hands them
// over either as-is or bundled into one zip archive.
package collector

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"ytdash/internal/downloader"
	"ytdash/internal/model"
	"ytdash/internal/util"
)

// ErrNoFiles is returned when there is nothing to deliver.
var ErrNoFiles = errors.New("no output files")

// Kind says how a set of outputs is handed over.
type Kind string

const (
	KindFile Kind = "file" // one file, served directly
	KindZip  Kind = "zip"  // several files, one archive
)

// KindFor returns KindFile for a single path and KindZip otherwise.
func KindFor(paths []string) Kind {
	if len(paths) == 1 {
		return KindFile
	}
	return KindZip
}

// Collect returns primary followed by the sidecar files in workdir, sorted
// by name. Partial downloads are skipped.
func Collect(workdir, primary string) ([]string, error) {
	if primary == "" {
		return nil, ErrNoFiles
	}
	if _, err := os.Stat(primary); err != nil {
		return nil, fmt.Errorf("primary output: %w", err)
	}
	out := []string{primary}
	if workdir == "" {
		return out, nil
	}

	entries, err := os.ReadDir(workdir)
	if err != nil {
		return nil, fmt.Errorf("scan workdir: %w", err)
	}
	var extra []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(workdir, e.Name())
		if p == primary || downloader.IsPartial(e.Name()) || !downloader.IsSidecar(e.Name()) {
			continue
		}
		extra = append(extra, p)
	}
	sort.Strings(extra)
	return append(out, extra...), nil
}

// EntryNames maps each path to its archive entry name: the base name, with
// " (2)", " (3)", ... inserted before the extension on collisions.
func EntryNames(paths []string) []string {
	used := make(map[string]bool, len(paths))
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = uniqueName(filepath.Base(p), func(n string) bool { return used[n] })
		used[names[i]] = true
	}
	return names
}

func uniqueName(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 2; ; n++ {
		cand := stem + " (" + strconv.Itoa(n) + ")" + ext
		if !taken(cand) {
			return cand
		}
	}
}

// WriteZip writes a deflate-compressed zip with one entry per path.
func WriteZip(w io.Writer, paths []string) error {
	if len(paths) == 0 {
		return ErrNoFiles
	}
	zw := zip.NewWriter(w)
	for i, name := range EntryNames(paths) {
		if err := addFile(zw, paths[i], name); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// CreateArchive writes paths into a zip at dst. The archive appears at dst
// only once complete.
func CreateArchive(dst string, paths []string) (model.OutputFile, error) {
	if err := util.EnsureDir(filepath.Dir(dst)); err != nil {
		return model.OutputFile{}, fmt.Errorf("ensure output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".ytdash-*.zip.part")
	if err != nil {
		return model.OutputFile{}, err
	}
	defer os.Remove(tmp.Name())

	if err := WriteZip(tmp, paths); err != nil {
		_ = tmp.Close()
		return model.OutputFile{}, err
	}
	if err := tmp.Close(); err != nil {
		return model.OutputFile{}, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return model.OutputFile{}, err
	}
	fi, err := os.Stat(dst)
	if err != nil {
		return model.OutputFile{}, err
	}
	return model.OutputFile{Path: dst, Bytes: fi.Size()}, nil
}

// deliverMu serializes name selection and moves into output directories.
var deliverMu sync.Mutex

// Deliver moves paths into outDir. When zip is set and there is more than
// one file they are bundled into "<name>.zip" instead. Existing files in
// outDir are never overwritten.
func Deliver(paths []string, outDir string, zip bool, name string) ([]model.OutputFile, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}
	if err := util.EnsureDir(outDir); err != nil {
		return nil, fmt.Errorf("ensure output dir: %w", err)
	}

	deliverMu.Lock()
	defer deliverMu.Unlock()

	if zip && len(paths) > 1 {
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(paths[0]), filepath.Ext(paths[0]))
		}
		dst := freePath(outDir, name+".zip")
		out, err := CreateArchive(dst, paths)
		if err != nil {
			return nil, fmt.Errorf("create archive: %w", err)
		}
		return []model.OutputFile{out}, nil
	}

	var out []model.OutputFile
	for _, p := range paths {
		dst := freePath(outDir, filepath.Base(p))
		n, err := moveFile(p, dst)
		if err != nil {
			return out, fmt.Errorf("deliver %s: %w", filepath.Base(p), err)
		}
		out = append(out, model.OutputFile{Path: dst, Bytes: n})
	}
	return out, nil
}

func freePath(dir, base string) string {
	return filepath.Join(dir, uniqueName(base, func(n string) bool {
		_, err := os.Stat(filepath.Join(dir, n))
		return err == nil
	}))
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) (int64, error) {
	fi, err := os.Stat(src)
	if err != nil {
		return 0, err
	}
	if err := os.Rename(src, dst); err == nil {
		return fi.Size(), nil
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	outF, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(outF, in)
	if cerr := outF.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, err
	}
	_ = os.Remove(src)
	return n, nil
}
