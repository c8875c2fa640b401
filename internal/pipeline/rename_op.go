package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anidbcli/anidbcli/internal/output"
)

// charsToSpace are path-invalid characters replaced with a space by
// filenameFriendly, matching operations.py:filename_friendly.
var charsToSpace = []string{"<", ">", "/", "\\", "*", "|"}

// filenameFriendly sanitises a rename-token value into something safe
// to embed in a path component.
func filenameFriendly(v interface{}) string {
	s := fmt.Sprint(v)
	for _, c := range charsToSpace {
		s = strings.ReplaceAll(s, c, " ")
	}
	s = strings.ReplaceAll(s, `"`, "'")
	s = strings.ReplaceAll(s, ":", "")
	s = strings.ReplaceAll(s, "?", "")
	return s
}

// RenameOp renders a target path from a format string's %field%
// tokens, then moves (or links) the file and any same-basename
// sidecar files (subtitles, etc.) to it. Grounded on
// operations.py:RenameOperation.
type RenameOp struct {
	Output        output.Collaborator
	TargetFormat  string
	DateFormat    string
	KeepStructure bool
	DeleteEmpty   bool
	SoftLink      bool
	HardLink      bool
	Abort         bool
}

func (r *RenameOp) Name() string       { return "rename" }
func (r *RenameOp) TargetState() State { return StateRenamed }

func (r *RenameOp) Run(ctx context.Context, rec *Record) bool {
	info, _ := rec.Attrs["info"].(map[string]interface{})
	if info == nil {
		r.Output.Error("Rename aborted, no file info available.")
		return false
	}

	if aired, ok := info["aired"].(time.Time); ok {
		format := r.DateFormat
		if format == "" {
			format = "2006-01-02"
		}
		info["aired"] = aired.Format(goDateLayout(format))
	}

	target := r.TargetFormat
	for tag, v := range info {
		token := "%" + tag + "%"
		if !strings.Contains(target, token) {
			continue
		}
		rendered := filenameFriendly(v)
		if r.Abort && isNullOrWhitespace(rendered) {
			r.Output.Error("Rename aborted, %q is empty.", tag)
			return false
		}
		target = strings.ReplaceAll(target, token, rendered)
	}
	target = strings.Join(strings.Fields(target), " ")

	ext := filepath.Ext(rec.Path)
	base := strings.TrimSuffix(rec.Path, ext)
	sourceDir := filepath.Dir(rec.Path)

	sidecars, err := sidecarFiles(base)
	if err != nil {
		r.Output.Error("Failed to scan for sidecar files: %v", err)
		return false
	}

	for _, src := range sidecars {
		r.placeOne(src, target, sourceDir)
	}

	if r.DeleteEmpty {
		if entries, err := os.ReadDir(sourceDir); err == nil && len(entries) == 0 {
			_ = os.Remove(sourceDir)
		}
	}

	rec.Path = target + ext
	return true
}

// sidecarFiles finds every file sharing base's basename regardless of
// extension (the media file itself plus subtitle/NFO/etc companions),
// matching glob.glob(glob.escape(filename) + "*").
func sidecarFiles(base string) ([]string, error) {
	dir := filepath.Dir(base)
	prefix := filepath.Base(base)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

func (r *RenameOp) placeOne(src, target, sourceDir string) {
	dst := target
	if r.KeepStructure {
		dst = filepath.Join(filepath.Dir(src), target)
	}
	ext := filepath.Ext(src)
	dst += ext

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		r.Output.Error("Failed to rename/link to %q: %v", dst, err)
		return
	}

	switch {
	case r.SoftLink:
		if err := os.Symlink(src, dst); err != nil {
			if !errors.Is(err, os.ErrExist) {
				r.Output.Error("Failed to rename/link to %q: %v", dst, err)
				return
			}
			existing, readErr := os.Readlink(dst)
			if readErr != nil || existing != src {
				r.Output.Error("Failed to rename/link to %q: symlink target mismatch", dst)
				return
			}
			r.Output.Success("Reused existing symlink: %q", dst)
			return
		}
		r.Output.Success("Created soft link: %q", dst)
	case r.HardLink:
		if err := os.Link(src, dst); err != nil {
			r.Output.Error("Failed to rename/link to %q: %v", dst, err)
			return
		}
		r.Output.Success("Created hard link: %q", dst)
	default:
		if err := os.Rename(src, dst); err != nil {
			r.Output.Error("Failed to rename/link to %q: %v", dst, err)
			return
		}
		r.Output.Success("File renamed to: %q", dst)
	}
}

// goDateLayout translates the handful of strftime directives the
// rename format exposes into Go's reference-time layout; any input
// that isn't one of the known directives falls back to ISO 8601.
func goDateLayout(strftime string) string {
	replacer := strings.NewReplacer(
		"%Y", "2006",
		"%m", "01",
		"%d", "02",
		"%H", "15",
		"%M", "04",
		"%S", "05",
	)
	out := replacer.Replace(strftime)
	if out == strftime && strftime != "2006-01-02" {
		return "2006-01-02"
	}
	return out
}
