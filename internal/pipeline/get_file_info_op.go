package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/anidbcli/anidbcli/internal/anidb/planner"
	"github.com/anidbcli/anidbcli/internal/anidb/protocol"
	"github.com/anidbcli/anidbcli/internal/output"
)

// fileInfoFields is every fmask/file-amask column
// operations.py:GetFileInfoOperation requests, in the order it lists
// them (wire order is reassembled by the registries regardless).
var fileInfoFields = []protocol.Field{
	protocol.Fmask.MustByName("aid"),
	protocol.Fmask.MustByName("eid"),
	protocol.Fmask.MustByName("gid"),
	protocol.Fmask.MustByName("lid"),
	protocol.Fmask.MustByName("size"),
	protocol.Fmask.MustByName("ed2k"),
	protocol.Fmask.MustByName("md5"),
	protocol.Fmask.MustByName("sha1"),
	protocol.Fmask.MustByName("crc32"),
	protocol.Fmask.MustByName("color_depth"),
	protocol.Fmask.MustByName("quality"),
	protocol.Fmask.MustByName("source"),
	protocol.Fmask.MustByName("audio_codec"),
	protocol.Fmask.MustByName("audio_bitrate"),
	protocol.Fmask.MustByName("video_codec"),
	protocol.Fmask.MustByName("video_bitrate"),
	protocol.Fmask.MustByName("resolution"),
	protocol.Fmask.MustByName("filetype"),
	protocol.Fmask.MustByName("dub_language"),
	protocol.Fmask.MustByName("sub_language"),
	protocol.Fmask.MustByName("length"),
	protocol.Fmask.MustByName("aired"),
	protocol.Fmask.MustByName("filename"),
	protocol.FileAmask.MustByName("ep_total"),
	protocol.FileAmask.MustByName("ep_last"),
	protocol.FileAmask.MustByName("year"),
	protocol.FileAmask.MustByName("a_type"),
	protocol.FileAmask.MustByName("a_romaji"),
	protocol.FileAmask.MustByName("a_kanji"),
	protocol.FileAmask.MustByName("a_english"),
	protocol.FileAmask.MustByName("a_other"),
	protocol.FileAmask.MustByName("a_short"),
	protocol.FileAmask.MustByName("a_synonyms"),
	protocol.FileAmask.MustByName("ep_no"),
	protocol.FileAmask.MustByName("ep_english"),
	protocol.FileAmask.MustByName("ep_romaji"),
	protocol.FileAmask.MustByName("ep_kanji"),
	protocol.FileAmask.MustByName("g_name"),
	protocol.FileAmask.MustByName("g_sname"),
}

var yearPattern = regexp.MustCompile(`\d{4}`)
var resolutionPattern = regexp.MustCompile(`x(360|480|720|1080|2160)`)

// GetFileInfoOp looks up a hashed file's metadata and derives the
// helper tags RenameOp's template substitution relies on. Grounded on
// operations.py:GetFileInfoOperation/construct_helper_tags.
type GetFileInfoOp struct {
	Planner      *planner.Planner
	Output       output.Collaborator
	AllowNetwork bool
}

func (g *GetFileInfoOp) Name() string       { return "get-file-info" }
func (g *GetFileInfoOp) TargetState() State { return StateMetadataReady }

func (g *GetFileInfoOp) Run(ctx context.Context, rec *Record) bool {
	ed2kHash, _ := rec.Attrs["ed2k"].(string)
	size, _ := rec.Attrs["size"].(int64)

	res, err := g.Planner.LookupFile(ctx, ed2kHash, size, fileInfoFields, g.AllowNetwork)
	if err != nil {
		g.Output.Error("Failed to get file info: %v", err)
		return false
	}
	if res.NotFound {
		g.Output.Error("Failed to get file info: no such file")
		return false
	}

	info := constructHelperTags(res.Fields)
	rec.Attrs["info"] = info
	g.Output.Success("Successfully grabbed file info.")
	return true
}

// constructHelperTags adds the derived fields RenameOp's tokens draw
// on: english-name fallback to romaji (both anime and episode),
// year_start/year_end extracted from a possibly-ranged year string,
// and a bare "720p"-style resolution_abbr.
func constructHelperTags(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+4)
	for k, v := range fields {
		out[k] = v
	}
	out["version"] = ""
	out["censored"] = ""

	if isNullOrWhitespace(stringOf(out["ep_english"])) {
		out["ep_english"] = out["ep_romaji"]
	}
	if isNullOrWhitespace(stringOf(out["a_english"])) {
		out["a_english"] = out["a_romaji"]
	}

	year := stringOf(out["year"])
	years := yearPattern.FindAllString(year, -1)
	if len(years) > 0 {
		out["year_start"] = years[0]
		out["year_end"] = years[len(years)-1]
	} else {
		out["year_start"] = year
		out["year_end"] = year
	}

	resolution := stringOf(out["resolution"])
	if m := resolutionPattern.FindStringSubmatch(resolution); m != nil {
		out["resolution_abbr"] = m[1] + "p"
	} else {
		out["resolution_abbr"] = resolution
	}

	return out
}

func isNullOrWhitespace(s string) bool {
	return strings.TrimSpace(s) == ""
}

func stringOf(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
