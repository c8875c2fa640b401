package protocol

import (
	"fmt"
	"sort"
)

// Category identifies which of the three wire bitmasks a Field
// belongs to. Ordering within a category is (byte ascending, bit
// descending), which MUST match the server's serialisation order.
type Category int

const (
	// CategoryFmask selects fields in the 5-byte file fmask.
	CategoryFmask Category = iota
	// CategoryFileAmask selects fields in the 4-byte file amask
	// (anime/episode/group fields cross-referenced against a file).
	CategoryFileAmask
	// CategoryAnimeAmask selects fields in the anime-standalone amask
	// (used by the ANIMEDESC/ANIME family, 7 bytes in this registry).
	CategoryAnimeAmask
)

// byteLength is the fixed width, in bytes, of each category's
// bitmask, per spec.md §4.3 ("BYTE_LENGTH = 5 for fmask, 4 for
// file-amask, 5+ for anime-amask" — widened to 7 here to carry every
// field the normative table names).
var byteLength = map[Category]int{
	CategoryFmask:      5,
	CategoryFileAmask:  4,
	CategoryAnimeAmask: 7,
}

// SemType is the semantic type used to deserialise a field's raw
// string value.
type SemType int

const (
	// TypeOpaque leaves the raw string untouched; used for fields this
	// registry knows the position of but not the shape of.
	TypeOpaque SemType = iota
	TypeInt
	TypeString
	TypeTimestamp
	TypeListInt
	TypeListString
)

// Field is a single named, positioned, typed entry in a mask
// registry.
type Field struct {
	Name     string
	Category Category
	Byte     int // 1-based
	Bit      int // 0-7, MSB = 7
	Type     SemType
}

// bitWeight returns this field's contribution to its category's
// bitmask: 1 << (8*(BYTE_LENGTH-byte) + bit).
func (f Field) bitWeight() uint64 {
	bl := byteLength[f.Category]
	return 1 << uint(8*(bl-f.Byte)+f.Bit)
}

// sortKey orders fields by (category, byte ascending, bit descending),
// the order the server serialises columns in.
func (f Field) sortKey() (Category, int, int) {
	return f.Category, f.Byte, -f.Bit
}

// ShortCode returns a short human-readable identifier for logging,
// e.g. "file_fmask_aid".
func (f Field) ShortCode() string {
	switch f.Category {
	case CategoryFmask:
		return "file_fmask_" + f.Name
	case CategoryFileAmask:
		return "file_amask_" + f.Name
	default:
		return "anime_amask_" + f.Name
	}
}

// Registry is an immutable table of every named field this client
// knows about, plus the indexes needed for lookup, assembly, and
// reverse analysis. Built once in init(); never mutated afterward —
// the fixed, compile-time table the redesign flag in spec.md §9 asks
// for in place of the source's metaclass-style dynamic attribute
// registry.
type Registry struct {
	byName     map[string]Field
	byPosition map[Category]map[[2]int]Field
	sorted     map[Category][]Field
}

// NewRegistry builds a Registry from an unordered slice of fields.
func NewRegistry(fields []Field) *Registry {
	r := &Registry{
		byName:     make(map[string]Field, len(fields)),
		byPosition: make(map[Category]map[[2]int]Field),
		sorted:     make(map[Category][]Field),
	}
	for _, f := range fields {
		r.byName[f.Name] = f
		if r.byPosition[f.Category] == nil {
			r.byPosition[f.Category] = make(map[[2]int]Field)
		}
		r.byPosition[f.Category][[2]int{f.Byte, f.Bit}] = f
		r.sorted[f.Category] = append(r.sorted[f.Category], f)
	}
	for cat := range r.sorted {
		sort.Slice(r.sorted[cat], func(i, j int) bool {
			ci, bi, nbi := r.sorted[cat][i].sortKey()
			cj, bj, nbj := r.sorted[cat][j].sortKey()
			if ci != cj {
				return ci < cj
			}
			if bi != bj {
				return bi < bj
			}
			return nbi < nbj
		})
	}
	return r
}

// ByName looks a field up by its declared name.
func (r *Registry) ByName(name string) (Field, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// MustByName panics if name is not a known field; for use with
// compile-time-constant names in this package's own tables.
func (r *Registry) MustByName(name string) Field {
	f, ok := r.byName[name]
	if !ok {
		panic(fmt.Sprintf("protocol: unknown field %q", name))
	}
	return f
}

// Sorted orders a set of fields by (byte ascending, bit descending)
// within category — invariant 2: analyze(assemble(S)) == sort(S).
func (r *Registry) Sorted(fields []Field) []Field {
	out := append([]Field{}, fields...)
	sort.Slice(out, func(i, j int) bool {
		ci, bi, nbi := out[i].sortKey()
		cj, bj, nbj := out[j].sortKey()
		if ci != cj {
			return ci < cj
		}
		if bi != bj {
			return bi < bj
		}
		return nbi < nbj
	})
	return out
}

// Assemble ORs together the bit-weight of every field in fields that
// belongs to cat, producing the numeric mask for that category.
func (r *Registry) Assemble(cat Category, fields []Field) uint64 {
	var mask uint64
	for _, f := range fields {
		if f.Category == cat {
			mask |= f.bitWeight()
		}
	}
	return mask
}

// Analyze performs the reverse of Assemble: given a numeric mask,
// list the known fields it selects, MSB-to-LSB (the server's
// serialisation order). A selected bit with no registered field
// yields a synthetic "unkXXXXXXXX" field (category-tagged, opaque
// type) rather than an error — a forward-compatible server field this
// registry does not yet know the name of is not a protocol violation.
func (r *Registry) Analyze(cat Category, mask uint64) []Field {
	bl := byteLength[cat]
	var out []Field
	for byi := bl - 1; byi >= 0; byi-- {
		for bii := 7; bii >= 0; bii-- {
			bit := uint(byi*8 + bii)
			if mask&(1<<bit) == 0 {
				continue
			}
			pos := [2]int{bl - byi, bii}
			if f, ok := r.byPosition[cat][pos]; ok {
				out = append(out, f)
				continue
			}
			out = append(out, Field{
				Name:     fmt.Sprintf("unk%08x", uint32(1<<bit)),
				Category: cat,
				Byte:     bl - byi,
				Bit:      bii,
				Type:     TypeOpaque,
			})
		}
	}
	return out
}

// Fmask is the normative fmask field table (5 bytes), spec.md §6.
var Fmask = NewRegistry([]Field{
	{Name: "aid", Category: CategoryFmask, Byte: 1, Bit: 6, Type: TypeInt},
	{Name: "eid", Category: CategoryFmask, Byte: 1, Bit: 5, Type: TypeInt},
	{Name: "gid", Category: CategoryFmask, Byte: 1, Bit: 4, Type: TypeInt},
	{Name: "lid", Category: CategoryFmask, Byte: 1, Bit: 3, Type: TypeInt},
	{Name: "other_episodes", Category: CategoryFmask, Byte: 1, Bit: 2, Type: TypeOpaque},
	{Name: "is_deprecated", Category: CategoryFmask, Byte: 1, Bit: 1, Type: TypeInt},
	{Name: "file_state", Category: CategoryFmask, Byte: 1, Bit: 0, Type: TypeInt},

	{Name: "size", Category: CategoryFmask, Byte: 2, Bit: 7, Type: TypeInt},
	{Name: "ed2k", Category: CategoryFmask, Byte: 2, Bit: 6, Type: TypeString},
	{Name: "md5", Category: CategoryFmask, Byte: 2, Bit: 5, Type: TypeString},
	{Name: "sha1", Category: CategoryFmask, Byte: 2, Bit: 4, Type: TypeString},
	{Name: "crc32", Category: CategoryFmask, Byte: 2, Bit: 3, Type: TypeString},
	{Name: "color_depth", Category: CategoryFmask, Byte: 2, Bit: 1, Type: TypeOpaque},

	{Name: "quality", Category: CategoryFmask, Byte: 3, Bit: 7, Type: TypeString},
	{Name: "source", Category: CategoryFmask, Byte: 3, Bit: 6, Type: TypeString},
	{Name: "audio_codec", Category: CategoryFmask, Byte: 3, Bit: 5, Type: TypeListString},
	{Name: "audio_bitrate", Category: CategoryFmask, Byte: 3, Bit: 4, Type: TypeListInt},
	{Name: "video_codec", Category: CategoryFmask, Byte: 3, Bit: 3, Type: TypeString},
	{Name: "video_bitrate", Category: CategoryFmask, Byte: 3, Bit: 2, Type: TypeInt},
	{Name: "resolution", Category: CategoryFmask, Byte: 3, Bit: 1, Type: TypeString},
	{Name: "filetype", Category: CategoryFmask, Byte: 3, Bit: 0, Type: TypeString},

	{Name: "dub_language", Category: CategoryFmask, Byte: 4, Bit: 7, Type: TypeString},
	{Name: "sub_language", Category: CategoryFmask, Byte: 4, Bit: 6, Type: TypeString},
	{Name: "length", Category: CategoryFmask, Byte: 4, Bit: 5, Type: TypeInt},
	{Name: "description", Category: CategoryFmask, Byte: 4, Bit: 4, Type: TypeString},
	{Name: "aired", Category: CategoryFmask, Byte: 4, Bit: 3, Type: TypeTimestamp},
	{Name: "filename", Category: CategoryFmask, Byte: 4, Bit: 0, Type: TypeString},

	{Name: "mylist_state", Category: CategoryFmask, Byte: 5, Bit: 7, Type: TypeInt},
	{Name: "mylist_filestate", Category: CategoryFmask, Byte: 5, Bit: 6, Type: TypeInt},
	{Name: "mylist_viewed", Category: CategoryFmask, Byte: 5, Bit: 5, Type: TypeInt},
	{Name: "mylist_viewdate", Category: CategoryFmask, Byte: 5, Bit: 4, Type: TypeInt},
	{Name: "mylist_storage", Category: CategoryFmask, Byte: 5, Bit: 3, Type: TypeString},
	{Name: "mylist_source", Category: CategoryFmask, Byte: 5, Bit: 2, Type: TypeString},
	{Name: "mylist_other", Category: CategoryFmask, Byte: 5, Bit: 1, Type: TypeString},
})

// FileAmask is the normative file-amask table (4 bytes): anime/
// episode/group fields cross-referenced against a file.
var FileAmask = NewRegistry([]Field{
	{Name: "ep_total", Category: CategoryFileAmask, Byte: 1, Bit: 7, Type: TypeOpaque},
	{Name: "ep_last", Category: CategoryFileAmask, Byte: 1, Bit: 6, Type: TypeOpaque},
	{Name: "year", Category: CategoryFileAmask, Byte: 1, Bit: 5, Type: TypeString},
	{Name: "a_type", Category: CategoryFileAmask, Byte: 1, Bit: 4, Type: TypeOpaque},
	{Name: "related_aid_list", Category: CategoryFileAmask, Byte: 1, Bit: 3, Type: TypeOpaque},
	{Name: "related_aid_type", Category: CategoryFileAmask, Byte: 1, Bit: 2, Type: TypeOpaque},
	{Name: "a_categories", Category: CategoryFileAmask, Byte: 1, Bit: 1, Type: TypeOpaque},

	{Name: "a_romaji", Category: CategoryFileAmask, Byte: 2, Bit: 7, Type: TypeString},
	{Name: "a_kanji", Category: CategoryFileAmask, Byte: 2, Bit: 6, Type: TypeString},
	{Name: "a_english", Category: CategoryFileAmask, Byte: 2, Bit: 5, Type: TypeString},
	{Name: "a_other", Category: CategoryFileAmask, Byte: 2, Bit: 4, Type: TypeListString},
	{Name: "a_short", Category: CategoryFileAmask, Byte: 2, Bit: 3, Type: TypeListString},
	{Name: "a_synonyms", Category: CategoryFileAmask, Byte: 2, Bit: 2, Type: TypeListString},

	{Name: "ep_no", Category: CategoryFileAmask, Byte: 3, Bit: 7, Type: TypeOpaque},
	{Name: "ep_english", Category: CategoryFileAmask, Byte: 3, Bit: 6, Type: TypeString},
	{Name: "ep_romaji", Category: CategoryFileAmask, Byte: 3, Bit: 5, Type: TypeString},
	{Name: "ep_kanji", Category: CategoryFileAmask, Byte: 3, Bit: 4, Type: TypeString},
	{Name: "episode_rating", Category: CategoryFileAmask, Byte: 3, Bit: 3, Type: TypeOpaque},
	{Name: "episode_vote_count", Category: CategoryFileAmask, Byte: 3, Bit: 2, Type: TypeOpaque},

	{Name: "g_name", Category: CategoryFileAmask, Byte: 4, Bit: 7, Type: TypeString},
	{Name: "g_sname", Category: CategoryFileAmask, Byte: 4, Bit: 6, Type: TypeString},
	{Name: "date_aid_record_updated", Category: CategoryFileAmask, Byte: 4, Bit: 0, Type: TypeOpaque},
})

// AnimeAmask is the normative anime-standalone amask table, used by
// the ANIMEDESC/ANIME family of requests (spec.md §6.2 / SPEC_FULL.md
// §6.2 — the pack's source reproduces it in full even though spec.md
// only references it by name).
var AnimeAmask = NewRegistry([]Field{
	{Name: "aid", Category: CategoryAnimeAmask, Byte: 1, Bit: 7, Type: TypeInt},
	{Name: "dateflags", Category: CategoryAnimeAmask, Byte: 1, Bit: 6, Type: TypeOpaque},
	{Name: "year", Category: CategoryAnimeAmask, Byte: 1, Bit: 5, Type: TypeString},
	{Name: "type", Category: CategoryAnimeAmask, Byte: 1, Bit: 4, Type: TypeOpaque},
	{Name: "related_aid_list", Category: CategoryAnimeAmask, Byte: 1, Bit: 3, Type: TypeListInt},
	{Name: "related_aid_type", Category: CategoryAnimeAmask, Byte: 1, Bit: 2, Type: TypeOpaque},

	{Name: "romaji_name", Category: CategoryAnimeAmask, Byte: 2, Bit: 7, Type: TypeString},
	{Name: "kanji_name", Category: CategoryAnimeAmask, Byte: 2, Bit: 6, Type: TypeString},
	{Name: "english_name", Category: CategoryAnimeAmask, Byte: 2, Bit: 5, Type: TypeString},
	{Name: "other_name", Category: CategoryAnimeAmask, Byte: 2, Bit: 4, Type: TypeListString},
	{Name: "short_name_list", Category: CategoryAnimeAmask, Byte: 2, Bit: 3, Type: TypeListString},
	{Name: "synonym_list", Category: CategoryAnimeAmask, Byte: 2, Bit: 2, Type: TypeListString},

	{Name: "episodes", Category: CategoryAnimeAmask, Byte: 3, Bit: 7, Type: TypeInt},
	{Name: "highest_episode_number", Category: CategoryAnimeAmask, Byte: 3, Bit: 6, Type: TypeInt},
	{Name: "special_ep_count", Category: CategoryAnimeAmask, Byte: 3, Bit: 5, Type: TypeInt},
	{Name: "air_date", Category: CategoryAnimeAmask, Byte: 3, Bit: 4, Type: TypeTimestamp},
	{Name: "end_date", Category: CategoryAnimeAmask, Byte: 3, Bit: 3, Type: TypeTimestamp},
	{Name: "url", Category: CategoryAnimeAmask, Byte: 3, Bit: 2, Type: TypeString},
	{Name: "picname", Category: CategoryAnimeAmask, Byte: 3, Bit: 1, Type: TypeString},

	{Name: "rating", Category: CategoryAnimeAmask, Byte: 4, Bit: 7, Type: TypeString},
	{Name: "vote_count", Category: CategoryAnimeAmask, Byte: 4, Bit: 6, Type: TypeInt},
	{Name: "temp_rating", Category: CategoryAnimeAmask, Byte: 4, Bit: 5, Type: TypeString},
	{Name: "temp_vote_count", Category: CategoryAnimeAmask, Byte: 4, Bit: 4, Type: TypeInt},
	{Name: "average_review_rating", Category: CategoryAnimeAmask, Byte: 4, Bit: 3, Type: TypeString},
	{Name: "review_count", Category: CategoryAnimeAmask, Byte: 4, Bit: 2, Type: TypeInt},
	{Name: "award_list", Category: CategoryAnimeAmask, Byte: 4, Bit: 1, Type: TypeListString},
	{Name: "is_18plus_restricted", Category: CategoryAnimeAmask, Byte: 4, Bit: 0, Type: TypeInt},

	{Name: "ann_id", Category: CategoryAnimeAmask, Byte: 5, Bit: 6, Type: TypeInt},
	{Name: "allcinema_id", Category: CategoryAnimeAmask, Byte: 5, Bit: 5, Type: TypeInt},
	{Name: "animenfo_id", Category: CategoryAnimeAmask, Byte: 5, Bit: 4, Type: TypeString},
	{Name: "tag_name_list", Category: CategoryAnimeAmask, Byte: 5, Bit: 3, Type: TypeListString},
	{Name: "tag_id_list", Category: CategoryAnimeAmask, Byte: 5, Bit: 2, Type: TypeListInt},
	{Name: "tag_weight_list", Category: CategoryAnimeAmask, Byte: 5, Bit: 1, Type: TypeListInt},
	{Name: "date_record_updated", Category: CategoryAnimeAmask, Byte: 5, Bit: 0, Type: TypeTimestamp},

	{Name: "character_id_list", Category: CategoryAnimeAmask, Byte: 6, Bit: 7, Type: TypeListInt},

	{Name: "specials_count", Category: CategoryAnimeAmask, Byte: 7, Bit: 7, Type: TypeInt},
	{Name: "credits_count", Category: CategoryAnimeAmask, Byte: 7, Bit: 6, Type: TypeInt},
	{Name: "other_count", Category: CategoryAnimeAmask, Byte: 7, Bit: 5, Type: TypeInt},
	{Name: "trailer_count", Category: CategoryAnimeAmask, Byte: 7, Bit: 4, Type: TypeInt},
	{Name: "parody_count", Category: CategoryAnimeAmask, Byte: 7, Bit: 3, Type: TypeInt},
})
