package protocol

import (
	"fmt"
	"strconv"
)

// FileKey identifies the file a FILE request targets: either its
// ed2k hash plus size, or a raw file ID.
type FileKey interface {
	params() []KV
}

// FileKeyED2K targets a file by content hash and size.
type FileKeyED2K struct {
	ED2K string
	Size int64
}

func (k FileKeyED2K) params() []KV {
	return []KV{{Key: "size", Value: strconv.FormatInt(k.Size, 10)}, {Key: "ed2k", Value: k.ED2K}}
}

// FileKeyFID targets a file by its AniDB file ID.
type FileKeyFID struct {
	FID int64
}

func (k FileKeyFID) params() []KV {
	return []KV{{Key: "fid", Value: strconv.FormatInt(k.FID, 10)}}
}

// FileRequest is a FILE query: a key identifying the file plus the
// set of fmask/file-amask fields to return about it.
type FileRequest struct {
	Key    FileKey
	Fields []Field
}

func (r *FileRequest) Command() string { return "FILE" }

func (r *FileRequest) Params() []KV {
	fmask := Fmask.Assemble(CategoryFmask, r.Fields)
	amask := FileAmask.Assemble(CategoryFileAmask, r.Fields)
	params := append([]KV{}, r.Key.params()...)
	params = append(params,
		KV{Key: "fmask", Value: fmt.Sprintf("%010X", fmask)},
		KV{Key: "amask", Value: fmt.Sprintf("%08X", amask)},
	)
	return params
}

func (r *FileRequest) ValidCodes() []int { return []int{CodeResultFile} }

// CheckCode validates a FILE response's code, translating 320 into a
// typed NotFoundError rather than a generic BadCodeError.
func (r *FileRequest) CheckCode(resp Response) error {
	return CheckCode("FILE", resp, CodeNoSuchFile, r.ValidCodes())
}

// orderedFields returns Fields sorted into wire order, fmask columns
// before amask columns, matching how the server lays the response out.
func (r *FileRequest) orderedFields() []Field {
	var fm, am []Field
	for _, f := range r.Fields {
		if f.Category == CategoryFmask {
			fm = append(fm, f)
		} else {
			am = append(am, f)
		}
	}
	out := Fmask.Sorted(fm)
	return append(out, FileAmask.Sorted(am)...)
}

// Decode turns a FILE response's single row into a name->value map.
// The implicit leading "fid" column is always present and always
// decoded as an integer; every other column is decoded per its
// Field.Type, in the same fmask-then-amask order Params() requested
// them in.
func (r *FileRequest) Decode(resp Response) (map[string]interface{}, error) {
	if len(resp.Rows) == 0 {
		return nil, fmt.Errorf("protocol: FILE response has no data row")
	}
	row := resp.Rows[0]
	fields := r.orderedFields()
	if len(row) != len(fields)+1 {
		return nil, fmt.Errorf("protocol: FILE response column count %d != expected %d", len(row), len(fields)+1)
	}
	out := make(map[string]interface{}, len(fields)+1)
	fid, err := DecodeTyped(DecodeString(row[0]), TypeInt)
	if err != nil {
		return nil, fmt.Errorf("protocol: FILE response: implicit fid: %w", err)
	}
	out["fid"] = fid
	for i, f := range fields {
		v, err := DecodeTyped(DecodeString(row[i+1]), f.Type)
		if err != nil {
			return nil, fmt.Errorf("protocol: FILE response: field %s: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

// DecodeRaw returns the same row's per-field values as unescaped but
// NOT type-decoded wire strings, for callers that persist them (the
// cache store re-decodes with DecodeTyped on read, per
// cache.go's "raw, already-unescaped wire strings" contract) rather
// than consume them directly.
func (r *FileRequest) DecodeRaw(resp Response) (map[string]string, error) {
	if len(resp.Rows) == 0 {
		return nil, fmt.Errorf("protocol: FILE response has no data row")
	}
	row := resp.Rows[0]
	fields := r.orderedFields()
	if len(row) != len(fields)+1 {
		return nil, fmt.Errorf("protocol: FILE response column count %d != expected %d", len(row), len(fields)+1)
	}
	out := make(map[string]string, len(fields))
	for i, f := range fields {
		out[f.Name] = DecodeString(row[i+1])
	}
	return out, nil
}

// AnimeDescRequest is an ANIMEDESC query: the free-text anime
// description is paginated server-side into 1,400-byte "parts", each
// fetched with its own request.
type AnimeDescRequest struct {
	AID  int64
	Part int
}

func (r *AnimeDescRequest) Command() string { return "ANIMEDESC" }

func (r *AnimeDescRequest) Params() []KV {
	return []KV{
		{Key: "aid", Value: strconv.FormatInt(r.AID, 10)},
		{Key: "part", Value: strconv.Itoa(r.Part)},
	}
}

func (r *AnimeDescRequest) ValidCodes() []int { return []int{CodeResultAnimeDesc} }

func (r *AnimeDescRequest) CheckCode(resp Response) error {
	return CheckCode("ANIMEDESC", resp, 0, r.ValidCodes())
}

// AnimeDescPage is one decoded ANIMEDESC response: which part this
// is, how many parts exist in total, and that part's text.
type AnimeDescPage struct {
	CurPart  int
	MaxParts int
	Content  string
}

// Decode parses an ANIMEDESC response's three implicit columns:
// cur_part, max_parts, and the content of this part. The content
// column is decoded with the ANIMEDESC title exemption (a literal '/'
// in the description is not a delimiter).
func (r *AnimeDescRequest) Decode(resp Response) (AnimeDescPage, error) {
	if len(resp.Rows) == 0 {
		return AnimeDescPage{}, fmt.Errorf("protocol: ANIMEDESC response has no data row")
	}
	row := resp.Rows[0]
	if len(row) < 3 {
		return AnimeDescPage{}, fmt.Errorf("protocol: ANIMEDESC response has %d columns, want >= 3", len(row))
	}
	curPart, err := strconv.Atoi(DecodeString(row[0]))
	if err != nil {
		return AnimeDescPage{}, fmt.Errorf("protocol: ANIMEDESC cur_part: %w", err)
	}
	maxParts, err := strconv.Atoi(DecodeString(row[1]))
	if err != nil {
		return AnimeDescPage{}, fmt.Errorf("protocol: ANIMEDESC max_parts: %w", err)
	}
	return AnimeDescPage{
		CurPart:  curPart,
		MaxParts: maxParts,
		Content:  DecodeAnimeDescTitle(row[2]),
	}, nil
}

// NextRequest returns the request for the following part, or nil once
// page.CurPart is the last one. cur_part is zero-based, so the last
// valid part is max_parts-1.
func (r *AnimeDescRequest) NextRequest(page AnimeDescPage) *AnimeDescRequest {
	if page.CurPart >= page.MaxParts-1 {
		return nil
	}
	return &AnimeDescRequest{AID: r.AID, Part: page.CurPart + 1}
}
