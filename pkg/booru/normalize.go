package booru

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultExtension is used when the image URL path has no extension.
const DefaultExtension = ".jpg"

// ErrMalformed is returned by ParseRecords for bodies that are not JSON.
var ErrMalformed = errors.New("malformed JSON response")

// Probe tables: the first key holding a usable value wins.
var (
	idKeys       = []string{"id", "post_id", "file_id"}
	imageURLKeys = []string{"file_url", "image_url", "image", "large_file_url", "source", "preview_file_url"}
	widthKeys    = []string{"image_width", "width", "preview_width"}
	heightKeys   = []string{"image_height", "height", "preview_height"}
	scoreKeys    = []string{"score", "total_score", "rating_score", "fav_count", "up_score"}
)

// postKeys mark an object as a post when it is not wrapped in post/posts.
var postKeys = append(append([]string{"tag_string", "tags"}, idKeys...), imageURLKeys...)

// ParseRecords decodes a listing response. It accepts a bare list, an object
// with a "post" or "posts" member (list or single object), or a single post
// object. Objects with neither, such as "{}", hold no records.
func ParseRecords(body []byte) ([]Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformed
	}
	root := gjson.ParseBytes(body)

	switch {
	case root.IsArray():
		return collect(root), nil
	case root.IsObject():
		for _, key := range []string{"post", "posts"} {
			if v := root.Get(key); v.Exists() && v.Type != gjson.Null {
				switch {
				case v.IsArray():
					return collect(v), nil
				case v.IsObject():
					return []Record{{raw: v}}, nil
				}
			}
		}
		if looksLikePost(root) {
			return []Record{{raw: root}}, nil
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func collect(list gjson.Result) []Record {
	var records []Record
	list.ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			records = append(records, Record{raw: v})
		}
		return true
	})
	return records
}

func looksLikePost(obj gjson.Result) bool {
	for _, key := range postKeys {
		if obj.Get(key).Exists() {
			return true
		}
	}
	return false
}

// Normalize converts a record into a Post for this endpoint's site.
func (e Endpoint) Normalize(rec Record) Post {
	p := Post{
		ImageURL: e.ResolveURL(firstString(rec.raw, imageURLKeys)),
		Tags:     tagsOf(rec.raw),
		Width:    firstPositive(rec.raw, widthKeys),
		Height:   firstPositive(rec.raw, heightKeys),
		Score:    firstInt(rec.raw, scoreKeys),
	}
	p.Extension = extensionOf(p.ImageURL)

	if id := firstString(rec.raw, idKeys); id != "" {
		p.ID = sanitizeID(id)
	}
	if p.ID == "" && p.ImageURL != "" {
		p.ID = syntheticID(p.ImageURL)
		p.SyntheticID = true
	}
	return p
}

func present(v gjson.Result) bool {
	return v.Exists() && v.Type != gjson.Null && strings.TrimSpace(v.String()) != ""
}

func firstString(obj gjson.Result, keys []string) string {
	for _, key := range keys {
		if v := obj.Get(key); present(v) && v.Type != gjson.JSON {
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}

// asInt coerces numbers and numeric strings.
func asInt(v gjson.Result) (int, bool) {
	switch v.Type {
	case gjson.Number:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return 0, false
		}
		return int(math.Trunc(v.Num)), true
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(v.Str))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func firstInt(obj gjson.Result, keys []string) *int {
	for _, key := range keys {
		if n, ok := asInt(obj.Get(key)); ok {
			return &n
		}
	}
	return nil
}

func firstPositive(obj gjson.Result, keys []string) int {
	for _, key := range keys {
		if n, ok := asInt(obj.Get(key)); ok && n > 0 {
			return n
		}
	}
	return 0
}

// tagsOf reads tag_string, then tags as a string, a list, or an object of
// category lists.
func tagsOf(obj gjson.Result) string {
	if v := obj.Get("tag_string"); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
		return strings.Join(strings.Fields(v.Str), " ")
	}

	var tags []string
	var walk func(v gjson.Result)
	walk = func(v gjson.Result) {
		switch {
		case v.Type == gjson.String:
			tags = append(tags, strings.Fields(v.Str)...)
		case v.IsArray(), v.IsObject():
			v.ForEach(func(_, item gjson.Result) bool {
				walk(item)
				return true
			})
		}
	}
	walk(obj.Get("tags"))
	return strings.Join(tags, " ")
}

func extensionOf(imageURL string) string {
	if imageURL == "" {
		return DefaultExtension
	}
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || ext == "." {
		return DefaultExtension
	}
	return ext
}

func syntheticID(imageURL string) string {
	sum := sha256.Sum256([]byte(imageURL))
	return hex.EncodeToString(sum[:])[:16]
}

// sanitizeID keeps identifiers usable as file names.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
