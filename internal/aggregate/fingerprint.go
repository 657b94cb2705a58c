package aggregate

import (
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// membership is the part of an Input that can change without a cache bump:
// the courses in scope, who is enrolled in them and who opted out.
type membership struct {
	courseIDs []string
	enrolled  map[string]map[string]bool
	revoked   map[string]map[string]bool
}

// fingerprint digests the membership sets so that a cached result is only
// reused while they are unchanged.
func (m membership) fingerprint() string {
	d := xxhash.New()
	courses := append([]string(nil), m.courseIDs...)
	sort.Strings(courses)
	for _, c := range courses {
		_, _ = d.WriteString("c:" + c + "\n")
		writeSet(d, "e", m.enrolled[c])
		writeSet(d, "r", m.revoked[c])
	}
	return "f" + strconv.FormatUint(d.Sum64(), 36)
}

func writeSet(d *xxhash.Digest, tag string, set map[string]bool) {
	ids := make([]string, 0, len(set))
	for id, ok := range set {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		_, _ = d.WriteString(tag + ":" + id + "\n")
	}
}
