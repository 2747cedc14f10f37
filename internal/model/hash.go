package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"
)

// Hash returns a stable hex SHA-256 digest of the record. Collections whose
// order carries no meaning are sorted first, so two records describing the
// same class surface hash identically regardless of declaration order.
// Parameter order inside a method is significant and preserved.
func Hash(rec *ClassRecord) string {
	c := canonical(rec)
	data, err := json.Marshal(c)
	if err != nil {
		// Only plain strings, bools and slices are marshalled.
		panic("model: canonical record not serialisable: " + err.Error())
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func canonical(rec *ClassRecord) ClassRecord {
	c := *rec
	c.Line = 0

	c.Tags = sortedCopy(rec.Tags)
	c.Functions = sortedCopy(rec.Functions)

	c.Properties = append([]PropertyRecord{}, rec.Properties...)
	slices.SortFunc(c.Properties, func(a, b PropertyRecord) int {
		if n := strings.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		return strings.Compare(a.Tag, b.Tag)
	})

	c.Methods = make([]MethodRecord, len(rec.Methods))
	for i, m := range rec.Methods {
		m.Tags = sortedCopy(m.Tags)
		m.Qualifiers.Other = sortedCopy(m.Qualifiers.Other)
		if m.Params == nil {
			m.Params = []string{}
		}
		c.Methods[i] = m
	}
	slices.SortStableFunc(c.Methods, func(a, b MethodRecord) int {
		if n := strings.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		if n := strings.Compare(a.RawTag, b.RawTag); n != 0 {
			return n
		}
		return strings.Compare(strings.Join(a.Params, ","), strings.Join(b.Params, ","))
	})
	return c
}

func sortedCopy(ss []string) []string {
	out := slices.Clone(ss)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return out
}
