package core

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"time"
)

const patchDateLayout = "2006-01-02"

type nullable interface {
	setNull()
}

// RefPatch is a nullable reference (busId, driverId, minderId...) inside an update payload.
//
// An absent JSON field leaves the reference unchanged, `null` or "" clears it
// and any other string sets it.
type RefPatch struct {
	present bool
	value   *string
}

func UnchangedRef() RefPatch { return RefPatch{} }

func ClearRef() RefPatch { return RefPatch{present: true} }

func SetRef(id string) RefPatch {
	id = strings.TrimSpace(id)
	if id == "" {
		return ClearRef()
	}
	return RefPatch{present: true, value: &id}
}

func (p RefPatch) IsUnchanged() bool { return !p.present }
func (p RefPatch) IsClear() bool     { return p.present && p.value == nil }

// Value returns the new reference, if one is set.
func (p RefPatch) Value() (string, bool) {
	if p.value == nil {
		return "", false
	}
	return *p.value, true
}

// Apply returns the reference resulting from applying the patch to cur.
func (p RefPatch) Apply(cur *string) *string {
	switch {
	case !p.present:
		return cur
	case p.value == nil:
		return nil
	default:
		v := *p.value
		return &v
	}
}

func (p *RefPatch) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = ClearRef()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = SetRef(s)
	return nil
}

func (p RefPatch) MarshalJSON() ([]byte, error) {
	if p.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*p.value)
}

func (p *RefPatch) setNull() { *p = ClearRef() }

// TimePatch is a nullable timestamp inside an update payload, with the same
// absent / null / value semantics as RefPatch.
type TimePatch struct {
	present bool
	value   *time.Time
}

func UnchangedTime() TimePatch { return TimePatch{} }

func ClearTime() TimePatch { return TimePatch{present: true} }

func SetTime(t time.Time) TimePatch {
	return TimePatch{present: true, value: &t}
}

func (p TimePatch) IsUnchanged() bool { return !p.present }
func (p TimePatch) IsClear() bool     { return p.present && p.value == nil }

// Apply returns the timestamp resulting from applying the patch to cur.
func (p TimePatch) Apply(cur *time.Time) *time.Time {
	switch {
	case !p.present:
		return cur
	case p.value == nil:
		return nil
	default:
		v := *p.value
		return &v
	}
}

// UnmarshalJSON accepts RFC 3339 timestamps and plain dates (midnight UTC).
func (p *TimePatch) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = ClearTime()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*p = ClearTime()
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		if t, err = time.Parse(patchDateLayout, s); err != nil {
			return err
		}
	}
	*p = SetTime(t.UTC())
	return nil
}

func (p TimePatch) MarshalJSON() ([]byte, error) {
	if p.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*p.value)
}

func (p *TimePatch) setNull() { *p = ClearTime() }

// ClearNullPatches clears the patch fields of the struct dst points to whose JSON
// names are listed in keys. Decoders that skip UnmarshalJSON on a literal null
// (sonic does for non-pointer types) leave those fields unchanged otherwise.
func ClearNullPatches(dst interface{}, keys map[string]bool) {
	v := reflect.ValueOf(dst)
	if len(keys) == 0 || v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return
	}
	clearNullFields(v.Elem(), keys)
}

func clearNullFields(v reflect.Value, keys map[string]bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		tag := f.Tag.Get("json")
		name := strings.Split(tag, ",")[0]
		if f.Anonymous && tag == "" && f.Type.Kind() == reflect.Struct {
			clearNullFields(v.Field(i), keys)
			continue
		}
		if name == "" {
			name = f.Name
		}
		if !keys[name] {
			continue
		}
		if n, ok := v.Field(i).Addr().Interface().(nullable); ok {
			n.setNull()
		}
	}
}
