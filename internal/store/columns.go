package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/driftline/reddit-ingest/internal/model"
)

// Column mapping is the single source of truth for how an entity's named
// fields land in its kind's table. It drives DDL generation, inserts and
// row decoding for both store implementations.

type colType int

const (
	colText colType = iota
	colInt
	colReal
	colBool
	colJSON
)

// column maps one table column to the entity fields that can populate it.
// Fields are tried in order; the first present, non-nil value wins.
type column struct {
	name     string
	fields   []string
	typ      colType
	required bool
	indexed  bool
}

func col(name string, typ colType) column { return column{name: name, fields: []string{name}, typ: typ} }

var entityColumns = map[model.EntityKind][]column{
	model.KindUser: {
		{name: "username", fields: []string{"username", "name"}, typ: colText, required: true, indexed: true},
		col("created_utc", colReal),
		col("comment_karma", colInt),
		col("link_karma", colInt),
		col("total_karma", colInt),
		col("has_verified_email", colBool),
		col("is_employee", colBool),
		col("is_mod", colBool),
		col("is_gold", colBool),
		col("over_18", colBool),
		col("is_suspended", colBool),
		col("suspension_expiration_utc", colReal),
		col("post_activity", colBool),
		col("submission_activity", colBool),
		{name: "subreddit_info", fields: []string{"subreddit"}, typ: colJSON},
	},
	model.KindPost: {
		{name: "post_id", fields: []string{"id"}, typ: colText, required: true, indexed: true},
		{name: "title", fields: []string{"title"}, typ: colText, required: true},
		{name: "author", fields: []string{"author"}, typ: colText, indexed: true},
		col("score", colInt),
		col("upvote_ratio", colReal),
		col("num_comments", colInt),
		col("created_utc", colReal),
		col("url", colText),
		col("permalink", colText),
		col("is_self", colBool),
		col("selftext", colText),
		col("link_url", colText),
		col("over_18", colBool),
		col("spoiler", colBool),
		col("stickied", colBool),
		col("locked", colBool),
		col("distinguished", colText),
		col("flair", colJSON),
	},
	model.KindComment: {
		{name: "comment_id", fields: []string{"id"}, typ: colText, required: true, indexed: true},
		col("author", colText),
		col("body", colText),
		col("parent_id", colText),
		col("post_id", colText),
		col("created_utc", colReal),
		col("score", colInt),
	},
	model.KindCommunity: {
		{name: "community_id", fields: []string{"id"}, typ: colText},
		{name: "display_name", fields: []string{"display_name", "name"}, typ: colText, required: true, indexed: true},
		col("title", colText),
		col("public_description", colText),
		col("description", colText),
		col("subscribers", colInt),
		col("active_user_count", colInt),
		col("created_utc", colReal),
		col("over18", colBool),
		col("submission_type", colText),
		col("allow_images", colBool),
		col("allow_videos", colBool),
		col("allow_polls", colBool),
		col("spoilers_enabled", colBool),
		col("time_filter", colText),
		col("post_count", colInt),
		col("is_trending", colBool),
		col("trending_reason", colText),
		col("submission_activity", colBool),
	},
	model.KindSubmission: {
		{name: "submission_id", fields: []string{"id"}, typ: colText, required: true, indexed: true},
		{name: "title", fields: []string{"title"}, typ: colText, required: true},
		col("author", colText),
		col("subreddit", colText),
		col("score", colInt),
		col("upvote_ratio", colReal),
		col("num_comments", colInt),
		col("created_utc", colReal),
		col("url", colText),
		col("permalink", colText),
		col("is_self", colBool),
		col("selftext", colText),
		col("selftext_html", colText),
		col("link_url", colText),
		col("domain", colText),
		col("over_18", colBool),
		col("spoiler", colBool),
		col("stickied", colBool),
		col("locked", colBool),
		col("archived", colBool),
		col("distinguished", colText),
		col("flair", colJSON),
		col("media", colJSON),
		col("preview", colJSON),
		col("awards", colJSON),
	},
}

// tableName returns the table backing a core entity kind. Kind names were
// chosen to double as table names.
func tableName(kind model.EntityKind) string { return string(kind) }

// columnValue extracts and coerces the value for one column from an
// entity. Missing optional fields map to NULL.
func columnValue(c column, e model.Entity) (any, error) {
	var raw any
	for _, f := range c.fields {
		if v, ok := e[f]; ok && v != nil {
			raw = v
			break
		}
	}
	if raw == nil {
		if c.required {
			return nil, eris.Errorf("missing required field %q", c.fields[0])
		}
		return nil, nil
	}

	switch c.typ {
	case colText:
		s, ok := raw.(string)
		if !ok {
			return nil, eris.Errorf("field %q: expected string, got %T", c.fields[0], raw)
		}
		return s, nil
	case colInt:
		switch v := raw.(type) {
		case float64:
			return int64(v), nil
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		}
		return nil, eris.Errorf("field %q: expected integer, got %T", c.fields[0], raw)
	case colReal:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		}
		return nil, eris.Errorf("field %q: expected number, got %T", c.fields[0], raw)
	case colBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, eris.Errorf("field %q: expected boolean, got %T", c.fields[0], raw)
		}
		return b, nil
	case colJSON:
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "field %q: encode", c.fields[0])
		}
		return data, nil
	}
	return nil, eris.Errorf("field %q: unhandled column type", c.fields[0])
}

// entityValues returns the coerced values for every mapped column of the
// kind, in declaration order. Unmapped entity fields are ignored.
func entityValues(kind model.EntityKind, e model.Entity) ([]any, error) {
	cols := entityColumns[kind]
	vals := make([]any, 0, len(cols))
	for _, c := range cols {
		v, err := columnValue(c, e)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// decodeEntityRow rebuilds an entity from a row scanned in select order:
// batch_id, mapped columns, source_operation, extracted_at, call_metadata.
// NULL columns are omitted; JSON blobs are deserialized back to nested
// structures.
func decodeEntityRow(kind model.EntityKind, vals []any) (model.Entity, error) {
	cols := entityColumns[kind]
	if len(vals) != len(cols)+4 {
		return nil, eris.Errorf("decode %s row: got %d values, want %d", kind, len(vals), len(cols)+4)
	}

	e := model.Entity{}
	if v, err := decodeValue(colText, vals[0]); err == nil && v != nil {
		e["batch_id"] = v
	}
	for i, c := range cols {
		v, err := decodeValue(c.typ, vals[i+1])
		if err != nil {
			return nil, eris.Wrapf(err, "decode %s.%s", kind, c.name)
		}
		if v != nil {
			e[c.fields[0]] = v
		}
	}

	prov := []struct {
		key string
		typ colType
	}{
		{"source_operation", colText},
		{"extracted_at", colText},
		{"call_metadata", colJSON},
	}
	for i, p := range prov {
		v, err := decodeValue(p.typ, vals[len(cols)+1+i])
		if err != nil {
			return nil, eris.Wrapf(err, "decode %s.%s", kind, p.key)
		}
		if v != nil {
			e[p.key] = v
		}
	}
	return e, nil
}

// decodeValue normalizes a driver-returned value for one column type.
// Both engines funnel through here: SQLite hands back int64/float64/
// string/[]byte, pgx hands back native Go values including decoded JSONB.
func decodeValue(typ colType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch typ {
	case colText:
		switch t := v.(type) {
		case string:
			return t, nil
		case []byte:
			return string(t), nil
		}
	case colInt:
		switch t := v.(type) {
		case int64:
			return t, nil
		case int32:
			return int64(t), nil
		case int:
			return int64(t), nil
		case float64:
			return int64(t), nil
		}
	case colReal:
		switch t := v.(type) {
		case float64:
			return t, nil
		case int64:
			return float64(t), nil
		}
	case colBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case int64:
			return t != 0, nil
		}
	case colJSON:
		switch t := v.(type) {
		case []byte:
			return unmarshalAny(t)
		case string:
			return unmarshalAny([]byte(t))
		default:
			// pgx decodes JSONB to native Go values already.
			return v, nil
		}
	}
	return nil, fmt.Errorf("unexpected driver value %T", v)
}

func unmarshalAny(data []byte) (any, error) {
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// dialect abstracts the syntax differences between the two engines so the
// column mapping can generate DDL and statements for both.
type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) placeholder(i int) string {
	if d == dialectPostgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func (d dialect) placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = d.placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

func (d dialect) columnDDL(t colType) string {
	switch t {
	case colText:
		return "TEXT"
	case colInt:
		if d == dialectPostgres {
			return "BIGINT"
		}
		return "INTEGER"
	case colReal:
		if d == dialectPostgres {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case colBool:
		return "BOOLEAN"
	case colJSON:
		if d == dialectPostgres {
			return "JSONB"
		}
		return "TEXT"
	}
	return "TEXT"
}

func (d dialect) surrogateKeyDDL() string {
	if d == dialectPostgres {
		return "id BIGSERIAL PRIMARY KEY"
	}
	return "id INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (d dialect) timestampDDL() string {
	if d == dialectPostgres {
		return "TIMESTAMPTZ NOT NULL DEFAULT now()"
	}
	return "DATETIME NOT NULL DEFAULT (datetime('now'))"
}

// createEntityTableSQL generates the DDL for one core kind's table plus
// its indexes.
func createEntityTableSQL(kind model.EntityKind, d dialect) string {
	table := tableName(kind)
	var b strings.Builder

	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	fmt.Fprintf(&b, "\t%s,\n", d.surrogateKeyDDL())
	b.WriteString("\tbatch_id TEXT NOT NULL REFERENCES batches(batch_id),\n")
	for _, c := range entityColumns[kind] {
		notNull := ""
		if c.required {
			notNull = " NOT NULL"
		}
		fmt.Fprintf(&b, "\t%s %s%s,\n", c.name, d.columnDDL(c.typ), notNull)
	}
	b.WriteString("\tsource_operation TEXT,\n")
	b.WriteString("\textracted_at TEXT,\n")
	fmt.Fprintf(&b, "\tcall_metadata %s,\n", d.columnDDL(colJSON))
	fmt.Fprintf(&b, "\tcreated_at %s,\n", d.timestampDDL())
	fmt.Fprintf(&b, "\tupdated_at %s\n", d.timestampDDL())
	b.WriteString(");\n")

	fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS idx_%s_batch_id ON %s(batch_id);\n", table, table)
	for _, c := range entityColumns[kind] {
		if c.indexed {
			fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s);\n", table, c.name, table, c.name)
		}
	}
	return b.String()
}

// insertEntitySQL generates the INSERT statement for one core kind. Value
// order: batch_id, mapped columns, source_operation, extracted_at,
// call_metadata.
func insertEntitySQL(kind model.EntityKind, d dialect) string {
	cols := entityColumns[kind]
	names := make([]string, 0, len(cols)+4)
	names = append(names, "batch_id")
	for _, c := range cols {
		names = append(names, c.name)
	}
	names = append(names, "source_operation", "extracted_at", "call_metadata")

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName(kind), strings.Join(names, ", "), d.placeholders(len(names)))
}

// selectEntitySQL generates the SELECT column list matching the order
// decodeEntityRow expects.
func selectEntityColumns(kind model.EntityKind) string {
	cols := entityColumns[kind]
	names := make([]string, 0, len(cols)+4)
	names = append(names, "batch_id")
	for _, c := range cols {
		names = append(names, c.name)
	}
	names = append(names, "source_operation", "extracted_at", "call_metadata")
	return strings.Join(names, ", ")
}
