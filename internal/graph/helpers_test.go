package graph

import (
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
)

func record(keys []string, values []interface{}) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func TestGetString(t *testing.T) {
	rec := record([]string{"name", "count", "missing_value"}, []interface{}{"settlement", int64(3), nil})

	assert.Equal(t, "settlement", GetString(rec, "name"))
	assert.Equal(t, "", GetString(rec, "count"))
	assert.Equal(t, "", GetString(rec, "missing_value"))
	assert.Equal(t, "", GetString(rec, "absent"))
}

func TestGetInt(t *testing.T) {
	rec := record([]string{"a", "b", "c"}, []interface{}{int64(42), 7, "nope"})

	// Neo4j integers come back as int64
	assert.Equal(t, 42, GetInt(rec, "a"))
	assert.Equal(t, 7, GetInt(rec, "b"))
	assert.Equal(t, 0, GetInt(rec, "c"))
	assert.Equal(t, 0, GetInt(rec, "absent"))
}

func TestGetFloat64(t *testing.T) {
	rec := record([]string{"f", "i", "s"}, []interface{}{0.75, int64(2), "nope"})

	assert.Equal(t, 0.75, GetFloat64(rec, "f"))
	assert.Equal(t, 2.0, GetFloat64(rec, "i"))
	assert.Equal(t, 0.0, GetFloat64(rec, "s"))
}

func TestGetStringSlice(t *testing.T) {
	rec := record(
		[]string{"tags", "mixed", "scalar"},
		[]interface{}{
			[]interface{}{"a", "b"},
			[]interface{}{"a", int64(1), "b"},
			"nope",
		},
	)

	assert.Equal(t, []string{"a", "b"}, GetStringSlice(rec, "tags"))
	assert.Equal(t, []string{"a", "b"}, GetStringSlice(rec, "mixed"))
	assert.Empty(t, GetStringSlice(rec, "scalar"))
	assert.Empty(t, GetStringSlice(rec, "absent"))
}

func TestGetVector(t *testing.T) {
	rec := record(
		[]string{"v", "ints", "scalar"},
		[]interface{}{
			[]interface{}{0.5, 0.25},
			[]interface{}{int64(1), int64(2)},
			1.0,
		},
	)

	assert.Equal(t, []float32{0.5, 0.25}, GetVector(rec, "v"))
	assert.Equal(t, []float32{1, 2}, GetVector(rec, "ints"))
	assert.Nil(t, GetVector(rec, "scalar"))
	assert.Nil(t, GetVector(rec, "absent"))
}

func TestVectorParamRoundTrip(t *testing.T) {
	vec := []float32{0.5, 0.25, -1}

	param := VectorParam(vec)
	rec := record([]string{"v"}, []interface{}{param})
	assert.Equal(t, vec, GetVector(rec, "v"))
}
