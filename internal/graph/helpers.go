package graph

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Record Helper Functions
// ============================================================================

// GetString extracts a string value from a record, or "" when absent.
func GetString(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

// GetInt extracts an integer value from a record, or 0 when absent.
func GetInt(record *neo4j.Record, key string) int {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return int(i)
	}
	if i, ok := val.(int); ok {
		return i
	}
	return 0
}

// GetFloat64 extracts a float value from a record, or 0 when absent.
func GetFloat64(record *neo4j.Record, key string) float64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0.0
	}
	if f, ok := val.(float64); ok {
		return f
	}
	if i, ok := val.(int64); ok {
		return float64(i)
	}
	return 0.0
}

// GetStringSlice extracts a slice of strings from a record.
func GetStringSlice(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return []string{}
	}
	if slice, ok := val.([]interface{}); ok {
		result := make([]string, 0, len(slice))
		for _, v := range slice {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return []string{}
}

// GetVector extracts an embedding vector stored as a list property.
// Neo4j returns list elements as float64.
func GetVector(record *neo4j.Record, key string) []float32 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return nil
	}
	slice, ok := val.([]interface{})
	if !ok {
		return nil
	}
	result := make([]float32, 0, len(slice))
	for _, v := range slice {
		switch f := v.(type) {
		case float64:
			result = append(result, float32(f))
		case int64:
			result = append(result, float32(f))
		}
	}
	return result
}

// VectorParam converts an embedding to the []interface{} form the driver
// serializes as a list property.
func VectorParam(vec []float32) []interface{} {
	out := make([]interface{}, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}
