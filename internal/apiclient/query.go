package apiclient

import (
	"net/url"
	"strconv"
)

// Query builds url.Values while skipping zero values.
type Query struct {
	values url.Values
}

// NewQuery returns an empty Query.
func NewQuery() *Query {
	return &Query{values: url.Values{}}
}

// Str sets key when value is non-empty.
func (q *Query) Str(key, value string) *Query {
	if value != "" {
		q.values.Set(key, value)
	}
	return q
}

// Int sets key when value is positive.
func (q *Query) Int(key string, value int) *Query {
	if value > 0 {
		q.values.Set(key, strconv.Itoa(value))
	}
	return q
}

// Int64 sets key when value is positive.
func (q *Query) Int64(key string, value int64) *Query {
	if value > 0 {
		q.values.Set(key, strconv.FormatInt(value, 10))
	}
	return q
}

// Values returns the accumulated parameters.
func (q *Query) Values() url.Values {
	return q.values
}
