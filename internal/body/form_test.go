package body

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseForm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want []Field
	}{
		{
			name: "simple pairs",
			data: "a=1&b=2",
			want: []Field{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}},
		},
		{
			name: "percent decoding",
			data: "q=hello%20world&lang=go",
			want: []Field{{Name: "q", Value: "hello world"}, {Name: "lang", Value: "go"}},
		},
		{
			name: "plus as space",
			data: "msg=a+b",
			want: []Field{{Name: "msg", Value: "a b"}},
		},
		{
			name: "duplicates keep order",
			data: "k=1&k=2&k=3",
			want: []Field{{Name: "k", Value: "1"}, {Name: "k", Value: "2"}, {Name: "k", Value: "3"}},
		},
		{
			name: "value-less key",
			data: "flag",
			want: []Field{{Name: "flag", Value: ""}},
		},
		{
			name: "bad escape dropped",
			data: "ok=1&bad=%zz&still=2",
			want: []Field{{Name: "ok", Value: "1"}, {Name: "still", Value: "2"}},
		},
		{
			name: "empty body",
			data: "",
			want: []Field{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, ParseForm([]byte(tt.data)))
		})
	}
}

func TestFieldMap_LastSeenWins(t *testing.T) {
	t.Parallel()

	fields := []Field{{Name: "k", Value: "1"}, {Name: "k", Value: "2"}}

	assert.Equal(t, map[string]string{"k": "2"}, FieldMap(fields))
}

func TestFieldValues_KeepsDuplicates(t *testing.T) {
	t.Parallel()

	fields := []Field{{Name: "k", Value: "1"}, {Name: "k", Value: "2"}}

	values := FieldValues(fields)
	require.Len(t, values["k"], 2)
	assert.Equal(t, []string{"1", "2"}, values["k"])
}
