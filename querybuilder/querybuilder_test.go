package querybuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	b := Builder{BaseURL: "https://data.example/api.php"}

	tests := []struct {
		name string
		sub  Submission
		want string
	}{
		{
			name: "no filters keeps empty conditions",
			sub:  Submission{Server: "s1", Table: "orders", Columns: []string{"id", "total"}},
			want: "https://data.example/api.php?server=s1&table=orders&columns=id,total&conditions=",
		},
		{
			name: "filters rendered verbatim",
			sub: Submission{
				Server: "s1", Table: "orders", Columns: []string{"id"},
				Filters: []Filter{{Type: "status", Value: `"open"`}, {Type: "qty", Value: "3"}},
			},
			want: `https://data.example/api.php?server=s1&table=orders&columns=id&conditions={"status":"open","qty":3}`,
		},
		{
			name: "incomplete filters skipped",
			sub: Submission{
				Server: "s1", Table: "t", Columns: []string{"a"},
				Filters: []Filter{{Type: "x"}, {Value: "1"}, {Type: "y", Value: "2"}},
			},
			want: `https://data.example/api.php?server=s1&table=t&columns=a&conditions={"y":2}`,
		},
		{
			name: "deleted flag follows server",
			sub:  Submission{Server: "s1", Table: "t", Columns: []string{"a", " ", "b"}, DeletedFlag: true},
			want: "https://data.example/api.php?server=s1&deleted_flag=1&table=t&columns=a,b&conditions=",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Build(tt.sub)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildDefaultsAndExistingQuery(t *testing.T) {
	sub := Submission{Server: "s", Table: "t", Columns: []string{"c"}}

	got, err := Builder{}.Build(sub)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL+"?server=s&table=t&columns=c&conditions=", got)

	got, err = Builder{BaseURL: "https://h/x.php?key=1"}.Build(sub)
	require.NoError(t, err)
	assert.Equal(t, "https://h/x.php?key=1&server=s&table=t&columns=c&conditions=", got)
}

func TestBuildRequiresFields(t *testing.T) {
	b := Builder{}
	_, err := b.Build(Submission{Table: "t", Columns: []string{"c"}})
	assert.ErrorIs(t, err, ErrNoServer)
	_, err = b.Build(Submission{Server: "s", Columns: []string{"c"}})
	assert.ErrorIs(t, err, ErrNoTable)
	_, err = b.Build(Submission{Server: "s", Table: "t", Columns: []string{" "}})
	assert.ErrorIs(t, err, ErrNoColumns)
}
