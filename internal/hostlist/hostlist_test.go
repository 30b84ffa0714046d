package hostlist_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetrun/fleetrun/internal/hostlist"
	"github.com/fleetrun/fleetrun/internal/lg"
)

func parse(t *testing.T, input string, opts hostlist.Options) []hostlist.Host {
	t.Helper()
	hosts, err := hostlist.Parse(context.Background(), strings.NewReader(input), opts)
	require.NoError(t, err)
	return hosts
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    hostlist.Options
		aliases []string
	}{
		{
			name:    "basic rows in file order",
			input:   "web1,10.0.0.1,22,root\ndb1,10.0.0.2,2222,admin\n",
			aliases: []string{"web1", "db1"},
		},
		{
			name:    "comment lines dropped",
			input:   "#web1,10.0.0.1,22,root\nweb2,10.0.0.2,22,root\n",
			aliases: []string{"web2"},
		},
		{
			name:    "incomplete row skipped silently",
			input:   "web1,10.0.0.1,22\nweb2,10.0.0.2,22,root\n",
			aliases: []string{"web2"},
		},
		{
			name:    "bad port skipped",
			input:   "web1,10.0.0.1,ssh,root\nweb2,10.0.0.2,22,root\n",
			aliases: []string{"web2"},
		},
		{
			name:    "missing user skipped",
			input:   "web1,10.0.0.1,22, \nweb2,10.0.0.2,22,root\n",
			aliases: []string{"web2"},
		},
		{
			name:    "blank lines ignored",
			input:   "\nweb1,10.0.0.1,22,root\n\n",
			aliases: []string{"web1"},
		},
		{
			name:    "empty input yields no hosts",
			input:   "",
			aliases: nil,
		},
		{
			name:    "tag filter keeps intersecting rows",
			input:   "web1,10.0.0.1,22,root,,web:prod\ndb1,10.0.0.2,22,root,,db\n",
			opts:    hostlist.Options{Tags: []string{"web"}},
			aliases: []string{"web1"},
		},
		{
			name:    "no tag flag keeps untagged rows",
			input:   "web1,10.0.0.1,22,root\ndb1,10.0.0.2,22,root,,db\n",
			aliases: []string{"web1", "db1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts := parse(t, tt.input, tt.opts)
			var aliases []string
			for _, h := range hosts {
				aliases = append(aliases, h.Alias)
			}
			assert.Equal(t, tt.aliases, aliases)
		})
	}
}

func TestParseAuthColumn(t *testing.T) {
	input := "key,10.0.0.1,22,root,/home/op/.ssh/id_ed25519\n" +
		"pass,10.0.0.2,22,root,#\n" +
		"default,10.0.0.3,22,root\n"
	hosts := parse(t, input, hostlist.Options{Password: "hunter2"})
	require.Len(t, hosts, 3)

	assert.Equal(t, hostlist.KeyAuth{Path: "/home/op/.ssh/id_ed25519"}, hosts[0].Auth)
	assert.Equal(t, hostlist.PasswordAuth{Secret: "hunter2"}, hosts[1].Auth)
	assert.Equal(t, hostlist.KeyAuth{}, hosts[2].Auth)
}

func TestParseFields(t *testing.T) {
	hosts := parse(t, "web1, 10.0.0.1 ,2222,deploy,,a:b\n", hostlist.Options{})
	require.Len(t, hosts, 1)

	h := hosts[0]
	assert.Equal(t, "web1", h.Alias)
	assert.Equal(t, "10.0.0.1", h.Address)
	assert.Equal(t, uint16(2222), h.Port)
	assert.Equal(t, "deploy", h.User)
	assert.Equal(t, []string{"a", "b"}, h.Tags)
	assert.Equal(t, "10.0.0.1:2222", h.Addr())
}

// warnRecorder captures Warn calls so tests can check what a skipped
// row reports.
type warnRecorder struct {
	mu    sync.Mutex
	warns [][]lg.Field
}

func (r *warnRecorder) Debug(string, ...lg.Field) {}
func (r *warnRecorder) Info(string, ...lg.Field)  {}
func (r *warnRecorder) Error(string, ...lg.Field) {}
func (r *warnRecorder) Warn(_ string, fields ...lg.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warns = append(r.warns, fields)
}
func (r *warnRecorder) With(...lg.Field) lg.Logger { return r }
func (r *warnRecorder) Sync() error                { return nil }

func fieldInt(fields []lg.Field, key string) (int, bool) {
	for _, f := range fields {
		if f.Key == key {
			return int(f.Integer), true
		}
	}
	return 0, false
}

func TestParseWarnsWithFileLineNumbers(t *testing.T) {
	// two comment lines precede the bad row, so its file line is 3
	input := "# fleet inventory\n# edited 2026-08-12\nweb1,10.0.0.1,ssh,root\nweb2,10.0.0.2,22,root\n"

	rec := &warnRecorder{}
	ctx := lg.Attach(context.Background(), rec)
	hosts, err := hostlist.Parse(ctx, strings.NewReader(input), hostlist.Options{})
	require.NoError(t, err)
	require.Len(t, hosts, 1)

	require.Len(t, rec.warns, 1)
	line, ok := fieldInt(rec.warns[0], "line")
	require.True(t, ok, "skip warning must carry the file line")
	assert.Equal(t, 3, line)
}

func TestMaxAliasLen(t *testing.T) {
	hosts := parse(t, "a,10.0.0.1,22,root\nlonger,10.0.0.2,22,root\n", hostlist.Options{})
	assert.Equal(t, 6, hostlist.MaxAliasLen(hosts))
	assert.Equal(t, 0, hostlist.MaxAliasLen(nil))
}
