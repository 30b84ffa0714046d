// Package hostlist ingests the hosts file and hands the engine a
// validated, ordered sequence of host records.
//
// The file is comma-separated text, one host per line:
//
//	alias,address,port,user[,keypath[,tags]]
//
// Lines starting with '#' are comments. Rows with fewer than four
// fields are skipped. A row with a non-numeric port is skipped with a
// warning naming the row. The keypath column selects authentication:
// empty means the user's default keys, '#' means password, anything
// else is a private-key file path. Tags are colon-separated.
package hostlist

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fleetrun/fleetrun/internal/lg"
)

// Auth selects how a session authenticates to a host. It is a closed
// set: exactly Password and Key exist, and the transport layer switches
// on the concrete type.
type Auth interface {
	isAuth()
}

// PasswordAuth authenticates with a shared secret.
type PasswordAuth struct {
	Secret string
}

// KeyAuth authenticates with a private-key file. An empty Path means
// the user's default keys.
type KeyAuth struct {
	Path string
}

func (PasswordAuth) isAuth() {}
func (KeyAuth) isAuth()      {}

// Host is one validated remote target. The engine treats it as
// read-only for the duration of a run. Alias is used verbatim as the
// output-line prefix.
type Host struct {
	Alias   string `validate:"required"`
	Address string `validate:"required"`
	Port    uint16 `validate:"required"`
	User    string `validate:"required"`
	Auth    Auth   `validate:"required"`
	Tags    []string
}

// Addr returns the dialable host:port form.
func (h Host) Addr() string {
	return fmt.Sprintf("%s:%d", h.Address, h.Port)
}

var validate = validator.New()

// Options controls host selection and credential resolution during
// parsing.
type Options struct {
	// Tags keeps only hosts whose tag set intersects it. Empty keeps
	// all hosts.
	Tags []string
	// Password is the secret handed to hosts whose keypath column is
	// "#". The core never looks inside it again.
	Password string
}

// Load reads and parses the hosts file at path.
func Load(ctx context.Context, path string, opts Options) ([]Host, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hosts file: %w", err)
	}
	defer f.Close()
	return Parse(ctx, f, opts)
}

// Parse reads host records from r in file order. Malformed rows are
// dropped, not fatal: the remaining hosts should still run.
func Parse(ctx context.Context, r io.Reader, opts Options) ([]Host, error) {
	logger := lg.FromContext(ctx)

	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var hosts []Host
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// csv errors name the offending line themselves
			logger.Warn("hosts file: unreadable row, skipping", lg.Err(err))
			continue
		}
		// FieldPos counts comment and blank lines too, so the warning
		// points at the actual file line.
		line, _ := reader.FieldPos(0)
		if len(record) < 4 {
			continue
		}

		port, err := strconv.ParseUint(strings.TrimSpace(record[2]), 10, 16)
		if err != nil {
			logger.Warn("hosts file: bad port, skipping row", lg.Int("line", line), lg.String("port", record[2]))
			continue
		}

		h := Host{
			Alias:   strings.TrimSpace(record[0]),
			Address: strings.TrimSpace(record[1]),
			Port:    uint16(port),
			User:    strings.TrimSpace(record[3]),
			Auth:    authFor(record, opts.Password),
		}
		if len(record) > 5 && strings.TrimSpace(record[5]) != "" {
			h.Tags = strings.Split(strings.TrimSpace(record[5]), ":")
		}

		if err := validate.Struct(h); err != nil {
			logger.Warn("hosts file: invalid row, skipping", lg.Int("line", line), lg.Err(err))
			continue
		}
		if !matchTags(h.Tags, opts.Tags) {
			continue
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}

func authFor(record []string, password string) Auth {
	if len(record) < 5 {
		return KeyAuth{}
	}
	switch key := strings.TrimSpace(record[4]); key {
	case "":
		return KeyAuth{}
	case "#":
		return PasswordAuth{Secret: password}
	default:
		return KeyAuth{Path: key}
	}
}

func matchTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// MaxAliasLen returns the longest alias among hosts, used to pad output
// prefixes into a column.
func MaxAliasLen(hosts []Host) int {
	max := 0
	for _, h := range hosts {
		if len(h.Alias) > max {
			max = len(h.Alias)
		}
	}
	return max
}
