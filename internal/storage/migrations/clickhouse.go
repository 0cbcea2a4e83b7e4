package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// RunClickhouse applies the embedded ClickHouse migrations in lexical
// order. The driver cannot Exec multiquery SQL, so each file is split
// into statements first.
func RunClickhouse(ctx context.Context, conn driver.Conn) error {
	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		return err
	}

	for _, name := range files {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		stmts, err := splitStatements(string(data))
		if err != nil {
			return fmt.Errorf("split migration %s: %w", name, err)
		}
		for _, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", name, err)
			}
		}
	}
	return nil
}

// splitStatements splits migration SQL on semicolons after stripping
// -- comment lines and blank lines. Stripping happens first so that
// apostrophes in comments cannot confuse the literal check. It refuses
// input with a semicolon inside a single-quoted literal, since that
// would split incorrectly. Migration files therefore must keep
// semicolons out of string literals and use full-line -- comments only.
func splitStatements(input string) ([]string, error) {
	var lines []string
	for _, line := range strings.Split(input, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "--") {
			continue
		}
		lines = append(lines, line)
	}
	joined := strings.Join(lines, "\n")

	if err := checkLiteralSemicolons(joined); err != nil {
		return nil, err
	}

	var stmts []string
	for _, part := range strings.Split(joined, ";") {
		if s := strings.TrimSpace(part); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts, nil
}

// checkLiteralSemicolons walks the SQL tracking single-quote state,
// honoring '' escapes.
func checkLiteralSemicolons(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		case ';':
			if inString {
				return fmt.Errorf("semicolon inside string literal")
			}
		}
	}
	return nil
}
